package patch

import "strings"

// Pattern is an ordered list of path-segment labels.
type Pattern struct {
	labels []string
}

// ParsePattern splits a '/'-separated pattern. Every segment counts as one
// level, blank ones included, so "a//b" has depth 3. Only "" and "'" yield
// the empty pattern.
func ParsePattern(s string) Pattern {
	s = strings.TrimSpace(s)
	if s == "" || s == "'" {
		return Pattern{}
	}
	return Pattern{labels: strings.Split(s, "/")}
}

// Depth is the number of directory levels between the source root and a
// patch file.
func (p Pattern) Depth() int {
	return len(p.labels)
}

// Labels returns a copy of the segment labels.
func (p Pattern) Labels() []string {
	return append([]string(nil), p.labels...)
}

func (p Pattern) String() string {
	return strings.Join(p.labels, "/")
}
