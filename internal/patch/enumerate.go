package patch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"tilenorm/internal/failure"
)

// PathError reports an unusable enumeration root.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("patch root %s: %v", e.Path, e.Err)
}

// Unwrap exposes both the path marker and the underlying cause.
func (e *PathError) Unwrap() []error {
	return []error{failure.ErrPath, e.Err}
}

// Enumerate returns every file with one of extensions that sits exactly
// depth directory levels below root. Matching is case-insensitive and
// extensions may carry a leading dot. Entries whose name begins with a dot
// are skipped at every level. Unreadable subdirectories are skipped.
//
// The result is in lexical walk order, but callers must treat it as an
// unordered collection.
func Enumerate(root string, depth int, extensions []string) ([]string, error) {
	if depth < 0 {
		return nil, &PathError{Path: root, Err: fmt.Errorf("negative depth %d", depth)}
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, &PathError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &PathError{Path: root, Err: errors.New("not a directory")}
	}

	wanted := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if ext != "" {
			wanted[ext] = struct{}{}
		}
	}

	root = filepath.Clean(root)
	var out []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if path == root {
			return err
		}
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		level := levelOf(root, path)
		if d.IsDir() {
			// Files directly inside a level-k directory are at depth k.
			if level > depth {
				return fs.SkipDir
			}
			return nil
		}
		if level-1 != depth {
			return nil
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(d.Name())), ".")
		if _, ok := wanted[ext]; ok {
			out = append(out, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, &PathError{Path: root, Err: walkErr}
	}
	return out, nil
}

// levelOf counts the path components of path below root.
func levelOf(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
