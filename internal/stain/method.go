package stain

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"golang.org/x/text/cases"
)

// Method names a stain-normalization algorithm.
type Method string

const (
	Reinhard Method = "reinhard"
	Macenko  Method = "macenko"
	Vahadane Method = "vahadane"
)

// Methods lists every supported method in a stable order.
var Methods = []Method{Vahadane, Macenko, Reinhard}

var (
	// ErrUnknownMethod reports a method name outside Methods.
	ErrUnknownMethod = errors.New("unknown normalization method")
	// ErrStandardize marks a luminosity standardization failure.
	ErrStandardize = errors.New("luminosity standardization failed")
	// ErrFit marks a failure to fit a normalizer to a reference image.
	ErrFit = errors.New("normalizer fit failed")
)

var folder = cases.Fold()

// ParseMethod resolves a user-supplied method name, ignoring case and
// surrounding whitespace.
func ParseMethod(value string) (Method, error) {
	key := folder.String(strings.TrimSpace(value))
	for _, m := range Methods {
		if string(m) == key {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w %q (expected one of %s)", ErrUnknownMethod, value, methodList())
}

func (m Method) String() string {
	return string(m)
}

// Transformer applies a fitted normalization to an image.
type Transformer interface {
	Transform(img image.Image) (image.Image, error)
}

func methodList() string {
	names := make([]string, len(Methods))
	for i, m := range Methods {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}
