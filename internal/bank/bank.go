package bank

import (
	"image"

	"tilenorm/internal/stain"
)

// Transformer is a fitted normalization.
type Transformer = stain.Transformer

// Fitter is the normalization library the bank is built with. All methods
// must be safe for concurrent use.
type Fitter interface {
	Decode(path string) (image.Image, error)
	Standardize(img image.Image) (image.Image, error)
	Fit(method stain.Method, ref image.Image) (Transformer, error)
}

// Spec describes the bank to build.
type Spec struct {
	Methods    []stain.Method
	References []string
	// Standardize applies luminosity standardization to each reference
	// before fitting.
	Standardize bool
	// Concurrency caps parallel decode and fit calls. Zero means NumCPU.
	Concurrency int
}

// Size is the number of handles a bank built from s will hold.
func (s Spec) Size() int {
	return len(s.Methods) * len(s.References)
}

// Handle is one fitted transform.
type Handle struct {
	Index     int
	Method    stain.Method
	Reference string
	Transformer
}

// Bank is an ordered, read-only sequence of handles.
type Bank struct {
	handles      []Handle
	standardized bool
}

// Len returns the number of handles.
func (b *Bank) Len() int {
	if b == nil {
		return 0
	}
	return len(b.handles)
}

// At returns the handle at index i.
func (b *Bank) At(i int) (Handle, bool) {
	if b == nil || i < 0 || i >= len(b.handles) {
		return Handle{}, false
	}
	return b.handles[i], true
}

// Handles returns a copy of every handle in bank order.
func (b *Bank) Handles() []Handle {
	if b == nil {
		return nil
	}
	return append([]Handle(nil), b.handles...)
}

// Standardized reports whether references were luminosity-standardized
// before fitting.
func (b *Bank) Standardized() bool {
	return b != nil && b.standardized
}
