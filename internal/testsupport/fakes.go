package testsupport

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"

	"tilenorm/internal/stain"
)

// FitCall records one Fit invocation on a FakeFitter.
type FitCall struct {
	Method       stain.Method
	Standardized bool
}

// FakeFitter decodes real files but fits instant FakeTransformers. Errors
// can be injected per reference path and per method, or for standardization.
type FakeFitter struct {
	DecodeErr      map[string]error
	StandardizeErr error
	FitErr         map[stain.Method]error
	// Transformer, when set, is returned from every successful Fit.
	Transformer stain.Transformer

	mu           sync.Mutex
	decodes      []string
	standardizes int
	fits         []FitCall
}

// standardizedImage tags images that went through FakeFitter.Standardize.
type standardizedImage struct {
	image.Image
}

func (f *FakeFitter) Decode(path string) (image.Image, error) {
	f.mu.Lock()
	f.decodes = append(f.decodes, path)
	f.mu.Unlock()
	if err := f.DecodeErr[path]; err != nil {
		return nil, err
	}
	return stain.Load(path)
}

func (f *FakeFitter) Standardize(img image.Image) (image.Image, error) {
	f.mu.Lock()
	f.standardizes++
	f.mu.Unlock()
	if f.StandardizeErr != nil {
		return nil, f.StandardizeErr
	}
	return standardizedImage{img}, nil
}

func (f *FakeFitter) Fit(method stain.Method, ref image.Image) (stain.Transformer, error) {
	_, standardized := ref.(standardizedImage)
	f.mu.Lock()
	f.fits = append(f.fits, FitCall{Method: method, Standardized: standardized})
	f.mu.Unlock()
	if err := f.FitErr[method]; err != nil {
		return nil, err
	}
	if f.Transformer != nil {
		return f.Transformer, nil
	}
	return &FakeTransformer{Method: method}, nil
}

// Decodes returns the reference paths decoded so far.
func (f *FakeFitter) Decodes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.decodes...)
}

// Standardizes returns how many times Standardize was called.
func (f *FakeFitter) Standardizes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.standardizes
}

// Fits returns every Fit call so far, in call order.
func (f *FakeFitter) Fits() []FitCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FitCall(nil), f.fits...)
}

// FakeTransformer inverts colours so outputs differ from inputs. It fails
// or panics on demand for images whose width matches the trigger.
type FakeTransformer struct {
	Method stain.Method
	// FailWidth makes Transform return an error for images of this width.
	FailWidth int
	// PanicWidth makes Transform panic for images of this width.
	PanicWidth int
}

func (t *FakeTransformer) Transform(img image.Image) (image.Image, error) {
	w := img.Bounds().Dx()
	if t.PanicWidth > 0 && w == t.PanicWidth {
		panic(fmt.Sprintf("fake transformer: width %d", w))
	}
	if t.FailWidth > 0 && w == t.FailWidth {
		return nil, fmt.Errorf("fake transformer: width %d rejected", w)
	}
	return imaging.Invert(img), nil
}

// ErrFakeStandardize is what FailingStandardizer returns.
var ErrFakeStandardize = fmt.Errorf("fake: %w", stain.ErrStandardize)

// FailingStandardizer always fails. It also counts calls.
type FailingStandardizer struct {
	mu    sync.Mutex
	calls int
}

func (s *FailingStandardizer) Standardize(image.Image) (image.Image, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return nil, ErrFakeStandardize
}

// Calls returns the number of Standardize calls.
func (s *FailingStandardizer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// CountingStandardizer passes images through unchanged and counts calls.
type CountingStandardizer struct {
	mu    sync.Mutex
	calls int
}

func (s *CountingStandardizer) Standardize(img image.Image) (image.Image, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if img == nil {
		return nil, errors.New("nil image")
	}
	return img, nil
}

// Calls returns the number of Standardize calls.
func (s *CountingStandardizer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
