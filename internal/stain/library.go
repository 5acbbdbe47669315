package stain

import (
	"fmt"
	"image"
)

// Library bundles the codec, standardizer and normalizer fitting behind one
// value. The zero value is usable; Seed only affects Vahadane fits.
type Library struct {
	Seed int64
}

// NewLibrary returns a Library whose Vahadane fits use seed.
func NewLibrary(seed int64) *Library {
	return &Library{Seed: seed}
}

// Decode loads the image at path.
func (l *Library) Decode(path string) (image.Image, error) {
	return Load(path)
}

// Encode writes img to path atomically in the format implied by its
// extension.
func (l *Library) Encode(path string, img image.Image) (int64, error) {
	return Save(path, img)
}

// Standardize applies luminosity standardization.
func (l *Library) Standardize(img image.Image) (image.Image, error) {
	return Standardize(img)
}

// Fit fits method to the reference image.
func (l *Library) Fit(method Method, ref image.Image) (Transformer, error) {
	switch method {
	case Reinhard:
		return FitReinhard(ref)
	case Macenko:
		return FitMacenko(ref)
	case Vahadane:
		return FitVahadane(ref, l.Seed)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownMethod, method)
	}
}
