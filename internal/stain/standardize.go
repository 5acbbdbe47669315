package stain

import (
	"fmt"
	"image"
	"math"
)

// standardizePercentile is the lightness percentile mapped to full white.
const standardizePercentile = 95

// Standardize rescales CIELAB lightness so the 95th percentile becomes
// white, clipping anything brighter. Hue channels are left alone.
func Standardize(img image.Image) (image.Image, error) {
	p := newPixels(img)
	if p.len() == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrStandardize)
	}
	lab := p.lab()
	lightness := make([]float64, len(lab))
	for i, v := range lab {
		lightness[i] = v[0]
	}
	ref := percentile(lightness, standardizePercentile)
	if !(ref > 0) {
		return nil, fmt.Errorf("%w: lightness percentile is %.4f", ErrStandardize, ref)
	}
	for i := range lab {
		lab[i][0] = math.Min(lab[i][0]/ref, 1)
	}
	p.setLab(lab)
	return p.image(), nil
}
