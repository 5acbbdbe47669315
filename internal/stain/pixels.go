package stain

import (
	"image"
	"math"
	"slices"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// tissueThreshold is the CIELAB lightness below which a pixel counts as
// tissue rather than background.
const tissueThreshold = 0.8

// vec3 holds one value per RGB channel.
type vec3 [3]float64

// pixels is a float working copy of an image. RGB values are in [0, 255];
// alpha is carried through untouched.
type pixels struct {
	width, height int
	rgb           []vec3
	alpha         []uint8
}

func newPixels(img image.Image) *pixels {
	src := imaging.Clone(img)
	b := src.Bounds()
	p := &pixels{
		width:  b.Dx(),
		height: b.Dy(),
		rgb:    make([]vec3, b.Dx()*b.Dy()),
		alpha:  make([]uint8, b.Dx()*b.Dy()),
	}
	for i := range p.rgb {
		o := i * 4
		p.rgb[i] = vec3{float64(src.Pix[o]), float64(src.Pix[o+1]), float64(src.Pix[o+2])}
		p.alpha[i] = src.Pix[o+3]
	}
	return p
}

func (p *pixels) len() int {
	return len(p.rgb)
}

func (p *pixels) image() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, p.width, p.height))
	for i, c := range p.rgb {
		o := i * 4
		out.Pix[o] = clampByte(c[0])
		out.Pix[o+1] = clampByte(c[1])
		out.Pix[o+2] = clampByte(c[2])
		out.Pix[o+3] = p.alpha[i]
	}
	return out
}

// lab converts every pixel to CIELAB (D65). L is in [0, 1].
func (p *pixels) lab() []vec3 {
	out := make([]vec3, len(p.rgb))
	for i, c := range p.rgb {
		l, a, b := colorful.Color{R: c[0] / 255, G: c[1] / 255, B: c[2] / 255}.Lab()
		out[i] = vec3{l, a, b}
	}
	return out
}

// setLab replaces the pixel data with the given CIELAB values.
func (p *pixels) setLab(values []vec3) {
	for i, v := range values {
		c := colorful.Lab(v[0], v[1], v[2]).Clamped()
		p.rgb[i] = vec3{c.R * 255, c.G * 255, c.B * 255}
	}
}

// opticalDensity converts RGB to optical density. Zero intensities are
// raised to one so the logarithm stays finite.
func opticalDensity(c vec3) vec3 {
	var od vec3
	for k, v := range c {
		od[k] = -math.Log(math.Max(v, 1) / 255)
	}
	return od
}

func intensity(od vec3) vec3 {
	var c vec3
	for k, v := range od {
		c[k] = 255 * math.Exp(-v)
	}
	return c
}

// tissueDensities returns the optical densities of the pixels classified as
// tissue.
func (p *pixels) tissueDensities() []vec3 {
	lab := p.lab()
	out := make([]vec3, 0, len(lab))
	for i, v := range lab {
		if v[0] < tissueThreshold {
			out = append(out, opticalDensity(p.rgb[i]))
		}
	}
	return out
}

func (p *pixels) densities() []vec3 {
	out := make([]vec3, len(p.rgb))
	for i, c := range p.rgb {
		out[i] = opticalDensity(c)
	}
	return out
}

// percentile matches numpy's default linear interpolation.
func percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	pos := q / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func clampByte(v float64) uint8 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}

func norm(v vec3) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func dot(a, b vec3) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}
