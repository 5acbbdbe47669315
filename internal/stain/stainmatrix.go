package stain

import (
	"fmt"
	"image"
	"math"
)

const (
	// concentrationPercentile is the robust maximum used to scale stain
	// concentrations between source and reference.
	concentrationPercentile = 99
	// lassoPenalty is the L1 weight of the concentration solve.
	lassoPenalty = 0.01
	// minTissuePixels is the fewest tissue pixels a stain matrix is
	// estimated from.
	minTissuePixels = 10
)

// stainMatrix holds one unit optical-density vector per stain, hematoxylin
// first.
type stainMatrix [2]vec3

// extractor estimates a stain matrix from an image.
type extractor func(p *pixels) (stainMatrix, error)

// stainNormalizer maps the stain concentrations of a source image onto a
// reference stain matrix and concentration range.
type stainNormalizer struct {
	name    string
	extract extractor
	target  stainMatrix
	maxC    [2]float64
}

func fitStainNormalizer(name string, extract extractor, ref image.Image) (*stainNormalizer, error) {
	p := newPixels(ref)
	target, err := extract(p)
	if err != nil {
		return nil, err
	}
	maxC := maxConcentrations(concentrations(p.densities(), target))
	if !(maxC[0] > 0) || !(maxC[1] > 0) {
		return nil, fmt.Errorf("%w: %s reference has no measurable stain", ErrFit, name)
	}
	return &stainNormalizer{name: name, extract: extract, target: target, maxC: maxC}, nil
}

func (n *stainNormalizer) Transform(img image.Image) (image.Image, error) {
	p := newPixels(img)
	source, err := n.extract(p)
	if err != nil {
		return nil, fmt.Errorf("%s: source stain matrix: %w", n.name, err)
	}
	conc := concentrations(p.densities(), source)
	maxC := maxConcentrations(conc)
	var scale [2]float64
	for k := range 2 {
		scale[k] = 1
		if maxC[k] > 0 {
			scale[k] = n.maxC[k] / maxC[k]
		}
	}
	for i, c := range conc {
		var od vec3
		for ch := range 3 {
			od[ch] = c[0]*scale[0]*n.target[0][ch] + c[1]*scale[1]*n.target[1][ch]
		}
		p.rgb[i] = intensity(od)
	}
	return p.image(), nil
}

func maxConcentrations(conc [][2]float64) [2]float64 {
	var out [2]float64
	column := make([]float64, len(conc))
	for k := range 2 {
		for i, c := range conc {
			column[i] = c[k]
		}
		out[k] = percentile(column, concentrationPercentile)
	}
	return out
}

// concentrations solves a non-negative lasso per pixel against the two
// stain vectors.
func concentrations(od []vec3, s stainMatrix) [][2]float64 {
	g00, g01, g11 := dot(s[0], s[0]), dot(s[0], s[1]), dot(s[1], s[1])
	det := g00*g11 - g01*g01
	out := make([][2]float64, len(od))
	for i, x := range od {
		c0 := dot(s[0], x) - lassoPenalty
		c1 := dot(s[1], x) - lassoPenalty
		if det > 1e-12 {
			a0 := (g11*c0 - g01*c1) / det
			a1 := (g00*c1 - g01*c0) / det
			if a0 >= 0 && a1 >= 0 {
				out[i] = [2]float64{a0, a1}
				continue
			}
		}
		// One stain is inactive; keep the better single-stain solution.
		only0 := math.Max(0, c0/g00)
		only1 := math.Max(0, c1/g11)
		if 0.5*g00*only0*only0-only0*c0 <= 0.5*g11*only1*only1-only1*c1 {
			out[i] = [2]float64{only0, 0}
		} else {
			out[i] = [2]float64{0, only1}
		}
	}
	return out
}

// ordered normalizes both rows and puts the stain with the larger red
// optical density first.
func ordered(a, b vec3) (stainMatrix, error) {
	na, nb := norm(a), norm(b)
	if na < 1e-9 || nb < 1e-9 {
		return stainMatrix{}, fmt.Errorf("%w: degenerate stain vector", ErrFit)
	}
	for k := range 3 {
		a[k] /= na
		b[k] /= nb
	}
	if a[0] < b[0] {
		a, b = b, a
	}
	return stainMatrix{a, b}, nil
}

func tissueOrErr(p *pixels) ([]vec3, error) {
	od := p.tissueDensities()
	if len(od) < minTissuePixels {
		return nil, fmt.Errorf("%w: only %d tissue pixels", ErrFit, len(od))
	}
	return od, nil
}
