package stain

import (
	"image"
	"math/rand/v2"
)

const (
	// dictionaryPenalty is the L1 weight on concentrations while learning
	// the stain dictionary.
	dictionaryPenalty = 0.1
	dictionaryIters   = 60
	// dictionarySamples caps the tissue pixels used for learning.
	dictionarySamples = 20000
)

// FitVahadane fits a Vahadane normalizer to ref. seed fixes the dictionary
// initialization so fits are reproducible.
func FitVahadane(ref image.Image, seed int64) (Transformer, error) {
	return fitStainNormalizer("vahadane", vahadaneExtractor(seed), ref)
}

// vahadaneExtractor learns a two-atom non-negative dictionary over tissue
// optical densities with sparse non-negative codes. Each call builds its own
// generator from seed, so concurrent calls are safe and repeatable.
func vahadaneExtractor(seed int64) extractor {
	return func(p *pixels) (stainMatrix, error) {
		od, err := tissueOrErr(p)
		if err != nil {
			return stainMatrix{}, err
		}
		rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
		od = sample(od, dictionarySamples, rng)
		d := learnDictionary(od, rng)
		return ordered(d[0], d[1])
	}
}

func sample(od []vec3, limit int, rng *rand.Rand) []vec3 {
	if len(od) <= limit {
		return od
	}
	out := make([]vec3, limit)
	for i := range out {
		out[i] = od[rng.IntN(len(od))]
	}
	return out
}

// learnDictionary runs multiplicative-update NMF, X ≈ A·D, with an L1
// penalty on A and unit-norm rows of D.
func learnDictionary(x []vec3, rng *rand.Rand) stainMatrix {
	const eps = 1e-10
	var d stainMatrix
	for k := range 2 {
		for ch := range 3 {
			d[k][ch] = 0.1 + rng.Float64()
		}
		d[k] = scale(d[k], 1/norm(d[k]))
	}
	a := concentrations(x, d)
	for i := range a {
		// Zero codes never recover under multiplicative updates.
		a[i][0] = max(a[i][0], 1e-3)
		a[i][1] = max(a[i][1], 1e-3)
	}

	for range dictionaryIters {
		// D ← D ⊙ (AᵀX) / (AᵀA·D)
		var atx [2]vec3
		var ata [2][2]float64
		for i, row := range a {
			for k := range 2 {
				for ch := range 3 {
					atx[k][ch] += row[k] * x[i][ch]
				}
				ata[k][0] += row[k] * row[0]
				ata[k][1] += row[k] * row[1]
			}
		}
		prev := d
		for k := range 2 {
			for ch := range 3 {
				den := ata[k][0]*prev[0][ch] + ata[k][1]*prev[1][ch] + eps
				d[k][ch] *= atx[k][ch] / den
			}
			n := norm(d[k])
			if n < eps {
				continue
			}
			d[k] = scale(d[k], 1/n)
			for i := range a {
				a[i][k] *= n
			}
		}

		// A ← A ⊙ (X·Dᵀ) / (A·D·Dᵀ + λ)
		g00, g01, g11 := dot(d[0], d[0]), dot(d[0], d[1]), dot(d[1], d[1])
		for i, row := range a {
			num0, num1 := dot(x[i], d[0]), dot(x[i], d[1])
			den0 := row[0]*g00 + row[1]*g01 + dictionaryPenalty + eps
			den1 := row[0]*g01 + row[1]*g11 + dictionaryPenalty + eps
			a[i][0] = row[0] * num0 / den0
			a[i][1] = row[1] * num1 / den1
		}
	}
	return d
}
