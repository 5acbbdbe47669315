package stain

import (
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const angularPercentile = 99

// FitMacenko fits a Macenko normalizer to ref.
func FitMacenko(ref image.Image) (Transformer, error) {
	return fitStainNormalizer("macenko", macenkoMatrix, ref)
}

// macenkoMatrix projects tissue optical densities onto the plane of the two
// leading principal directions and takes the robust extreme angles as the
// stain vectors.
func macenkoMatrix(p *pixels) (stainMatrix, error) {
	od, err := tissueOrErr(p)
	if err != nil {
		return stainMatrix{}, err
	}

	data := mat.NewDense(len(od), 3, nil)
	for i, v := range od {
		data.SetRow(i, v[:])
	}
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)

	var eig mat.EigenSym
	if ok := eig.Factorize(&cov, true); !ok {
		return stainMatrix{}, fmt.Errorf("%w: eigen decomposition did not converge", ErrFit)
	}
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// Eigenvalues are ascending: columns 2 and 1 span the stain plane.
	var v1, v2 vec3
	for k := range 3 {
		v1[k] = vectors.At(k, 2)
		v2[k] = vectors.At(k, 1)
	}
	if v1[0] < 0 {
		v1 = scale(v1, -1)
	}
	if v2[0] < 0 {
		v2 = scale(v2, -1)
	}

	angles := make([]float64, len(od))
	for i, v := range od {
		angles[i] = math.Atan2(dot(v, v2), dot(v, v1))
	}
	minPhi := percentile(angles, 100-angularPercentile)
	maxPhi := percentile(angles, angularPercentile)

	a := add(scale(v1, math.Cos(minPhi)), scale(v2, math.Sin(minPhi)))
	b := add(scale(v1, math.Cos(maxPhi)), scale(v2, math.Sin(maxPhi)))
	return ordered(a, b)
}

func scale(v vec3, f float64) vec3 {
	return vec3{v[0] * f, v[1] * f, v[2] * f}
}

func add(a, b vec3) vec3 {
	return vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}
