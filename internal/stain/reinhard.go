package stain

import (
	"fmt"
	"image"

	"gonum.org/v1/gonum/stat"
)

// reinhardNormalizer matches per-channel CIELAB mean and standard deviation
// to a reference.
type reinhardNormalizer struct {
	mean, std vec3
}

// FitReinhard fits a Reinhard normalizer to ref.
func FitReinhard(ref image.Image) (Transformer, error) {
	p := newPixels(ref)
	if p.len() == 0 {
		return nil, fmt.Errorf("%w: empty reference image", ErrFit)
	}
	mean, std := labStats(p.lab())
	return &reinhardNormalizer{mean: mean, std: std}, nil
}

func (n *reinhardNormalizer) Transform(img image.Image) (image.Image, error) {
	p := newPixels(img)
	if p.len() == 0 {
		return nil, fmt.Errorf("reinhard: empty image")
	}
	lab := p.lab()
	mean, std := labStats(lab)
	for i := range lab {
		for k := range 3 {
			centered := lab[i][k] - mean[k]
			if std[k] > 1e-9 {
				centered = centered / std[k] * n.std[k]
			}
			lab[i][k] = centered + n.mean[k]
		}
	}
	p.setLab(lab)
	return p.image(), nil
}

func labStats(lab []vec3) (mean, std vec3) {
	channel := make([]float64, len(lab))
	for k := range 3 {
		for i, v := range lab {
			channel[i] = v[k]
		}
		mean[k], std[k] = stat.PopMeanStdDev(channel, nil)
	}
	return mean, std
}
