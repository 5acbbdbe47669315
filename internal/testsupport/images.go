package testsupport

import (
	"image"
	"image/color"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"tilenorm/internal/stain"
)

// Optical-density directions of hematoxylin and eosin.
var (
	hematoxylin = [3]float64{0.65, 0.70, 0.29}
	eosin       = [3]float64{0.07, 0.99, 0.11}
)

// TissueImage synthesizes an H&E-like tile with background, pure-stain and
// mixed pixels. The same seed always yields the same image.
func TissueImage(width, height int, seed uint64) *image.NRGBA {
	rng := rand.New(rand.NewPCG(seed, seed^0x5bd1e995))
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			var h, e float64
			switch r := rng.Float64(); {
			case r < 0.15:
			case r < 0.35:
				h = 0.5 + rng.Float64()
			case r < 0.55:
				e = 0.5 + rng.Float64()
			default:
				h, e = 0.2+rng.Float64(), 0.2+rng.Float64()
			}
			var px [3]uint8
			for ch := range 3 {
				od := 0.01 + h*hematoxylin[ch] + e*eosin[ch]
				px[ch] = uint8(math.Round(255 * math.Exp(-od)))
			}
			img.SetNRGBA(x, y, color.NRGBA{px[0], px[1], px[2], 255})
		}
	}
	return img
}

// WriteTile writes a 16x16 synthetic tissue tile to path, encoded in the
// format implied by its extension.
func WriteTile(t testing.TB, path string, seed uint64) {
	t.Helper()
	WriteImage(t, path, TissueImage(16, 16, seed))
}

// WriteImage encodes img to path, creating parent directories.
func WriteImage(t testing.TB, path string, img image.Image) {
	t.Helper()
	if _, err := stain.Save(path, img); err != nil {
		t.Fatalf("write image %s: %v", path, err)
	}
}

// WriteFile writes raw bytes to path, creating parent directories. Useful
// for corrupt inputs.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// PatchPath joins rel onto root; a convenience for building mirrored trees.
func PatchPath(root string, rel ...string) string {
	return filepath.Join(append([]string{root}, rel...)...)
}
