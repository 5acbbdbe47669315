package stain

import (
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"

	"tilenorm/internal/fileutil"
)

// SupportedExtension reports whether ext (with or without a leading dot)
// names an image format that can be both decoded and encoded.
func SupportedExtension(ext string) bool {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		return false
	}
	_, err := imaging.FormatFromExtension(ext)
	return err == nil
}

// Load decodes the image at path.
func Load(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Save encodes img in the format implied by path's extension and writes it
// atomically. It returns the number of bytes written.
func Save(path string, img image.Image) (int64, error) {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", path, err)
	}
	n, err := fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		return imaging.Encode(w, img, format)
	})
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", path, err)
	}
	return n, nil
}
