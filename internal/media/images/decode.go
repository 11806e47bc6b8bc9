package images

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder

	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Decode parses image bytes in any supported format and returns the image
// with its pixel dimensions.
func Decode(data []byte) (image.Image, int, int, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, 0, 0, fmt.Errorf("decode image: empty %s image", format)
	}
	return img, bounds.Dx(), bounds.Dy(), nil
}
