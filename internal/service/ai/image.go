package ai

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
)

var acceptedFormats = map[string]bool{"jpeg": true, "png": true}

// DecodeImage decodes a jpg or png buffer. Empty or unreadable buffers, other
// formats, and images with more than maxPixels pixels are reported as
// ErrMalformedImage. A maxPixels of zero or less disables the size check.
func DecodeImage(data []byte, maxPixels int) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty buffer", ErrMalformedImage)
	}

	// The header is checked before any pixels are allocated.
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedImage, err)
	}
	if !acceptedFormats[format] {
		return nil, format, fmt.Errorf("%w: unsupported format %s", ErrMalformedImage, format)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, format, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrMalformedImage, cfg.Width, cfg.Height, maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, fmt.Errorf("%w: %v", ErrMalformedImage, err)
	}
	return img, format, nil
}
