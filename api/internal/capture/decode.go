package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"mathsnap/api/internal/util"
)

// maxDecodePixels bounds decoded bitmaps (about 60 MP).
const maxDecodePixels = 60_000_000

var (
	ErrUnsupportedImage = errors.New("capture: unsupported or corrupt image")
	ErrImageTooLarge    = errors.New("capture: image too large")
)

// DecodeImage decodes JPEG, PNG, GIF or WebP bytes.
func DecodeImage(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty", ErrUnsupportedImage)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("%w: zero size", ErrUnsupportedImage)
	}
	if cfg.Width*cfg.Height > maxDecodePixels {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, format, nil
}

// Image is the final output of a capture session.
type Image struct {
	Data    []byte `json:"-"`
	MIME    string `json:"mime"`
	DataURL string `json:"data_url"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

func encodeJPEG(img image.Image, quality int) (Image, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return Image{}, fmt.Errorf("encode jpeg: %w", err)
	}
	b := img.Bounds()
	return Image{
		Data:    buf.Bytes(),
		MIME:    "image/jpeg",
		DataURL: util.MakeDataURL("image/jpeg", buf.Bytes()),
		Width:   b.Dx(),
		Height:  b.Dy(),
	}, nil
}
