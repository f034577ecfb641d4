package capture

import (
	"errors"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

var ErrNoImages = errors.New("capture: nothing to stitch")

// Stitch stacks pages vertically, centred on a white background, and
// encodes the result as one JPEG. Used for problems photographed across
// several shots.
func Stitch(pages [][]byte, maxPixels int) (Image, error) {
	if len(pages) == 0 {
		return Image{}, ErrNoImages
	}
	decoded := make([]image.Image, 0, len(pages))
	maxW, sumH := 0, 0
	for _, b := range pages {
		img, _, err := DecodeImage(b)
		if err != nil {
			return Image{}, err
		}
		decoded = append(decoded, img)
		maxW = max(maxW, img.Bounds().Dx())
		sumH += img.Bounds().Dy()
	}

	dst := image.NewRGBA(image.Rect(0, 0, maxW, sumH))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	y := 0
	for _, img := range decoded {
		w, h := img.Bounds().Dx(), img.Bounds().Dy()
		x := (maxW - w) / 2
		draw.Draw(dst, image.Rect(x, y, x+w, y+h), img, img.Bounds().Min, draw.Over)
		y += h
	}

	final := dst
	if total := maxW * sumH; maxPixels > 0 && total > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(total))
		w := max(1, int(float64(maxW)*scale+0.5))
		h := max(1, int(float64(sumH)*scale+0.5))
		final = image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(final, final.Bounds(), dst, dst.Bounds(), draw.Src, nil)
	}
	return encodeJPEG(final, defaultJPEGQuality)
}
