package capture

import (
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
)

type Unit string

const (
	UnitPercent Unit = "%"
	UnitPixel   Unit = "px"
)

var (
	ErrInvalidCrop = errors.New("capture: invalid crop region")
	ErrEmptyCrop   = errors.New("capture: crop region is empty")
)

// defaultCropPercent is the share of each dimension the initial crop covers.
const defaultCropPercent = 80.0

type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s Size) Empty() bool { return s.Width <= 0 || s.Height <= 0 }

// CropRegion is a rectangle over the displayed still image. Percent regions
// are relative to the image; pixel regions are in display coordinates.
type CropRegion struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Unit   Unit    `json:"unit"`
}

// DefaultCrop returns a centred rectangle proportional to the image.
func DefaultCrop(Size) CropRegion {
	margin := (100 - defaultCropPercent) / 2
	return CropRegion{X: margin, Y: margin, Width: defaultCropPercent, Height: defaultCropPercent, Unit: UnitPercent}
}

// Pixels converts the region into a rectangle of the natural image. display
// is the size the image was shown at; an empty display means unscaled.
// Negative offsets are rejected; the result is clamped to the image bounds.
func (c CropRegion) Pixels(natural, display Size) (image.Rectangle, error) {
	if natural.Empty() {
		return image.Rectangle{}, ErrEmptyCrop
	}
	for _, v := range []float64{c.X, c.Y, c.Width, c.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return image.Rectangle{}, ErrInvalidCrop
		}
	}
	if c.Width < 0 || c.Height < 0 {
		return image.Rectangle{}, fmt.Errorf("%w: negative size", ErrInvalidCrop)
	}
	if c.X < 0 || c.Y < 0 {
		return image.Rectangle{}, fmt.Errorf("%w: negative offset", ErrInvalidCrop)
	}
	if display.Empty() {
		display = natural
	}

	var sx, sy float64
	switch c.Unit {
	case UnitPercent, "":
		sx = float64(natural.Width) / 100
		sy = float64(natural.Height) / 100
	case UnitPixel:
		sx = float64(natural.Width) / float64(display.Width)
		sy = float64(natural.Height) / float64(display.Height)
	default:
		return image.Rectangle{}, fmt.Errorf("%w: unit %q", ErrInvalidCrop, c.Unit)
	}

	// clamp before converting so huge values cannot overflow int
	w, h := float64(natural.Width), float64(natural.Height)
	x0 := min(math.Round(c.X*sx), w)
	y0 := min(math.Round(c.Y*sy), h)
	x1 := min(x0+math.Round(c.Width*sx), w)
	y1 := min(y0+math.Round(c.Height*sy), h)
	r := image.Rect(int(x0), int(y0), int(x1), int(y1))
	if r.Empty() {
		return image.Rectangle{}, ErrEmptyCrop
	}
	return r, nil
}

// toRGBA copies img into a fresh bitmap at its native resolution, origin (0,0).
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// cropRGBA renders only r of src into a new bitmap. When maxPixels > 0 and
// the crop is larger, it is scaled down keeping the aspect ratio.
func cropRGBA(src *image.RGBA, r image.Rectangle, maxPixels int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), src, r.Min, draw.Src)

	total := r.Dx() * r.Dy()
	if maxPixels <= 0 || total <= maxPixels {
		return dst
	}
	scale := math.Sqrt(float64(maxPixels) / float64(total))
	w := max(1, int(float64(r.Dx())*scale))
	h := max(1, int(float64(r.Dy())*scale))
	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), dst, dst.Bounds(), draw.Src, nil)
	return scaled
}
