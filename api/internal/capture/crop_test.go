package capture

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCropIsCentred(t *testing.T) {
	nat := Size{Width: 1000, Height: 500}
	r, err := DefaultCrop(nat).Pixels(nat, Size{})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(100, 50, 900, 450), r)
}

func TestPixelsClampsToBounds(t *testing.T) {
	nat := Size{Width: 100, Height: 100}
	r, err := CropRegion{X: 80, Y: 70, Width: 50, Height: 50, Unit: UnitPixel}.Pixels(nat, nat)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(80, 70, 100, 100), r)

	r, err = CropRegion{X: 10, Width: 1e19, Height: 1e19, Unit: UnitPixel}.Pixels(nat, nat)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(10, 0, 100, 100), r)

	_, err = CropRegion{X: 5e18, Width: 10, Height: 10, Unit: UnitPixel}.Pixels(nat, nat)
	assert.ErrorIs(t, err, ErrEmptyCrop)
}

func TestPixelsRejectsNegativeOffsets(t *testing.T) {
	nat := Size{Width: 100, Height: 100}
	_, err := CropRegion{X: -5e18, Width: 1e19, Height: 10, Unit: UnitPixel}.Pixels(nat, nat)
	assert.ErrorIs(t, err, ErrInvalidCrop)
	_, err = CropRegion{Y: -1, Width: 10, Height: 10, Unit: UnitPercent}.Pixels(nat, nat)
	assert.ErrorIs(t, err, ErrInvalidCrop)
}

func TestPixelsRejectsNonFinite(t *testing.T) {
	nat := Size{Width: 10, Height: 10}
	_, err := CropRegion{X: math.NaN(), Width: 1, Height: 1}.Pixels(nat, nat)
	assert.ErrorIs(t, err, ErrInvalidCrop)
	_, err = CropRegion{Width: math.Inf(1), Height: 1}.Pixels(nat, nat)
	assert.ErrorIs(t, err, ErrInvalidCrop)
	_, err = CropRegion{Width: 1, Height: 1}.Pixels(Size{}, nat)
	assert.ErrorIs(t, err, ErrEmptyCrop)
}

func TestPixelsDimensionProperty(t *testing.T) {
	// output size == round(crop size * natural/display) when inside bounds
	nat := Size{Width: 1920, Height: 1080}
	for _, disp := range []Size{{960, 540}, {480, 270}, {1920, 1080}, {3840, 2160}} {
		for _, c := range []CropRegion{
			{X: 0, Y: 0, Width: 100, Height: 50, Unit: UnitPixel},
			{X: 10, Y: 20, Width: 33, Height: 17, Unit: UnitPixel},
		} {
			r, err := c.Pixels(nat, disp)
			require.NoError(t, err)
			sx := float64(nat.Width) / float64(disp.Width)
			sy := float64(nat.Height) / float64(disp.Height)
			assert.Equal(t, int(math.Round(c.Width*sx)), r.Dx(), "display %v", disp)
			assert.Equal(t, int(math.Round(c.Height*sy)), r.Dy(), "display %v", disp)
		}
	}
}

func TestCropRGBA(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 20))
	out := cropRGBA(src, image.Rect(5, 5, 25, 15), 0)
	assert.Equal(t, image.Rect(0, 0, 20, 10), out.Bounds())

	out = cropRGBA(src, image.Rect(0, 0, 40, 20), 200)
	assert.Equal(t, 20, out.Bounds().Dx())
	assert.Equal(t, 10, out.Bounds().Dy())
}
