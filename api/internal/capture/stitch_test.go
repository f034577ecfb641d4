package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStitchStacksPages(t *testing.T) {
	out, err := Stitch([][]byte{pngBytes(t, 40, 10), pngBytes(t, 20, 30)}, 0)
	require.NoError(t, err)
	assert.Equal(t, 40, out.Width)
	assert.Equal(t, 40, out.Height)
	assert.Equal(t, Size{Width: 40, Height: 40}, decodedSize(t, out))
}

func TestStitchDownscales(t *testing.T) {
	out, err := Stitch([][]byte{pngBytes(t, 100, 50), pngBytes(t, 100, 50)}, 2500)
	require.NoError(t, err)
	assert.Equal(t, 50, out.Width)
	assert.Equal(t, 50, out.Height)
}

func TestStitchErrors(t *testing.T) {
	_, err := Stitch(nil, 0)
	assert.ErrorIs(t, err, ErrNoImages)
	_, err = Stitch([][]byte{pngBytes(t, 4, 4), []byte("junk")}, 0)
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}
