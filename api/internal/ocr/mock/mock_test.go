package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathsnap/api/internal/solver"
)

func TestRecognizeIsDeterministic(t *testing.T) {
	e := New()
	img := []byte("same image bytes")

	first, err := e.Recognize(context.Background(), img, "image/png")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := e.Recognize(context.Background(), img, "image/png")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Contains(t, solver.Problems(), first.Text)
	assert.Equal(t, "mock", first.Engine)
	assert.Zero(t, first.Confidence)
}

func TestRecognizeSingleProblem(t *testing.T) {
	rec, err := New("1+1").Recognize(context.Background(), []byte{1, 2, 3}, "")
	require.NoError(t, err)
	assert.Equal(t, "1+1", rec.Text)
}

func TestRecognizeErrors(t *testing.T) {
	_, err := New().Recognize(context.Background(), nil, "")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New().Recognize(ctx, []byte{1}, "")
	assert.ErrorIs(t, err, context.Canceled)
}
