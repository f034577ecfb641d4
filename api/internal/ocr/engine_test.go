package ocr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRecognizer struct{ name string }

func (s stubRecognizer) Name() string { return s.name }

func (s stubRecognizer) Recognize(context.Context, []byte, string) (Recognition, error) {
	return Recognition{Text: s.name, Engine: s.name}, nil
}

func TestManager(t *testing.T) {
	def := stubRecognizer{name: "mock"}
	other := stubRecognizer{name: "Tesseract"}
	m := NewManager(def, other, nil)

	assert.Equal(t, []string{"mock", "tesseract"}, m.Names())

	e, err := m.GetEngine("")
	require.NoError(t, err)
	assert.Equal(t, def, e)

	e, err = m.GetEngine(" TESSERACT ")
	require.NoError(t, err)
	assert.Equal(t, other, e)

	_, err = m.GetEngine("yandex")
	assert.ErrorIs(t, err, ErrUnknownEngine)

	assert.Equal(t, def, m.Get("alice"))
	require.NoError(t, m.Set("alice", "tesseract"))
	assert.Equal(t, other, m.Get("alice"))
	assert.Equal(t, def, m.Get("bob"))
	assert.ErrorIs(t, m.Set("alice", "nope"), ErrUnknownEngine)

	m.Reset("alice")
	assert.Equal(t, def, m.Default())
	assert.Equal(t, def, m.Get("alice"))
}
