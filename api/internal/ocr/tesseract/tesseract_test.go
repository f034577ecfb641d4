package tesseract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "2x + 3 = 7", NormalizeText("  2x  +\n3 =\t7 \n"))
	assert.Equal(t, "", NormalizeText("\n\n"))
}

func TestNewDefaultsToEnglish(t *testing.T) {
	e := New()
	assert.Equal(t, []string{"eng"}, e.Languages)
	assert.Equal(t, "tesseract", e.Name())
}
