// Package tesseract recognizes problems locally through the Tesseract engine.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"mathsnap/api/internal/ocr"
)

// mathWhitelist restricts recognition to characters that can appear in the
// problems we solve.
const mathWhitelist = "0123456789+-*/=^()xXy. ×÷"

type Engine struct {
	Languages     []string
	clientFactory func() *gosseract.Client
}

func New(langs ...string) *Engine {
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	return &Engine{Languages: langs, clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

func (e *Engine) Recognize(ctx context.Context, image []byte, _ string) (ocr.Recognition, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Recognition{}, err
	}
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(image); err != nil {
		return ocr.Recognition{}, fmt.Errorf("set image: %w", err)
	}
	if err := c.SetLanguage(e.Languages...); err != nil {
		return ocr.Recognition{}, fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetWhitelist(mathWhitelist); err != nil {
		return ocr.Recognition{}, fmt.Errorf("set whitelist: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return ocr.Recognition{}, fmt.Errorf("set page seg mode: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return ocr.Recognition{}, fmt.Errorf("recognize text: %w", err)
	}

	return ocr.Recognition{
		Text:       NormalizeText(text),
		Confidence: wordConfidence(c),
		Engine:     e.Name(),
	}, nil
}

// NormalizeText joins recognized lines and collapses runs of whitespace.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func wordConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence / 100.0
	}
	return sum / float64(len(boxes))
}
