package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"mathsnap/api/internal/ocr"
	"mathsnap/api/internal/util"
)

const systemPrompt = `You read a PHOTO of a single handwritten or printed math problem.
Return STRICT JSON: {"problem": string, "confidence": number}
- "problem": the expression or equation exactly as written, ASCII operators (+ - * / ^ =),
  LaTeX only for fractions (\frac{a}{b}); empty string if there is no math problem.
- "confidence": 0..1, how sure you are about the transcription.
No comments, no solution, nothing outside the JSON.`

type Engine struct {
	APIKey string
	Model  string
}

func New(apiKey, model string) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

type recognizeResponse struct {
	Problem    string  `json:"problem"`
	Confidence float64 `json:"confidence"`
}

func (e *Engine) Recognize(ctx context.Context, image []byte, mime string) (ocr.Recognition, error) {
	if e.APIKey == "" {
		return ocr.Recognition{}, errors.New("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return ocr.Recognition{}, err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}

	parts := []genai.Part{
		genai.Text("Answer strictly with JSON."),
		&genai.Blob{MIMEType: util.PickMIME(mime, "", image), Data: image},
	}

	// retries for 5xx / transient failures
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		resp, err := m.GenerateContent(ctx, parts...)
		if err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return ocr.Recognition{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
			continue
		}
		txt := util.StripCodeFences(firstText(resp))
		if txt == "" {
			return ocr.Recognition{}, fmt.Errorf("gemini recognize: empty response")
		}
		return parseResponse(txt, e.Name())
	}
	return ocr.Recognition{}, lastErr
}

func parseResponse(txt, engine string) (ocr.Recognition, error) {
	var out recognizeResponse
	if err := json.Unmarshal([]byte(txt), &out); err != nil {
		return ocr.Recognition{}, fmt.Errorf("gemini recognize: bad JSON: %w", err)
	}
	conf := out.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return ocr.Recognition{Text: strings.TrimSpace(out.Problem), Confidence: conf, Engine: engine}, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok && strings.TrimSpace(string(t)) != "" {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(f float32) *float32 { return &f }
