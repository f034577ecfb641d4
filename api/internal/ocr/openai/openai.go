package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mathsnap/api/internal/ocr"
	"mathsnap/api/internal/util"
)

const defaultBaseURL = "https://api.openai.com/v1"

const systemPrompt = `You transcribe a PHOTO of a single handwritten or printed math problem. Do NOT solve it.
Return only JSON: {"problem": string, "confidence": number}
- "problem": the expression or equation exactly as written, ASCII operators (+ - * / ^ =);
  empty string if there is no math problem in the photo.
- "confidence": 0..1.
Any text outside the JSON is an error.`

type Engine struct {
	APIKey  string
	Model   string
	BaseURL string
	httpc   *http.Client
}

func New(key, model string) *Engine {
	return &Engine{
		APIKey:  strings.TrimSpace(key),
		Model:   strings.TrimSpace(model),
		BaseURL: defaultBaseURL,
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Engine) Name() string { return "openai" }

func (e *Engine) GetModel() string { return e.Model }

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (e *Engine) Recognize(ctx context.Context, image []byte, mime string) (ocr.Recognition, error) {
	if e.APIKey == "" {
		return ocr.Recognition{}, errors.New("OPENAI_API_KEY is empty")
	}
	dataURL := util.MakeDataURL(util.PickMIME(mime, "", image), image)

	body := map[string]any{
		"model": e.Model,
		"messages": []any{
			map[string]any{"role": "system", "content": systemPrompt},
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "text", "text": "Answer strictly with JSON."},
					map[string]any{"type": "image_url", "image_url": map[string]any{"url": dataURL, "detail": "high"}},
				},
			},
		},
		"temperature":     0,
		"response_format": map[string]any{"type": "json_object"},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return ocr.Recognition{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(e.BaseURL, "/")+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return ocr.Recognition{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return ocr.Recognition{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return ocr.Recognition{}, fmt.Errorf("openai recognize %d: %s", resp.StatusCode, strings.TrimSpace(string(x)))
	}

	var raw chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return ocr.Recognition{}, err
	}
	if len(raw.Choices) == 0 {
		return ocr.Recognition{}, fmt.Errorf("openai recognize: empty response")
	}
	return parseResponse(util.StripCodeFences(strings.TrimSpace(raw.Choices[0].Message.Content)), e.Name())
}

func parseResponse(txt, engine string) (ocr.Recognition, error) {
	var out struct {
		Problem    string  `json:"problem"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(txt), &out); err != nil {
		return ocr.Recognition{}, fmt.Errorf("openai recognize: bad JSON: %w", err)
	}
	conf := min(max(out.Confidence, 0), 1)
	return ocr.Recognition{Text: strings.TrimSpace(out.Problem), Confidence: conf, Engine: engine}, nil
}
