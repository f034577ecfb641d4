package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"mathsnap/api/internal/util"
)

// GeminiTranslator asks a Gemini model for the translation. Math notation is
// kept verbatim by the system instruction.
type GeminiTranslator struct {
	APIKey string
	Model  string
}

func NewGemini(apiKey, model string) *GeminiTranslator {
	return &GeminiTranslator{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
	}
}

func (g *GeminiTranslator) Name() string { return "gemini" }

func (g *GeminiTranslator) Translate(ctx context.Context, text, lang string) (string, error) {
	if strings.TrimSpace(text) == "" || IsSource(lang) || !IsSupported(lang) {
		return text, nil
	}
	if g.APIKey == "" {
		return "", errors.New("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(g.APIKey))
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(g.Model)
	var temp float32
	m.GenerationConfig = genai.GenerationConfig{Temperature: &temp}
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(
		"You translate short explanations of school math solutions. " +
			"Keep numbers, variables, operators and LaTeX exactly as written. " +
			"Reply with the translation only, no quotes, no comments.",
	)}}

	prompt := fmt.Sprintf("Translate into %s:\n%s", LanguageName(lang), text)

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		resp, err := m.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
			continue
		}
		out := util.StripCodeFences(firstText(resp))
		if out == "" {
			return "", errors.New("gemini translate: empty response")
		}
		return out, nil
	}
	return "", lastErr
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			return s
		}
	}
	return ""
}
