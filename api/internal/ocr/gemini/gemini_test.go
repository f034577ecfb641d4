package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	rec, err := parseResponse(`{"problem":" 2x + 3 = 7 ","confidence":1.4}`, "gemini")
	require.NoError(t, err)
	assert.Equal(t, "2x + 3 = 7", rec.Text)
	assert.Equal(t, 1.0, rec.Confidence)
	assert.Equal(t, "gemini", rec.Engine)

	_, err = parseResponse("the answer is 4", "gemini")
	assert.Error(t, err)
}

func TestFirstText(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: &genai.Content{Parts: []genai.Part{genai.Text("  ")}}},
		{Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"problem":"1+1"}`)}}},
	}}
	assert.Equal(t, `{"problem":"1+1"}`, firstText(resp))
	assert.Equal(t, "", firstText(nil))
}

func TestRecognizeRequiresKey(t *testing.T) {
	_, err := New(" ", "gemini-2.5-flash").Recognize(context.Background(), []byte{1}, "image/png")
	assert.EqualError(t, err, "GEMINI_API_KEY is empty")
}
