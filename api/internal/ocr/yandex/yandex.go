// Package yandex recognizes text through Yandex Cloud Vision OCR.
package yandex

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mathsnap/api/internal/ocr"
	"mathsnap/api/internal/util"
)

const defaultOCRURL = "https://ocr.api.cloud.yandex.net/ocr/v1/recognizeText"

type Engine struct {
	URL      string
	Model    string // "handwritten" or "page"
	Langs    []string
	iamc     *IamClient
	folderID string
	httpc    *http.Client
}

func New(oauth2Token, folderID string) *Engine {
	return &Engine{
		URL:      defaultOCRURL,
		Model:    "handwritten",
		Langs:    []string{"en", "ru"},
		iamc:     NewIamClient(oauth2Token),
		folderID: folderID,
		httpc:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Engine) Name() string { return "yandex" }

type request struct {
	Content       string   `json:"content"`
	MimeType      string   `json:"mimeType,omitempty"` // JPEG | PNG | PDF
	LanguageCodes []string `json:"languageCodes,omitempty"`
	Model         string   `json:"model,omitempty"`
}

type textAnnotation struct {
	FullText string `json:"fullText,omitempty"`
	Blocks   []struct {
		Lines []struct {
			Text string `json:"text,omitempty"`
		} `json:"lines,omitempty"`
	} `json:"blocks,omitempty"`
}

type response struct {
	Result *struct {
		TextAnnotation *textAnnotation `json:"textAnnotation,omitempty"`
	} `json:"result,omitempty"`
}

func (r *response) annotation() *textAnnotation {
	if r == nil || r.Result == nil {
		return nil
	}
	return r.Result.TextAnnotation
}

// The service accepts only JPEG, PNG and PDF.
func ocrMimeType(mime string) (string, error) {
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return "JPEG", nil
	case "image/png":
		return "PNG", nil
	case "application/pdf":
		return "PDF", nil
	}
	return "", fmt.Errorf("yandex ocr: unsupported image type %s", mime)
}

func (e *Engine) Recognize(ctx context.Context, image []byte, mime string) (ocr.Recognition, error) {
	mt, err := ocrMimeType(util.PickMIME(mime, "", image))
	if err != nil {
		return ocr.Recognition{}, err
	}
	payload, err := json.Marshal(request{
		Content:       base64.StdEncoding.EncodeToString(image),
		MimeType:      mt,
		LanguageCodes: e.Langs,
		Model:         e.Model,
	})
	if err != nil {
		return ocr.Recognition{}, err
	}

	resp, err := e.post(ctx, payload)
	if err != nil {
		return ocr.Recognition{}, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// one retry with a fresh token
		resp.Body.Close()
		e.iamc.Invalidate()
		if resp, err = e.post(ctx, payload); err != nil {
			return ocr.Recognition{}, err
		}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return ocr.Recognition{}, fmt.Errorf("yandex ocr %d: %s", resp.StatusCode, strings.TrimSpace(string(x)))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ocr.Recognition{}, err
	}
	return ocr.Recognition{Text: joinText(out.annotation()), Engine: e.Name()}, nil
}

func (e *Engine) post(ctx context.Context, payload []byte) (*http.Response, error) {
	token, err := e.iamc.Token(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-folder-id", e.folderID)
	return e.httpc.Do(req)
}

func joinText(ta *textAnnotation) string {
	if ta == nil {
		return ""
	}
	if t := strings.TrimSpace(ta.FullText); t != "" {
		return t
	}
	var lines []string
	for _, b := range ta.Blocks {
		for _, l := range b.Lines {
			if s := strings.TrimSpace(l.Text); s != "" {
				lines = append(lines, s)
			}
		}
	}
	return strings.Join(lines, "\n")
}
