// Package render formats history records for the detail view.
package render

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"mathsnap/api/internal/problem"
	"mathsnap/api/internal/translate"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Strikethrough))

// Escape backslash-escapes every ASCII punctuation character so user text
// renders literally.
func Escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 128 && strings.ContainsRune("\\`*_{}[]()<>#+-.!|~=^&\"'", r) {
			b.WriteByte('\\')
		}
		if r == '\n' || r == '\r' {
			r = ' '
		}
		b.WriteRune(r)
	}
	return b.String()
}

// RecordMarkdown renders rec as a markdown document.
func RecordMarkdown(rec problem.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", Escape(rec.ProblemText))
	if rec.ImageURL != "" {
		fmt.Fprintf(&b, "![captured problem](<%s>)\n\n", rec.ImageURL)
	}
	fmt.Fprintf(&b, "**Solution:** %s\n\n", Escape(rec.SolutionText))
	if len(rec.Steps) > 0 {
		b.WriteString("### Steps\n\n")
		for i, s := range rec.Steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, Escape(s))
		}
		b.WriteString("\n")
	}
	meta := []string{rec.CreatedAt().UTC().Format(time.RFC3339)}
	if rec.Translated() {
		meta = append(meta, "translated to "+translate.LanguageName(rec.Language))
	}
	fmt.Fprintf(&b, "_%s_\n", Escape(strings.Join(meta, ", ")))
	return b.String()
}

// RecordHTML renders rec as an HTML fragment. Raw HTML in record text is
// never passed through.
func RecordHTML(rec problem.Record) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(RecordMarkdown(rec)), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}
