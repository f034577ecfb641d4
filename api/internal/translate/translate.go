// Package translate post-processes solutions into the user's language.
// Translation is best effort: callers always get text back.
package translate

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

// Translator turns English text into lang. Implementations return the input
// unchanged for languages they do not handle.
type Translator interface {
	Name() string
	Translate(ctx context.Context, text, lang string) (string, error)
}

var ptPhrases = map[string]string{
	"Start with the expression":             "Começar com a expressão",
	"Start with the equation":               "Começar com a equação",
	"Addition of":                           "Adição de",
	"Subtraction of":                        "Subtração de",
	"Multiplication of":                     "Multiplicação de",
	"Division of":                           "Divisão de",
	"gives us":                              "dá-nos",
	"Therefore":                             "Portanto",
	"Evaluate the expression":               "Avaliar a expressão",
	"Rearrange to standard form":            "Reorganizar para a forma padrão",
	"Take the square root of both sides":    "Tirar a raiz quadrada de ambos os lados",
	"Subtract":                              "Subtrair",
	"Add":                                   "Adicionar",
	"Multiply":                              "Multiplicar",
	"Divide":                                "Dividir",
	"from both sides":                       "de ambos os lados",
	"to both sides":                         "a ambos os lados",
	"both sides by":                         "ambos os lados por",
	"or":                                    "ou",
	"equal to":                              "igual a",
	"The problem format was not recognized": "O formato do problema não foi reconhecido",
	"Could not solve this problem":          "Não foi possível resolver este problema",
}

type phraseTable struct {
	exact map[string]string
	re    *regexp.Regexp
}

func newPhraseTable(phrases map[string]string) *phraseTable {
	keys := make([]string, 0, len(phrases))
	for k := range phrases {
		keys = append(keys, k)
	}
	// longest first so "Subtract" never shadows "Subtraction of"
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return &phraseTable{
		exact: phrases,
		re:    regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`),
	}
}

func (t *phraseTable) translate(text string) string {
	if v, ok := t.exact[text]; ok {
		return v
	}
	// single pass: replaced text is never re-scanned
	return t.re.ReplaceAllStringFunc(text, func(m string) string { return t.exact[m] })
}

// Phrasebook is the offline translator: a phrase substitution table per
// language. Languages without a table pass through unchanged.
type Phrasebook struct {
	tables map[string]*phraseTable
}

func NewPhrasebook() *Phrasebook {
	return &Phrasebook{tables: map[string]*phraseTable{
		"pt": newPhraseTable(ptPhrases),
	}}
}

func (p *Phrasebook) Name() string { return "phrasebook" }

func (p *Phrasebook) Translate(_ context.Context, text, lang string) (string, error) {
	t, ok := p.tables[NormalizeCode(lang)]
	if !ok {
		return text, nil
	}
	return t.translate(text), nil
}

// TranslateAll translates the solution and every step, keeping the original
// string wherever the translator fails. The returned bool reports whether
// any string actually changed.
func TranslateAll(ctx context.Context, tr Translator, lang, solution string, steps []string, log *slog.Logger) (string, []string, bool) {
	outSteps := append([]string(nil), steps...)
	if tr == nil || IsSource(lang) || !IsSupported(lang) {
		return solution, outSteps, false
	}
	if log == nil {
		log = slog.Default()
	}
	code := NormalizeCode(lang)

	changed := false
	one := func(s string) string {
		v, err := tr.Translate(ctx, s, code)
		if err != nil {
			log.Warn("translation failed, keeping original", "translator", tr.Name(), "lang", code, "error", err)
			return s
		}
		if v != s {
			changed = true
		}
		return v
	}

	outSolution := one(solution)
	for i, s := range outSteps {
		outSteps[i] = one(s)
	}
	return outSolution, outSteps, changed
}
