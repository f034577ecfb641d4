// Package solver resolves recognized problem text into a solution and an
// ordered list of explanation steps.
package solver

import (
	"errors"
	"log/slog"
	"strings"

	"mathsnap/api/internal/util"
)

const (
	NotSolvedText   = "Could not solve this problem"
	NotSolvedStep   = "The problem format was not recognized"
	MethodCatalog   = "catalog"
	MethodArith     = "arithmetic"
	MethodNotSolved = "not_recognized"
)

// Solution is the outcome of Solve. Steps order is significant.
type Solution struct {
	Text   string   `json:"solution"`
	Steps  []string `json:"steps"`
	Method string   `json:"method"`
}

// Recognized reports whether the problem was actually solved.
func (s Solution) Recognized() bool { return s.Method != MethodNotSolved }

type Solver struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Solver {
	if log == nil {
		log = slog.Default()
	}
	return &Solver{log: log}
}

// Solve looks the problem up in the catalog, then tries restricted arithmetic
// evaluation, and otherwise returns the "not recognized" solution. It never
// returns an error.
func (s *Solver) Solve(problem string) Solution {
	p := strings.TrimSpace(problem)

	if ex, ok := lookup(p); ok {
		return Solution{Text: ex.Solution, Steps: append([]string(nil), ex.Steps...), Method: MethodCatalog}
	}

	v, err := Evaluate(p)
	if err == nil {
		res := FormatNumber(v)
		return Solution{
			Text: res,
			Steps: []string{
				"Start with the expression: " + p,
				"Evaluate the expression: " + p + " = " + res,
				"Therefore, " + p + " = " + res,
			},
			Method: MethodArith,
		}
	}

	if errors.Is(err, ErrUnsafeInput) {
		s.log.Warn("solver rejected input outside arithmetic grammar", "problem", util.Truncate(p, 80), "error", err)
	} else {
		s.log.Debug("solver could not evaluate problem", "problem", util.Truncate(p, 80), "error", err)
	}
	return NotRecognized()
}

// NotRecognized is the explicit fallback solution for unknown problems.
func NotRecognized() Solution {
	return Solution{Text: NotSolvedText, Steps: []string{NotSolvedStep}, Method: MethodNotSolved}
}
