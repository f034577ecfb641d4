// Package pipeline wires the capture output through recognition, solving
// and translation into a history record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mathsnap/api/internal/capture"
	"mathsnap/api/internal/ocr"
	"mathsnap/api/internal/problem"
	"mathsnap/api/internal/solver"
	"mathsnap/api/internal/translate"
	"mathsnap/api/internal/util"
)

var (
	ErrDecode    = errors.New("pipeline: image could not be decoded")
	ErrRecognize = errors.New("pipeline: recognition failed")
)

// History is the persistence the pipeline needs.
type History interface {
	Save(ctx context.Context, owner string, rec problem.Record) error
}

type Input struct {
	Image    []byte
	MIME     string
	Language string
	Owner    string // selects the owner's recognizer override
}

// Result is a processed image. Record is what gets stored.
type Result struct {
	Record      problem.Record  `json:"record"`
	Recognition ocr.Recognition `json:"recognition"`
	Method      string          `json:"method"`
}

type Pipeline struct {
	Engines    *ocr.Manager
	Solver     *solver.Solver
	Translator translate.Translator
	History    History
	Log        *slog.Logger

	now func() time.Time
}

func New(engines *ocr.Manager, sv *solver.Solver, tr translate.Translator, hist History, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if sv == nil {
		sv = solver.New(log)
	}
	return &Pipeline{Engines: engines, Solver: sv, Translator: tr, History: hist, Log: log, now: time.Now}
}

// Process turns one image into a record. Undecodable images fail with
// ErrDecode; recognizer failures with ErrRecognize. Unsolvable text still
// produces a record carrying the "not recognized" solution.
func (p *Pipeline) Process(ctx context.Context, in Input) (Result, error) {
	if _, _, err := capture.DecodeImage(in.Image); err != nil {
		p.Log.Warn("image decode failed", "owner", in.Owner, "error", err)
		return Result{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	mime := util.PickMIME(in.MIME, "", in.Image)

	eng := p.Engines.Get(in.Owner)
	start := time.Now()
	rec, err := eng.Recognize(ctx, in.Image, mime)
	if err != nil {
		p.Log.Error("recognition failed", "engine", eng.Name(), "owner", in.Owner, "error", err)
		return Result{}, fmt.Errorf("%w: %s: %w", ErrRecognize, eng.Name(), err)
	}
	text := strings.TrimSpace(rec.Text)
	p.Log.Info("image recognized", "engine", rec.Engine, "problem", util.Truncate(text, 80),
		"confidence", rec.Confidence, "took", time.Since(start))

	sol := p.Solver.Solve(text)
	solution, steps, applied := translate.TranslateAll(ctx, p.Translator, in.Language, sol.Text, sol.Steps, p.Log)

	now := p.now()
	out := problem.Record{
		ID:           problem.NewID(now),
		ImageURL:     util.MakeDataURL(mime, in.Image),
		ProblemText:  text,
		SolutionText: solution,
		Steps:        steps,
		Timestamp:    now.UnixMilli(),
	}
	if applied {
		out.Language = translate.NormalizeCode(in.Language)
	}
	return Result{Record: out, Recognition: rec, Method: sol.Method}, nil
}

// ProcessAndSave processes the image and prepends the record to owner's
// history.
func (p *Pipeline) ProcessAndSave(ctx context.Context, owner string, in Input) (Result, error) {
	in.Owner = owner
	res, err := p.Process(ctx, in)
	if err != nil {
		return Result{}, err
	}
	if p.History == nil {
		return res, nil
	}
	if err := p.History.Save(ctx, owner, res.Record); err != nil {
		return Result{}, fmt.Errorf("save record: %w", err)
	}
	return res, nil
}
