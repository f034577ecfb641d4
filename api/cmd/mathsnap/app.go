package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"mathsnap/api/internal/config"
	"mathsnap/api/internal/ocr"
	"mathsnap/api/internal/ocr/gemini"
	"mathsnap/api/internal/ocr/mock"
	"mathsnap/api/internal/ocr/openai"
	"mathsnap/api/internal/ocr/tesseract"
	"mathsnap/api/internal/ocr/yandex"
	"mathsnap/api/internal/pipeline"
	"mathsnap/api/internal/solver"
	"mathsnap/api/internal/store"
	"mathsnap/api/internal/translate"
)

// app is the shared core every front door runs on.
type app struct {
	cfg     *config.Config
	db      *sql.DB
	repo    *store.HistoryRepo
	engines *ocr.Manager
	pipe    *pipeline.Pipeline
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	slog.Info("storage ready", "db", store.SafeDSNSummary(cfg.DatabaseURL))

	engines, err := buildEngines(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	repo := store.NewHistoryRepo(db, slog.Default())
	pipe := pipeline.New(engines, solver.New(slog.Default()), buildTranslator(cfg), repo, slog.Default())
	return &app{cfg: cfg, db: db, repo: repo, engines: engines, pipe: pipe}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		slog.Error("failed to close storage", "error", err)
	}
}

// buildEngines registers every usable recognizer; the configured one is
// the default.
func buildEngines(cfg *config.Config) (*ocr.Manager, error) {
	available := map[string]ocr.Recognizer{
		"mock":      mock.New(),
		"tesseract": tesseract.New(cfg.TesseractLangs...),
	}
	if cfg.GeminiAPIKey != "" {
		available["gemini"] = gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel)
	}
	if cfg.OpenAIAPIKey != "" {
		available["openai"] = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}
	if cfg.YandexOAuth != "" && cfg.YandexFolderID != "" {
		available["yandex"] = yandex.New(cfg.YandexOAuth, cfg.YandexFolderID)
	}
	def, ok := available[cfg.Recognizer]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ocr.ErrUnknownEngine, cfg.Recognizer)
	}
	others := make([]ocr.Recognizer, 0, len(available))
	for name, e := range available {
		if name != cfg.Recognizer {
			others = append(others, e)
		}
	}
	if cfg.Recognizer == "mock" {
		slog.Warn("using the mock recognizer: problems are picked from the built-in catalog, not read from the image")
	}
	return ocr.NewManager(def, others...), nil
}

func buildTranslator(cfg *config.Config) translate.Translator {
	switch cfg.Translator {
	case "gemini":
		return translate.NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel)
	case "none":
		return nil
	default:
		return translate.NewPhrasebook()
	}
}
