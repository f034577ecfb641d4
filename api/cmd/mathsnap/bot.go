package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"mathsnap/api/internal/httpserver"
	"mathsnap/api/internal/telegram"
)

func botCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		Long: `Run the Telegram bot together with the HTTP API. With a webhook URL
configured the bot receives updates on the API port; otherwise it long-polls.`,
		RunE: runBot,
	}
}

func runBot(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireBot(); err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	slog.Info("telegram bot authorized", "username", bot.Self.UserName)

	router := &telegram.Router{
		Bot:      bot,
		Pipeline: a.pipe,
		History:  a.repo,
		Engines:  a.engines,
		Log:      slog.Default(),
		Timeout:  cfg.RequestTimeout,

		BaseContext: ctx,
	}
	defer router.Wait()

	mux := http.NewServeMux()
	h, sessions := newAPI(a)
	go sessions.Run(ctx)
	h.Routes(mux)
	addr := net.JoinHostPort("0.0.0.0", cfg.Port)

	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		if err := registerWebhook(ctx, bot, mux, router, webhookURL); err != nil {
			return err
		}
		return httpserver.Run(ctx, addr, mux, slog.Default())
	}

	// polling mode: the HTTP API still serves /healthz
	go func() {
		if err := httpserver.Run(ctx, addr, mux, slog.Default()); err != nil {
			slog.Error("http server stopped", "error", err)
		}
	}()
	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		slog.Warn("could not delete webhook before polling", "error", err)
	}
	telegram.RunPolling(ctx, bot, telegram.PollOptions{Log: slog.Default()}, func(upd tgbotapi.Update) {
		router.HandleUpdate(ctx, upd)
	})
	return nil
}

func registerWebhook(ctx context.Context, bot *tgbotapi.BotAPI, mux *http.ServeMux, router *telegram.Router, baseURL string) error {
	path := telegram.WebhookPath(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	mux.HandleFunc("POST "+path, func(w http.ResponseWriter, r *http.Request) {
		upd, err := bot.HandleUpdate(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// acknowledge at once; Telegram retries slow webhooks
		go router.HandleUpdate(ctx, *upd)
		w.WriteHeader(http.StatusOK)
	})
	slog.Info("webhook registered", "path", path)
	return nil
}
