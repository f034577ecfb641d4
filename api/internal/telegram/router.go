// Package telegram is the bot front door: photos in, solutions out.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mathsnap/api/internal/ocr"
	"mathsnap/api/internal/pipeline"
	"mathsnap/api/internal/problem"
)

const (
	maxMessageLen   = 3900
	defaultDebounce = 1200 * time.Millisecond
	maxAlbumPages   = 10
)

// Bot is the part of *tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// History is the per-chat record store.
type History interface {
	List(ctx context.Context, owner string) ([]problem.Record, error)
	Delete(ctx context.Context, owner, id string) (bool, error)
	Clear(ctx context.Context, owner string) error
}

type Router struct {
	Bot      Bot
	Pipeline *pipeline.Pipeline
	History  History
	Engines  *ocr.Manager
	Log      *slog.Logger
	HTTP     *http.Client

	// Timeout bounds the handling of one photo or album.
	Timeout time.Duration
	// Debounce is how long to wait for more photos of the same album.
	Debounce time.Duration
	// BaseContext scopes work that outlives its update, such as debounced
	// albums. Cancelling it abandons pending albums.
	BaseContext context.Context

	langs   sync.Map // chatID -> language code
	albumMu sync.Mutex
	albums  map[string]*photoBatch
	wg      sync.WaitGroup
}

// Owner is the history slot owner for a chat.
func Owner(chatID int64) string { return fmt.Sprintf("tg:%d", chatID) }

func (r *Router) log() *slog.Logger {
	if r.Log == nil {
		return slog.Default()
	}
	return r.Log
}

func (r *Router) timeout() time.Duration {
	if r.Timeout <= 0 {
		return 180 * time.Second
	}
	return r.Timeout
}

// HandleUpdate dispatches one update. Album photos are collected and
// processed asynchronously once the album is complete.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	if msg.IsCommand() {
		r.HandleCommand(ctx, msg)
		return
	}
	if len(msg.Photo) > 0 || isImageDocument(msg.Document) {
		r.acceptPhoto(ctx, msg)
		return
	}
	if strings.TrimSpace(msg.Text) != "" {
		r.send(msg.Chat.ID, "Send me a photo of a math problem. /help lists the commands.")
	}
}

// Wait blocks until pending album batches are processed.
func (r *Router) Wait() { r.wg.Wait() }

func (r *Router) baseContext() context.Context {
	if r.BaseContext == nil {
		return context.Background()
	}
	return r.BaseContext
}

// Language returns the chat's target language; empty means English.
func (r *Router) Language(chatID int64) string {
	if v, ok := r.langs.Load(chatID); ok {
		return v.(string)
	}
	return ""
}

func (r *Router) send(chatID int64, text string) {
	if len([]rune(text)) > maxMessageLen {
		text = string([]rune(text)[:maxMessageLen]) + "…"
	}
	if _, err := r.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.log().Warn("telegram send failed", "chat_id", chatID, "error", err)
	}
}

func (r *Router) sendError(chatID int64, what string, err error) {
	r.log().Error(what, "chat_id", chatID, "error", err)
	r.send(chatID, "⚠️ "+what+": "+err.Error())
}
