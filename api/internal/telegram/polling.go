package telegram

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Updater is the long-polling part of *tgbotapi.BotAPI.
type Updater interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

// RetryDelayFromError picks a backoff for a failed GetUpdates call. Telegram
// rate limits carry their own delay.
func RetryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") {
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return time.Second
}

type PollOptions struct {
	Timeout   int // long polling timeout, seconds
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Idle      time.Duration
	Log       *slog.Logger
}

// RunPolling fetches updates until ctx is done, retrying failures with
// backoff instead of exiting.
func RunPolling(ctx context.Context, bot Updater, o PollOptions, handle func(tgbotapi.Update)) {
	if o.Timeout <= 0 {
		o.Timeout = 30
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 15 * time.Second
	}
	if o.Idle <= 0 {
		o.Idle = 200 * time.Millisecond
	}
	if o.Log == nil {
		o.Log = slog.Default()
	}

	offset := 0
	for {
		if ctx.Err() != nil {
			o.Log.Info("polling stopped")
			return
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = o.Timeout

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := min(max(RetryDelayFromError(err), o.BaseDelay), o.MaxDelay)
			o.Log.Warn("polling error", "error", err, "retry_in", d)
			sleep(ctx, d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}
		if len(updates) == 0 {
			sleep(ctx, o.Idle)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// WebhookPath derives an unguessable webhook path from the bot token.
func WebhookPath(token string) string {
	h := sha256.Sum256([]byte(token))
	return "/webhook/" + hex.EncodeToString(h[:])[:16]
}
