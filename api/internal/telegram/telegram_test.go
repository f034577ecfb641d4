package telegram

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathsnap/api/internal/ocr"
	"mathsnap/api/internal/ocr/mock"
	"mathsnap/api/internal/pipeline"
	"mathsnap/api/internal/solver"
	"mathsnap/api/internal/store"
	"mathsnap/api/internal/translate"
)

type fakeBot struct {
	mu    sync.Mutex
	sent  []string
	files map[string]string
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, m.Text)
	}
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) GetFileDirectURL(fileID string) (string, error) {
	if u, ok := b.files[fileID]; ok {
		return u, nil
	}
	return "", errors.New("file not found")
}

func (b *fakeBot) last() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sent) == 0 {
		return ""
	}
	return b.sent[len(b.sent)-1]
}

func (b *fakeBot) all() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.sent...)
}

type fixture struct {
	bot    *fakeBot
	router *Router
	repo   *store.HistoryRepo
}

func newFixture(t *testing.T, problems ...string) *fixture {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 6, 4))))
	pic := buf.Bytes()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/junk" {
			_, _ = w.Write([]byte("not an image"))
			return
		}
		_, _ = w.Write(pic)
	}))
	t.Cleanup(srv.Close)

	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := store.NewHistoryRepo(db, nil)

	engines := ocr.NewManager(mock.New(problems...))
	bot := &fakeBot{files: map[string]string{"photo": srv.URL + "/p.png", "junk": srv.URL + "/junk"}}
	r := &Router{
		Bot:      bot,
		Pipeline: pipeline.New(engines, solver.New(nil), translate.NewPhrasebook(), repo, nil),
		History:  repo,
		Engines:  engines,
		Debounce: 20 * time.Millisecond,
	}
	return &fixture{bot: bot, router: r, repo: repo}
}

func command(chatID int64, text string) tgbotapi.Update {
	cmdLen := len(strings.Fields(text)[0])
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}}
}

func photo(chatID int64, fileID, group string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:         &tgbotapi.Chat{ID: chatID},
		MediaGroupID: group,
		Photo:        []tgbotapi.PhotoSize{{FileID: "thumb"}, {FileID: fileID}},
	}}
}

func TestStartAndUnknown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.router.HandleUpdate(ctx, command(1, "/start"))
	assert.Contains(t, f.bot.last(), "/history")
	f.router.HandleUpdate(ctx, command(1, "/frobnicate"))
	assert.Contains(t, f.bot.last(), "Unknown command")
	f.router.HandleUpdate(ctx, tgbotapi.Update{})
	assert.Len(t, f.bot.all(), 2)
}

func TestPhotoIsSolvedAndStored(t *testing.T) {
	f := newFixture(t, "2x + 3 = 7")
	ctx := context.Background()

	f.router.HandleUpdate(ctx, photo(7, "photo", ""))
	reply := f.bot.last()
	assert.Contains(t, reply, "Problem: 2x + 3 = 7")
	assert.Contains(t, reply, "Solution: x = 2")

	recs, err := f.repo.List(ctx, Owner(7))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Contains(t, reply, recs[0].ID)

	f.router.HandleUpdate(ctx, command(7, "/history"))
	assert.Contains(t, f.bot.last(), recs[0].ID)

	f.router.HandleUpdate(ctx, command(7, "/delete "+recs[0].ID))
	assert.Equal(t, "Deleted "+recs[0].ID, f.bot.last())
	f.router.HandleUpdate(ctx, command(7, "/delete nope"))
	assert.Contains(t, f.bot.last(), "No problem with id")
	f.router.HandleUpdate(ctx, command(7, "/history"))
	assert.Equal(t, "No problem history yet", f.bot.last())
}

func TestLanguageSelection(t *testing.T) {
	f := newFixture(t, "1+1")
	ctx := context.Background()

	f.router.HandleUpdate(ctx, command(3, "/lang"))
	assert.Contains(t, f.bot.last(), "en (English)")

	f.router.HandleUpdate(ctx, command(3, "/lang xx"))
	assert.Contains(t, f.bot.last(), "Unsupported")

	f.router.HandleUpdate(ctx, command(3, "/lang pt-PT"))
	assert.Equal(t, "pt", f.router.Language(3))

	f.router.HandleUpdate(ctx, photo(3, "photo", ""))
	assert.Contains(t, f.bot.last(), "Portanto, 1+1 = 2")

	f.router.HandleUpdate(ctx, command(3, "/lang en"))
	assert.Empty(t, f.router.Language(3))
}

func TestBadImageIsReported(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.router.HandleUpdate(ctx, photo(4, "junk", ""))
	assert.Contains(t, f.bot.last(), "could not read that image")

	f.router.HandleUpdate(ctx, photo(4, "missing", ""))
	assert.Contains(t, f.bot.last(), "could not get the file")

	recs, err := f.repo.List(ctx, Owner(4))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestAlbumIsStitched(t *testing.T) {
	f := newFixture(t, "2+2")
	ctx := context.Background()
	f.router.HandleUpdate(ctx, photo(5, "photo", "g1"))
	f.router.HandleUpdate(ctx, photo(5, "photo", "g1"))
	f.router.Wait()

	recs, err := f.repo.List(ctx, Owner(5))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, strings.HasPrefix(recs[0].ImageURL, "data:image/jpeg;base64,"))
	assert.Contains(t, f.bot.last(), "Solution: 4")
}

func TestAlbumAbandonedWhenBaseContextCancelled(t *testing.T) {
	f := newFixture(t, "2+2")
	base, cancel := context.WithCancel(context.Background())
	f.router.BaseContext = base

	ctx := context.Background()
	f.router.HandleUpdate(ctx, photo(6, "photo", "g2"))
	f.router.HandleUpdate(ctx, photo(6, "photo", "g2"))
	cancel()

	done := make(chan struct{})
	go func() {
		f.router.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after cancellation")
	}

	recs, err := f.repo.List(ctx, Owner(6))
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NotContains(t, f.bot.last(), "Solution")
}

func TestEngineCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.router.HandleUpdate(ctx, command(8, "/engine"))
	assert.Contains(t, f.bot.last(), "Recognizer: mock")
	f.router.HandleUpdate(ctx, command(8, "/engine nope"))
	assert.Contains(t, f.bot.last(), "unknown engine")
	f.router.HandleUpdate(ctx, command(8, "/engine default"))
	assert.Contains(t, f.bot.last(), "Recognizer: mock")
}

func TestClearCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.router.HandleUpdate(ctx, photo(9, "photo", ""))
	f.router.HandleUpdate(ctx, command(9, "/clear"))
	assert.Equal(t, "History cleared", f.bot.last())
	recs, err := f.repo.List(ctx, Owner(9))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

type scriptedUpdater struct {
	calls   int
	results []func() ([]tgbotapi.Update, error)
	offsets []int
	cancel  context.CancelFunc
}

func (s *scriptedUpdater) GetUpdates(c tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	s.offsets = append(s.offsets, c.Offset)
	if s.calls >= len(s.results) {
		s.cancel()
		return nil, nil
	}
	fn := s.results[s.calls]
	s.calls++
	return fn()
}

func TestRunPollingAdvancesOffsetAndRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	up := &scriptedUpdater{cancel: cancel, results: []func() ([]tgbotapi.Update, error){
		func() ([]tgbotapi.Update, error) { return []tgbotapi.Update{{UpdateID: 10}, {UpdateID: 11}}, nil },
		func() ([]tgbotapi.Update, error) { return nil, errors.New("boom") },
		func() ([]tgbotapi.Update, error) { return []tgbotapi.Update{{UpdateID: 12}}, nil },
	}}
	var seen []int
	RunPolling(ctx, up, PollOptions{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Idle: time.Millisecond},
		func(u tgbotapi.Update) { seen = append(seen, u.UpdateID) })

	assert.Equal(t, []int{10, 11, 12}, seen)
	assert.Equal(t, []int{0, 12, 12, 13}, up.offsets)
}

func TestRetryDelayFromError(t *testing.T) {
	assert.Equal(t, time.Duration(0), RetryDelayFromError(nil))
	assert.Equal(t, 7*time.Second, RetryDelayFromError(errors.New("Too Many Requests: retry after 7")))
	assert.Equal(t, 3*time.Second, RetryDelayFromError(errors.New("too many requests")))
	assert.Equal(t, time.Second, RetryDelayFromError(errors.New("bad gateway")))
}

func TestWebhookPathIsStable(t *testing.T) {
	assert.Equal(t, WebhookPath("abc"), WebhookPath("abc"))
	assert.NotEqual(t, WebhookPath("abc"), WebhookPath("abd"))
	assert.Len(t, strings.TrimPrefix(WebhookPath("abc"), "/webhook/"), 16)
}
