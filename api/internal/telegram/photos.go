package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mathsnap/api/internal/capture"
	"mathsnap/api/internal/pipeline"
	"mathsnap/api/internal/problem"
)

const maxDownloadBytes = 20 << 20

type photoBatch struct {
	chatID int64
	lang   string
	images [][]byte
	timer  *time.Timer
}

func isImageDocument(d *tgbotapi.Document) bool {
	return d != nil && strings.HasPrefix(d.MimeType, "image/")
}

func (r *Router) acceptPhoto(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	fileID := ""
	if len(msg.Photo) > 0 {
		fileID = msg.Photo[len(msg.Photo)-1].FileID // largest size
	} else {
		fileID = msg.Document.FileID
	}

	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		r.sendError(cid, "could not get the file", err)
		return
	}
	img, err := r.download(ctx, url)
	if err != nil {
		r.sendError(cid, "could not download the photo", err)
		return
	}

	if msg.MediaGroupID == "" {
		r.send(cid, "Photo received, solving…")
		r.solve(ctx, cid, r.Language(cid), img)
		return
	}
	r.addToAlbum(cid, msg.MediaGroupID, img)
}

// addToAlbum collects photos of one album and processes them together once
// no new photo arrived for Debounce.
func (r *Router) addToAlbum(cid int64, groupID string, img []byte) {
	key := "grp:" + groupID
	debounce := r.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	r.albumMu.Lock()
	if r.albums == nil {
		r.albums = map[string]*photoBatch{}
	}
	b, ok := r.albums[key]
	if !ok {
		b = &photoBatch{chatID: cid, lang: r.Language(cid)}
		r.albums[key] = b
		r.wg.Add(1)
	}
	if len(b.images) < maxAlbumPages {
		b.images = append(b.images, img)
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(debounce, func() { r.flushAlbum(key) })
	r.albumMu.Unlock()

	if !ok {
		r.send(cid, "Album received, waiting for all pages…")
	}
}

func (r *Router) flushAlbum(key string) {
	r.albumMu.Lock()
	b, ok := r.albums[key]
	delete(r.albums, key)
	r.albumMu.Unlock()
	if !ok {
		return
	}
	defer r.wg.Done()

	ctx := r.baseContext()
	if ctx.Err() != nil {
		r.log().Info("album dropped on shutdown", "chat_id", b.chatID, "pages", len(b.images))
		return
	}
	page, err := capture.Stitch(b.images, capture.DefaultMaxPixels)
	if err != nil {
		r.sendError(b.chatID, "could not read the album", err)
		return
	}
	r.solve(ctx, b.chatID, b.lang, page.Data)
}

func (r *Router) solve(ctx context.Context, cid int64, lang string, img []byte) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	res, err := r.Pipeline.ProcessAndSave(ctx, Owner(cid), pipeline.Input{Image: img, Language: lang})
	switch {
	case errors.Is(err, pipeline.ErrDecode):
		r.send(cid, "I could not read that image. Please send a JPEG or PNG photo.")
		return
	case err != nil:
		r.sendError(cid, "could not process the photo", err)
		return
	}
	r.send(cid, FormatRecord(res.Record))
}

// FormatRecord renders a record as a plain text reply.
func FormatRecord(rec problem.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📝 Problem: %s\n✅ Solution: %s\n", rec.ProblemText, rec.SolutionText)
	if len(rec.Steps) > 0 {
		b.WriteString("\nSteps:\n")
		for i, s := range rec.Steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
	}
	fmt.Fprintf(&b, "\nid: %s", rec.ID)
	return b.String()
}

func (r *Router) download(ctx context.Context, url string) ([]byte, error) {
	client := r.HTTP
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
}
