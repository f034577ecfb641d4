// Package handle is the HTTP JSON API.
package handle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mathsnap/api/internal/capture"
	"mathsnap/api/internal/pipeline"
	"mathsnap/api/internal/problem"
	"mathsnap/api/internal/store"
)

const (
	defaultDeadline   = 180 * time.Second
	defaultMaxUpload  = 20 << 20
	clientIDHeader    = "X-Client-ID"
	requestTimeoutHdr = "X-Request-Timeout"
)

// History is the persistence behind the history endpoints.
type History interface {
	List(ctx context.Context, owner string) ([]problem.Record, error)
	Get(ctx context.Context, owner, id string) (problem.Record, error)
	Delete(ctx context.Context, owner, id string) (bool, error)
	Clear(ctx context.Context, owner string) error
	Ping(ctx context.Context) error
}

type Options struct {
	Pipeline *pipeline.Pipeline
	History  History
	Sessions *capture.Registry
	// Camera backs new capture sessions; nil means upload only.
	Camera         capture.Camera
	Log            *slog.Logger
	MaxUploadBytes int64
	Deadline       time.Duration
}

type Handle struct {
	pipe     *pipeline.Pipeline
	hist     History
	sessions *capture.Registry
	camera   capture.Camera
	log      *slog.Logger
	maxBody  int64
	deadline time.Duration
}

func New(o Options) *Handle {
	h := &Handle{
		pipe:     o.Pipeline,
		hist:     o.History,
		sessions: o.Sessions,
		camera:   o.Camera,
		log:      o.Log,
		maxBody:  o.MaxUploadBytes,
		deadline: o.Deadline,
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	if h.camera == nil {
		h.camera = capture.NoCamera{}
	}
	if h.sessions == nil {
		h.sessions = capture.NewRegistry(10*time.Minute, h.log)
	}
	if h.maxBody <= 0 {
		h.maxBody = defaultMaxUpload
	}
	if h.deadline <= 0 {
		h.deadline = defaultDeadline
	}
	return h
}

// Routes registers every endpoint on mux.
func (h *Handle) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /v1/languages", h.Languages)
	mux.HandleFunc("POST /v1/solve", h.Solve)

	mux.HandleFunc("GET /v1/history", h.ListHistory)
	mux.HandleFunc("DELETE /v1/history", h.ClearHistory)
	mux.HandleFunc("GET /v1/history/{id}", h.GetRecord)
	mux.HandleFunc("DELETE /v1/history/{id}", h.DeleteRecord)

	mux.HandleFunc("POST /v1/capture/sessions", h.CreateSession)
	mux.HandleFunc("GET /v1/capture/sessions/{id}", h.SessionStatus)
	mux.HandleFunc("DELETE /v1/capture/sessions/{id}", h.CloseSession)
	mux.HandleFunc("POST /v1/capture/sessions/{id}/{action}", h.SessionAction)
}

// Handler returns a mux with every route registered.
func (h *Handle) Handler() http.Handler {
	mux := http.NewServeMux()
	h.Routes(mux)
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// fail maps domain errors onto HTTP status codes.
func (h *Handle) fail(w http.ResponseWriter, r *http.Request, prefix string, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, pipeline.ErrDecode),
		errors.Is(err, capture.ErrUnsupportedImage),
		errors.Is(err, capture.ErrImageTooLarge),
		errors.Is(err, capture.ErrInvalidCrop),
		errors.Is(err, capture.ErrEmptyCrop):
		code = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, capture.ErrSessionNotFound):
		code = http.StatusNotFound
	case errors.Is(err, capture.ErrInvalidState),
		errors.Is(err, capture.ErrBusy),
		errors.Is(err, capture.ErrCameraUnavailable),
		errors.Is(err, capture.ErrSuperseded),
		errors.Is(err, capture.ErrClosed):
		code = http.StatusConflict
	case errors.Is(err, pipeline.ErrRecognize):
		code = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	}
	if code >= 500 {
		h.log.Error(prefix, "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, code, prefix+": "+err.Error())
}

// withDeadline bounds the request; X-Request-Timeout or ?timeoutSec= override
// the default, in seconds.
func (h *Handle) withDeadline(r *http.Request) (context.Context, context.CancelFunc) {
	deadline := h.deadline
	if ts := r.Header.Get(requestTimeoutHdr); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	} else if ts := r.URL.Query().Get("timeoutSec"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	}
	return context.WithTimeout(r.Context(), deadline)
}

// owner identifies the calling client; empty is the shared default slot.
func owner(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(clientIDHeader)); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get("client_id"))
}

// decodeBody reads a JSON body capped at maxBody. An empty body leaves v
// untouched.
func (h *Handle) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return false
	}
	return true
}
