package handle

import (
	"context"
	"net/http"
	"time"

	"mathsnap/api/internal/translate"
)

func (h *Handle) Languages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"languages": translate.Languages()})
}

func (h *Handle) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := h.hist.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "db: "+err.Error())
		return
	}
	_, _ = w.Write([]byte("ok"))
}
