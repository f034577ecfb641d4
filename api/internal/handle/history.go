package handle

import (
	"net/http"

	"mathsnap/api/internal/render"
)

func (h *Handle) ListHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := h.hist.List(r.Context(), owner(r))
	if err != nil {
		h.fail(w, r, "history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs})
}

func (h *Handle) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.hist.Clear(r.Context(), owner(r)); err != nil {
		h.fail(w, r, "clear history", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetRecord returns one record as JSON, or as an HTML fragment with
// ?format=html.
func (h *Handle) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.hist.Get(r.Context(), owner(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "record", err)
		return
	}
	if r.URL.Query().Get("format") == "html" {
		html, err := render.RecordHTML(rec)
		if err != nil {
			h.fail(w, r, "render", err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteRecord removes a record; unknown ids are a no-op.
func (h *Handle) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	if _, err := h.hist.Delete(r.Context(), owner(r), r.PathValue("id")); err != nil {
		h.fail(w, r, "delete record", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
