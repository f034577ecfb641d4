package handle

import (
	"context"
	"errors"
	"net/http"

	"mathsnap/api/internal/capture"
	"mathsnap/api/internal/pipeline"
	"mathsnap/api/internal/util"
)

type sessionView struct {
	ID string `json:"id"`
	capture.Status
}

type CreateSessionRequest struct {
	Facing string `json:"facing,omitempty"`
}

// CreateSession opens a capture session and tries to acquire the camera. A
// camera failure is not an error: the session starts in camera_unavailable
// and still accepts uploads.
func (h *Handle) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	facing, err := capture.ParseFacing(req.Facing)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s := capture.NewSession(h.camera, capture.Options{Facing: facing, Logger: h.log})
	ctx, cancel := h.withDeadline(r)
	defer cancel()
	if err := s.Start(ctx); err != nil && !errors.Is(err, capture.ErrCameraUnavailable) {
		_ = s.Close()
		h.fail(w, r, "start session", err)
		return
	}
	id := h.sessions.Add(owner(r), s)
	writeJSON(w, http.StatusCreated, sessionView{ID: id, Status: s.Status()})
}

func (h *Handle) SessionStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s, err := h.sessions.Get(owner(r), id)
	if err != nil {
		h.fail(w, r, "session", err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView{ID: id, Status: s.Status()})
}

func (h *Handle) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Remove(owner(r), r.PathValue("id")); err != nil {
		h.fail(w, r, "session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type SessionActionRequest struct {
	ImageB64 string              `json:"image_b64,omitempty"`
	Crop     *capture.CropRegion `json:"crop,omitempty"`
	Display  *capture.Size       `json:"display,omitempty"`
	Language string              `json:"language,omitempty"`
}

// SessionAction drives one session transition: switch, capture, upload,
// crop, confirm or cancel.
func (h *Handle) SessionAction(w http.ResponseWriter, r *http.Request) {
	id, action := r.PathValue("id"), r.PathValue("action")
	s, err := h.sessions.Get(owner(r), id)
	if err != nil {
		h.fail(w, r, "session", err)
		return
	}
	var req SessionActionRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	ctx, cancel := h.withDeadline(r)
	defer cancel()

	switch action {
	case "switch":
		// an unavailable camera is reported through the status
		if err := s.SwitchCamera(ctx); err != nil && !errors.Is(err, capture.ErrCameraUnavailable) {
			h.fail(w, r, "switch camera", err)
			return
		}
	case "capture":
		err = s.Capture(ctx)
	case "upload":
		img, _, derr := util.DecodeBase64MaybeDataURL(req.ImageB64)
		if derr != nil {
			writeError(w, http.StatusBadRequest, "bad image_b64")
			return
		}
		err = s.Upload(img)
	case "crop":
		if req.Crop == nil {
			writeError(w, http.StatusBadRequest, "crop is required")
			return
		}
		var display capture.Size
		if req.Display != nil {
			display = *req.Display
		}
		err = s.SetCrop(*req.Crop, display)
	case "confirm":
		h.confirm(ctx, w, r, s, req.Language)
		return
	case "cancel":
		err = s.Cancel()
	default:
		writeError(w, http.StatusNotFound, "unknown action "+action)
		return
	}
	if err != nil {
		h.fail(w, r, action, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView{ID: id, Status: s.Status()})
}

func (h *Handle) confirm(ctx context.Context, w http.ResponseWriter, r *http.Request, s *capture.Session, lang string) {
	img, err := s.Confirm(ctx)
	if err != nil {
		h.fail(w, r, "confirm", err)
		return
	}
	res, err := h.pipe.ProcessAndSave(ctx, owner(r), pipeline.Input{Image: img.Data, MIME: img.MIME, Language: lang})
	if err != nil {
		h.fail(w, r, "solve", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
