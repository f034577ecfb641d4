package handle

import (
	"net/http"

	"mathsnap/api/internal/capture"
	"mathsnap/api/internal/pipeline"
	"mathsnap/api/internal/util"
)

type SolveRequest struct {
	ImageB64 string              `json:"image_b64"`
	MIME     string              `json:"mime,omitempty"`
	Language string              `json:"language,omitempty"`
	Crop     *capture.CropRegion `json:"crop,omitempty"`
	Display  *capture.Size       `json:"display,omitempty"`
}

// Solve runs the whole flow on an uploaded image and stores the record. An
// optional crop is applied first, the same way a capture session would.
func (h *Handle) Solve(w http.ResponseWriter, r *http.Request) {
	var req SolveRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	img, hint, err := util.DecodeBase64MaybeDataURL(req.ImageB64)
	if err != nil || len(img) == 0 {
		writeError(w, http.StatusBadRequest, "bad image_b64")
		return
	}
	mime := util.PickMIME(req.MIME, hint, img)

	ctx, cancel := h.withDeadline(r)
	defer cancel()

	if req.Crop != nil {
		s := capture.NewSession(nil, capture.Options{Logger: h.log})
		defer s.Close()
		if err := s.Upload(img); err != nil {
			h.fail(w, r, "upload", err)
			return
		}
		var display capture.Size
		if req.Display != nil {
			display = *req.Display
		}
		if err := s.SetCrop(*req.Crop, display); err != nil {
			h.fail(w, r, "crop", err)
			return
		}
		out, err := s.Confirm(ctx)
		if err != nil {
			h.fail(w, r, "crop", err)
			return
		}
		img, mime = out.Data, out.MIME
	}

	res, err := h.pipe.ProcessAndSave(ctx, owner(r), pipeline.Input{Image: img, MIME: mime, Language: req.Language})
	if err != nil {
		h.fail(w, r, "solve", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
