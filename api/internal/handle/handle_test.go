package handle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathsnap/api/internal/capture"
	"mathsnap/api/internal/ocr"
	"mathsnap/api/internal/ocr/mock"
	"mathsnap/api/internal/pipeline"
	"mathsnap/api/internal/problem"
	"mathsnap/api/internal/solver"
	"mathsnap/api/internal/store"
	"mathsnap/api/internal/translate"
)

type brokenRecognizer struct{}

func (brokenRecognizer) Name() string { return "broken" }

func (brokenRecognizer) Recognize(context.Context, []byte, string) (ocr.Recognition, error) {
	return ocr.Recognition{}, errors.New("upstream down")
}

type testServer struct {
	srv  *httptest.Server
	repo *store.HistoryRepo
}

func newTestServer(t *testing.T, rec ocr.Recognizer) *testServer {
	t.Helper()
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := store.NewHistoryRepo(db, nil)
	pipe := pipeline.New(ocr.NewManager(rec), solver.New(nil), translate.NewPhrasebook(), repo, nil)
	reg := capture.NewRegistry(time.Minute, nil)
	t.Cleanup(reg.CloseAll)

	h := New(Options{Pipeline: pipe, History: repo, Sessions: reg})
	srv := httptest.NewServer(h.Handler())
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, repo: repo}
}

func (ts *testServer) do(t *testing.T, method, path, client string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rd)
	require.NoError(t, err)
	if client != "" {
		req.Header.Set(clientIDHeader, client)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func pngB64(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestHealthzAndLanguages(t *testing.T) {
	ts := newTestServer(t, mock.New())

	resp := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/v1/languages", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[struct {
		Languages []translate.Language `json:"languages"`
	}](t, resp)
	assert.Len(t, out.Languages, 32)
}

func TestSolveStoresRecord(t *testing.T) {
	ts := newTestServer(t, mock.New("2+2"))

	resp := ts.do(t, http.MethodPost, "/v1/solve", "alice", SolveRequest{ImageB64: pngB64(t, 8, 8), Language: "pt"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[pipeline.Result](t, resp)
	assert.Equal(t, "2+2", res.Record.ProblemText)
	assert.Equal(t, "4", res.Record.SolutionText)
	assert.Equal(t, "pt", res.Record.Language)
	assert.Equal(t, "Portanto, 2+2 = 4", res.Record.Steps[2])

	resp = ts.do(t, http.MethodGet, "/v1/history", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[struct {
		Records []problem.Record `json:"records"`
	}](t, resp)
	require.Len(t, list.Records, 1)
	assert.Equal(t, res.Record, list.Records[0])

	// other clients see their own slot only
	resp = ts.do(t, http.MethodGet, "/v1/history", "bob", nil)
	assert.Empty(t, decode[struct {
		Records []problem.Record `json:"records"`
	}](t, resp).Records)

	resp = ts.do(t, http.MethodGet, "/v1/history/"+res.Record.ID, "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, res.Record, decode[problem.Record](t, resp))

	resp = ts.do(t, http.MethodGet, "/v1/history/"+res.Record.ID+"?format=html", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	resp = ts.do(t, http.MethodGet, "/v1/history/"+res.Record.ID, "bob", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, "/v1/history/"+res.Record.ID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = ts.do(t, http.MethodDelete, "/v1/history/"+res.Record.ID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	recs, err := ts.repo.List(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSolveWithCrop(t *testing.T) {
	ts := newTestServer(t, mock.New("1+1"))
	req := SolveRequest{
		ImageB64: pngB64(t, 100, 60),
		Crop:     &capture.CropRegion{X: 10, Y: 10, Width: 20, Height: 10, Unit: capture.UnitPixel},
		Display:  &capture.Size{Width: 50, Height: 30},
	}
	resp := ts.do(t, http.MethodPost, "/v1/solve", "", req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[pipeline.Result](t, resp)
	assert.True(t, strings.HasPrefix(res.Record.ImageURL, "data:image/jpeg;base64,"))

	req.Crop = &capture.CropRegion{X: 500, Y: 500, Width: 5, Height: 5, Unit: capture.UnitPixel}
	resp = ts.do(t, http.MethodPost, "/v1/solve", "", req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSolveRejectsBadInput(t *testing.T) {
	ts := newTestServer(t, mock.New())

	resp := ts.do(t, http.MethodPost, "/v1/solve", "", SolveRequest{ImageB64: "!!!"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/v1/solve", "", SolveRequest{
		ImageB64: base64.StdEncoding.EncodeToString([]byte("plain text, not a picture")),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/v1/solve", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	recs, err := ts.repo.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSolveRecognizerFailure(t *testing.T) {
	ts := newTestServer(t, brokenRecognizer{})
	resp := ts.do(t, http.MethodPost, "/v1/solve", "", SolveRequest{ImageB64: pngB64(t, 4, 4)})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, decode[map[string]string](t, resp)["error"], "upstream down")
}

func TestClearHistory(t *testing.T) {
	ts := newTestServer(t, mock.New())
	for i := 0; i < 2; i++ {
		resp := ts.do(t, http.MethodPost, "/v1/solve", "c", SolveRequest{ImageB64: pngB64(t, 4+i, 4)})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := ts.do(t, http.MethodDelete, "/v1/history", "c", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	recs, err := ts.repo.List(context.Background(), "c")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

type sessionResp struct {
	ID          string              `json:"id"`
	State       string              `json:"state"`
	Facing      string              `json:"facing"`
	CameraError string              `json:"camera_error"`
	Image       *capture.Size       `json:"image"`
	Crop        *capture.CropRegion `json:"crop"`
}

func TestCaptureSessionUploadFlow(t *testing.T) {
	ts := newTestServer(t, mock.New("2x + 3 = 7"))

	resp := ts.do(t, http.MethodPost, "/v1/capture/sessions", "kim", CreateSessionRequest{Facing: "front"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sess := decode[sessionResp](t, resp)
	assert.Equal(t, "camera_unavailable", sess.State)
	assert.Equal(t, "user", sess.Facing)
	assert.NotEmpty(t, sess.CameraError)
	base := "/v1/capture/sessions/" + sess.ID

	resp = ts.do(t, http.MethodPost, base+"/capture", "kim", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, base+"/upload", "kim", SessionActionRequest{ImageB64: pngB64(t, 200, 100)})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[sessionResp](t, resp)
	assert.Equal(t, "cropping", st.State)
	assert.Equal(t, &capture.Size{Width: 200, Height: 100}, st.Image)
	assert.Equal(t, capture.DefaultCrop(*st.Image), *st.Crop)

	resp = ts.do(t, http.MethodPost, base+"/crop", "kim", SessionActionRequest{
		Crop: &capture.CropRegion{X: 0, Y: 0, Width: 50, Height: 50, Unit: capture.UnitPercent},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, base, "someone-else", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, base+"/confirm", "kim", SessionActionRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[pipeline.Result](t, resp)
	assert.Equal(t, "x = 2", res.Record.SolutionText)

	resp = ts.do(t, http.MethodGet, base, "kim", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "camera_unavailable", decode[sessionResp](t, resp).State)

	recs, err := ts.repo.List(context.Background(), "kim")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	resp = ts.do(t, http.MethodPost, base+"/teleport", "kim", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, base, "kim", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = ts.do(t, http.MethodGet, base, "kim", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCaptureSessionCancel(t *testing.T) {
	ts := newTestServer(t, mock.New())
	resp := ts.do(t, http.MethodPost, "/v1/capture/sessions", "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	base := "/v1/capture/sessions/" + decode[sessionResp](t, resp).ID

	resp = ts.do(t, http.MethodPost, base+"/confirm", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, base+"/upload", "", SessionActionRequest{ImageB64: pngB64(t, 10, 10)})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = ts.do(t, http.MethodPost, base+"/cancel", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "camera_unavailable", decode[sessionResp](t, resp).State)
}

func TestDeadlineOverride(t *testing.T) {
	h := New(Options{})
	r := httptest.NewRequest(http.MethodGet, "/?timeoutSec=7", nil)
	ctx, cancel := h.withDeadline(r)
	defer cancel()
	dl, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(7*time.Second), dl, time.Second)

	r.Header.Set(requestTimeoutHdr, "2")
	ctx2, cancel2 := h.withDeadline(r)
	defer cancel2()
	dl, _ = ctx2.Deadline()
	assert.WithinDuration(t, time.Now().Add(2*time.Second), dl, time.Second)
}
