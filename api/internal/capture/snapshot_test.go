package capture

import (
	"bytes"
	"context"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(12, 9, color.Black)))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSnapshotCameraFrames(t *testing.T) {
	srv := snapshotServer(t, http.StatusOK)
	cam := NewSnapshotCamera("", srv.URL)
	require.True(t, cam.Configured())

	// user facing falls back to the only configured endpoint
	st, err := cam.Open(context.Background(), FacingUser)
	require.NoError(t, err)
	img, err := st.Frame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())

	require.NoError(t, st.Close())
	_, err = st.Frame(context.Background())
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestSnapshotCameraErrors(t *testing.T) {
	cam := NewSnapshotCamera("", "")
	assert.False(t, cam.Configured())
	_, err := cam.Open(context.Background(), FacingEnvironment)
	assert.ErrorIs(t, err, ErrNoDevice)

	_, err = NewSnapshotCamera(snapshotServer(t, http.StatusForbidden).URL, "").Open(context.Background(), FacingUser)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = NewSnapshotCamera(snapshotServer(t, http.StatusNotFound).URL, "").Open(context.Background(), FacingUser)
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestSessionWithSnapshotCamera(t *testing.T) {
	srv := snapshotServer(t, http.StatusOK)
	s := NewSession(NewSnapshotCamera(srv.URL, srv.URL), Options{})
	defer s.Close()

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Capture(context.Background()))
	assert.Equal(t, Size{Width: 12, Height: 9}, *s.Status().Image)
}
