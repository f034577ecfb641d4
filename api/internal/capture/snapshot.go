package capture

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

const maxSnapshotBytes = 32 << 20

// SnapshotCamera reads frames from HTTP snapshot endpoints, one per facing
// mode (IP cameras, phone camera bridges). A missing endpoint for the
// preferred facing falls back to the other one.
type SnapshotCamera struct {
	URLs   map[Facing]string
	Client *http.Client
}

func NewSnapshotCamera(frontURL, backURL string) *SnapshotCamera {
	return &SnapshotCamera{
		URLs: map[Facing]string{
			FacingUser:        strings.TrimSpace(frontURL),
			FacingEnvironment: strings.TrimSpace(backURL),
		},
		Client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Configured reports whether at least one endpoint is set.
func (c *SnapshotCamera) Configured() bool {
	for _, u := range c.URLs {
		if u != "" {
			return true
		}
	}
	return false
}

func (c *SnapshotCamera) resolve(facing Facing) string {
	if u := c.URLs[facing]; u != "" {
		return u
	}
	return c.URLs[facing.Opposite()]
}

// Open probes the endpoint with one frame so unreachable or forbidden
// devices fail at acquisition time.
func (c *SnapshotCamera) Open(ctx context.Context, facing Facing) (Stream, error) {
	url := c.resolve(facing)
	if url == "" {
		return nil, ErrNoDevice
	}
	st := &snapshotStream{url: url, client: c.Client}
	if st.client == nil {
		st.client = http.DefaultClient
	}
	if _, err := st.Frame(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

type snapshotStream struct {
	url    string
	client *http.Client
	closed atomic.Bool
}

func (s *snapshotStream) Frame(ctx context.Context) (image.Image, error) {
	if s.closed.Load() {
		return nil, ErrStreamClosed
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrPermissionDenied, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: status %d", ErrNoDevice, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("snapshot %d: %s", resp.StatusCode, string(b))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, err
	}
	img, _, err := DecodeImage(data)
	return img, err
}

func (s *snapshotStream) Close() error {
	s.closed.Store(true)
	return nil
}
