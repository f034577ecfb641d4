// Package capture implements the capture/crop workflow: acquire a camera
// stream or accept an uploaded file, let the user pick a crop rectangle over
// the still image, and emit the cropped image.
package capture

import (
	"context"
	"errors"
	"image"
	"strings"
)

// Facing is the logical camera selection.
type Facing string

const (
	FacingUser        Facing = "user"
	FacingEnvironment Facing = "environment"
)

// Opposite returns the other facing mode.
func (f Facing) Opposite() Facing {
	if f == FacingUser {
		return FacingEnvironment
	}
	return FacingUser
}

// ParseFacing accepts user|front and environment|back|rear; empty means
// environment, the usual choice for photographing paper.
func ParseFacing(s string) (Facing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "environment", "back", "rear":
		return FacingEnvironment, nil
	case "user", "front":
		return FacingUser, nil
	default:
		return "", errors.New("capture: unknown facing mode " + s)
	}
}

var (
	ErrNoDevice         = errors.New("capture: no camera device")
	ErrPermissionDenied = errors.New("capture: camera permission denied")
	ErrStreamClosed     = errors.New("capture: stream closed")
)

// Camera acquires media streams. ctx bounds the acquisition only.
type Camera interface {
	Open(ctx context.Context, facing Facing) (Stream, error)
}

// Stream is an acquired media handle. Frames come at native resolution.
type Stream interface {
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// NoCamera is used when no camera is configured; every acquisition fails.
type NoCamera struct{}

func (NoCamera) Open(context.Context, Facing) (Stream, error) { return nil, ErrNoDevice }
