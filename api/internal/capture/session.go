package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
)

type State int

const (
	StateInitializing State = iota
	StateCameraActive
	StateCameraUnavailable
	StateCropping
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateCameraActive:
		return "camera_active"
	case StateCameraUnavailable:
		return "camera_unavailable"
	case StateCropping:
		return "cropping"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

var (
	ErrCameraUnavailable = errors.New("capture: camera unavailable")
	ErrSuperseded        = errors.New("capture: superseded by a newer request")
	ErrInvalidState      = errors.New("capture: operation not allowed in current state")
	ErrBusy              = errors.New("capture: another operation is in flight")
	ErrClosed            = errors.New("capture: session closed")
)

const (
	defaultJPEGQuality = 95
	// DefaultMaxPixels is the page size limit for stitched albums, matching
	// what LLM recognizers accept.
	DefaultMaxPixels = 18_000_000
)

type Options struct {
	Facing      Facing
	JPEGQuality int
	// MaxPixels scales confirmed crops down to at most this many pixels.
	// Zero keeps the exact crop size.
	MaxPixels int
	// OnComplete receives every confirmed image, after the session is back
	// to idle. It runs on the confirming goroutine.
	OnComplete func(Image)
	Logger     *slog.Logger
}

// Session owns one capture lifetime and the media stream acquired for it.
// The stream is released on every exit path: camera switch, failure, Close.
type Session struct {
	cam  Camera
	opts Options
	log  *slog.Logger

	mu            sync.Mutex
	facing        Facing
	camState      State // Initializing | CameraActive | CameraUnavailable
	camErr        error
	stream        Stream
	gen           uint64
	cancelAcquire context.CancelFunc
	capturing     bool
	closed        bool

	still   *image.RGBA // non-nil while cropping
	crop    CropRegion
	display Size
}

func NewSession(cam Camera, opts Options) *Session {
	if cam == nil {
		cam = NoCamera{}
	}
	if opts.Facing == "" {
		opts.Facing = FacingEnvironment
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = defaultJPEGQuality
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Session{cam: cam, opts: opts, log: log, facing: opts.Facing, camState: StateInitializing}
}

// State reports the current workflow state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	switch {
	case s.closed:
		return StateClosed
	case s.still != nil:
		return StateCropping
	default:
		return s.camState
	}
}

// Status is a point-in-time view of the session.
type Status struct {
	State       State       `json:"state"`
	Facing      Facing      `json:"facing"`
	CameraError string      `json:"camera_error,omitempty"`
	Image       *Size       `json:"image,omitempty"`
	Display     *Size       `json:"display,omitempty"`
	Crop        *CropRegion `json:"crop,omitempty"`
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{State: s.stateLocked(), Facing: s.facing}
	if s.camErr != nil {
		st.CameraError = s.camErr.Error()
	}
	if s.still != nil {
		nat := Size{Width: s.still.Bounds().Dx(), Height: s.still.Bounds().Dy()}
		disp, crop := s.display, s.crop
		st.Image, st.Display, st.Crop = &nat, &disp, &crop
	}
	return st
}

// Start acquires a stream with the current facing preference. A failed
// acquisition leaves the session in StateCameraUnavailable and returns an
// error wrapping ErrCameraUnavailable; uploads keep working.
func (s *Session) Start(ctx context.Context) error {
	return s.acquire(ctx)
}

// SwitchCamera releases the current stream and acquires one with the
// opposite facing preference.
func (s *Session) SwitchCamera(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.still != nil || s.capturing {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.facing = s.facing.Opposite()
	s.mu.Unlock()
	return s.acquire(ctx)
}

func (s *Session) acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.gen++
	gen := s.gen
	if s.cancelAcquire != nil {
		s.cancelAcquire()
	}
	actx, cancel := context.WithCancel(ctx)
	s.cancelAcquire = cancel
	old := s.stream
	s.stream = nil
	s.camState = StateInitializing
	s.camErr = nil
	facing := s.facing
	s.mu.Unlock()

	s.release(old)

	st, err := s.cam.Open(actx, facing)

	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		cancel()
		s.release(st)
		return ErrSuperseded
	}
	s.cancelAcquire = nil
	cancel()
	if err != nil {
		s.camState = StateCameraUnavailable
		s.camErr = err
		s.mu.Unlock()
		s.release(st)
		s.log.Warn("camera unavailable, upload only", "facing", facing, "error", err)
		return fmt.Errorf("%w: %w", ErrCameraUnavailable, err)
	}
	s.stream = st
	s.camState = StateCameraActive
	s.mu.Unlock()
	s.log.Debug("camera stream acquired", "facing", facing)
	return nil
}

// Capture copies the current frame into an offscreen bitmap at the frame's
// native resolution and enters cropping.
func (s *Session) Capture(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case s.capturing:
		s.mu.Unlock()
		return ErrBusy
	case s.still != nil:
		s.mu.Unlock()
		return ErrInvalidState
	case s.camState != StateCameraActive || s.stream == nil:
		s.mu.Unlock()
		return ErrCameraUnavailable
	}
	st, gen := s.stream, s.gen
	s.capturing = true
	s.mu.Unlock()

	frame, err := st.Frame(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.capturing = false
	if s.closed {
		return ErrClosed
	}
	if gen != s.gen {
		return ErrSuperseded
	}
	if err != nil {
		return fmt.Errorf("capture frame: %w", err)
	}
	s.enterCropping(toRGBA(frame))
	return nil
}

// Upload decodes a user-selected file into the same representation the
// camera path produces and enters cropping. It works whatever the camera
// state is.
func (s *Session) Upload(data []byte) error {
	img, _, err := DecodeImage(data)
	if err != nil {
		return err
	}
	still := toRGBA(img)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return ErrClosed
	case s.still != nil || s.capturing:
		return ErrInvalidState
	}
	s.enterCropping(still)
	return nil
}

func (s *Session) enterCropping(still *image.RGBA) {
	nat := Size{Width: still.Bounds().Dx(), Height: still.Bounds().Dy()}
	s.still = still
	s.crop = DefaultCrop(nat)
	s.display = nat
}

// SetCrop replaces the crop rectangle. display is the size the still image
// is shown at; empty means natural size.
func (s *Session) SetCrop(region CropRegion, display Size) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.still == nil {
		return ErrInvalidState
	}
	nat := Size{Width: s.still.Bounds().Dx(), Height: s.still.Bounds().Dy()}
	if display.Empty() {
		display = nat
	}
	if _, err := region.Pixels(nat, display); err != nil {
		return err
	}
	s.crop = region
	s.display = display
	return nil
}

// Confirm renders the selected rectangle, discards the crop state, returns
// the session to idle and hands the image to OnComplete.
func (s *Session) Confirm(ctx context.Context) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Image{}, ErrClosed
	}
	if s.still == nil {
		s.mu.Unlock()
		return Image{}, ErrInvalidState
	}
	still, crop, display := s.still, s.crop, s.display
	nat := Size{Width: still.Bounds().Dx(), Height: still.Bounds().Dy()}
	r, err := crop.Pixels(nat, display)
	if err != nil {
		s.mu.Unlock()
		return Image{}, err
	}
	s.still = nil
	s.crop = CropRegion{}
	s.display = Size{}
	s.mu.Unlock()

	out, err := encodeJPEG(cropRGBA(still, r, s.opts.MaxPixels), s.opts.JPEGQuality)
	if err != nil {
		return Image{}, err
	}
	if s.opts.OnComplete != nil {
		s.opts.OnComplete(out)
	}
	return out, nil
}

// Cancel discards the still image and returns to idle.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.still = nil
	s.crop = CropRegion{}
	s.display = Size{}
	return nil
}

// Close cancels any acquisition in flight and releases the stream. Safe to
// call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.cancelAcquire != nil {
		s.cancelAcquire()
		s.cancelAcquire = nil
	}
	st := s.stream
	s.stream = nil
	s.still = nil
	s.mu.Unlock()

	if st != nil {
		return st.Close()
	}
	return nil
}

func (s *Session) release(st Stream) {
	if st == nil {
		return
	}
	if err := st.Close(); err != nil {
		s.log.Warn("release camera stream", "error", err)
	}
}
