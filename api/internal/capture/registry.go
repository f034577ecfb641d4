package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("capture: session not found")

type entry struct {
	s        *Session
	owner    string
	lastUsed time.Time
}

// Registry keeps live sessions for remote clients and closes the ones left
// idle.
type Registry struct {
	idle time.Duration
	log  *slog.Logger
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewRegistry(idle time.Duration, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{idle: idle, log: log, now: time.Now, sessions: map[string]*entry{}}
}

// Add registers s for owner and returns its id.
func (r *Registry) Add(owner string, s *Session) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.sessions[id] = &entry{s: s, owner: owner, lastUsed: r.now()}
	r.mu.Unlock()
	return id
}

// Get returns owner's session and marks it used.
func (r *Registry) Get(owner, id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok || e.owner != owner {
		return nil, ErrSessionNotFound
	}
	e.lastUsed = r.now()
	return e.s, nil
}

// Remove closes and forgets owner's session.
func (r *Registry) Remove(owner, id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok || e.owner != owner {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	r.mu.Unlock()
	return e.s.Close()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions idle for longer than the configured timeout.
func (r *Registry) Sweep() int {
	if r.idle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idle)
	var stale []*Session

	r.mu.Lock()
	for id, e := range r.sessions {
		if e.lastUsed.Before(cutoff) {
			stale = append(stale, e.s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		if err := s.Close(); err != nil {
			r.log.Warn("close idle capture session", "error", err)
		}
	}
	if len(stale) > 0 {
		r.log.Info("closed idle capture sessions", "count", len(stale))
	}
	return len(stale)
}

// CloseAll closes every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = map[string]*entry{}
	r.mu.Unlock()
	for _, e := range all {
		_ = e.s.Close()
	}
}

// Run sweeps periodically until ctx is done, then closes everything.
func (r *Registry) Run(ctx context.Context) {
	interval := r.idle / 2
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.CloseAll()
			return
		case <-t.C:
			r.Sweep()
		}
	}
}
