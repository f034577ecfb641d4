// Package ocr is the recognition boundary: an image goes in, the problem
// text comes out.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var ErrUnknownEngine = errors.New("ocr: unknown engine")

// Recognition is what a recognizer read from the image.
type Recognition struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0..1, 0 when the engine cannot tell
	Engine     string  `json:"engine"`
}

type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, image []byte, mime string) (Recognition, error)
}

// Manager holds the registered recognizers, a default, and per-owner
// overrides.
type Manager struct {
	def     Recognizer
	engines map[string]Recognizer
	m       sync.Map // owner -> Recognizer
}

func NewManager(defaultEngine Recognizer, others ...Recognizer) *Manager {
	mgr := &Manager{def: defaultEngine, engines: map[string]Recognizer{}}
	for _, e := range append([]Recognizer{defaultEngine}, others...) {
		if e != nil {
			mgr.engines[strings.ToLower(e.Name())] = e
		}
	}
	return mgr
}

// Default returns the default recognizer.
func (m *Manager) Default() Recognizer { return m.def }

// Names lists registered engine names, sorted.
func (m *Manager) Names() []string {
	out := make([]string, 0, len(m.engines))
	for k := range m.engines {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// GetEngine resolves a recognizer by name; empty name means the default.
func (m *Manager) GetEngine(name string) (Recognizer, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return m.def, nil
	}
	if e, ok := m.engines[name]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownEngine, name, strings.Join(m.Names(), ", "))
}

// Get returns the owner's recognizer, falling back to the default.
func (m *Manager) Get(owner string) Recognizer {
	if v, ok := m.m.Load(owner); ok {
		return v.(Recognizer)
	}
	return m.def
}

// Set pins a recognizer for owner by name.
func (m *Manager) Set(owner, name string) error {
	e, err := m.GetEngine(name)
	if err != nil {
		return err
	}
	m.m.Store(owner, e)
	return nil
}

// Reset drops the owner's override.
func (m *Manager) Reset(owner string) { m.m.Delete(owner) }
