package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryOwnership(t *testing.T) {
	r := NewRegistry(time.Minute, nil)
	s := NewSession(nil, Options{})
	id := r.Add("alice", s)

	got, err := r.Get("alice", id)
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = r.Get("bob", id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, r.Remove("bob", id), ErrSessionNotFound)

	require.NoError(t, r.Remove("alice", id))
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, r.Len())
}

func TestRegistrySweepClosesIdle(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r := NewRegistry(time.Minute, nil)
	r.now = func() time.Time { return now }

	stale := NewSession(nil, Options{})
	fresh := NewSession(nil, Options{})
	r.Add("a", stale)
	now = now.Add(50 * time.Second)
	freshID := r.Add("a", fresh)
	now = now.Add(20 * time.Second)

	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, StateClosed, stale.State())
	_, err := r.Get("a", freshID)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryRunClosesAllOnShutdown(t *testing.T) {
	r := NewRegistry(time.Hour, nil)
	s := NewSession(nil, Options{})
	r.Add("a", s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, r.Len())
}
