package ctxstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	s := New()
	s.Set("user", "alice", false)
	v, ok := s.Get("user")
	require.True(t, ok)
	assert.Equal(t, "alice", v)
}

func TestGetMissingKey(t *testing.T) {
	s := New()
	_, ok := s.Get("missing")
	assert.False(t, ok)
}

func TestCloneOnlyKeepsPropagatedKeys(t *testing.T) {
	s := New()
	s.Set("trace_id", "abc-123", true)
	s.Set("scratch", "local-only", false)

	clone := s.Clone()
	v, ok := clone.Get("trace_id")
	require.True(t, ok)
	assert.Equal(t, "abc-123", v)

	_, ok = clone.Get("scratch")
	assert.False(t, ok, "non-propagated keys must not survive Clone")
}

func TestWithExpirationPurgesLazily(t *testing.T) {
	s := New()
	s.Set("session", "token", false)
	s.WithExpiration("session", int64(5*time.Millisecond))

	_, ok := s.Get("session")
	require.True(t, ok, "key should still be live immediately after WithExpiration")

	time.Sleep(20 * time.Millisecond)
	_, ok = s.Get("session")
	assert.False(t, ok, "expired key should be treated as absent")
}

func TestDeleteRemovesKey(t *testing.T) {
	s := New()
	s.Set("k", 1, false)
	s.Delete("k")
	_, ok := s.Get("k")
	assert.False(t, ok)
}

func TestIsPropagated(t *testing.T) {
	s := New()
	s.Set("a", 1, true)
	s.Set("b", 2, false)
	assert.True(t, s.IsPropagated("a"))
	assert.False(t, s.IsPropagated("b"))
}
