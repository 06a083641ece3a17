package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/bookshelf/internal/errs"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *time.Time) {
	t.Helper()
	l := New(cfg)
	t.Cleanup(l.Stop)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func retryAfter(t *testing.T, err error) int {
	t.Helper()
	e, ok := errs.As(err)
	require.True(t, ok)
	details, ok := e.Details.(Exceeded)
	require.True(t, ok)
	return details.RetryAfterSeconds
}

func TestLimiter_AllowsUpToLimit(t *testing.T) {
	l, _ := newTestLimiter(t, Config{ImportsPerWindow: 2, Window: time.Hour})

	assert.Equal(t, 2, l.Remaining("user-1", ActionImport))
	require.NoError(t, l.Allow("user-1", ActionImport))
	require.NoError(t, l.Allow("user-1", ActionImport))
	assert.Equal(t, 0, l.Remaining("user-1", ActionImport))

	err := l.Allow("user-1", ActionImport)
	require.Error(t, err)
	assert.Equal(t, errs.KindRateLimit, errs.KindOf(err))

	e, _ := errs.As(err)
	assert.Equal(t, 2, e.Details.(Exceeded).Limit)
	assert.Equal(t, ActionImport, e.Details.(Exceeded).Action)
	// one token comes back every window/limit
	assert.Equal(t, 1800, retryAfter(t, err))

	// other users and actions are counted separately
	assert.NoError(t, l.Allow("user-2", ActionImport))
	assert.Equal(t, -1, l.Remaining("user-1", ActionExport))
	assert.NoError(t, l.Allow("user-1", ActionExport))
}

func TestLimiter_RejectedAttemptsDoNotCount(t *testing.T) {
	l, now := newTestLimiter(t, Config{ExportsPerWindow: 1, Window: time.Hour})

	require.NoError(t, l.Allow("user-1", ActionExport))
	*now = now.Add(30 * time.Minute)
	for i := 0; i < 3; i++ {
		err := l.Allow("user-1", ActionExport)
		require.Error(t, err)
		assert.Equal(t, 1800, retryAfter(t, err))
	}

	*now = now.Add(31 * time.Minute)
	assert.NoError(t, l.Allow("user-1", ActionExport))
}

func TestLimiter_Refills(t *testing.T) {
	l, now := newTestLimiter(t, Config{ImportsPerWindow: 4, Window: time.Hour})

	for i := 0; i < 4; i++ {
		require.NoError(t, l.Allow("user-1", ActionImport))
	}
	require.Error(t, l.Allow("user-1", ActionImport))

	*now = now.Add(31 * time.Minute)
	assert.Equal(t, 2, l.Remaining("user-1", ActionImport))
	require.NoError(t, l.Allow("user-1", ActionImport))
	require.NoError(t, l.Allow("user-1", ActionImport))
	assert.Error(t, l.Allow("user-1", ActionImport))
}

func TestLimiter_Cleanup(t *testing.T) {
	l, now := newTestLimiter(t, Config{ImportsPerWindow: 1, Window: time.Minute})

	require.NoError(t, l.Allow("user-1", ActionImport))
	*now = now.Add(30 * time.Second)
	l.cleanup()
	l.mu.Lock()
	assert.Len(t, l.buckets, 1)
	l.mu.Unlock()

	*now = now.Add(2 * time.Minute)
	l.cleanup()
	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.buckets)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10, cfg.ImportsPerWindow)
	assert.Equal(t, 30, cfg.ExportsPerWindow)
	assert.Equal(t, time.Hour, cfg.Window)
}
