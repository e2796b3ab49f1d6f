package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAllowWithinLimit(t *testing.T) {
	limiter := New(NewMemoryCounter(), &Config{Enabled: true, RequestsPerMinute: 3})
	limiter.now = fixedClock(time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC))

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(context.Background(), "client-a")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 2-i, result.Remaining)
	}

	result, err := limiter.Allow(context.Background(), "client-a")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, 30, result.RetryAfter, "half the window remains")
}

func TestAllowSeparateKeys(t *testing.T) {
	limiter := New(NewMemoryCounter(), &Config{Enabled: true, RequestsPerMinute: 1})
	limiter.now = fixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	first, err := limiter.Allow(context.Background(), "client-a")
	require.NoError(t, err)
	assert.True(t, first.Allowed)

	blocked, err := limiter.Allow(context.Background(), "client-a")
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)

	other, err := limiter.Allow(context.Background(), "client-b")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestAllowNewWindowResets(t *testing.T) {
	limiter := New(NewMemoryCounter(), &Config{Enabled: true, RequestsPerMinute: 1})
	limiter.now = fixedClock(time.Date(2025, 6, 1, 12, 0, 59, 0, time.UTC))

	_, err := limiter.Allow(context.Background(), "client-a")
	require.NoError(t, err)
	blocked, err := limiter.Allow(context.Background(), "client-a")
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)

	limiter.now = fixedClock(time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC))
	fresh, err := limiter.Allow(context.Background(), "client-a")
	require.NoError(t, err)
	assert.True(t, fresh.Allowed)
}

func TestDisabledLimiterAdmitsEverything(t *testing.T) {
	limiter := New(NewMemoryCounter(), &Config{Enabled: false, RequestsPerMinute: 1})

	for i := 0; i < 5; i++ {
		result, err := limiter.Allow(context.Background(), "client-a")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}
}
