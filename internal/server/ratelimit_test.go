package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withClock pins the limiter's clock for deterministic window tests.
func withClock(rl *RateLimiter, t *time.Time) *RateLimiter {
	rl.now = func() time.Time { return *t }
	return rl
}

func TestRateLimiter_MinuteLimit(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rl := withClock(NewRateLimiter(2, 0, 0, 0), &now)

	require.NoError(t, rl.Check("client", 0))
	require.NoError(t, rl.Check("client", 0))

	err := rl.Check("client", 0)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "minute", rle.Type)
	assert.Equal(t, 2, rle.Limit)
	assert.Positive(t, rle.RetryAfter)

	// Window rolls over after a minute.
	now = now.Add(61 * time.Second)
	assert.NoError(t, rl.Check("client", 0))
}

func TestRateLimiter_HourLimit(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rl := withClock(NewRateLimiter(0, 3, 0, 0), &now)

	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Check("client", 0))
		now = now.Add(2 * time.Minute)
	}

	err := rl.Check("client", 0)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "hour", rle.Type)
}

func TestRateLimiter_DailyRequestQuota(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rl := withClock(NewRateLimiter(0, 0, 2, 0), &now)

	require.NoError(t, rl.Check("client", 0))
	require.NoError(t, rl.Check("client", 0))

	err := rl.Check("client", 0)
	var qee *QuotaExceededError
	require.ErrorAs(t, err, &qee)
	assert.Equal(t, "requests", qee.Type)
	assert.Equal(t, int64(2), qee.Used)

	// Quota resets at midnight.
	now = time.Date(2026, 3, 11, 0, 0, 1, 0, time.UTC)
	assert.NoError(t, rl.Check("client", 0))
}

func TestRateLimiter_DailyDataQuota(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rl := withClock(NewRateLimiter(0, 0, 0, 1000), &now)

	require.NoError(t, rl.Check("client", 600))

	err := rl.Check("client", 600)
	var qee *QuotaExceededError
	require.ErrorAs(t, err, &qee)
	assert.Equal(t, "data", qee.Type)
	assert.Equal(t, int64(1000), qee.Limit)
	assert.Equal(t, int64(600), qee.Used)
}

func TestRateLimiter_ClientsIsolated(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rl := withClock(NewRateLimiter(1, 0, 0, 0), &now)

	require.NoError(t, rl.Check("a", 0))
	require.Error(t, rl.Check("a", 0))
	assert.NoError(t, rl.Check("b", 0))
}

func TestRateLimiter_ZeroLimitsDisabled(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rl := withClock(NewRateLimiter(0, 0, 0, 0), &now)

	for i := 0; i < 100; i++ {
		require.NoError(t, rl.Check("client", 1<<20))
	}
}

func TestRateLimitErrorMessages(t *testing.T) {
	rle := &RateLimitError{Type: "minute", Limit: 5, RetryAfter: 30 * time.Second}
	assert.Contains(t, rle.Error(), "minute")

	qee := &QuotaExceededError{Type: "data", Limit: 100, Used: 90, Resets: time.Now()}
	assert.Contains(t, qee.Error(), "data")

	var asRLE *RateLimitError
	assert.True(t, errors.As(error(rle), &asRLE))
}
