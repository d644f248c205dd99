package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsUpToMaxAttempts(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxAttempts: 3, Window: time.Minute, LockoutDuration: time.Minute})

	for i := 0; i < 3; i++ {
		res := rl.RecordFailure("alice")
		require.True(t, res.Allowed)
	}

	res := rl.RecordFailure("alice")
	require.False(t, res.Allowed)
	require.Greater(t, res.RetryAfter, time.Duration(0))
}

func TestRateLimiterLocksOutSeparateIdentifiersIndependently(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxAttempts: 1, Window: time.Minute, LockoutDuration: time.Minute})

	rl.RecordFailure("alice")
	res := rl.RecordFailure("alice")
	require.False(t, res.Allowed)

	bobRes := rl.Check("bob")
	require.True(t, bobRes.Allowed)
}

func TestRateLimiterResetClearsLockout(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxAttempts: 1, Window: time.Minute, LockoutDuration: time.Minute})

	rl.RecordFailure("alice")
	rl.RecordFailure("alice")
	rl.Reset("alice")

	res := rl.Check("alice")
	require.True(t, res.Allowed)
}

func TestRateLimiterExponentialBackoffDoublesLockout(t *testing.T) {
	cfg := RateLimitConfig{
		MaxAttempts:     1,
		Window:          time.Minute,
		LockoutDuration: time.Minute,
		BackoffWindow:   time.Hour,
		ExponentialBack: true,
	}
	rl := NewRateLimiter(cfg)

	rl.RecordFailure("alice")
	first := rl.RecordFailure("alice")
	require.Equal(t, time.Minute, first.RetryAfter)

	rl.attempts["alice"].lockedUntil = time.Now().Add(-time.Second)
	second := rl.RecordFailure("alice")
	require.Greater(t, second.RetryAfter, first.RetryAfter)
}

func TestRateLimiterCheckWithoutPriorAttemptsAllows(t *testing.T) {
	rl := NewRateLimiter(LoginLimit)
	res := rl.Check("new-user")
	require.True(t, res.Allowed)
	require.Equal(t, LoginLimit.MaxAttempts, res.Remaining)
}
