package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_AllowsUpToMax(t *testing.T) {
	now := time.Now()
	l := New().WithClock(func() time.Time { return now })

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("etherscan", 5, time.Second), "request %d should pass", i+1)
	}
	assert.False(t, l.Allow("etherscan", 5, time.Second), "sixth request should be rejected")
}

func TestLimiter_WindowResets(t *testing.T) {
	now := time.Now()
	l := New().WithClock(func() time.Time { return now })

	assert.True(t, l.Allow("cmc", 1, time.Minute))
	assert.False(t, l.Allow("cmc", 1, time.Minute))

	now = now.Add(time.Minute + time.Millisecond)
	assert.True(t, l.Allow("cmc", 1, time.Minute), "new window should admit requests again")
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	now := time.Now()
	l := New().WithClock(func() time.Time { return now })

	assert.True(t, l.Allow("a", 1, time.Minute))
	assert.False(t, l.Allow("a", 1, time.Minute))
	assert.True(t, l.Allow("b", 1, time.Minute), "exhausting one key must not affect another")
}
