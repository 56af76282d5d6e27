package limiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	r := NewRateLimiter(3)
	assert.True(t, r.Allow())
	assert.True(t, r.Allow())
	assert.True(t, r.Allow())
	assert.False(t, r.Allow())
}

func TestRateLimiterRecoversAfterWindow(t *testing.T) {
	r := NewRateLimiter(1)
	assert.True(t, r.Allow())
	assert.False(t, r.Allow())

	time.Sleep(1100 * time.Millisecond)
	assert.True(t, r.Allow())
}
