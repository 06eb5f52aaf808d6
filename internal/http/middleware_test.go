package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIPLimiterReusesBucketPerClient(t *testing.T) {
	l := newIPLimiter(1, 1, time.Minute)

	first := l.get("10.0.0.1")
	assert.Same(t, first, l.get("10.0.0.1"))
	assert.NotSame(t, first, l.get("10.0.0.2"))
	assert.Equal(t, 2, l.limiters.ItemCount())
}

func TestIPLimiterSweepsIdleClients(t *testing.T) {
	l := newIPLimiter(1, 1, 50*time.Millisecond)
	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		l.get(ip)
	}
	assert.Equal(t, 3, l.limiters.ItemCount())

	assert.Eventually(t, func() bool {
		return l.limiters.ItemCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestIPLimiterFreshBucketAfterExpiry(t *testing.T) {
	l := newIPLimiter(0.001, 1, 50*time.Millisecond)

	assert.True(t, l.get("10.0.0.1").Allow())
	assert.False(t, l.get("10.0.0.1").Allow())

	assert.Eventually(t, func() bool {
		return l.limiters.ItemCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, l.get("10.0.0.1").Allow())
}
