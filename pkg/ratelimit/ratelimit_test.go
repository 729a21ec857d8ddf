package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBurstThenRejects(t *testing.T) {
	l := New(5, 0) // no refill, pure burst
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("1.2.3.4"), "request %d within burst", i)
	}
	assert.False(t, l.Allow("1.2.3.4"))
}

func TestKeysAreIndependent(t *testing.T) {
	l := New(1, 0)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
}

func TestSweepRemovesOnlyFullBuckets(t *testing.T) {
	l := New(2, 1000)
	l.Allow("idle")
	l.Allow("busy")
	l.Allow("busy")

	// "idle" refills a token almost immediately at 1000/s; "busy" is
	// two tokens down and takes longer.
	assert.Eventually(t, func() bool {
		return l.Sweep() >= 1 && l.Size() <= 1
	}, time.Second, time.Millisecond)
}

func TestClientKeyPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", ClientKey(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientKey(r))
}
