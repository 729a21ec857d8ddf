// Package ratelimit provides the per-client token bucket used by the HTTP
// middleware: 60-token burst refilling at 10 tokens/sec, keyed by client
// address.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

const (
	// DefaultBurst is the bucket capacity per client key.
	DefaultBurst = 60
	// DefaultRate is the refill rate in tokens per second.
	DefaultRate = 10
)

// Limiter keeps one token bucket per client key. Buckets are created
// lazily and removed by Sweep once fully refilled.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rate    rate.Limit
	burst   int
}

func New(burst int, perSecond float64) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		rate:    rate.Limit(perSecond),
		burst:   burst,
	}
}

func NewDefault() *Limiter { return New(DefaultBurst, DefaultRate) }

// Allow consumes one token for the key, reporting whether the request may
// proceed.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.rate, l.burst)
		l.buckets[key] = b
	}
	l.mu.Unlock()
	return b.Allow()
}

// Sweep drops buckets that have refilled completely, i.e. clients idle
// long enough that forgetting them changes nothing. Returns the number
// removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, b := range l.buckets {
		if b.Tokens() >= float64(l.burst) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Size returns the current number of tracked buckets.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// ClientKey derives the limiter key for a request: the first entry of
// X-Forwarded-For when present, otherwise the remote address without its
// port.
func ClientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
