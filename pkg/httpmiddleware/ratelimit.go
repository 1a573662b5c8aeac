package httpmiddleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// rateLimiter is a fixed-window counter keyed by client address. Counters
// are kept in process memory, so limits apply per instance only. That is
// good enough as a best-effort guard for a single-instance deployment.
type rateLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	buckets map[string]*windowCounter

	now func() time.Time
}

type windowCounter struct {
	start time.Time
	count int
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		max:     max,
		window:  window,
		buckets: make(map[string]*windowCounter),
		now:     time.Now,
	}
}

// allow reports whether a request from key fits the current window. When
// the limit is exceeded it returns how long the caller should wait before
// the window resets.
func (l *rateLimiter) allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || now.Sub(b.start) >= l.window {
		l.buckets[key] = &windowCounter{start: now, count: 1}
		return true, 0
	}
	if b.count < l.max {
		b.count++
		return true, 0
	}
	return false, b.start.Add(l.window).Sub(now)
}

// cleanup drops buckets whose window has already passed.
func (l *rateLimiter) cleanup() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, b := range l.buckets {
		if now.Sub(b.start) >= l.window {
			delete(l.buckets, key)
		}
	}
}

func (l *rateLimiter) startCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

// clientKey extracts the client IP from the request, falling back to the
// whole RemoteAddr when it has no port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (l *rateLimiter) middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retryAfter := l.allow(clientKey(r))
			if !ok {
				seconds := int(retryAfter/time.Second) + 1
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit limits each client address to max requests per window.
func RateLimit(max int, window time.Duration) Middleware {
	return newRateLimiter(max, window).middleware()
}

// RateLimitWithCleanup is like RateLimit but also runs a background
// goroutine that evicts idle counters. The goroutine stops when ctx is
// cancelled.
func RateLimitWithCleanup(ctx context.Context, max int, window time.Duration) Middleware {
	l := newRateLimiter(max, window)
	go l.startCleanup(ctx, window)
	return l.middleware()
}
