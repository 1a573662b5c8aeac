package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterFixedWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newRateLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	ok, _ := l.allow("1.2.3.4")
	assert.True(t, ok)
	ok, _ = l.allow("1.2.3.4")
	assert.True(t, ok)

	ok, retryAfter := l.allow("1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retryAfter)

	// A different client has its own counter.
	ok, _ = l.allow("5.6.7.8")
	assert.True(t, ok)

	// The counter resets once the window passes.
	now = now.Add(time.Minute)
	ok, _ = l.allow("1.2.3.4")
	assert.True(t, ok)
}

func TestRateLimiterCleanup(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newRateLimiter(10, time.Minute)
	l.now = func() time.Time { return now }

	l.allow("1.2.3.4")
	l.allow("5.6.7.8")
	require.Len(t, l.buckets, 2)

	now = now.Add(30 * time.Second)
	l.allow("9.9.9.9")
	l.cleanup()
	assert.Len(t, l.buckets, 3)

	now = now.Add(31 * time.Second)
	l.cleanup()
	require.Len(t, l.buckets, 1)
	assert.Contains(t, l.buckets, "9.9.9.9")
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := Wrap(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		RateLimit(2, time.Minute),
	)

	do := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, do("10.0.0.1:5678").Code)

	rec := do("10.0.0.1:9999")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Another address is not affected.
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1234").Code)
}
