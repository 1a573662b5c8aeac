package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	// AllowOrigins lists origins allowed to make cross-origin requests.
	// "*" allows any origin. Defaults to "*".
	AllowOrigins []string

	// AllowCredentials enables the Access-Control-Allow-Credentials header.
	// It cannot be combined with a wildcard origin; when both are set the
	// wildcard wins and credentials are disabled.
	AllowCredentials bool

	// MaxAge is how long preflight results may be cached. Defaults to 5
	// minutes.
	MaxAge time.Duration
}

const (
	corsAllowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsAllowHeaders = "Content-Type, X-API-Key, X-Request-ID"
)

// CORS returns a middleware that handles cross-origin requests, including
// preflight OPTIONS requests.
func CORS(cfg CORSConfig) Middleware {
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = []string{"*"}
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 5 * time.Minute
	}

	wildcard := false
	for _, origin := range cfg.AllowOrigins {
		if origin == "*" {
			wildcard = true
			break
		}
	}

	allowOrigin := func(origin string) string {
		if wildcard {
			return "*"
		}
		for _, allowed := range cfg.AllowOrigins {
			if strings.EqualFold(allowed, origin) {
				return origin
			}
		}
		return ""
	}

	maxAge := strconv.Itoa(int(cfg.MaxAge / time.Second))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed := allowOrigin(origin)
			if allowed == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowed)
			if allowed != "*" {
				h.Add("Vary", "Origin")
				if cfg.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Max-Age", maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
