package mercadopago

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrNotConfigured is returned when the adapter is used without an access
// token. Callers map it to a 500 configuration error.
var ErrNotConfigured = errors.New("MP_ACCESS_TOKEN não configurado")

// ErrPaymentNotFound is returned when the gateway has no payment for the
// given id.
var ErrPaymentNotFound = errors.New("Pagamento não encontrado")

// Error is a failed gateway call. StatusCode is the upstream HTTP status;
// Body carries the parsed upstream response for logging, never for display.
type Error struct {
	StatusCode int
	Message    string
	Body       []byte
	// RetryAfter is the suggested wait in seconds on rate-limited calls,
	// 0 when the gateway supplied none.
	RetryAfter int
}

func (e *Error) Error() string {
	return fmt.Sprintf("mercadopago: %s (status %d)", e.Message, e.StatusCode)
}

// IsRateLimited reports whether the gateway throttled the call.
func (e *Error) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsClientError reports whether the upstream rejected the request itself
// (4xx). Per the error taxonomy these map to 400 rather than 502.
func (e *Error) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}
