package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
)

// RefundAuth authenticates refund requests via HMAC-SHA256 hashed API keys.
// The configured key is hashed once at startup; incoming keys are hashed the
// same way and compared in constant time to prevent timing attacks.
type RefundAuth struct {
	pepper  []byte
	keyHash []byte
}

// NewRefundAuth returns nil when no API key is configured, which disables
// the refund endpoint entirely.
func NewRefundAuth(apiKey, pepper string) *RefundAuth {
	if apiKey == "" {
		return nil
	}
	a := &RefundAuth{pepper: []byte(pepper)}
	a.keyHash = a.hash(apiKey)
	return a
}

func (a *RefundAuth) hash(key string) []byte {
	mac := hmac.New(sha256.New, a.pepper)
	mac.Write([]byte(key))
	return mac.Sum(nil)
}

// Authorize reports whether the presented API key matches the configured one.
func (a *RefundAuth) Authorize(key string) bool {
	if key == "" {
		return false
	}
	return subtle.ConstantTimeCompare(a.hash(key), a.keyHash) == 1
}
