package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/go-faster/errors"
)

// Verification errors. All of them map to 401 at the HTTP boundary.
var (
	ErrMissingSignature = errors.New("missing x-signature header")
	ErrMissingRequestID = errors.New("missing x-request-id header")
	ErrBadSignature     = errors.New("signature mismatch")
)

// Verifier checks Mercado Pago webhook signatures. The gateway signs
// "id:{data.id};request-id:{x-request-id};ts:{ts};" with HMAC-SHA256 using
// the configured webhook secret and sends "ts=...,v1=..." in x-signature.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a Verifier, or nil when no secret is configured. A nil
// Verifier skips verification; the processor then accepts every payload.
func NewVerifier(secret string) *Verifier {
	if secret == "" {
		return nil
	}
	return &Verifier{secret: []byte(secret)}
}

// Verify validates the x-signature header against the notification data id
// and the x-request-id header.
func (v *Verifier) Verify(signature, requestID, dataID string) error {
	if signature == "" {
		return ErrMissingSignature
	}
	if requestID == "" {
		return ErrMissingRequestID
	}

	var ts, v1 string
	for _, part := range strings.Split(signature, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "v1":
			v1 = value
		}
	}
	if ts == "" || v1 == "" {
		return ErrBadSignature
	}

	manifest := "id:" + strings.ToLower(dataID) + ";request-id:" + requestID + ";ts:" + ts + ";"
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(v1)) {
		return ErrBadSignature
	}
	return nil
}
