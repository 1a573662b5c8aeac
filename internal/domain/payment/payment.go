// Package payment defines the payment value objects shared by the checkout,
// the gateway adapter, and the HTTP handlers: Status and Method closed enums
// and the Info record describing one gateway payment.
package payment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vzdolci/storefront/internal/domain"
)

// DefaultExpiry applies when the gateway supplies no expiration date.
const DefaultExpiry = 30 * time.Minute

// gatewayStatuses is the subset of statuses the gateway actually reports on a
// payment record. Authorized and in-mediation states surface only through
// dedicated flows the storefront does not use.
var gatewayStatuses = map[Status]bool{
	StatusPending:     true,
	StatusInProcess:   true,
	StatusApproved:    true,
	StatusRejected:    true,
	StatusCancelled:   true,
	StatusRefunded:    true,
	StatusChargedBack: true,
}

// Params carries raw payment data, typically from a gateway response.
type Params struct {
	PaymentID    string
	Status       Status
	Method       Method
	Amount       decimal.Decimal
	Currency     string
	QRCode       string
	QRCodeBase64 string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	OrderID      string
}

// Info is an immutable payment record. Construct it with New.
type Info struct {
	PaymentID    string          `json:"paymentId"`
	Status       Status          `json:"status"`
	Method       Method          `json:"method"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	QRCode       string          `json:"qrCode,omitempty"`
	QRCodeBase64 string          `json:"qrCodeBase64,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	ExpiresAt    time.Time       `json:"expiresAt"`
	OrderID      string          `json:"orderId,omitempty"`
}

// New validates p and fills defaults: currency BRL, creation time now, expiry
// CreatedAt+DefaultExpiry when the gateway supplied none.
func New(p Params) (Info, error) {
	if p.PaymentID == "" {
		return Info{}, domain.Invalid("paymentId", "Identificador do pagamento é obrigatório")
	}
	if _, ok := methods[p.Method]; !ok {
		return Info{}, domain.Invalid("method", "Método de pagamento é obrigatório")
	}
	if !gatewayStatuses[p.Status] {
		return Info{}, domain.Invalid("status", "Status de pagamento inválido")
	}
	if !p.Amount.IsPositive() {
		return Info{}, domain.Invalid("amount", "Valor do pagamento inválido")
	}

	currency := p.Currency
	if currency == "" {
		currency = "BRL"
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	expiresAt := p.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = createdAt.Add(DefaultExpiry)
	}

	return Info{
		PaymentID:    p.PaymentID,
		Status:       p.Status,
		Method:       p.Method,
		Amount:       p.Amount,
		Currency:     currency,
		QRCode:       p.QRCode,
		QRCodeBase64: p.QRCodeBase64,
		CreatedAt:    createdAt,
		ExpiresAt:    expiresAt,
		OrderID:      p.OrderID,
	}, nil
}

// IsExpired reports whether the payment can no longer be completed at time t.
// The boundary is inclusive: a payment is expired at exactly ExpiresAt.
func (i Info) IsExpired(t time.Time) bool {
	return !t.Before(i.ExpiresAt)
}

// TimeToExpire returns the remaining payment window at time t, floored at 0.
func (i Info) TimeToExpire(t time.Time) time.Duration {
	d := i.ExpiresAt.Sub(t)
	if d < 0 {
		return 0
	}
	return d
}

// HasQRCode reports whether the gateway returned either QR representation.
// A PIX payment without one cannot be presented to the customer.
func (i Info) HasQRCode() bool {
	return i.QRCode != "" || i.QRCodeBase64 != ""
}

// ProcessingFee returns the gateway fee for this payment.
func (i Info) ProcessingFee() decimal.Decimal {
	return i.Method.ProcessingFee(i.Amount)
}
