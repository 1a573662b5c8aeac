package payment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vzdolci/storefront/internal/domain"
)

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("approved")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, s)

	_, err = ParseStatus("paid")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestStatusTraits(t *testing.T) {
	assert.True(t, StatusApproved.IsSuccessful())
	assert.True(t, StatusApproved.IsTerminal())

	assert.True(t, StatusPending.IsPending())
	assert.True(t, StatusPending.RequiresCustomerAction())
	assert.False(t, StatusPending.IsTerminal())

	assert.True(t, StatusRejected.IsFailed())
	assert.True(t, StatusCancelled.IsFailed())

	assert.True(t, StatusRefunded.IsReversed())
	assert.True(t, StatusChargedBack.IsReversed())
	assert.True(t, StatusChargedBack.IsTerminal())

	assert.Equal(t, "Aprovado", StatusApproved.Label())
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("pix")
	require.NoError(t, err)
	assert.Equal(t, MethodPix, m)

	_, err = ParseMethod("bitcoin")
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestMethodTraits(t *testing.T) {
	assert.True(t, MethodCreditCard.AllowsInstallments())
	assert.True(t, MethodCreditCard.RequiresProcessing())
	assert.True(t, MethodPix.IsInstantaneous())
	assert.True(t, MethodWhatsApp.IsManual())
	assert.True(t, MethodBoleto.HasExpirationDate())
	assert.Equal(t, "PIX", MethodPix.Label())
}

func TestProcessingFee(t *testing.T) {
	amount := decimal.RequireFromString("100.00")

	tests := []struct {
		method Method
		fee    string
	}{
		{MethodCreditCard, "4.99"},
		{MethodDebitCard, "3.49"},
		{MethodPix, "0.99"},
		{MethodBoleto, "3.49"},
		{MethodAccountMoney, "5"},
		{MethodWhatsApp, "5"},
	}
	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			want := decimal.RequireFromString(tt.fee)
			assert.True(t, tt.method.ProcessingFee(amount).Equal(want))
		})
	}
}

func validParams() Params {
	return Params{
		PaymentID: "12345",
		Status:    StatusPending,
		Method:    MethodPix,
		Amount:    decimal.RequireFromString("42.00"),
		QRCode:    "00020126pix",
	}
}

func TestNewDefaults(t *testing.T) {
	before := time.Now()
	info, err := New(validParams())
	require.NoError(t, err)

	assert.Equal(t, "BRL", info.Currency)
	assert.False(t, info.CreatedAt.Before(before))
	assert.Equal(t, info.CreatedAt.Add(DefaultExpiry), info.ExpiresAt)
	assert.True(t, info.HasQRCode())
}

func TestNewKeepsSuppliedFields(t *testing.T) {
	created := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	expires := created.Add(time.Hour)

	p := validParams()
	p.Currency = "BRL"
	p.CreatedAt = created
	p.ExpiresAt = expires
	p.OrderID = "order-1"

	info, err := New(p)
	require.NoError(t, err)
	assert.Equal(t, created, info.CreatedAt)
	assert.Equal(t, expires, info.ExpiresAt)
	assert.Equal(t, "order-1", info.OrderID)
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		field  string
	}{
		{"missing id", func(p *Params) { p.PaymentID = "" }, "paymentId"},
		{"missing method", func(p *Params) { p.Method = "" }, "method"},
		{"non-gateway status", func(p *Params) { p.Status = StatusAuthorized }, "status"},
		{"zero amount", func(p *Params) { p.Amount = decimal.Zero }, "amount"},
		{"negative amount", func(p *Params) { p.Amount = decimal.RequireFromString("-1") }, "amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)

			_, err := New(p)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestExpiry(t *testing.T) {
	expires := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	info := Info{ExpiresAt: expires}

	assert.False(t, info.IsExpired(expires.Add(-time.Second)))
	assert.True(t, info.IsExpired(expires), "boundary is inclusive")
	assert.True(t, info.IsExpired(expires.Add(time.Second)))

	assert.Equal(t, time.Minute, info.TimeToExpire(expires.Add(-time.Minute)))
	assert.Equal(t, time.Duration(0), info.TimeToExpire(expires.Add(time.Hour)))
}
