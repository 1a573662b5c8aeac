package whatsapp

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vzdolci/storefront/internal/domain/customer"
	"github.com/vzdolci/storefront/internal/domain/order"
	"github.com/vzdolci/storefront/internal/domain/shipping"
)

func TestNewBuilder(t *testing.T) {
	t.Run("strips formatting", func(t *testing.T) {
		b, err := NewBuilder("+55 (11) 99999-8888")
		require.NoError(t, err)
		assert.Equal(t, "5511999998888", b.number)
	})

	t.Run("rejects missing number", func(t *testing.T) {
		_, err := NewBuilder("")
		require.ErrorIs(t, err, ErrNotConfigured)
	})
}

func TestOrderLink(t *testing.T) {
	b, err := NewBuilder("5511999998888")
	require.NoError(t, err)

	o := order.Order{
		ID: "order-42",
		Items: []order.Item{
			{ProductID: "crema-cotta-morango", Name: "Crema Cotta de Morango", UnitPrice: decimal.RequireFromString("14.00"), Quantity: 2},
			{ProductID: "strati-di-moca", Name: "Strati di Moca", UnitPrice: decimal.RequireFromString("14.00"), Quantity: 1},
		},
		Customer: customer.Info{
			Name:  "Ana Silva",
			Email: "ana@example.com",
			Phone: "11988887777",
			CPF:   "52998224725",
		},
		Shipping: shipping.Info{
			Street:       "Rua das Flores",
			Number:       "123",
			District:     "Jardins",
			City:         "São Paulo",
			State:        "SP",
			PostalCode:   "01000000",
			DeliveryDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		},
		Total: decimal.RequireFromString("42.00"),
	}

	link := b.OrderLink(o)
	require.True(t, strings.HasPrefix(link, "https://wa.me/5511999998888?text="), link)

	// The link must survive a round trip through URL decoding.
	encoded := strings.TrimPrefix(link, "https://wa.me/5511999998888?text=")
	assert.NotContains(t, encoded, "+")
	assert.Contains(t, encoded, "%20")
	assert.Contains(t, encoded, "%0A")

	decoded, err := url.QueryUnescape(encoded)
	require.NoError(t, err)

	assert.Contains(t, decoded, "2x Crema Cotta de Morango - R$ 28.00")
	assert.Contains(t, decoded, "1x Strati di Moca - R$ 14.00")
	assert.Contains(t, decoded, "*Total: R$ 42.00*")
	assert.Contains(t, decoded, "Nome: Ana Silva")
	assert.Contains(t, decoded, "Data de entrega: 01/09/2026")
	assert.Contains(t, decoded, "Pedido: order-42")

	// Only the masked CPF travels in the link, first three digits visible.
	assert.NotContains(t, decoded, "52998224725")
	assert.Contains(t, decoded, "CPF: 529.***.***-**")
}

func TestOrderLinkWithoutShipping(t *testing.T) {
	b, err := NewBuilder("5511999998888")
	require.NoError(t, err)

	o := order.Order{
		ID:       "order-1",
		Items:    []order.Item{{Name: "Crema Cotta de Abacaxi", UnitPrice: decimal.RequireFromString("14.00"), Quantity: 1}},
		Customer: customer.Info{Name: "Bruno", CPF: "52998224725"},
		Total:    decimal.RequireFromString("14.00"),
	}

	decoded, err := url.QueryUnescape(strings.TrimPrefix(b.OrderLink(o), "https://wa.me/5511999998888?text="))
	require.NoError(t, err)
	assert.NotContains(t, decoded, "Entrega:")
	assert.NotContains(t, decoded, "Data de entrega:")
}
