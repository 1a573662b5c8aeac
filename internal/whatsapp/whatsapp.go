// Package whatsapp builds the wa.me handoff link used when the customer
// prefers to close the order over chat instead of paying online.
package whatsapp

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-faster/errors"

	"github.com/vzdolci/storefront/internal/domain/customer"
	"github.com/vzdolci/storefront/internal/domain/order"
)

// ErrNotConfigured is returned when no destination number is set.
var ErrNotConfigured = errors.New("número de WhatsApp não configurado")

// Builder renders order summaries into wa.me links.
type Builder struct {
	number string
}

// NewBuilder accepts the destination number in international format, digits
// only (e.g. 5511999998888).
func NewBuilder(number string) (*Builder, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if len(digits) < 10 {
		return nil, ErrNotConfigured
	}
	return &Builder{number: digits}, nil
}

// OrderLink renders the order into a pre-filled wa.me chat link. The CPF is
// masked so the full document never travels in a URL.
func (b *Builder) OrderLink(o order.Order) string {
	var msg strings.Builder

	msg.WriteString("Olá! Gostaria de fazer um pedido:\n\n")
	for _, item := range o.Items {
		fmt.Fprintf(&msg, "• %dx %s - R$ %s\n", item.Quantity, item.Name, item.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(&msg, "\n*Total: R$ %s*\n\n", o.Total.StringFixed(2))

	fmt.Fprintf(&msg, "Nome: %s\n", o.Customer.Name)
	fmt.Fprintf(&msg, "CPF: %s\n", customer.MaskCPF(o.Customer.CPF))
	if o.Customer.Phone != "" {
		fmt.Fprintf(&msg, "Telefone: %s\n", o.Customer.Phone)
	}

	if o.Shipping.Street != "" {
		fmt.Fprintf(&msg, "\nEntrega: %s, %s", o.Shipping.Street, o.Shipping.Number)
		if o.Shipping.Complement != "" {
			fmt.Fprintf(&msg, " (%s)", o.Shipping.Complement)
		}
		fmt.Fprintf(&msg, " - %s, %s/%s\n", o.Shipping.District, o.Shipping.City, o.Shipping.State)
	}
	if !o.Shipping.DeliveryDate.IsZero() {
		fmt.Fprintf(&msg, "Data de entrega: %s\n", o.Shipping.DeliveryDate.Format("02/01/2006"))
	}

	fmt.Fprintf(&msg, "\nPedido: %s", o.ID)

	return "https://wa.me/" + b.number + "?text=" + encodeMessage(msg.String())
}

// encodeMessage percent-encodes the chat text. WhatsApp does not decode "+"
// as space, so spaces must be %20.
func encodeMessage(msg string) string {
	return strings.ReplaceAll(url.QueryEscape(msg), "+", "%20")
}
