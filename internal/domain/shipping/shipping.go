// Package shipping defines the ShippingInfo value object. Deliveries need at
// least 24 hours of lead time and do not happen on weekends.
package shipping

import (
	"strings"
	"time"

	"github.com/vzdolci/storefront/internal/domain"
)

// MinLeadTime is the minimum interval between order placement and delivery.
const MinLeadTime = 24 * time.Hour

// provisionalLeadTime is used when the checkout has not collected a real
// address yet: delivery is proposed two days out, skipping weekends. The
// final address is confirmed with the customer after payment.
const provisionalLeadTime = 48 * time.Hour

// Params carries raw shipping input.
type Params struct {
	Street       string
	Number       string
	District     string
	City         string
	State        string
	PostalCode   string
	DeliveryDate time.Time
	Complement   string
	Instructions string
}

// Info holds validated shipping data.
type Info struct {
	Street       string    `json:"street"`
	Number       string    `json:"number"`
	District     string    `json:"district"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	PostalCode   string    `json:"postalCode"`
	DeliveryDate time.Time `json:"deliveryDate"`
	Complement   string    `json:"complement"`
	Instructions string    `json:"instructions"`
}

// New validates shipping data against the current clock.
func New(p Params) (Info, error) {
	return newAt(p, time.Now())
}

func newAt(p Params, now time.Time) (Info, error) {
	street := strings.TrimSpace(p.Street)
	if street == "" {
		return Info{}, domain.Invalid("street", "Endereço é obrigatório")
	}
	number := strings.TrimSpace(p.Number)
	if number == "" {
		return Info{}, domain.Invalid("number", "Número do endereço é obrigatório")
	}
	district := strings.TrimSpace(p.District)
	if district == "" {
		return Info{}, domain.Invalid("district", "Bairro é obrigatório")
	}
	city := strings.TrimSpace(p.City)
	if city == "" {
		return Info{}, domain.Invalid("city", "Cidade é obrigatória")
	}
	state := strings.ToUpper(strings.TrimSpace(p.State))
	if state == "" {
		return Info{}, domain.Invalid("state", "Estado é obrigatório")
	}
	cep := digitsOnly(p.PostalCode)
	if len(cep) != 8 {
		return Info{}, domain.Invalid("postalCode", "CEP inválido")
	}

	if p.DeliveryDate.IsZero() {
		return Info{}, domain.Invalid("deliveryDate", "Data de entrega é obrigatória")
	}
	if p.DeliveryDate.Sub(now) < MinLeadTime {
		return Info{}, domain.Invalid("deliveryDate", "A entrega precisa de no mínimo 24h de antecedência")
	}
	if wd := p.DeliveryDate.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return Info{}, domain.Invalid("deliveryDate", "Entregas são feitas apenas em dias úteis")
	}

	return Info{
		Street:       street,
		Number:       number,
		District:     district,
		City:         city,
		State:        state,
		PostalCode:   cep,
		DeliveryDate: p.DeliveryDate,
		Complement:   strings.TrimSpace(p.Complement),
		Instructions: strings.TrimSpace(p.Instructions),
	}, nil
}

// Provisional builds a placeholder shipping record used when the checkout
// collects only contact data. The delivery date is the first business day at
// least two days out.
func Provisional() Info {
	return provisionalAt(time.Now())
}

func provisionalAt(now time.Time) Info {
	date := NextBusinessDay(now.Add(provisionalLeadTime))
	info, err := newAt(Params{
		Street:       "Endereço a combinar",
		Number:       "S/N",
		District:     "Centro",
		City:         "São Paulo",
		State:        "SP",
		PostalCode:   "01000000",
		DeliveryDate: date,
		Instructions: "Confirmaremos endereço e entrega após o pagamento",
	}, now)
	if err != nil {
		// The placeholder satisfies every rule by construction.
		panic(err)
	}
	return info
}

// NextBusinessDay returns t unchanged when it falls on a weekday, otherwise
// the following Monday at the same clock time.
func NextBusinessDay(t time.Time) time.Time {
	for {
		wd := t.Weekday()
		if wd != time.Saturday && wd != time.Sunday {
			return t
		}
		t = t.AddDate(0, 0, 1)
	}
}

func digitsOnly(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
