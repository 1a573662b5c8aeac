package payment

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Method is a payment method accepted by the storefront.
type Method string

const (
	MethodCreditCard   Method = "credit_card"
	MethodDebitCard    Method = "debit_card"
	MethodPix          Method = "pix"
	MethodBoleto       Method = "boleto"
	MethodAccountMoney Method = "account_money"
	// MethodWhatsApp is the manual path: the order is agreed over chat and
	// never touches the gateway.
	MethodWhatsApp Method = "whatsapp"
)

type methodTraits struct {
	label         string
	installments  bool
	processing    bool
	instantaneous bool
	manual        bool
	expires       bool
	feeRate       string
}

// defaultFeeRate applies to methods without a negotiated rate.
const defaultFeeRate = "0.05"

var methods = map[Method]methodTraits{
	MethodCreditCard:   {label: "Cartão de Crédito", installments: true, processing: true, feeRate: "0.0499"},
	MethodDebitCard:    {label: "Cartão de Débito", processing: true, feeRate: "0.0349"},
	MethodPix:          {label: "PIX", instantaneous: true, feeRate: "0.0099"},
	MethodBoleto:       {label: "Boleto Bancário", expires: true, feeRate: "0.0349"},
	MethodAccountMoney: {label: "Saldo Mercado Pago", instantaneous: true},
	MethodWhatsApp:     {label: "WhatsApp", manual: true},
}

// ErrUnknownMethod is returned by ParseMethod for identifiers outside the set.
var ErrUnknownMethod = errors.New("unknown payment method")

// ParseMethod validates a payment method identifier.
func ParseMethod(id string) (Method, error) {
	m := Method(id)
	if _, ok := methods[m]; !ok {
		return "", errors.Wrapf(ErrUnknownMethod, "%q", id)
	}
	return m, nil
}

// Label returns the pt-BR display label for the method.
func (m Method) Label() string { return methods[m].label }

// AllowsInstallments reports whether the method supports parcelamento.
func (m Method) AllowsInstallments() bool { return methods[m].installments }

// IsInstantaneous reports whether settlement is immediate.
func (m Method) IsInstantaneous() bool { return methods[m].instantaneous }

// IsManual reports whether the method bypasses the gateway.
func (m Method) IsManual() bool { return methods[m].manual }

// RequiresProcessing reports whether the gateway performs risk analysis.
func (m Method) RequiresProcessing() bool { return methods[m].processing }

// HasExpirationDate reports whether the method carries its own due date.
func (m Method) HasExpirationDate() bool { return methods[m].expires }

// ProcessingFee returns the gateway fee charged on amount for this method.
func (m Method) ProcessingFee(amount decimal.Decimal) decimal.Decimal {
	rate := methods[m].feeRate
	if rate == "" {
		rate = defaultFeeRate
	}
	return amount.Mul(decimal.RequireFromString(rate))
}
