package payment

import "github.com/go-faster/errors"

// Status is a payment state as reported by the gateway. The set is closed;
// use ParseStatus to validate external input.
type Status string

const (
	StatusPending     Status = "pending"
	StatusAuthorized  Status = "authorized"
	StatusInProcess   Status = "in_process"
	StatusInMediation Status = "in_mediation"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusCancelled   Status = "cancelled"
	StatusRefunded    Status = "refunded"
	StatusChargedBack Status = "charged_back"
)

// statusTraits is the behavioral lookup table for the closed status set.
type statusTraits struct {
	label      string
	successful bool
	pending    bool
	failed     bool
	reversed   bool
	// customerAction marks states where the customer still has to act
	// (unpaid PIX, open dispute).
	customerAction bool
}

var statuses = map[Status]statusTraits{
	StatusPending:     {label: "Pendente", pending: true, customerAction: true},
	StatusAuthorized:  {label: "Autorizado", pending: true},
	StatusInProcess:   {label: "Em Processamento", pending: true},
	StatusInMediation: {label: "Em Mediação", customerAction: true},
	StatusApproved:    {label: "Aprovado", successful: true},
	StatusRejected:    {label: "Rejeitado", failed: true},
	StatusCancelled:   {label: "Cancelado", failed: true},
	StatusRefunded:    {label: "Reembolsado", reversed: true},
	StatusChargedBack: {label: "Estornado", reversed: true},
}

// ErrUnknownStatus is returned by ParseStatus for codes outside the set.
var ErrUnknownStatus = errors.New("unknown payment status")

// ParseStatus validates a gateway status code.
func ParseStatus(code string) (Status, error) {
	s := Status(code)
	if _, ok := statuses[s]; !ok {
		return "", errors.Wrapf(ErrUnknownStatus, "%q", code)
	}
	return s, nil
}

// Label returns the pt-BR display label for the status.
func (s Status) Label() string { return statuses[s].label }

// IsSuccessful reports whether the payment is credited.
func (s Status) IsSuccessful() bool { return statuses[s].successful }

// IsPending reports whether the payment is still moving through the gateway.
func (s Status) IsPending() bool { return statuses[s].pending }

// IsFailed reports whether the payment was rejected or cancelled.
func (s Status) IsFailed() bool { return statuses[s].failed }

// IsReversed reports whether the money went back to the customer.
func (s Status) IsReversed() bool { return statuses[s].reversed }

// RequiresCustomerAction reports whether the customer must still act.
func (s Status) RequiresCustomerAction() bool { return statuses[s].customerAction }

// IsTerminal reports whether polling for this payment should stop: the status
// will not advance further on its own.
func (s Status) IsTerminal() bool {
	t := statuses[s]
	return t.successful || t.failed || t.reversed
}
