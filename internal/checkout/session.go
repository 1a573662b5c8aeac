// Package checkout implements the server-side checkout state machine. Each
// session walks a cart through customer data entry, payment method selection,
// and either a PIX payment watched against the gateway or a WhatsApp handoff
// confirmed manually.
package checkout

import (
	"time"

	"github.com/vzdolci/storefront/internal/domain/customer"
	"github.com/vzdolci/storefront/internal/domain/payment"
)

// State is a checkout session state.
type State string

const (
	// StateEnteringCustomerData is the entry state. The session cannot
	// advance until customer data validates.
	StateEnteringCustomerData State = "entering_customer_data"
	// StateMethodSelected means customer data is in and a payment method
	// can be started.
	StateMethodSelected State = "method_selected"
	// StateAwaitingPaymentCreation covers the gateway round trip that
	// creates a PIX payment.
	StateAwaitingPaymentCreation State = "awaiting_payment_creation"
	// StateAwaitingConfirmation means a PIX QR code is on screen and the
	// watcher is polling the gateway.
	StateAwaitingConfirmation State = "awaiting_confirmation"
	// StateExternalHandoff covers building the WhatsApp deep link.
	StateExternalHandoff State = "external_handoff"
	// StateAwaitingManualConfirmation means the customer was handed off to
	// WhatsApp and has not yet confirmed sending the order.
	StateAwaitingManualConfirmation State = "awaiting_manual_confirmation"

	// Terminal states.
	StateApproved State = "approved"
	StateFailed   State = "failed"
	StateExpired  State = "expired"
)

// IsTerminal reports whether no further transitions are possible except a
// retry from expired or failed.
func (s State) IsTerminal() bool {
	switch s {
	case StateApproved, StateFailed, StateExpired:
		return true
	}
	return false
}

// Session is the read model handed to HTTP handlers. It is a copy; mutating
// it has no effect on the live session.
type Session struct {
	ID           string         `json:"id"`
	CartID       string         `json:"cartId"`
	State        State          `json:"state"`
	Customer     *customer.Info `json:"customer,omitempty"`
	Method       payment.Method `json:"method,omitempty"`
	OrderID      string         `json:"orderId,omitempty"`
	Payment      *payment.Info  `json:"payment,omitempty"`
	WhatsAppLink string         `json:"whatsAppLink,omitempty"`
	Message      string         `json:"message,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// session is the live, manager-owned record. All access goes through the
// manager mutex; the watcher goroutine never touches it directly.
type session struct {
	id           string
	cartID       string
	state        State
	customer     *customer.Info
	method       payment.Method
	orderID      string
	payment      *payment.Info
	whatsAppLink string
	message      string
	createdAt    time.Time
	updatedAt    time.Time

	// cancelWatch stops the payment watcher owning this session, if any.
	cancelWatch func()
}

func (s *session) snapshot() Session {
	snap := Session{
		ID:           s.id,
		CartID:       s.cartID,
		State:        s.state,
		Method:       s.method,
		OrderID:      s.orderID,
		WhatsAppLink: s.whatsAppLink,
		Message:      s.message,
		CreatedAt:    s.createdAt,
		UpdatedAt:    s.updatedAt,
	}
	if s.customer != nil {
		c := *s.customer
		snap.Customer = &c
	}
	if s.payment != nil {
		p := *s.payment
		snap.Payment = &p
	}
	return snap
}

func (s *session) setState(state State) {
	s.state = state
	s.updatedAt = time.Now()
}

// stopWatch cancels the active watcher, if any. Callers hold the manager
// mutex.
func (s *session) stopWatch() {
	if s.cancelWatch != nil {
		s.cancelWatch()
		s.cancelWatch = nil
	}
}
