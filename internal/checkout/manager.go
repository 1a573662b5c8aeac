package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vzdolci/storefront/internal/domain/cart"
	"github.com/vzdolci/storefront/internal/domain/customer"
	"github.com/vzdolci/storefront/internal/domain/order"
	"github.com/vzdolci/storefront/internal/domain/payment"
	"github.com/vzdolci/storefront/internal/domain/shipping"
	"github.com/vzdolci/storefront/internal/gateway/mercadopago"
	"github.com/vzdolci/storefront/internal/whatsapp"
)

// Checkout errors surfaced to handlers.
var (
	ErrSessionNotFound  = errors.New("sessão de checkout não encontrada")
	ErrCustomerRequired = errors.New("Preencha os dados do cliente antes de continuar")
	ErrNoQRCode         = errors.New("QR Code PIX indisponível, tente novamente")
)

// TransitionError reports an operation attempted in the wrong state.
type TransitionError struct {
	Op    string
	State State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("operação %s inválida no estado %s", e.Op, e.State)
}

// Gateway is the slice of the payment gateway the checkout needs.
type Gateway interface {
	CreatePayment(ctx context.Context, req mercadopago.CreatePaymentRequest) (payment.Info, error)
	GetPayment(ctx context.Context, id string) (payment.Info, error)
}

// CartStore is the slice of the cart store the checkout needs.
type CartStore interface {
	Get(ctx context.Context, id string) (cart.Snapshot, error)
	Clear(ctx context.Context, id string) (cart.Snapshot, error)
}

// Options tunes the checkout timing. Zero values take the production
// defaults; tests shrink them.
type Options struct {
	// InitialDelay before the first gateway poll after a PIX is created.
	InitialDelay time.Duration
	// PollInterval between gateway polls.
	PollInterval time.Duration
	// ConfirmDelay between seeing an approved payment and finalizing, so
	// the customer sees the confirmation screen settle.
	ConfirmDelay time.Duration
	// MaxFailures is the consecutive poll failure budget before the
	// session is failed.
	MaxFailures int
	// SessionTTL evicts idle sessions.
	SessionTTL time.Duration
	// CleanupInterval between eviction sweeps.
	CleanupInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.InitialDelay <= 0 {
		o.InitialDelay = 5 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.ConfirmDelay <= 0 {
		o.ConfirmDelay = 3 * time.Second
	}
	if o.MaxFailures <= 0 {
		o.MaxFailures = 5
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = 2 * time.Hour
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = time.Minute
	}
	return o
}

// Manager owns all live checkout sessions and their payment watchers.
type Manager struct {
	gateway Gateway
	orders  *order.Service
	carts   CartStore
	wa      *whatsapp.Builder
	opts    Options
	lg      *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewManager wires the checkout. gateway and wa may be nil when the matching
// credentials are not configured; the corresponding flows then fail with a
// configuration error while the rest keeps working.
func NewManager(gateway Gateway, orders *order.Service, carts CartStore, wa *whatsapp.Builder, opts Options, lg *zap.Logger) *Manager {
	m := &Manager{
		gateway:  gateway,
		orders:   orders,
		carts:    carts,
		wa:       wa,
		opts:     opts.withDefaults(),
		lg:       lg.Named("checkout"),
		sessions: make(map[string]*session),
		stopped:  make(chan struct{}),
	}
	go m.janitor()
	return m
}

// Close cancels all watchers and the eviction sweep.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stopped) })

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.stopWatch()
	}
}

// Start opens a new session for the given cart.
func (m *Manager) Start(ctx context.Context, cartID string) (Session, error) {
	if _, err := m.carts.Get(ctx, cartID); err != nil {
		return Session{}, errors.Wrap(err, "load cart")
	}

	now := time.Now()
	s := &session{
		id:        uuid.New().String(),
		cartID:    cartID,
		state:     StateEnteringCustomerData,
		createdAt: now,
		updatedAt: now,
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.lg.Info("session started",
		zap.String("session_id", s.id),
		zap.String("cart_id", cartID))
	return s.snapshot(), nil
}

// Get returns the current session snapshot.
func (m *Manager) Get(id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s.snapshot(), nil
}

// SetCustomer validates and stores customer data, advancing the session to
// method selection.
func (m *Manager) SetCustomer(id string, info customer.Info) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	switch s.state {
	case StateEnteringCustomerData, StateMethodSelected:
	default:
		return Session{}, &TransitionError{Op: "dados do cliente", State: s.state}
	}

	c := info
	s.customer = &c
	s.message = ""
	s.setState(StateMethodSelected)
	return s.snapshot(), nil
}

// StartPix creates (or retries) a PIX payment for the session. The order id
// is minted on the first attempt and reused on retries, so the gateway
// idempotency key stays stable and a double charge is impossible.
func (m *Manager) StartPix(ctx context.Context, id string) (Session, error) {
	if m.gateway == nil {
		return Session{}, mercadopago.ErrNotConfigured
	}

	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return Session{}, ErrSessionNotFound
	}
	switch s.state {
	case StateMethodSelected, StateExpired, StateFailed:
	default:
		m.mu.Unlock()
		return Session{}, &TransitionError{Op: "pagamento PIX", State: s.state}
	}
	if s.customer == nil {
		m.mu.Unlock()
		return Session{}, ErrCustomerRequired
	}
	s.stopWatch()
	s.method = payment.MethodPix
	s.message = ""
	s.setState(StateAwaitingPaymentCreation)
	cartID, cust, orderID := s.cartID, *s.customer, s.orderID
	m.mu.Unlock()

	o, err := m.buildOrder(ctx, cartID, cust, orderID)
	if err != nil {
		m.revert(id, StateMethodSelected)
		return Session{}, err
	}

	// Pin the order id before the gateway call. A create that fails
	// client-side may still have gone through upstream; the retry must
	// present the same idempotency key.
	m.mu.Lock()
	if s, ok := m.sessions[id]; ok {
		s.orderID = o.ID
	}
	m.mu.Unlock()

	firstName, lastName := splitName(cust.Name)
	info, err := m.gateway.CreatePayment(ctx, mercadopago.CreatePaymentRequest{
		OrderID:     o.ID,
		Amount:      o.Total,
		Method:      payment.MethodPix,
		Description: "Pedido VZ Dolci",
		Payer: mercadopago.Payer{
			Email:     cust.Email,
			FirstName: firstName,
			LastName:  lastName,
			CPF:       cust.CPF,
		},
	})
	if err != nil {
		m.revert(id, StateMethodSelected)
		return Session{}, errors.Wrap(err, "create pix payment")
	}
	if !info.HasQRCode() {
		m.revert(id, StateMethodSelected)
		return Session{}, ErrNoQRCode
	}

	updated := o.WithPayment(info)
	if err := m.orders.Save(ctx, updated); err != nil {
		m.lg.Warn("persist order payment failed",
			zap.String("order_id", o.ID), zap.Error(err))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok = m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	p := info
	s.payment = &p
	s.setState(StateAwaitingConfirmation)
	m.startWatcherLocked(s, info)

	m.lg.Info("pix payment created",
		zap.String("session_id", id),
		zap.String("order_id", o.ID),
		zap.String("payment_id", info.PaymentID))
	return s.snapshot(), nil
}

// StartWhatsApp builds the chat handoff link and parks the session in manual
// confirmation. A missing WhatsApp configuration leaves the session in
// method selection.
func (m *Manager) StartWhatsApp(ctx context.Context, id string) (Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return Session{}, ErrSessionNotFound
	}
	switch s.state {
	case StateMethodSelected, StateExpired, StateFailed:
	default:
		m.mu.Unlock()
		return Session{}, &TransitionError{Op: "pedido por WhatsApp", State: s.state}
	}
	if s.customer == nil {
		m.mu.Unlock()
		return Session{}, ErrCustomerRequired
	}
	if m.wa == nil {
		m.mu.Unlock()
		return Session{}, whatsapp.ErrNotConfigured
	}
	s.stopWatch()
	s.method = payment.MethodWhatsApp
	s.message = ""
	s.setState(StateExternalHandoff)
	cartID, cust, orderID := s.cartID, *s.customer, s.orderID
	m.mu.Unlock()

	o, err := m.buildOrder(ctx, cartID, cust, orderID)
	if err != nil {
		m.revert(id, StateMethodSelected)
		return Session{}, err
	}
	link := m.wa.OrderLink(*o)

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok = m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	s.orderID = o.ID
	s.whatsAppLink = link
	s.setState(StateAwaitingManualConfirmation)

	m.lg.Info("whatsapp handoff",
		zap.String("session_id", id),
		zap.String("order_id", o.ID))
	return s.snapshot(), nil
}

// ConfirmWhatsApp completes the session when the customer confirms sending
// the order over chat, or reverts to method selection when they back out.
func (m *Manager) ConfirmWhatsApp(ctx context.Context, id string, confirmed bool) (Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return Session{}, ErrSessionNotFound
	}
	switch s.state {
	case StateExternalHandoff, StateAwaitingManualConfirmation:
	default:
		m.mu.Unlock()
		return Session{}, &TransitionError{Op: "confirmação do WhatsApp", State: s.state}
	}

	if !confirmed {
		s.whatsAppLink = ""
		s.setState(StateMethodSelected)
		snap := s.snapshot()
		m.mu.Unlock()
		return snap, nil
	}

	s.setState(StateApproved)
	cartID := s.cartID
	snap := s.snapshot()
	m.mu.Unlock()

	if _, err := m.carts.Clear(ctx, cartID); err != nil {
		m.lg.Warn("clear cart failed", zap.String("cart_id", cartID), zap.Error(err))
	}
	m.lg.Info("whatsapp order confirmed", zap.String("session_id", id))
	return snap, nil
}

// Cancel stops any watcher and resets the session. The cart is untouched so
// the customer can check out again.
func (m *Manager) Cancel(id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	s.stopWatch()
	s.payment = nil
	s.whatsAppLink = ""
	s.method = ""
	s.message = ""
	if s.customer != nil {
		s.setState(StateMethodSelected)
	} else {
		s.setState(StateEnteringCustomerData)
	}

	m.lg.Info("session cancelled", zap.String("session_id", id))
	return s.snapshot(), nil
}

// buildOrder snapshots the cart and creates (or recreates under the same id)
// the order backing this checkout attempt.
func (m *Manager) buildOrder(ctx context.Context, cartID string, cust customer.Info, orderID string) (*order.Order, error) {
	snap, err := m.carts.Get(ctx, cartID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}

	o, err := m.orders.Create(ctx, order.CreateRequest{
		ID:       orderID,
		Items:    snap.Items,
		Customer: cust,
		Shipping: shipping.Provisional(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// revert moves the session back without touching watcher or payment state.
func (m *Manager) revert(id string, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.setState(state)
	}
}

// janitor evicts sessions idle past the TTL.
func (m *Manager) janitor() {
	ticker := time.NewTicker(m.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopped:
			return
		case <-ticker.C:
		}

		cutoff := time.Now().Add(-m.opts.SessionTTL)
		m.mu.Lock()
		for id, s := range m.sessions {
			if s.updatedAt.Before(cutoff) {
				s.stopWatch()
				delete(m.sessions, id)
			}
		}
		m.mu.Unlock()
	}
}

// splitName separates a full name into the first/last pair the gateway
// expects.
func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
