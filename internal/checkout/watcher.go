package checkout

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vzdolci/storefront/internal/domain/payment"
)

// startWatcherLocked launches the payment watcher for s. The caller holds the
// manager mutex. The watcher is the single owner of the polling loop; any
// previous watcher for the session must already be stopped.
func (m *Manager) startWatcherLocked(s *session, p payment.Info) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelWatch = cancel
	go m.watch(ctx, s.id, p)
}

// watch polls the gateway until the payment reaches a terminal status, the
// payment expires, the failure budget runs out, or the watcher is cancelled.
// Polls run strictly one at a time.
func (m *Manager) watch(ctx context.Context, sessionID string, p payment.Info) {
	lg := m.lg.With(
		zap.String("session_id", sessionID),
		zap.String("payment_id", p.PaymentID))

	expiry := time.NewTimer(p.TimeToExpire(time.Now()))
	defer expiry.Stop()

	initial := time.NewTimer(m.opts.InitialDelay)
	defer initial.Stop()
	select {
	case <-ctx.Done():
		return
	case <-expiry.C:
		m.expireSession(sessionID, lg)
		return
	case <-initial.C:
	}

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		info, err := m.gateway.GetPayment(ctx, p.PaymentID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			failures++
			lg.Warn("payment poll failed",
				zap.Int("consecutive_failures", failures),
				zap.Error(err))
			if failures >= m.opts.MaxFailures {
				m.failSession(sessionID, "Não foi possível verificar o pagamento. Verifique seu pedido pelo WhatsApp.", lg)
				return
			}
		} else {
			failures = 0
			if m.applyPoll(ctx, sessionID, info, lg) {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-expiry.C:
			m.expireSession(sessionID, lg)
			return
		case <-ticker.C:
		}
	}
}

// applyPoll folds one gateway response into the session. It returns true
// when the watcher should stop.
func (m *Manager) applyPoll(ctx context.Context, sessionID string, info payment.Info, lg *zap.Logger) bool {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok || s.state != StateAwaitingConfirmation {
		m.mu.Unlock()
		return true
	}
	p := info
	s.payment = &p
	s.updatedAt = time.Now()
	orderID, cartID := s.orderID, s.cartID
	m.mu.Unlock()

	switch {
	case info.Status.IsSuccessful():
		lg.Info("payment approved", zap.String("status", string(info.Status)))
		// Hold the confirmation screen briefly before finalizing.
		select {
		case <-ctx.Done():
			return true
		case <-time.After(m.opts.ConfirmDelay):
		}
		m.finalize(ctx, sessionID, orderID, cartID, info, lg)
		return true

	case info.Status.IsFailed(), info.Status.IsReversed():
		lg.Info("payment failed", zap.String("status", string(info.Status)))
		m.savePayment(ctx, orderID, info, lg)
		m.failSession(sessionID, "Pagamento não aprovado. Tente novamente ou finalize pelo WhatsApp.", lg)
		return true

	default:
		return false
	}
}

// finalize marks the session approved, persists the paid order, and clears
// the cart.
func (m *Manager) finalize(ctx context.Context, sessionID, orderID, cartID string, info payment.Info, lg *zap.Logger) {
	m.mu.Lock()
	if s, ok := m.sessions[sessionID]; ok && s.state == StateAwaitingConfirmation {
		p := info
		s.payment = &p
		s.cancelWatch = nil
		s.setState(StateApproved)
	}
	m.mu.Unlock()

	m.savePayment(ctx, orderID, info, lg)
	if _, err := m.carts.Clear(ctx, cartID); err != nil {
		lg.Warn("clear cart failed", zap.String("cart_id", cartID), zap.Error(err))
	}
	lg.Info("checkout approved", zap.String("order_id", orderID))
}

// savePayment persists the latest payment record on the backing order.
func (m *Manager) savePayment(ctx context.Context, orderID string, info payment.Info, lg *zap.Logger) {
	o, err := m.orders.Get(ctx, orderID)
	if err != nil {
		lg.Warn("load order failed", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	if err := m.orders.Save(ctx, o.WithPayment(info)); err != nil {
		lg.Warn("persist order payment failed", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (m *Manager) expireSession(sessionID string, lg *zap.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.state != StateAwaitingConfirmation {
		return
	}
	s.cancelWatch = nil
	s.message = "Pagamento expirado. Gere um novo QR Code para tentar de novo."
	s.setState(StateExpired)
	lg.Info("payment expired")
}

func (m *Manager) failSession(sessionID, message string, lg *zap.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.state != StateAwaitingConfirmation {
		return
	}
	s.cancelWatch = nil
	s.message = message
	s.setState(StateFailed)
	lg.Info("checkout failed")
}
