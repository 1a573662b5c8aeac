package memory

import (
	"context"
	"sync"

	"github.com/vzdolci/storefront/internal/domain/payment"
)

// WebhookEventRepository records processed notification ids in memory.
type WebhookEventRepository struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewWebhookEventRepository() *WebhookEventRepository {
	return &WebhookEventRepository{seen: make(map[string]struct{})}
}

// MarkProcessed returns true the first time an id is seen.
func (r *WebhookEventRepository) MarkProcessed(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[id]; ok {
		return false, nil
	}
	r.seen[id] = struct{}{}
	return true, nil
}

// PaymentRepository keeps refreshed payment records in memory.
type PaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]payment.Info
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{payments: make(map[string]payment.Info)}
}

func (r *PaymentRepository) Upsert(_ context.Context, p payment.Info) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[p.PaymentID] = p
	return nil
}

func (r *PaymentRepository) GetByID(_ context.Context, id string) (payment.Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[id]
	return p, ok
}
