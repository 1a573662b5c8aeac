package memory

import (
	"context"
	"sync"

	"github.com/vzdolci/storefront/internal/domain/cart"
)

var _ cart.SnapshotRepository = (*CartRepository)(nil)

// CartRepository keeps cart snapshots in process memory. It backs the cart
// store when no database is configured.
type CartRepository struct {
	mu        sync.RWMutex
	snapshots map[string]cart.Snapshot
}

func NewCartRepository() *CartRepository {
	return &CartRepository{snapshots: make(map[string]cart.Snapshot)}
}

func (r *CartRepository) Save(_ context.Context, s cart.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[s.ID] = s
	return nil
}

func (r *CartRepository) Load(_ context.Context, id string) (cart.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.snapshots[id]
	if !ok {
		return cart.Snapshot{}, cart.ErrNotFound
	}
	return s, nil
}
