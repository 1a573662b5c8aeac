package cart

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vzdolci/storefront/internal/domain/catalog"
)

// ErrNotFound is returned when a cart id is unknown to both the in-memory
// store and the snapshot repository.
var ErrNotFound = errors.New("cart not found")

// SnapshotRepository persists cart snapshots. Save replaces any previous
// snapshot for the same id; Load returns ErrNotFound for unknown ids.
type SnapshotRepository interface {
	Save(ctx context.Context, s Snapshot) error
	Load(ctx context.Context, id string) (Snapshot, error)
}

const saveTimeout = 5 * time.Second

// Store owns the live carts. Mutations are applied in memory first and a
// snapshot write is scheduled after a debounce interval, so bursts of
// quantity changes collapse into one write. Persistence failures are logged
// and the cart keeps working in memory only.
type Store struct {
	repo     SnapshotRepository
	debounce time.Duration
	lg       *zap.Logger

	mu      sync.Mutex
	carts   map[string]*Cart
	pending map[string]*time.Timer
	closed  bool
}

// NewStore creates a Store flushing snapshots debounce after the last
// mutation.
func NewStore(repo SnapshotRepository, debounce time.Duration, lg *zap.Logger) *Store {
	return &Store{
		repo:     repo,
		debounce: debounce,
		lg:       lg,
		carts:    make(map[string]*Cart),
		pending:  make(map[string]*time.Timer),
	}
}

// Create makes a new empty cart and returns its snapshot.
func (s *Store) Create(_ context.Context) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := New(uuid.New().String())
	s.carts[c.ID] = c
	return c.Snapshot()
}

// Get returns the cart snapshot, loading it from the snapshot repository on
// a memory miss.
func (s *Store) Get(ctx context.Context, id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.lookup(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	return c.Snapshot(), nil
}

// Add increments the product line in the cart.
func (s *Store) Add(ctx context.Context, id string, p catalog.Product) (Snapshot, error) {
	return s.mutate(ctx, id, func(c *Cart) { c.Add(p) })
}

// Remove drops the product line from the cart.
func (s *Store) Remove(ctx context.Context, id, productID string) (Snapshot, error) {
	return s.mutate(ctx, id, func(c *Cart) { c.Remove(productID) })
}

// SetQuantity updates a line quantity; values below 1 are ignored.
func (s *Store) SetQuantity(ctx context.Context, id, productID string, n int) (Snapshot, error) {
	return s.mutate(ctx, id, func(c *Cart) { c.SetQuantity(productID, n) })
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context, id string) (Snapshot, error) {
	return s.mutate(ctx, id, func(c *Cart) { c.Clear() })
}

// Close flushes every pending snapshot synchronously. The store rejects
// further mutations afterwards.
func (s *Store) Close(ctx context.Context) {
	s.mu.Lock()
	s.closed = true
	dirty := make([]*Cart, 0, len(s.pending))
	for id, timer := range s.pending {
		timer.Stop()
		dirty = append(dirty, s.carts[id])
		delete(s.pending, id)
	}
	s.mu.Unlock()

	for _, c := range dirty {
		if c == nil {
			continue
		}
		if err := s.repo.Save(ctx, c.Snapshot()); err != nil {
			s.lg.Warn("cart snapshot flush failed", zap.String("cart_id", c.ID), zap.Error(err))
		}
	}
}

// mutate applies fn under the store lock and schedules a snapshot write.
func (s *Store) mutate(ctx context.Context, id string, fn func(*Cart)) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Snapshot{}, errors.New("cart store is closed")
	}
	c, err := s.lookup(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	fn(c)
	s.scheduleFlushLocked(id)
	return c.Snapshot(), nil
}

// lookup must be called with s.mu held.
func (s *Store) lookup(ctx context.Context, id string) (*Cart, error) {
	if c, ok := s.carts[id]; ok {
		return c, nil
	}
	snap, err := s.repo.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		s.lg.Warn("cart snapshot load failed", zap.String("cart_id", id), zap.Error(err))
		return nil, ErrNotFound
	}
	c := Restore(snap)
	s.carts[id] = c
	return c, nil
}

// scheduleFlushLocked (re)arms the debounce timer for the cart. Must be
// called with s.mu held.
func (s *Store) scheduleFlushLocked(id string) {
	if timer, ok := s.pending[id]; ok {
		timer.Reset(s.debounce)
		return
	}
	s.pending[id] = time.AfterFunc(s.debounce, func() {
		s.flush(id)
	})
}

func (s *Store) flush(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	c, ok := s.carts[id]
	var snap Snapshot
	if ok {
		snap = c.Snapshot()
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.repo.Save(ctx, snap); err != nil {
		// Best effort: the in-memory cart stays usable.
		s.lg.Warn("cart snapshot save failed", zap.String("cart_id", id), zap.Error(err))
	}
}
