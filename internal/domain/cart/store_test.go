package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vzdolci/storefront/internal/domain/catalog"
)

type repoMock struct {
	mu        sync.Mutex
	snapshots map[string]Snapshot
	saves     int
	failSaves bool
}

func newRepoMock() *repoMock {
	return &repoMock{snapshots: make(map[string]Snapshot)}
}

func (r *repoMock) Save(_ context.Context, s Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSaves {
		return errors.New("storage down")
	}
	r.snapshots[s.ID] = s
	r.saves++
	return nil
}

func (r *repoMock) Load(_ context.Context, id string) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.snapshots[id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return s, nil
}

func (r *repoMock) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func testProduct() catalog.Product {
	return catalog.Product{ID: "strati-di-moca", Name: "Strati di Moca", Price: decimal.RequireFromString("14.00")}
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newRepoMock()
	store := NewStore(repo, 10*time.Millisecond, zaptest.NewLogger(t))
	defer store.Close(ctx)

	snap := store.Create(ctx)
	require.NotEmpty(t, snap.ID)

	snap, err := store.Add(ctx, snap.ID, testProduct())
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreDebouncesSaves(t *testing.T) {
	ctx := context.Background()
	repo := newRepoMock()
	store := NewStore(repo, 20*time.Millisecond, zaptest.NewLogger(t))
	defer store.Close(ctx)

	snap := store.Create(ctx)
	for range 5 {
		_, err := store.Add(ctx, snap.ID, testProduct())
		require.NoError(t, err)
	}

	// A burst of mutations collapses into a single snapshot write.
	require.Eventually(t, func() bool {
		return repo.saveCount() == 1
	}, time.Second, 5*time.Millisecond)

	repo.mu.Lock()
	saved := repo.snapshots[snap.ID]
	repo.mu.Unlock()
	require.Len(t, saved.Items, 1)
	assert.Equal(t, 5, saved.Items[0].Quantity)
}

func TestStoreLoadsFromRepository(t *testing.T) {
	ctx := context.Background()
	repo := newRepoMock()
	repo.snapshots["cart-1"] = Snapshot{
		ID:    "cart-1",
		Items: []Item{{Product: testProduct(), Quantity: 2}},
	}

	store := NewStore(repo, time.Minute, zaptest.NewLogger(t))
	defer store.Close(ctx)

	snap, err := store.Get(ctx, "cart-1")
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 2, snap.Items[0].Quantity)
}

func TestStoreSurvivesSaveFailure(t *testing.T) {
	ctx := context.Background()
	repo := newRepoMock()
	repo.failSaves = true

	store := NewStore(repo, 5*time.Millisecond, zaptest.NewLogger(t))
	defer store.Close(ctx)

	snap := store.Create(ctx)
	_, err := store.Add(ctx, snap.ID, testProduct())
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	// The cart keeps working in memory after the failed flush.
	got, err := store.Get(ctx, snap.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)
}

func TestStoreCloseFlushes(t *testing.T) {
	ctx := context.Background()
	repo := newRepoMock()
	store := NewStore(repo, time.Hour, zaptest.NewLogger(t))

	snap := store.Create(ctx)
	_, err := store.Add(ctx, snap.ID, testProduct())
	require.NoError(t, err)

	store.Close(ctx)
	assert.Equal(t, 1, repo.saveCount(), "pending snapshot flushed synchronously")

	_, err = store.Add(ctx, snap.ID, testProduct())
	assert.Error(t, err, "mutations rejected after close")
}
