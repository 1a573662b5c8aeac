package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vzdolci/storefront/internal/domain/cart"
)

var _ cart.SnapshotRepository = (*CartRepository)(nil)

// CartRepository persists cart snapshots so carts survive restarts.
type CartRepository struct {
	pool *pgxpool.Pool
}

func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Save replaces the stored snapshot for the cart.
func (r *CartRepository) Save(ctx context.Context, s cart.Snapshot) error {
	items, err := json.Marshal(s.Items)
	if err != nil {
		return fmt.Errorf("marshaling cart items: %w", err)
	}

	query, args, err := qb.Insert("cart_snapshots").
		Columns("id", "items", "updated_at").
		Values(s.ID, items, time.Now()).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			items = EXCLUDED.items,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building cart upsert: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("saving cart %q: %w", s.ID, err)
	}
	return nil
}

// Load returns the stored snapshot, or cart.ErrNotFound.
func (r *CartRepository) Load(ctx context.Context, id string) (cart.Snapshot, error) {
	query, args, err := qb.Select("items").
		From("cart_snapshots").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return cart.Snapshot{}, fmt.Errorf("building cart select: %w", err)
	}

	var items []byte
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&items); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cart.Snapshot{}, cart.ErrNotFound
		}
		return cart.Snapshot{}, fmt.Errorf("loading cart %q: %w", id, err)
	}

	s := cart.Snapshot{ID: id}
	if err := json.Unmarshal(items, &s.Items); err != nil {
		return cart.Snapshot{}, fmt.Errorf("decoding cart %q items: %w", id, err)
	}
	return s, nil
}
