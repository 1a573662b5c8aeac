package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WebhookEventRepository records processed webhook notification ids. The
// primary key makes duplicate detection a single idempotent insert.
type WebhookEventRepository struct {
	pool *pgxpool.Pool
}

func NewWebhookEventRepository(pool *pgxpool.Pool) *WebhookEventRepository {
	return &WebhookEventRepository{pool: pool}
}

// MarkProcessed inserts the notification id and reports whether it was new.
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, id string) (bool, error) {
	query, args, err := qb.Insert("webhook_events").
		Columns("id", "received_at").
		Values(id, time.Now()).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("building webhook event insert: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("recording webhook event %q: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}
