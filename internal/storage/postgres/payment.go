package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vzdolci/storefront/internal/domain/payment"
)

// ErrPaymentNotFound is returned for unknown payment ids.
var ErrPaymentNotFound = errors.New("payment not found")

// PaymentRepository stores the latest known gateway state per payment.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Upsert replaces the stored record with the fresh gateway state.
func (r *PaymentRepository) Upsert(ctx context.Context, p payment.Info) error {
	query, args, err := qb.Insert("payments").
		Columns("id", "order_id", "status", "method", "amount", "currency",
			"qr_code", "qr_code_base64", "created_at", "expires_at", "refreshed_at").
		Values(p.PaymentID, p.OrderID, string(p.Status), string(p.Method), p.Amount, p.Currency,
			p.QRCode, p.QRCodeBase64, p.CreatedAt, p.ExpiresAt, time.Now()).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			order_id = EXCLUDED.order_id,
			status = EXCLUDED.status,
			qr_code = EXCLUDED.qr_code,
			qr_code_base64 = EXCLUDED.qr_code_base64,
			expires_at = EXCLUDED.expires_at,
			refreshed_at = EXCLUDED.refreshed_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building payment upsert: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting payment %q: %w", p.PaymentID, err)
	}
	return nil
}

// GetByID loads the stored payment record.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (payment.Info, error) {
	query, args, err := qb.Select("id", "order_id", "status", "method", "amount", "currency",
		"qr_code", "qr_code_base64", "created_at", "expires_at").
		From("payments").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return payment.Info{}, fmt.Errorf("building payment select: %w", err)
	}

	var (
		p      payment.Info
		status string
		method string
		amount decimal.Decimal
	)
	row := r.pool.QueryRow(ctx, query, args...)
	if err := row.Scan(&p.PaymentID, &p.OrderID, &status, &method, &amount, &p.Currency,
		&p.QRCode, &p.QRCodeBase64, &p.CreatedAt, &p.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payment.Info{}, ErrPaymentNotFound
		}
		return payment.Info{}, fmt.Errorf("getting payment %q: %w", id, err)
	}

	p.Status = payment.Status(status)
	p.Method = payment.Method(method)
	p.Amount = amount
	return p, nil
}
