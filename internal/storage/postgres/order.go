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
	"github.com/shopspring/decimal"

	"github.com/vzdolci/storefront/internal/domain/customer"
	"github.com/vzdolci/storefront/internal/domain/order"
	"github.com/vzdolci/storefront/internal/domain/payment"
	"github.com/vzdolci/storefront/internal/domain/shipping"
)

// ErrOrderNotFound is returned for unknown order ids.
var ErrOrderNotFound = errors.New("order not found")

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Items,
// customer, shipping, and payment are stored as JSONB documents; the order
// id, status, total, and timestamps stay relational for querying.
type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order. Checkout retries reuse the order id, so an
// existing row with the same id is replaced.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	items, cust, ship, pay, err := marshalOrderDocs(o)
	if err != nil {
		return err
	}

	query, args, err := qb.Insert("orders").
		Columns("id", "items", "customer", "shipping", "status", "total", "payment", "created_at", "updated_at").
		Values(o.ID, items, cust, ship, string(o.Status), o.Total, pay, o.CreatedAt, o.UpdatedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			items = EXCLUDED.items,
			customer = EXCLUDED.customer,
			shipping = EXCLUDED.shipping,
			status = EXCLUDED.status,
			total = EXCLUDED.total,
			payment = EXCLUDED.payment,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building order insert: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Update replaces the stored order with the given version.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	items, cust, ship, pay, err := marshalOrderDocs(o)
	if err != nil {
		return err
	}

	query, args, err := qb.Update("orders").
		Set("items", items).
		Set("customer", cust).
		Set("shipping", ship).
		Set("status", string(o.Status)).
		Set("total", o.Total).
		Set("payment", pay).
		Set("updated_at", o.UpdatedAt).
		Where(squirrel.Eq{"id": o.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building order update: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// GetByID loads a single order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	query, args, err := qb.Select("id", "items", "customer", "shipping", "status", "total", "payment", "created_at", "updated_at").
		From("orders").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building order select: %w", err)
	}

	var (
		o         order.Order
		status    string
		total     decimal.Decimal
		items     []byte
		cust      []byte
		ship      []byte
		pay       []byte
		createdAt time.Time
		updatedAt time.Time
	)
	row := r.pool.QueryRow(ctx, query, args...)
	if err := row.Scan(&o.ID, &items, &cust, &ship, &status, &total, &pay, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decoding order %q items: %w", id, err)
	}
	var custInfo customer.Info
	if err := json.Unmarshal(cust, &custInfo); err != nil {
		return nil, fmt.Errorf("decoding order %q customer: %w", id, err)
	}
	var shipInfo shipping.Info
	if err := json.Unmarshal(ship, &shipInfo); err != nil {
		return nil, fmt.Errorf("decoding order %q shipping: %w", id, err)
	}
	if len(pay) > 0 {
		var p payment.Info
		if err := json.Unmarshal(pay, &p); err != nil {
			return nil, fmt.Errorf("decoding order %q payment: %w", id, err)
		}
		o.Payment = &p
	}

	o.Customer = custInfo
	o.Shipping = shipInfo
	o.Status = order.Status(status)
	o.Total = total
	o.CreatedAt = createdAt
	o.UpdatedAt = updatedAt
	return &o, nil
}

func marshalOrderDocs(o *order.Order) (items, cust, ship, pay []byte, err error) {
	if items, err = json.Marshal(o.Items); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshaling order items: %w", err)
	}
	if cust, err = json.Marshal(o.Customer); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshaling order customer: %w", err)
	}
	if ship, err = json.Marshal(o.Shipping); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshaling order shipping: %w", err)
	}
	if o.Payment != nil {
		if pay, err = json.Marshal(o.Payment); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshaling order payment: %w", err)
		}
	}
	return items, cust, ship, pay, nil
}
