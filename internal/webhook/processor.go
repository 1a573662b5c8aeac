// Package webhook receives Mercado Pago notifications: it verifies the
// signature, deduplicates deliveries, and refreshes the stored payment state
// for payment-type events.
package webhook

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/vzdolci/storefront/internal/domain/order"
	"github.com/vzdolci/storefront/internal/domain/payment"
)

// Notification is a parsed gateway notification.
type Notification struct {
	ID     string
	Type   string
	Action string
	DataID string
}

// Expected duplicate-filter capacity. Sized for a small storefront; the
// filter only short-circuits the database check, so saturation is harmless.
const (
	bloomCapacity = 100_000
	bloomFalsePos = 0.01
)

// EventRepository records processed notification ids. MarkProcessed returns
// false when the id was recorded before.
type EventRepository interface {
	MarkProcessed(ctx context.Context, id string) (bool, error)
}

// PaymentSource fetches the authoritative payment state from the gateway.
type PaymentSource interface {
	GetPayment(ctx context.Context, id string) (payment.Info, error)
}

// PaymentSink persists refreshed payment records.
type PaymentSink interface {
	Upsert(ctx context.Context, p payment.Info) error
}

// Processor handles verified notifications.
type Processor struct {
	verifier *Verifier
	events   EventRepository
	gateway  PaymentSource
	payments PaymentSink
	orders   *order.Service
	lg       *zap.Logger

	mu   sync.Mutex
	seen *bloom.BloomFilter
}

// NewProcessor wires the webhook pipeline. verifier may be nil (no secret
// configured); gateway and payments may be nil, disabling the refresh step.
func NewProcessor(verifier *Verifier, events EventRepository, gateway PaymentSource, payments PaymentSink, orders *order.Service, lg *zap.Logger) *Processor {
	return &Processor{
		verifier: verifier,
		events:   events,
		gateway:  gateway,
		payments: payments,
		orders:   orders,
		lg:       lg.Named("webhook"),
		seen:     bloom.NewWithEstimates(bloomCapacity, bloomFalsePos),
	}
}

// ParseNotification decodes a notification body, accepting both the v1 query
// style mirror fields and the topic/resource shape.
func ParseNotification(body []byte) (Notification, error) {
	var n Notification
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			return decodeAsString(d, &n.ID)
		case "type", "topic":
			return decodeAsString(d, &n.Type)
		case "action":
			return decodeAsString(d, &n.Action)
		case "data":
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key == "id" {
					return decodeAsString(d, &n.DataID)
				}
				return d.Skip()
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return Notification{}, errors.Wrap(err, "decode notification")
	}
	return n, nil
}

// Verify checks the delivery signature when a secret is configured.
func (p *Processor) Verify(signature, requestID string, n Notification) error {
	if p.verifier == nil {
		return nil
	}
	return p.verifier.Verify(signature, requestID, n.DataID)
}

// Process handles one verified notification. Duplicates and non-payment
// events are acknowledged without side effects; processing failures are
// logged but never bubble up, so the gateway does not retry forever.
func (p *Processor) Process(ctx context.Context, n Notification) {
	lg := p.lg.With(
		zap.String("notification_id", n.ID),
		zap.String("type", n.Type),
		zap.String("data_id", n.DataID))

	if n.Type != "payment" || n.DataID == "" {
		lg.Debug("ignoring non-payment notification")
		return
	}

	if p.isDuplicate(ctx, n, lg) {
		lg.Debug("duplicate notification")
		return
	}

	p.refreshPayment(ctx, n.DataID, lg)
}

// isDuplicate runs the two-tier dedup: the bloom filter answers "definitely
// new" without touching the database, and the events table settles bloom
// false positives.
func (p *Processor) isDuplicate(ctx context.Context, n Notification, lg *zap.Logger) bool {
	key := n.Type + ":" + n.DataID
	if n.ID != "" {
		key = n.ID
	}

	p.mu.Lock()
	maybeSeen := p.seen.TestAndAddString(key)
	p.mu.Unlock()

	if p.events == nil {
		return maybeSeen
	}

	fresh, err := p.events.MarkProcessed(ctx, key)
	if err != nil {
		// On storage errors prefer processing twice over dropping an
		// event; the refresh is idempotent.
		lg.Warn("webhook dedup failed", zap.Error(err))
		return false
	}
	return !fresh
}

// refreshPayment re-fetches the payment and folds the fresh state into the
// payments table and the owning order.
func (p *Processor) refreshPayment(ctx context.Context, paymentID string, lg *zap.Logger) {
	if p.gateway == nil {
		lg.Debug("gateway not configured, skipping refresh")
		return
	}

	info, err := p.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		lg.Warn("payment refresh failed", zap.Error(err))
		return
	}

	if p.payments != nil {
		if err := p.payments.Upsert(ctx, info); err != nil {
			lg.Warn("persist payment failed", zap.Error(err))
		}
	}

	if p.orders != nil && info.OrderID != "" {
		o, err := p.orders.Get(ctx, info.OrderID)
		if err != nil {
			lg.Warn("load order failed", zap.String("order_id", info.OrderID), zap.Error(err))
			return
		}
		if err := p.orders.Save(ctx, o.WithPayment(info)); err != nil {
			lg.Warn("update order failed", zap.String("order_id", info.OrderID), zap.Error(err))
			return
		}
	}

	lg.Info("payment refreshed", zap.String("status", string(info.Status)))
}

func decodeAsString(d *jx.Decoder, dst *string) error {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return err
		}
		*dst = s
		return nil
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return err
		}
		*dst = n.String()
		return nil
	default:
		return d.Skip()
	}
}
