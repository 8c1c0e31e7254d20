package audit

import (
	"context"
	"errors"
	"fmt"

	kafkax "github.com/ariefcatur/go-bookstore-checkout/internal/kafka"
	"github.com/ariefcatur/go-bookstore-checkout/internal/metrics"
	"github.com/ariefcatur/go-bookstore-checkout/internal/orders"
	"github.com/ariefcatur/go-bookstore-checkout/internal/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const dedupScope = "audit"

type OrderReader interface {
	Get(ctx context.Context, id uuid.UUID) (*orders.Order, error)
}

var tracer = otel.Tracer("github.com/ariefcatur/go-bookstore-checkout/internal/audit")

// Service reconciles order.created events against the order store. Delivery
// is at-least-once, so each order id is audited once per dedup window.
type Service struct {
	Orders OrderReader
	Redis  *redis.Client
	Log    *zap.Logger
}

// HandleOrderCreated is installed as the consumer handler. A returned error
// stops the consumer, so the message is read again after a restart.
func (s *Service) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	if t := kafkax.Header(m, "x-event-type"); t != "" && t != orders.EventOrderCreated {
		return nil
	}

	ev, err := kafkax.Decode[orders.OrderCreatedEvent](m.Value)
	if err != nil {
		// poison message, retrying will not help
		metrics.AuditEvents.WithLabelValues("malformed").Inc()
		s.Log.Error("drop undecodable event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}

	ctx, span := tracer.Start(kafkax.ExtractTrace(ctx, m), "audit.order_created")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", ev.OrderID.String()))

	log := s.Log.With(zap.Stringer("order_id", ev.OrderID))

	dkey := fmt.Sprintf(redisx.KeyDedup, dedupScope, ev.OrderID)
	seen, err := redisx.Exists(ctx, s.Redis, dkey)
	if err != nil {
		return fmt.Errorf("dedup lookup: %w", err)
	}
	if seen {
		metrics.AuditEvents.WithLabelValues("duplicate").Inc()
		log.Debug("already audited")
		return nil
	}

	result, err := s.reconcile(ctx, ev, log)
	if err != nil {
		return err
	}
	metrics.AuditEvents.WithLabelValues(result).Inc()

	if err := s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err(); err != nil {
		log.Warn("mark audited", zap.Error(err))
	}
	return nil
}

func (s *Service) reconcile(ctx context.Context, ev orders.OrderCreatedEvent, log *zap.Logger) (string, error) {
	o, err := s.Orders.Get(ctx, ev.OrderID)
	if errors.Is(err, orders.ErrOrderNotFound) {
		log.Error("event for unknown order", zap.String("user_id", ev.UserID))
		return "missing", nil
	}
	if err != nil {
		return "", fmt.Errorf("load order %s: %w", ev.OrderID, err)
	}

	if diffs := compare(o, ev); len(diffs) > 0 {
		log.Error("order does not match event", zap.Strings("diffs", diffs))
		return "mismatch", nil
	}
	log.Info("order audited", zap.Int("lines", len(o.Lines)), zap.String("total", o.Total.StringFixed(2)))
	return "ok", nil
}

func compare(o *orders.Order, ev orders.OrderCreatedEvent) []string {
	var diffs []string
	if o.Owner != ev.UserID {
		diffs = append(diffs, fmt.Sprintf("owner %q != %q", o.Owner, ev.UserID))
	}
	if !o.Total.Equal(ev.Total) {
		diffs = append(diffs, fmt.Sprintf("total %s != %s", o.Total, ev.Total))
	}
	if len(o.Lines) != len(ev.Items) {
		diffs = append(diffs, fmt.Sprintf("lines %d != %d", len(o.Lines), len(ev.Items)))
		return diffs
	}
	for i, l := range o.Lines {
		it := ev.Items[i]
		if l.BookID != it.BookID || l.Quantity != it.Quantity || !l.UnitPrice.Equal(it.Price) {
			diffs = append(diffs, fmt.Sprintf("line %d differs", i))
		}
	}
	return diffs
}
