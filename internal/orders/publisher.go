package orders

import (
	"context"

	kafkax "github.com/ariefcatur/go-bookstore-checkout/internal/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type producer interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// EventPublisher announces confirmed orders. It never reports failure to the
// caller; delivery problems surface in logs and metrics only.
type EventPublisher struct {
	Producer producer
	Service  string
	Log      *zap.Logger
}

// PublishOrderCreated hands the event to the producer and returns
// immediately. ctx is used only to propagate the trace.
func (p *EventPublisher) PublishOrderCreated(ctx context.Context, ev OrderCreatedEvent) {
	headers := []kafkago.Header{
		{Key: "x-event-id", Value: []byte(uuid.NewString())},
		{Key: "x-event-type", Value: []byte(EventOrderCreated)},
		{Key: "x-event-version", Value: []byte(EventVersion)},
		{Key: "x-producer", Value: []byte(p.Service)},
	}
	headers = append(headers, kafkax.TraceHeaders(ctx)...)

	p.Producer.Publish(PartitionKey(ev.OrderID), kafkax.MustMarshal(ev), headers...)
	p.Log.Debug("order.created queued", zap.Stringer("order_id", ev.OrderID))
}
