package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated = "OrderCreated"
	EventVersion      = "1"
)

type EventItem struct {
	BookID   uuid.UUID       `json:"bookId"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// OrderCreatedEvent is a projection of a persisted order. Consumers key on
// OrderID and must tolerate redelivery.
type OrderCreatedEvent struct {
	OrderID   uuid.UUID       `json:"orderId"`
	UserID    string          `json:"userId"`
	Items     []EventItem     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewOrderCreatedEvent(o *Order, at time.Time) OrderCreatedEvent {
	items := make([]EventItem, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, EventItem{BookID: l.BookID, Quantity: l.Quantity, Price: l.UnitPrice})
	}
	return OrderCreatedEvent{
		OrderID:   o.ID,
		UserID:    o.Owner,
		Items:     items,
		Total:     o.Total,
		Timestamp: at.UTC(),
	}
}
