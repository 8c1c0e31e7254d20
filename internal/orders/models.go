package orders

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNoLines       = errors.New("order must have at least one line")
	ErrOrderNotFound = errors.New("order not found")
)

type Order struct {
	ID        uuid.UUID
	Owner     string
	Status    Status // lihat status.go
	Total     decimal.Decimal
	Lines     []Line
	CreatedAt time.Time
}

type Line struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	BookID    uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal // snapshot at purchase time
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LineInput is what a caller knows about a line before the order exists.
type LineInput struct {
	BookID    uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
}

// NewOrder builds a PENDING order with a fresh id and a frozen total.
func NewOrder(owner string, items []LineInput, now time.Time) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrNoLines
	}
	o := &Order{
		ID:        uuid.New(),
		Owner:     owner,
		Status:    StatusPending,
		Lines:     make([]Line, 0, len(items)),
		CreatedAt: now.UTC(),
	}
	for _, it := range items {
		o.Lines = append(o.Lines, Line{
			ID:        uuid.New(),
			OrderID:   o.ID,
			BookID:    it.BookID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	o.Total = SumLines(o.Lines)
	return o, nil
}

func SumLines(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Confirm moves a pending order to CONFIRMED.
func (o *Order) Confirm() error {
	return o.transition(StatusConfirmed)
}

func (o *Order) transition(to Status) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	return nil
}
