package cart

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrBookNotFound    = errors.New("book not found")
	ErrLineNotFound    = errors.New("cart item not found")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// BookRef is the catalog's view of a book as far as pricing is concerned.
type BookRef struct {
	ID    uuid.UUID
	Price decimal.Decimal
}

// Line is one (owner, book) entry in a cart. Book.Price is the catalog price
// at the time the line was read, not when it was added.
type Line struct {
	ID        uuid.UUID
	Owner     string
	Book      BookRef
	Quantity  int
	CreatedAt time.Time
}

func (l Line) Subtotal() decimal.Decimal {
	return l.Book.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Total sums line subtotals at current catalog prices.
func Total(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}
