package httpx

import (
	"time"

	"github.com/ariefcatur/go-bookstore-checkout/internal/cart"
	"github.com/ariefcatur/go-bookstore-checkout/internal/orders"
)

// Money is rendered as a fixed two-decimal string.
type cartLineView struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	Subtotal  string    `json:"subtotal"`
	AddedAt   time.Time `json:"added_at"`
}

type cartView struct {
	Items []cartLineView `json:"items"`
	Total string         `json:"total"`
}

func toCartLine(l cart.Line) cartLineView {
	return cartLineView{
		ID:        l.ID.String(),
		BookID:    l.Book.ID.String(),
		Quantity:  l.Quantity,
		UnitPrice: l.Book.Price.StringFixed(2),
		Subtotal:  l.Subtotal().StringFixed(2),
		AddedAt:   l.CreatedAt,
	}
}

func toCart(lines []cart.Line) cartView {
	v := cartView{Items: make([]cartLineView, 0, len(lines))}
	total := cart.Total(lines)
	for _, l := range lines {
		v.Items = append(v.Items, toCartLine(l))
	}
	v.Total = total.StringFixed(2)
	return v
}

type orderLineView struct {
	BookID          string `json:"book_id"`
	Quantity        int    `json:"quantity"`
	PriceAtPurchase string `json:"price_at_purchase"`
	Subtotal        string `json:"subtotal"`
}

type orderView struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Status    string          `json:"status"`
	Total     string          `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
	Items     []orderLineView `json:"items"`
}

func toOrder(o *orders.Order) orderView {
	v := orderView{
		ID:        o.ID.String(),
		UserID:    o.Owner,
		Status:    string(o.Status),
		Total:     o.Total.StringFixed(2),
		CreatedAt: o.CreatedAt,
		Items:     make([]orderLineView, 0, len(o.Lines)),
	}
	for _, l := range o.Lines {
		v.Items = append(v.Items, orderLineView{
			BookID:          l.BookID.String(),
			Quantity:        l.Quantity,
			PriceAtPurchase: l.UnitPrice.StringFixed(2),
			Subtotal:        l.Subtotal().StringFixed(2),
		})
	}
	return v
}
