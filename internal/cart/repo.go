package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-bookstore-checkout/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Repo struct{ DB postgres.DB }

// LinesFor returns the owner's cart in insertion order, with each book's
// current catalog price.
func (r *Repo) LinesFor(ctx context.Context, owner string) ([]Line, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT c.id, c.user_id, c.book_id, b.price, c.quantity, c.created_at
		FROM cart_items c
		JOIN books b ON b.id = c.book_id
		WHERE c.user_id = $1
		ORDER BY c.created_at, c.id`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.Owner, &l.Book.ID, &l.Book.Price, &l.Quantity, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Add puts qty of a book into the owner's cart, accumulating onto an existing
// line for the same book.
func (r *Repo) Add(ctx context.Context, owner string, bookID uuid.UUID, qty int) (Line, error) {
	if qty < 1 {
		return Line{}, ErrInvalidQuantity
	}
	var l Line
	err := r.DB.QueryRow(ctx, `
		WITH up AS (
			INSERT INTO cart_items(user_id, book_id, quantity)
			SELECT $1, b.id, $3 FROM books b WHERE b.id = $2
			ON CONFLICT (user_id, book_id)
			DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
			RETURNING id, user_id, book_id, quantity, created_at
		)
		SELECT up.id, up.user_id, up.book_id, b.price, up.quantity, up.created_at
		FROM up JOIN books b ON b.id = up.book_id`,
		owner, bookID, qty,
	).Scan(&l.ID, &l.Owner, &l.Book.ID, &l.Book.Price, &l.Quantity, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Line{}, fmt.Errorf("%w: %s", ErrBookNotFound, bookID)
	}
	if err != nil {
		return Line{}, err
	}
	return l, nil
}

func (r *Repo) SetQuantity(ctx context.Context, owner string, lineID uuid.UUID, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	ct, err := r.DB.Exec(ctx, `UPDATE cart_items SET quantity = $3 WHERE id = $2 AND user_id = $1`, owner, lineID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrLineNotFound, lineID)
	}
	return nil
}

// Remove deletes one line. Lines owned by someone else look missing.
func (r *Repo) Remove(ctx context.Context, owner string, lineID uuid.UUID) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE id = $2 AND user_id = $1`, owner, lineID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrLineNotFound, lineID)
	}
	return nil
}

func (r *Repo) Clear(ctx context.Context, owner string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, owner)
	return err
}
