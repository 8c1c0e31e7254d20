package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-bookstore-checkout/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Repo struct{ DB postgres.DB }

// Save writes the order and all of its lines in one transaction.
func (r *Repo) Save(ctx context.Context, o *Order) (*Order, error) {
	if len(o.Lines) == 0 {
		return nil, ErrNoLines
	}

	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, status, total, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		o.ID, o.Owner, string(o.Status), o.Total, o.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert order %s: %w", o.ID, err)
	}

	for i, l := range o.Lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, position, book_id, quantity, price_at_purchase)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			l.ID, o.ID, i, l.BookID, l.Quantity, l.UnitPrice,
		); err != nil {
			return nil, fmt.Errorf("insert order item %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return o, nil
}

func (r *Repo) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	var (
		o      Order
		status string
	)
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, status, total, created_at FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.Owner, &status, &o.Total, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)

	lines, err := r.linesFor(ctx, []string{id.String()})
	if err != nil {
		return nil, err
	}
	o.Lines = lines[o.ID]
	return &o, nil
}

// ListByOwner returns the owner's orders, newest first, with their lines.
func (r *Repo) ListByOwner(ctx context.Context, owner string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, status, total, created_at FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC, id`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out []Order
		ids []string
	)
	for rows.Next() {
		var (
			o      Order
			status string
		)
		if err := rows.Scan(&o.ID, &o.Owner, &status, &o.Total, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Status = Status(status)
		out = append(out, o)
		ids = append(ids, o.ID.String())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	lines, err := r.linesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines = lines[out[i].ID]
	}
	return out, nil
}

func (r *Repo) linesFor(ctx context.Context, orderIDs []string) (map[uuid.UUID][]Line, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, book_id, quantity, price_at_purchase
		FROM order_items WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[uuid.UUID][]Line{}
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.BookID, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, err
		}
		out[l.OrderID] = append(out[l.OrderID], l)
	}
	return out, rows.Err()
}
