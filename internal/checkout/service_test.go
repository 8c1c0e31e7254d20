package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-bookstore-checkout/internal/cart"
	"github.com/ariefcatur/go-bookstore-checkout/internal/inventory"
	"github.com/ariefcatur/go-bookstore-checkout/internal/orders"
	"github.com/ariefcatur/go-bookstore-checkout/internal/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeCart struct {
	mu       sync.Mutex
	lines    map[string][]cart.Line
	clearErr error
	cleared  int
}

func (c *fakeCart) LinesFor(_ context.Context, owner string) ([]cart.Line, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]cart.Line(nil), c.lines[owner]...), nil
}

func (c *fakeCart) Clear(ctx context.Context, owner string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	c.cleared++
	if c.clearErr != nil {
		return c.clearErr
	}
	delete(c.lines, owner)
	return nil
}

type fakeInventory struct {
	calls  []uuid.UUID
	failOn map[uuid.UUID]error
	hook   func(call int)
}

func (f *fakeInventory) Reserve(_ context.Context, bookID uuid.UUID, qty int) (inventory.Reservation, error) {
	f.calls = append(f.calls, bookID)
	if f.hook != nil {
		f.hook(len(f.calls))
	}
	if err := f.failOn[bookID]; err != nil {
		return inventory.Reservation{}, err
	}
	return inventory.Reservation{BookID: bookID, QuantityReserved: qty, RemainingAvailable: 10}, nil
}

type fakeOrders struct {
	saved []*orders.Order
	err   error
}

func (f *fakeOrders) Save(ctx context.Context, o *orders.Order) (*orders.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	f.saved = append(f.saved, o)
	return o, nil
}

type fakeEvents struct{ got []orders.OrderCreatedEvent }

func (f *fakeEvents) PublishOrderCreated(_ context.Context, ev orders.OrderCreatedEvent) {
	f.got = append(f.got, ev)
}

type noLock struct{}

func (noLock) Acquire(context.Context, string) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

type fixture struct {
	svc    *Service
	cart   *fakeCart
	inv    *fakeInventory
	orders *fakeOrders
	events *fakeEvents
}

const owner = "user-1"

func newFixture(t *testing.T, lines ...cart.Line) *fixture {
	t.Helper()
	f := &fixture{
		cart:   &fakeCart{lines: map[string][]cart.Line{}},
		inv:    &fakeInventory{failOn: map[uuid.UUID]error{}},
		orders: &fakeOrders{},
		events: &fakeEvents{},
	}
	if len(lines) > 0 {
		f.cart.lines[owner] = lines
	}
	f.svc = NewService(f.cart, f.inv, f.orders, f.events, noLock{}, zaptest.NewLogger(t))
	f.svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func line(price string, qty int) cart.Line {
	return cart.Line{
		ID:       uuid.New(),
		Owner:    owner,
		Book:     cart.BookRef{ID: uuid.New(), Price: decimal.RequireFromString(price)},
		Quantity: qty,
	}
}

func TestCheckoutConfirmsOrder(t *testing.T) {
	l1, l2 := line("10.00", 3), line("5.50", 2)
	f := newFixture(t, l1, l2)

	o, err := f.svc.Checkout(context.Background(), owner)
	require.NoError(t, err)

	assert.Equal(t, orders.StatusConfirmed, o.Status)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("41.00")), "total %s", o.Total)
	require.Len(t, o.Lines, 2)
	assert.Equal(t, l1.Book.ID, o.Lines[0].BookID)
	assert.Equal(t, l2.Book.ID, o.Lines[1].BookID)
	assert.True(t, o.Lines[1].UnitPrice.Equal(decimal.RequireFromString("5.50")))

	assert.Equal(t, []uuid.UUID{l1.Book.ID, l2.Book.ID}, f.inv.calls)
	assert.Len(t, f.orders.saved, 1)
	assert.Empty(t, f.cart.lines[owner])

	require.Len(t, f.events.got, 1)
	ev := f.events.got[0]
	assert.Equal(t, o.ID, ev.OrderID)
	assert.Equal(t, owner, ev.UserID)
	assert.True(t, ev.Total.Equal(o.Total))
	assert.Len(t, ev.Items, 2)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Checkout(context.Background(), owner)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, f.inv.calls)
	assert.Empty(t, f.orders.saved)
	assert.Empty(t, f.events.got)
}

func TestCheckoutStopsAtFirstFailedReservation(t *testing.T) {
	l1, l2, l3 := line("1.00", 1), line("2.00", 1), line("3.00", 1)
	f := newFixture(t, l1, l2, l3)
	f.inv.failOn[l2.Book.ID] = inventory.ErrInsufficientStock

	_, err := f.svc.Checkout(context.Background(), owner)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)

	assert.Equal(t, []uuid.UUID{l1.Book.ID, l2.Book.ID}, f.inv.calls)
	assert.Empty(t, f.orders.saved)
	assert.Zero(t, f.cart.cleared)
	assert.Len(t, f.cart.lines[owner], 3)
	assert.Empty(t, f.events.got)
}

func TestCheckoutSurfacesEachReservationFailure(t *testing.T) {
	for _, want := range []error{
		inventory.ErrItemNotFound,
		inventory.ErrServiceError,
		inventory.ErrServiceUnavailable,
	} {
		t.Run(want.Error(), func(t *testing.T) {
			l := line("4.00", 1)
			f := newFixture(t, l)
			f.inv.failOn[l.Book.ID] = want

			_, err := f.svc.Checkout(context.Background(), owner)
			assert.ErrorIs(t, err, want)
			assert.Empty(t, f.orders.saved)
		})
	}
}

func TestCheckoutSaveFailureKeepsCart(t *testing.T) {
	f := newFixture(t, line("10.00", 1), line("2.00", 2))
	f.orders.err = errors.New("tx aborted")

	_, err := f.svc.Checkout(context.Background(), owner)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save order")
	assert.Zero(t, f.cart.cleared)
	assert.Len(t, f.cart.lines[owner], 2)
	assert.Empty(t, f.events.got)
}

func TestCheckoutCartClearFailureStillReturnsOrder(t *testing.T) {
	f := newFixture(t, line("10.00", 1))
	f.cart.clearErr = errors.New("connection reset")

	o, err := f.svc.Checkout(context.Background(), owner)
	require.NoError(t, err)
	assert.NotNil(t, o)
	assert.Len(t, f.orders.saved, 1)
	assert.Len(t, f.events.got, 1)
}

type droppingEvents struct{ calls int }

// PublishOrderCreated drops everything, as a producer with a full inbox would.
func (d *droppingEvents) PublishOrderCreated(context.Context, orders.OrderCreatedEvent) { d.calls++ }

func TestCheckoutIgnoresPublishOutcome(t *testing.T) {
	f := newFixture(t, line("10.00", 3), line("5.50", 2))
	drop := &droppingEvents{}
	f.svc.Events = drop

	o, err := f.svc.Checkout(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, o.Status)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("41.00")))
	assert.Equal(t, 1, drop.calls)
}

func TestCheckoutTwiceYieldsEmptyCart(t *testing.T) {
	f := newFixture(t, line("10.00", 1))

	_, err := f.svc.Checkout(context.Background(), owner)
	require.NoError(t, err)

	_, err = f.svc.Checkout(context.Background(), owner)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Len(t, f.orders.saved, 1)
}

func TestCheckoutCancelledBetweenReservations(t *testing.T) {
	l1, l2 := line("1.00", 1), line("2.00", 1)
	f := newFixture(t, l1, l2)
	ctx, cancel := context.WithCancel(context.Background())
	f.inv.hook = func(call int) {
		if call == 1 {
			cancel()
		}
	}

	_, err := f.svc.Checkout(ctx, owner)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []uuid.UUID{l1.Book.ID}, f.inv.calls)
	assert.Empty(t, f.orders.saved)
}

func TestCheckoutCancelledDuringLastReservationStillCompletes(t *testing.T) {
	l1, l2 := line("10.00", 3), line("5.50", 2)
	f := newFixture(t, l1, l2)
	ctx, cancel := context.WithCancel(context.Background())
	f.inv.hook = func(call int) {
		if call == 2 {
			cancel()
		}
	}

	o, err := f.svc.Checkout(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, o.Status)
	assert.Len(t, f.inv.calls, 2)
	assert.Len(t, f.orders.saved, 1)
	assert.Equal(t, 1, f.cart.cleared)
	assert.Empty(t, f.cart.lines[owner])
	assert.Len(t, f.events.got, 1)
}

func TestCheckoutRejectsConcurrentCheckoutForSameOwner(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newFixture(t, line("10.00", 1))
	locks := redisx.NewOwnerLocker(rdb, time.Minute)
	f.svc.Locks = locks

	release, err := locks.Acquire(context.Background(), owner)
	require.NoError(t, err)

	_, err = f.svc.Checkout(context.Background(), owner)
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	assert.Empty(t, f.inv.calls)

	require.NoError(t, release(context.Background()))
	_, err = f.svc.Checkout(context.Background(), owner)
	assert.NoError(t, err)

	assert.False(t, mr.Exists(fmt.Sprintf(redisx.KeyCheckoutLock, owner)), "lock released after checkout")
}

func TestCheckoutFailsWhenLockStoreIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	f := newFixture(t, line("10.00", 1))
	f.svc.Locks = redisx.NewOwnerLocker(rdb, time.Minute)

	_, err := f.svc.Checkout(context.Background(), owner)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCheckoutInProgress)
	assert.Empty(t, f.inv.calls)
}
