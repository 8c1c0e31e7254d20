package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-bookstore-checkout/internal/cart"
	"github.com/ariefcatur/go-bookstore-checkout/internal/inventory"
	"github.com/ariefcatur/go-bookstore-checkout/internal/metrics"
	"github.com/ariefcatur/go-bookstore-checkout/internal/orders"
	"github.com/ariefcatur/go-bookstore-checkout/internal/redisx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
)

type CartStore interface {
	LinesFor(ctx context.Context, owner string) ([]cart.Line, error)
	Clear(ctx context.Context, owner string) error
}

type Reserver interface {
	Reserve(ctx context.Context, bookID uuid.UUID, quantity int) (inventory.Reservation, error)
}

type OrderStore interface {
	Save(ctx context.Context, o *orders.Order) (*orders.Order, error)
}

type Publisher interface {
	PublishOrderCreated(ctx context.Context, ev orders.OrderCreatedEvent)
}

// Locker grants per-owner exclusion. Acquire returns redisx.ErrLockHeld when
// another checkout for the same owner holds the lock.
type Locker interface {
	Acquire(ctx context.Context, owner string) (release func(context.Context) error, err error)
}

// finishTimeout bounds save, cart clear and publish once every line is reserved.
const finishTimeout = 10 * time.Second

var tracer = otel.Tracer("github.com/ariefcatur/go-bookstore-checkout/internal/checkout")

// Service turns an owner's cart into a confirmed order. It keeps no state
// between calls.
type Service struct {
	Carts     CartStore
	Inventory Reserver
	Orders    OrderStore
	Events    Publisher
	Locks     Locker
	Log       *zap.Logger

	now func() time.Time
}

func NewService(carts CartStore, inv Reserver, store OrderStore, events Publisher, locks Locker, log *zap.Logger) *Service {
	return &Service{
		Carts:     carts,
		Inventory: inv,
		Orders:    store,
		Events:    events,
		Locks:     locks,
		Log:       log.Named("checkout"),
		now:       time.Now,
	}
}

// Checkout reserves every cart line in cart order, persists the order, clears
// the cart and announces the order. Reservations already made are not
// released when a later step fails.
func (s *Service) Checkout(ctx context.Context, owner string) (o *orders.Order, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "checkout")
	span.SetAttributes(attribute.String("owner", owner))
	defer func() {
		metrics.CheckoutDuration.Observe(time.Since(start).Seconds())
		metrics.CheckoutsTotal.WithLabelValues(outcome(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("order_id", o.ID.String()))
		}
		span.End()
	}()

	log := s.Log.With(zap.String("owner", owner))

	release, err := s.Locks.Acquire(ctx, owner)
	if errors.Is(err, redisx.ErrLockHeld) {
		return nil, ErrCheckoutInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("checkout lock: %w", err)
	}
	defer func() {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			log.Warn("release checkout lock", zap.Error(rerr))
		}
	}()

	lines, err := s.Carts.LinesFor(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]orders.LineInput, 0, len(lines))
	reserved := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		if err := ctx.Err(); err != nil {
			s.warnUnreleased(log, reserved, err)
			return nil, fmt.Errorf("checkout aborted: %w", err)
		}
		if _, err := s.Inventory.Reserve(ctx, l.Book.ID, l.Quantity); err != nil {
			s.warnUnreleased(log, reserved, err)
			return nil, fmt.Errorf("reserve book %s: %w", l.Book.ID, err)
		}
		reserved = append(reserved, l.Book.ID)
		items = append(items, orders.LineInput{
			BookID:    l.Book.ID,
			Quantity:  l.Quantity,
			UnitPrice: l.Book.Price,
		})
	}

	order, err := orders.NewOrder(owner, items, s.now())
	if err != nil {
		return nil, err
	}
	if err := order.Confirm(); err != nil {
		return nil, err
	}

	// Stock is reserved from here on. Cancellation only applies between
	// reservations, so the remaining steps ignore it and run on a bounded
	// context of their own.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	saved, err := s.Orders.Save(fctx, order)
	if err != nil {
		s.warnUnreleased(log, reserved, err)
		return nil, fmt.Errorf("save order: %w", err)
	}
	log = log.With(zap.Stringer("order_id", saved.ID))

	if err := s.Carts.Clear(fctx, owner); err != nil {
		metrics.CartClearFailures.Inc()
		log.Error("order saved but cart not cleared", zap.Error(err))
	}

	s.Events.PublishOrderCreated(fctx, orders.NewOrderCreatedEvent(saved, s.now()))

	log.Info("checkout confirmed",
		zap.Int("lines", len(saved.Lines)),
		zap.String("total", saved.Total.StringFixed(2)),
	)
	return saved, nil
}

func (s *Service) warnUnreleased(log *zap.Logger, books []uuid.UUID, cause error) {
	if len(books) == 0 {
		return
	}
	ids := make([]string, len(books))
	for i, b := range books {
		ids[i] = b.String()
	}
	log.Warn("checkout failed with unreleased reservations",
		zap.Int("count", len(books)),
		zap.Strings("book_ids", ids),
		zap.Error(cause),
	)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "confirmed"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrCheckoutInProgress):
		return "in_progress"
	case errors.Is(err, inventory.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, inventory.ErrItemNotFound):
		return "item_not_found"
	case errors.Is(err, inventory.ErrServiceError):
		return "inventory_error"
	case errors.Is(err, inventory.ErrServiceUnavailable):
		return "inventory_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
