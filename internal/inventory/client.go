package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ariefcatur/go-bookstore-checkout/internal/metrics"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const reservePath = "/inven/stock/reserve"

// Reservation is the inventory service's acknowledgement of one reserve call.
type Reservation struct {
	BookID             uuid.UUID
	QuantityReserved   int
	RemainingAvailable int
}

type reserveRequest struct {
	BookID   uuid.UUID `json:"book_id"`
	Quantity int       `json:"quantity"`
}

type reserveResponse struct {
	BookID             uuid.UUID `json:"book_id"`
	QuantityReserved   int       `json:"quantity_reserved"`
	RemainingAvailable int       `json:"remaining_available"`
}

// errUpstream marks a 5xx so the breaker counts it; it never leaves Reserve.
var errUpstream = errors.New("upstream 5xx")

// Client talks to the external inventory service. Calls are never retried:
// a retried reserve could decrement stock twice.
type Client struct {
	http *resty.Client
	cb   *gobreaker.CircuitBreaker
	log  *zap.Logger
}

func NewClient(baseURL, authToken string, timeout time.Duration, log *zap.Logger) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	if authToken != "" {
		rc.SetAuthToken(authToken)
	}
	log = log.Named("inventory")
	return &Client{http: rc, cb: newBreaker(log), log: log}
}

// Reserve asks the inventory service to hold quantity units of bookID.
func (c *Client) Reserve(ctx context.Context, bookID uuid.UUID, quantity int) (Reservation, error) {
	start := time.Now()
	res, err := c.reserve(ctx, bookID, quantity)
	metrics.ReservationDuration.Observe(time.Since(start).Seconds())
	metrics.ReservationsTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		c.log.Debug("reserve failed",
			zap.Stringer("book_id", bookID),
			zap.Int("quantity", quantity),
			zap.Error(err),
		)
	}
	return res, err
}

func (c *Client) reserve(ctx context.Context, bookID uuid.UUID, quantity int) (Reservation, error) {
	if err := ctx.Err(); err != nil {
		return Reservation{}, fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}

	// A caller that gives up says nothing about the inventory service, so
	// its cancellation is reported outside the breaker.
	var callerErr error
	v, err := c.cb.Execute(func() (interface{}, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(reserveRequest{BookID: bookID, Quantity: quantity}).
			Post(reservePath)
		if err != nil {
			if ctx.Err() != nil {
				callerErr = ctx.Err()
				return nil, nil
			}
			return nil, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return resp, errUpstream
		}
		return resp, nil
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return Reservation{}, fmt.Errorf("%w: circuit %s: %v", ErrServiceUnavailable, breakerName, err)
	case errors.Is(err, errUpstream):
		return Reservation{}, fmt.Errorf("%w: status %d", ErrServiceError, v.(*resty.Response).StatusCode())
	case err != nil:
		return Reservation{}, fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	case callerErr != nil:
		return Reservation{}, fmt.Errorf("%w: %w", ErrServiceUnavailable, callerErr)
	}

	resp := v.(*resty.Response)
	switch code := resp.StatusCode(); {
	case code == http.StatusConflict:
		return Reservation{}, fmt.Errorf("%w: book %s", ErrInsufficientStock, bookID)
	case code == http.StatusNotFound:
		return Reservation{}, fmt.Errorf("%w: book %s", ErrItemNotFound, bookID)
	case code < 200 || code >= 300:
		return Reservation{}, fmt.Errorf("%w: status %d", ErrServiceError, code)
	}

	var body reserveResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return Reservation{}, fmt.Errorf("%w: decode reserve response: %w", ErrServiceUnavailable, err)
	}
	if body.BookID != bookID || body.QuantityReserved != quantity {
		return Reservation{}, fmt.Errorf("%w: reserved %d of %s, asked %d of %s",
			ErrServiceError, body.QuantityReserved, body.BookID, quantity, bookID)
	}
	return Reservation{
		BookID:             body.BookID,
		QuantityReserved:   body.QuantityReserved,
		RemainingAvailable: body.RemainingAvailable,
	}, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "reserved"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrItemNotFound):
		return "not_found"
	case errors.Is(err, ErrServiceError):
		return "service_error"
	default:
		return "unavailable"
	}
}
