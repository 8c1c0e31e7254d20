package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-bookstore-checkout/internal/cart"
	"github.com/ariefcatur/go-bookstore-checkout/internal/checkout"
	"github.com/ariefcatur/go-bookstore-checkout/internal/inventory"
	"github.com/ariefcatur/go-bookstore-checkout/internal/orders"
	"go.uber.org/zap"
)

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Detail: detail})
}

// statusFor is the only place domain errors become HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusBadRequest, "empty_cart"
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		return http.StatusConflict, "checkout_in_progress"
	case errors.Is(err, inventory.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, inventory.ErrItemNotFound):
		return http.StatusUnprocessableEntity, "item_not_found"
	case errors.Is(err, inventory.ErrServiceError):
		return http.StatusBadGateway, "inventory_error"
	case errors.Is(err, inventory.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "inventory_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "cancelled"
	case errors.Is(err, cart.ErrInvalidQuantity):
		return http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, cart.ErrBookNotFound):
		return http.StatusNotFound, "book_not_found"
	case errors.Is(err, cart.ErrLineNotFound):
		return http.StatusNotFound, "cart_item_not_found"
	case errors.Is(err, orders.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	code, kind := statusFor(err)
	body := errorBody{Error: kind}
	if code >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("kind", kind), zap.Error(err))
		if code == http.StatusInternalServerError {
			writeJSON(w, code, body)
			return
		}
	}
	body.Detail = err.Error()
	writeJSON(w, code, body)
}
