package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ariefcatur/go-bookstore-checkout/internal/orders"
	"github.com/ariefcatur/go-bookstore-checkout/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Checkouter interface {
	Checkout(ctx context.Context, owner string) (*orders.Order, error)
}

type OrderQuery interface {
	Get(ctx context.Context, id uuid.UUID) (*orders.Order, error)
	ListByOwner(ctx context.Context, owner string) ([]orders.Order, error)
}

type OrdersHandler struct {
	Checkout Checkouter
	Orders   OrderQuery
	Redis    *redis.Client
	Log      *zap.Logger
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireOwner)
		r.Post("/checkout", h.checkout)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
	})
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	o, err := h.Checkout.Checkout(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrder(o))
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Orders.ListByOwner(ctx, ownerFrom(r.Context()))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	out := make([]orderView, 0, len(list))
	for i := range list {
		out = append(out, toOrder(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "id must be a uuid")
		return
	}
	owner := ownerFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	key := fmt.Sprintf(redisx.KeyOrder, id)
	if b, err := h.Redis.Get(ctx, key).Bytes(); err == nil {
		var v orderView
		if json.Unmarshal(b, &v) == nil {
			if v.UserID != owner {
				writeError(w, h.Log, orders.ErrOrderNotFound)
				return
			}
			writeJSON(w, http.StatusOK, v)
			return
		}
	} else if !errors.Is(err, redis.Nil) {
		h.Log.Warn("order cache read", zap.String("key", key), zap.Error(err))
	}

	// 2) fallback DB
	o, err := h.Orders.Get(ctx, id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	// someone else's order looks the same as a missing one
	if o.Owner != owner {
		writeError(w, h.Log, orders.ErrOrderNotFound)
		return
	}
	v := toOrder(o)
	if b, err := json.Marshal(v); err == nil {
		if err := h.Redis.Set(ctx, key, b, redisx.TTLOrderCache).Err(); err != nil {
			h.Log.Warn("order cache write", zap.String("key", key), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, v)
}
