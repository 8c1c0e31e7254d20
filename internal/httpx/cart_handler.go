package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/go-bookstore-checkout/internal/cart"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CartService interface {
	LinesFor(ctx context.Context, owner string) ([]cart.Line, error)
	Add(ctx context.Context, owner string, bookID uuid.UUID, qty int) (cart.Line, error)
	SetQuantity(ctx context.Context, owner string, lineID uuid.UUID, qty int) error
	Remove(ctx context.Context, owner string, lineID uuid.UUID) error
}

type CartHandler struct {
	Carts CartService
	Log   *zap.Logger
}

type addCartReq struct {
	BookID   string `json:"book_id"`
	Quantity int    `json:"quantity"`
}

type setQuantityReq struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Use(RequireOwner)
		r.Get("/", h.list)
		r.Post("/", h.add)
		r.Put("/{itemId}", h.setQuantity)
		r.Delete("/{itemId}", h.remove)
	})
}

func (h *CartHandler) list(w http.ResponseWriter, r *http.Request) {
	lines, err := h.Carts.LinesFor(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toCart(lines))
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	var req addCartReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	bookID, err := uuid.Parse(req.BookID)
	if err != nil {
		badRequest(w, "book_id must be a uuid")
		return
	}
	l, err := h.Carts.Add(r.Context(), ownerFrom(r.Context()), bookID, req.Quantity)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartLine(l))
}

func (h *CartHandler) setQuantity(w http.ResponseWriter, r *http.Request) {
	lineID, ok := itemID(w, r)
	if !ok {
		return
	}
	var req setQuantityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if err := h.Carts.SetQuantity(r.Context(), ownerFrom(r.Context()), lineID, req.Quantity); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	lineID, ok := itemID(w, r)
	if !ok {
		return
	}
	if err := h.Carts.Remove(r.Context(), ownerFrom(r.Context()), lineID); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func itemID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		badRequest(w, "itemId must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}
