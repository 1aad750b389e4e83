package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type AddCartItemReq struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type UpdateCartItemReq struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) viewCart(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if !requireCustomer(w, actor, "view cart") {
		return
	}
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	v, err := h.Service.CartView(ctx, actor.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if !requireCustomer(w, actor, "add to cart") {
		return
	}
	var req AddCartItemReq
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	line, err := h.Service.AddToCart(ctx, actor.ID, req.ProductID, req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, line)
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if !requireCustomer(w, actor, "update cart") {
		return
	}
	var req UpdateCartItemReq
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	line, err := h.Service.UpdateCartLine(ctx, actor.ID, chi.URLParam(r, "productId"), req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if !requireCustomer(w, actor, "update cart") {
		return
	}
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	if err := h.Service.RemoveCartLine(ctx, actor.ID, chi.URLParam(r, "productId")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if !requireCustomer(w, actor, "update cart") {
		return
	}
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	if err := h.Service.ClearCart(ctx, actor.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
