package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-shop-orders.git/internal/metrics"
	"github.com/ariefcatur/go-shop-orders.git/internal/orders"
)

const HeaderIdempotencyKey = "Idempotency-Key"

// CheckoutReplay remembers the outcome of a keyed checkout.
type CheckoutReplay interface {
	LookupCheckout(ctx context.Context, customer, key string) ([]string, bool, error)
	RememberCheckout(ctx context.Context, customer, key string, orderIDs []string) error
}

// OrderCache holds order snapshots that go stale on a status change.
type OrderCache interface {
	DeleteOrder(ctx context.Context, id string) error
}

// Handler exposes the order service over HTTP. Replay, Orders and Metrics are
// optional.
type Handler struct {
	Service *orders.Service
	Replay  CheckoutReplay
	Orders  OrderCache
	Metrics *metrics.ServerMetrics
	Log     logrus.FieldLogger
	Timeout time.Duration
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)

	r.Group(func(r chi.Router) {
		r.Use(RequireActor)
		r.Post("/checkout", h.checkout)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Put("/orders/{id}/status", h.updateStatus)

		r.Get("/cart", h.viewCart)
		r.Delete("/cart", h.clearCart)
		r.Post("/cart/items", h.addCartItem)
		r.Put("/cart/items/{productId}", h.updateCartItem)
		r.Delete("/cart/items/{productId}", h.removeCartItem)
	})
}

type CheckoutReq struct {
	PaymentMethod   string `json:"paymentMethod"`
	ShippingAddress string `json:"shippingAddress"`
}

type CheckoutResp struct {
	OrderIDs   []string `json:"orderIds"`
	Idempotent bool     `json:"idempotent"`
}

type UpdateStatusReq struct {
	Status string `json:"status"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if !requireCustomer(w, actor, "check out") {
		return
	}
	var req CheckoutReq
	if !decode(w, r, &req) {
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	// Fast-path replay via redis; the database stays the source of truth.
	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if key != "" && h.Replay != nil {
		ids, ok, err := h.Replay.LookupCheckout(ctx, actor.ID, key)
		if err != nil {
			h.logger(r).WithError(err).Warn("checkout replay lookup failed")
		}
		if ok {
			h.observeCheckout(metrics.OutcomeReplayed)
			writeJSON(w, http.StatusCreated, CheckoutResp{OrderIDs: ids, Idempotent: true})
			return
		}
	}

	ids, err := h.Service.Checkout(ctx, orders.CheckoutRequest{
		Customer:        actor.ID,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		if orders.IsRuleViolation(err) {
			h.observeCheckout(metrics.OutcomeRejected)
		} else {
			h.observeCheckout(metrics.OutcomeFailed)
		}
		h.fail(w, r, err)
		return
	}
	h.observeCheckout(metrics.OutcomePlaced)

	if key != "" && h.Replay != nil {
		if err := h.Replay.RememberCheckout(ctx, actor.ID, key, ids); err != nil {
			h.logger(r).WithError(err).Warn("checkout replay store failed")
		}
	}
	h.logger(r).WithFields(logrus.Fields{"customer": actor.ID, "orders": len(ids)}).Info("checkout placed")
	writeJSON(w, http.StatusCreated, CheckoutResp{OrderIDs: ids})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	out, err := h.Service.ListOrders(ctx, actorFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	o, err := h.Service.GetOrder(ctx, actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusReq
	if !decode(w, r, &req) {
		return
	}
	to, err := orders.ParseStatus(req.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	id := chi.URLParam(r, "id")
	o, err := h.Service.UpdateStatus(ctx, id, to, actorFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.Transition(to.String())
	}
	if h.Orders != nil {
		if err := h.Orders.DeleteOrder(ctx, id); err != nil {
			h.logger(r).WithError(err).WithField("order_id", id).Warn("order snapshot invalidation failed")
		}
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	ps, err := h.Service.ListProducts(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	p, err := h.Service.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, &orders.ValidationError{Field: "body", Reason: "invalid json"})
		return false
	}
	return true
}

func (h *Handler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	d := h.Timeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// fail writes err and logs it when it is a fault rather than a rule violation.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, body := errorResponse(err)
	if code >= http.StatusInternalServerError {
		h.logger(r).WithError(err).Error("request failed")
	}
	writeJSON(w, code, body)
}

func (h *Handler) observeCheckout(outcome string) {
	if h.Metrics != nil {
		h.Metrics.Checkout(outcome)
	}
}

func (h *Handler) logger(r *http.Request) logrus.FieldLogger {
	log := h.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return log.WithField("request_id", middleware.GetReqID(r.Context()))
}
