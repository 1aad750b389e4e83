package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-shop-orders.git/internal/memstore"
	"github.com/ariefcatur/go-shop-orders.git/internal/metrics"
	"github.com/ariefcatur/go-shop-orders.git/internal/orders"
	"github.com/ariefcatur/go-shop-orders.git/internal/redisx"
)

type fixture struct {
	router  http.Handler
	store   *memstore.Store
	svc     *orders.Service
	cache   *redisx.Cache
	metrics *metrics.ServerMetrics
	redis   *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log, _ := test.NewNullLogger()

	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	cache := redisx.NewCache(rdb)

	ms := memstore.New()
	ms.PutProduct(orders.Product{ID: "p-1", Name: "Mug", Price: decimal.RequireFromString("12.50"), Stock: 5, Owner: "seller-1", Active: true})
	ms.PutProduct(orders.Product{ID: "p-2", Name: "Tea", Price: decimal.RequireFromString("4.00"), Stock: 1, Owner: "seller-2", Active: true})

	svc := orders.NewService(&redisx.CachedStore{Store: ms, Cache: cache, Log: log}, "order-api-test")

	reg := prometheus.NewRegistry()
	m := metrics.NewServerMetrics(reg)
	r := NewRouter(log, m, reg)
	(&Handler{Service: svc, Replay: cache, Orders: cache, Metrics: m, Log: log}).Register(r)

	return &fixture{router: r, store: ms, svc: svc, cache: cache, metrics: m, redis: mr}
}

func (f *fixture) do(t *testing.T, method, path, user, role string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set(HeaderUserID, user)
		req.Header.Set(HeaderUserRole, role)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func (f *fixture) fillCart(t *testing.T, customer, productID string, qty int) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/cart/items", customer, "Customer", AddCartItemReq{ProductID: productID, Quantity: qty})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCheckoutCreatesOrders(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t, "alice", "p-1", 3)

	rec := f.do(t, http.MethodPost, "/checkout", "alice", "Customer", CheckoutReq{PaymentMethod: "card", ShippingAddress: "1 Main St"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody[CheckoutResp](t, rec)
	require.Len(t, resp.OrderIDs, 1)
	assert.False(t, resp.Idempotent)

	p, err := f.store.GetProduct(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock)

	rec = f.do(t, http.MethodGet, "/cart", "alice", "Customer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[orders.CartView](t, rec).Items)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Checkouts.WithLabelValues(metrics.OutcomePlaced)))
}

func TestCheckoutErrors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/checkout", "alice", "Customer", CheckoutReq{PaymentMethod: "card", ShippingAddress: "1 Main St"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[ErrorBody](t, rec)
	assert.Equal(t, CodeValidation, body.Error)
	assert.Equal(t, "cart", body.Details["field"])

	f.fillCart(t, "alice", "p-1", 1)
	rec = f.do(t, http.MethodPost, "/checkout", "alice", "Customer", CheckoutReq{PaymentMethod: "card"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "shippingAddress", decodeBody[ErrorBody](t, rec).Details["field"])

	rec = f.do(t, http.MethodPost, "/checkout", "bob", "Seller", CheckoutReq{PaymentMethod: "card", ShippingAddress: "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/checkout", "", "", CheckoutReq{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeUnauthorized, decodeBody[ErrorBody](t, rec).Error)

	rec = f.do(t, http.MethodPost, "/checkout", "alice", "Admin", CheckoutReq{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckoutInsufficientStock(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t, "alice", "p-2", 1)
	f.fillCart(t, "bob", "p-2", 1)

	rec := f.do(t, http.MethodPost, "/checkout", "alice", "Customer", CheckoutReq{PaymentMethod: "card", ShippingAddress: "a"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/checkout", "bob", "Customer", CheckoutReq{PaymentMethod: "card", ShippingAddress: "b"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[ErrorBody](t, rec)
	assert.Equal(t, CodeInsufficientStock, body.Error)
	assert.Equal(t, "Tea", body.Details["productName"])
	assert.EqualValues(t, 1, body.Details["requested"])
	assert.EqualValues(t, 0, body.Details["available"])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Checkouts.WithLabelValues(metrics.OutcomeRejected)))
}

func TestCheckoutReplay(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t, "alice", "p-1", 2)

	req := CheckoutReq{PaymentMethod: "card", ShippingAddress: "1 Main St"}
	first := f.do(t, http.MethodPost, "/checkout", "alice", "Customer", req, HeaderIdempotencyKey, "k-1")
	require.Equal(t, http.StatusCreated, first.Code)

	second := f.do(t, http.MethodPost, "/checkout", "alice", "Customer", req, HeaderIdempotencyKey, "k-1")
	require.Equal(t, http.StatusCreated, second.Code)
	replay := decodeBody[CheckoutResp](t, second)
	assert.True(t, replay.Idempotent)
	assert.Equal(t, decodeBody[CheckoutResp](t, first).OrderIDs, replay.OrderIDs)

	p, err := f.store.GetProduct(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
	assert.Len(t, f.store.Outbox(), 1)
}

func TestCheckoutStorageFault(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t, "alice", "p-1", 1)
	f.store.BeforeCommit = func() error { return errors.New("disk on fire") }

	rec := f.do(t, http.MethodPost, "/checkout", "alice", "Customer", CheckoutReq{PaymentMethod: "card", ShippingAddress: "a"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody[ErrorBody](t, rec)
	assert.Equal(t, CodeTransaction, body.Error)
	assert.NotContains(t, body.Message, "disk on fire")
}

func TestOrderLifecycle(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t, "alice", "p-1", 1)
	rec := f.do(t, http.MethodPost, "/checkout", "alice", "Customer", CheckoutReq{PaymentMethod: "card", ShippingAddress: "a"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[CheckoutResp](t, rec).OrderIDs[0]
	path := "/orders/" + id + "/status"

	// warm the snapshot
	rec = f.do(t, http.MethodGet, "/orders/"+id, "alice", "Customer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, f.redis.Exists("order:"+id))

	rec = f.do(t, http.MethodPut, path, "alice", "Customer", UpdateStatusReq{Status: "Accepted"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPut, path, "seller-1", "Seller", UpdateStatusReq{Status: "Shipped"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[ErrorBody](t, rec)
	assert.Equal(t, CodeInvalidTransition, body.Error)
	assert.Equal(t, "Pending", body.Details["from"])

	rec = f.do(t, http.MethodPut, path, "seller-1", "Seller", UpdateStatusReq{Status: "Accepted"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orders.StatusAccepted, decodeBody[orders.Order](t, rec).Status)
	assert.False(t, f.redis.Exists("order:"+id), "snapshot dropped after a status change")

	rec = f.do(t, http.MethodGet, "/orders/"+id, "alice", "Customer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orders.StatusAccepted, decodeBody[orders.Order](t, rec).Status)

	rec = f.do(t, http.MethodPut, path, "seller-1", "Seller", UpdateStatusReq{Status: "Bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeValidation, decodeBody[ErrorBody](t, rec).Error)

	rec = f.do(t, http.MethodPut, "/orders/missing/status", "seller-1", "Seller", UpdateStatusReq{Status: "Accepted"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Transitions.WithLabelValues("Accepted")))
}

func TestListAndGetOrdersByRole(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t, "alice", "p-1", 1)
	f.fillCart(t, "bob", "p-2", 1)
	for _, c := range []string{"alice", "bob"} {
		rec := f.do(t, http.MethodPost, "/checkout", c, "Customer", CheckoutReq{PaymentMethod: "card", ShippingAddress: "a"})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/orders", "alice", "Customer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decodeBody[[]orders.Order](t, rec)
	require.Len(t, mine, 1)
	assert.Equal(t, "alice", mine[0].Customer)

	rec = f.do(t, http.MethodGet, "/orders", "seller-2", "Seller", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sold := decodeBody[[]orders.Order](t, rec)
	require.Len(t, sold, 1)
	assert.Equal(t, "p-2", sold[0].ProductID)

	rec = f.do(t, http.MethodGet, "/orders/"+mine[0].ID, "bob", "Customer", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = f.do(t, http.MethodGet, "/orders/"+mine[0].ID, "seller-1", "Seller", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/orders", "carol", "Customer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestCartEndpoints(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t, "alice", "p-1", 1)
	f.fillCart(t, "alice", "p-1", 2)

	rec := f.do(t, http.MethodGet, "/cart", "alice", "Customer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeBody[orders.CartView](t, rec)
	require.Len(t, v.Items, 1)
	assert.Equal(t, 3, v.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("37.5").Equal(v.Total))

	rec = f.do(t, http.MethodPost, "/cart/items", "alice", "Customer", AddCartItemReq{ProductID: "p-1", Quantity: 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeInsufficientStock, decodeBody[ErrorBody](t, rec).Error)

	rec = f.do(t, http.MethodPut, "/cart/items/p-1", "alice", "Customer", UpdateCartItemReq{Quantity: 5})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, decodeBody[orders.CartLine](t, rec).Quantity)

	rec = f.do(t, http.MethodPut, "/cart/items/p-2", "alice", "Customer", UpdateCartItemReq{Quantity: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, "/cart/items/p-1", "alice", "Customer", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, "/cart/items/p-1", "alice", "Customer", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/cart/items", "alice", "Customer", AddCartItemReq{ProductID: "nope", Quantity: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodPost, "/cart/items", "alice", "Customer", AddCartItemReq{ProductID: "p-1", Quantity: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearCartEndpoint(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t, "alice", "p-1", 1)
	f.fillCart(t, "alice", "p-2", 1)

	rec := f.do(t, http.MethodDelete, "/cart", "seller-1", "Seller", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodDelete, "/cart", "alice", "Customer", nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = f.do(t, http.MethodGet, "/cart", "alice", "Customer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[orders.CartView](t, rec).Items)

	rec = f.do(t, http.MethodDelete, "/cart", "alice", "Customer", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPost, "/checkout", "alice", "Customer", CheckoutReq{PaymentMethod: "card", ShippingAddress: "1 Main St"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductsAndOps(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/products", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]orders.Product](t, rec), 2)

	rec = f.do(t, http.MethodGet, "/products/p-2", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Tea", decodeBody[orders.Product](t, rec).Name)

	rec = f.do(t, http.MethodGet, "/products/nope", "", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/healthz", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/metrics", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shop_http_requests_total")
}

func TestErrorResponseHidesFaultDetail(t *testing.T) {
	code, body := errorResponse(&orders.TransactionError{Op: "checkout", Err: errors.New("conn reset")})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, CodeTransaction, body.Error)
	assert.NotContains(t, body.Message, "conn reset")
}
