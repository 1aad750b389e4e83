package orders_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-shop-orders.git/internal/memstore"
	"github.com/ariefcatur/go-shop-orders.git/internal/orders"
)

var epoch = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*orders.Service, *memstore.Store) {
	t.Helper()
	ms := memstore.New()
	svc := orders.NewService(ms, "orders-test")

	var tick, seq atomic.Int64
	svc.Now = func() time.Time { return epoch.Add(time.Duration(tick.Add(1)) * time.Second) }
	svc.NewID = func() string { return fmt.Sprintf("o-%d", seq.Add(1)) }
	return svc, ms
}

func product(id, owner string, stock int) orders.Product {
	return orders.Product{
		ID:     id,
		Name:   "product " + id,
		Price:  decimal.NewFromInt(10),
		Stock:  stock,
		Owner:  owner,
		Active: true,
	}
}

func stockOf(t *testing.T, ms *memstore.Store, id string) int {
	t.Helper()
	p, err := ms.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func addToCart(t *testing.T, svc *orders.Service, customer, productID string, qty int) {
	t.Helper()
	_, err := svc.AddToCart(context.Background(), customer, productID, qty)
	require.NoError(t, err)
}

// insertOrder places an order at an arbitrary status, bypassing checkout.
func insertOrder(t *testing.T, ms *memstore.Store, o orders.Order) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, ms.WithTx(ctx, func(tx orders.Tx) error { return tx.InsertOrder(ctx, o) }))
}

func checkoutReq(customer string) orders.CheckoutRequest {
	return orders.CheckoutRequest{Customer: customer, PaymentMethod: "card", ShippingAddress: "1 Main St"}
}
