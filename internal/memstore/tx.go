package memstore

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-shop-orders.git/internal/orders"
)

type tx struct {
	view
}

var _ orders.Tx = (*tx)(nil)

// LockCartLines, LockProduct and LockOrder are plain reads: the whole
// transaction already holds the store lock.
func (t *tx) LockCartLines(ctx context.Context, customer string) ([]orders.CartLine, error) {
	return t.ListCartLines(ctx, customer)
}

func (t *tx) LockProduct(ctx context.Context, id string) (orders.Product, error) {
	return t.GetProduct(ctx, id)
}

func (t *tx) DecrementStock(_ context.Context, productID string, qty int) error {
	p, ok := t.st.products[productID]
	if !ok {
		return orders.ErrNoRecord
	}
	if qty <= 0 {
		return fmt.Errorf("decrement %s: non-positive quantity %d", productID, qty)
	}
	if p.Stock < qty {
		return orders.ErrStockExhausted
	}
	p.Stock -= qty
	t.st.products[productID] = p
	return nil
}

func (t *tx) PutCartLine(_ context.Context, line orders.CartLine) error {
	lines := t.st.carts[line.Customer]
	for i := range lines {
		if lines[i].ProductID == line.ProductID {
			lines[i] = line
			return nil
		}
	}
	t.st.carts[line.Customer] = append(lines, line)
	return nil
}

func (t *tx) RemoveCartLines(_ context.Context, customer string, productIDs []string) error {
	if missing := t.removeCartLines(customer, productIDs); missing > 0 {
		return fmt.Errorf("remove cart lines of %s: %d missing: %w", customer, missing, orders.ErrCartChanged)
	}
	return nil
}

// removeCartLines drops the listed lines and reports how many were not there.
func (t *tx) removeCartLines(customer string, productIDs []string) int {
	drop := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		drop[id] = true
	}
	var kept []orders.CartLine
	for _, l := range t.st.carts[customer] {
		if drop[l.ProductID] {
			delete(drop, l.ProductID)
			continue
		}
		kept = append(kept, l)
	}
	if len(kept) == 0 {
		delete(t.st.carts, customer)
	} else {
		t.st.carts[customer] = kept
	}
	return len(drop)
}

func (t *tx) LockOrder(ctx context.Context, id string) (orders.Order, error) {
	return t.GetOrder(ctx, id)
}

func (t *tx) InsertOrder(_ context.Context, o orders.Order) error {
	if _, exists := t.st.orders[o.ID]; exists {
		return fmt.Errorf("insert order %s: %w", o.ID, orders.ErrDuplicate)
	}
	t.st.orders[o.ID] = o
	t.st.orderSeq = append(t.st.orderSeq, o.ID)
	return nil
}

func (t *tx) SetOrderStatus(_ context.Context, id string, s orders.Status) error {
	o, ok := t.st.orders[id]
	if !ok {
		return orders.ErrNoRecord
	}
	o.Status = s
	t.st.orders[id] = o
	return nil
}

func (t *tx) Enqueue(_ context.Context, ev orders.OutboxEvent) error {
	t.st.outbox = append(t.st.outbox, outboxEntry{id: t.st.outboxNext, ev: ev})
	t.st.outboxNext++
	return nil
}
