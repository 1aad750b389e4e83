package orders

import (
	"context"
	"errors"
	"sort"
	"strings"
)

type CheckoutRequest struct {
	Customer        string
	PaymentMethod   string
	ShippingAddress string
}

func (r CheckoutRequest) validate() error {
	switch {
	case strings.TrimSpace(r.Customer) == "":
		return &ValidationError{Field: "customer", Reason: "required"}
	case strings.TrimSpace(r.PaymentMethod) == "":
		return &ValidationError{Field: "paymentMethod", Reason: "required"}
	case strings.TrimSpace(r.ShippingAddress) == "":
		return &ValidationError{Field: "shippingAddress", Reason: "required"}
	}
	return nil
}

// Checkout turns the customer's whole cart into Pending orders, one per cart
// line, decrementing stock and emptying the cart in a single transaction.
// Order ids are returned in cart order. On any error nothing is written.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) ([]string, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var ids []string
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		lines, err := tx.LockCartLines(ctx, req.Customer)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return &ValidationError{Field: "cart", Reason: "empty cart"}
		}

		products, err := lockProducts(ctx, tx, lines)
		if err != nil {
			return err
		}
		for _, l := range lines {
			p, ok := products[l.ProductID]
			if !ok {
				return &NotFoundError{Entity: "product", ID: l.ProductID}
			}
			if p.Stock < l.Quantity {
				return &InsufficientStockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Requested:   l.Quantity,
					Available:   p.Stock,
				}
			}
		}

		now := s.now()
		created := make([]string, 0, len(lines))
		removed := make([]string, 0, len(lines))
		for _, l := range lines {
			if err := tx.DecrementStock(ctx, l.ProductID, l.Quantity); err != nil {
				return err
			}
			o := Order{
				ID:              s.newID(),
				ProductID:       l.ProductID,
				Quantity:        l.Quantity,
				Customer:        req.Customer,
				Status:          StatusPending,
				Timestamp:       now,
				ShippingAddress: req.ShippingAddress,
				PaymentMethod:   req.PaymentMethod,
			}
			if err := tx.InsertOrder(ctx, o); err != nil {
				return err
			}
			ev, err := newEvent(s.ServiceName, TopicOrderPlaced, EventOrderPlaced, o.ID, OrderPlacedPayload{
				OrderID:         o.ID,
				ProductID:       o.ProductID,
				Customer:        o.Customer,
				Quantity:        o.Quantity,
				Status:          o.Status,
				Timestamp:       o.Timestamp,
				ShippingAddress: o.ShippingAddress,
				PaymentMethod:   o.PaymentMethod,
			}, now)
			if err != nil {
				return err
			}
			if err := tx.Enqueue(ctx, ev); err != nil {
				return err
			}
			created = append(created, o.ID)
			removed = append(removed, l.ProductID)
		}
		if err := tx.RemoveCartLines(ctx, req.Customer, removed); err != nil {
			return err
		}
		ids = created
		return nil
	})
	if err != nil {
		return nil, txError("checkout", err)
	}
	return ids, nil
}

// lockProducts locks every referenced product row in id order so that two
// checkouts sharing products cannot deadlock. Missing products are left out
// of the result.
func lockProducts(ctx context.Context, tx Tx, lines []CartLine) (map[string]Product, error) {
	ids := make([]string, 0, len(lines))
	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}
	sort.Strings(ids)

	out := make(map[string]Product, len(ids))
	for _, id := range ids {
		p, err := tx.LockProduct(ctx, id)
		if errors.Is(err, ErrNoRecord) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, nil
}
