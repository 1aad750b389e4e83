package orders

import (
	"context"
	"errors"
	"sort"
)

// ListOrders returns, newest first, the orders for the seller's products or
// the customer's own orders.
func (s *Service) ListOrders(ctx context.Context, actor Actor) ([]Order, error) {
	var (
		out []Order
		err error
	)
	switch actor.Role {
	case RoleSeller:
		out, err = s.sellerOrders(ctx, actor.ID)
	case RoleCustomer:
		out, err = s.Store.ListOrdersByCustomer(ctx, actor.ID)
	default:
		return nil, &PermissionError{Actor: actor.ID, Action: "list orders"}
	}
	if err != nil {
		return nil, txError("list orders", err)
	}
	if out == nil {
		out = []Order{}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (s *Service) sellerOrders(ctx context.Context, seller string) ([]Order, error) {
	products, err := s.Store.ListProductsByOwner(ctx, seller)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return s.Store.ListOrdersByProducts(ctx, ids)
}

// GetOrder is visible to the order's customer and to the product's owner.
func (s *Service) GetOrder(ctx context.Context, actor Actor, id string) (Order, error) {
	o, err := s.Store.GetOrder(ctx, id)
	if errors.Is(err, ErrNoRecord) {
		return Order{}, &NotFoundError{Entity: "order", ID: id}
	}
	if err != nil {
		return Order{}, txError("get order", err)
	}
	switch actor.Role {
	case RoleCustomer:
		if o.Customer == actor.ID {
			return o, nil
		}
	case RoleSeller:
		p, err := s.Store.GetProduct(ctx, o.ProductID)
		if err != nil && !errors.Is(err, ErrNoRecord) {
			return Order{}, txError("get order", err)
		}
		if err == nil && p.Owner == actor.ID {
			return o, nil
		}
	}
	return Order{}, &PermissionError{Actor: actor.ID, Action: "view order " + id}
}

func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	ps, err := s.Store.ListProducts(ctx)
	if err != nil {
		return nil, txError("list products", err)
	}
	if ps == nil {
		ps = []Product{}
	}
	return ps, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (Product, error) {
	p, err := s.Store.GetProduct(ctx, id)
	if errors.Is(err, ErrNoRecord) {
		return Product{}, &NotFoundError{Entity: "product", ID: id}
	}
	if err != nil {
		return Product{}, txError("get product", err)
	}
	return p, nil
}
