package orders

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// AddToCart adds qty units of a product, merging into an existing line. The
// merged quantity must fit the product's current stock.
func (s *Service) AddToCart(ctx context.Context, customer, productID string, qty int) (CartLine, error) {
	if qty < 1 {
		return CartLine{}, &ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	var line CartLine
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		p, err := activeProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		existing, found, err := findLine(ctx, tx, customer, productID)
		if err != nil {
			return err
		}
		line = CartLine{ProductID: productID, Customer: customer, Quantity: qty, AddedAt: s.now()}
		if found {
			line.Quantity += existing.Quantity
			line.AddedAt = existing.AddedAt
		}
		if line.Quantity > p.Stock {
			return &InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Requested: line.Quantity, Available: p.Stock}
		}
		return tx.PutCartLine(ctx, line)
	})
	if err != nil {
		return CartLine{}, txError("add to cart", err)
	}
	return line, nil
}

// UpdateCartLine replaces the quantity of an existing line.
func (s *Service) UpdateCartLine(ctx context.Context, customer, productID string, qty int) (CartLine, error) {
	if qty < 1 {
		return CartLine{}, &ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	var line CartLine
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		p, err := activeProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		existing, found, err := findLine(ctx, tx, customer, productID)
		if err != nil {
			return err
		}
		if !found {
			return &NotFoundError{Entity: "cart line", ID: productID}
		}
		if qty > p.Stock {
			return &InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Requested: qty, Available: p.Stock}
		}
		line = existing
		line.Quantity = qty
		return tx.PutCartLine(ctx, line)
	})
	if err != nil {
		return CartLine{}, txError("update cart line", err)
	}
	return line, nil
}

func (s *Service) RemoveCartLine(ctx context.Context, customer, productID string) error {
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		_, found, err := findLine(ctx, tx, customer, productID)
		if err != nil {
			return err
		}
		if !found {
			return &NotFoundError{Entity: "cart line", ID: productID}
		}
		return tx.RemoveCartLines(ctx, customer, []string{productID})
	})
	return txError("remove cart line", err)
}

// ClearCart drops every line of the customer's cart. An empty cart is not an
// error.
func (s *Service) ClearCart(ctx context.Context, customer string) error {
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		lines, err := tx.LockCartLines(ctx, customer)
		if err != nil || len(lines) == 0 {
			return err
		}
		ids := make([]string, 0, len(lines))
		for _, l := range lines {
			ids = append(ids, l.ProductID)
		}
		return tx.RemoveCartLines(ctx, customer, ids)
	})
	return txError("clear cart", err)
}

// CartView joins the customer's lines with their products. Lines whose
// product no longer exists are left out.
func (s *Service) CartView(ctx context.Context, customer string) (CartView, error) {
	lines, err := s.Store.ListCartLines(ctx, customer)
	if err != nil {
		return CartView{}, txError("view cart", err)
	}
	view := CartView{Customer: customer, Items: []CartItemView{}, Total: decimal.Zero}
	for _, l := range lines {
		p, err := s.Store.GetProduct(ctx, l.ProductID)
		if errors.Is(err, ErrNoRecord) {
			continue
		}
		if err != nil {
			return CartView{}, txError("view cart", err)
		}
		sub := p.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		view.Items = append(view.Items, CartItemView{
			ProductID:   p.ID,
			ProductName: p.Name,
			Price:       p.Price,
			Quantity:    l.Quantity,
			Subtotal:    sub,
		})
		view.Total = view.Total.Add(sub)
	}
	return view, nil
}

func activeProduct(ctx context.Context, tx Tx, id string) (Product, error) {
	p, err := tx.GetProduct(ctx, id)
	if errors.Is(err, ErrNoRecord) || (err == nil && !p.Active) {
		return Product{}, &NotFoundError{Entity: "product", ID: id}
	}
	return p, err
}

func findLine(ctx context.Context, tx Tx, customer, productID string) (CartLine, bool, error) {
	lines, err := tx.ListCartLines(ctx, customer)
	if err != nil {
		return CartLine{}, false, err
	}
	for _, l := range lines {
		if l.ProductID == productID {
			return l, true, nil
		}
	}
	return CartLine{}, false, nil
}
