package orders

import (
	"context"
	"errors"
	"fmt"
)

// UpdateStatus moves an order one step along Pending → Accepted → Shipped →
// Completed. Checks run in a fixed order: order exists, product exists, the
// actor may set the requested status, the requested status is the immediate
// successor of the current one.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to Status, actor Actor) (Order, error) {
	var updated Order
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if errors.Is(err, ErrNoRecord) {
			return &NotFoundError{Entity: "order", ID: orderID}
		}
		if err != nil {
			return err
		}

		p, err := tx.GetProduct(ctx, o.ProductID)
		if errors.Is(err, ErrNoRecord) {
			return &NotFoundError{Entity: "product", ID: o.ProductID}
		}
		if err != nil {
			return err
		}

		if err := authorizeTransition(o, p, to, actor); err != nil {
			return err
		}
		if !CanTransition(o.Status, to) {
			return &InvalidTransitionError{From: o.Status, To: to}
		}

		if err := tx.SetOrderStatus(ctx, o.ID, to); err != nil {
			return err
		}
		ev, err := newEvent(s.ServiceName, TopicOrderStatus, EventOrderStatusChanged, o.ID, OrderStatusChangedPayload{
			OrderID:   o.ID,
			From:      o.Status,
			To:        to,
			ChangedBy: actor.ID,
		}, s.now())
		if err != nil {
			return err
		}
		if err := tx.Enqueue(ctx, ev); err != nil {
			return err
		}

		o.Status = to
		updated = o
		return nil
	})
	if err != nil {
		return Order{}, txError("update order status", err)
	}
	return updated, nil
}

// authorizeTransition gates on role only; transition order is checked after.
func authorizeTransition(o Order, p Product, to Status, actor Actor) error {
	deny := &PermissionError{
		Actor:  fmt.Sprintf("%s %s", actor.Role, actor.ID),
		Action: fmt.Sprintf("set order %s to %s", o.ID, to),
	}
	switch to {
	case StatusAccepted, StatusShipped:
		if actor.Role != RoleSeller || actor.ID != p.Owner {
			return deny
		}
	case StatusCompleted:
		if actor.Role != RoleCustomer || actor.ID != o.Customer {
			return deny
		}
	case StatusPending:
		// nobody may request Pending; the transition check rejects it
	}
	return nil
}
