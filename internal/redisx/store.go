package redisx

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-shop-orders.git/internal/orders"
)

// CachedStore serves GetOrder from the order snapshot cache and falls back to
// the wrapped store. Transactions always go to the wrapped store. Whoever
// changes an order must call Cache.DeleteOrder after commit.
type CachedStore struct {
	orders.Store
	Cache *Cache
	Log   logrus.FieldLogger
}

func (s *CachedStore) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	o, ok, err := s.Cache.GetOrder(ctx, id)
	if err == nil && ok {
		return o, nil
	}
	fill := err == nil
	if err != nil {
		s.logger().WithError(err).WithField("order_id", id).Warn("order cache read failed")
	}

	var gen int64
	if fill {
		if gen, err = s.Cache.Generation(ctx, id); err != nil {
			s.logger().WithError(err).WithField("order_id", id).Warn("order cache read failed")
			fill = false
		}
	}

	o, err = s.Store.GetOrder(ctx, id)
	if err != nil || !fill {
		return o, err
	}
	if _, err := s.Cache.FillOrder(ctx, o, gen); err != nil {
		s.logger().WithError(err).WithField("order_id", id).Warn("order cache write failed")
	}
	return o, nil
}

func (s *CachedStore) logger() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}
