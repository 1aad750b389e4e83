package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-shop-orders.git/internal/orders"
)

// Cache is a best-effort layer: the database stays the source of truth and
// callers treat cache errors as misses.
type Cache struct {
	RDB *redis.Client
}

func NewCache(rdb *redis.Client) *Cache { return &Cache{RDB: rdb} }

func (c *Cache) GetOrder(ctx context.Context, id string) (orders.Order, bool, error) {
	b, err := c.RDB.Get(ctx, fmt.Sprintf(KeyOrder, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return orders.Order{}, false, nil
	}
	if err != nil {
		return orders.Order{}, false, err
	}
	var o orders.Order
	if err := json.Unmarshal(b, &o); err != nil {
		return orders.Order{}, false, err
	}
	return o, true, nil
}

// Generation returns the order's snapshot generation, 0 if it was never
// evicted. Read it before loading the order that will be passed to FillOrder.
func (c *Cache) Generation(ctx context.Context, id string) (int64, error) {
	return parseGen(c.RDB.Get(ctx, fmt.Sprintf(KeyOrderGen, id)))
}

// FillOrder stores o unless a snapshot is already cached or the order was
// evicted since gen was read. It reports whether o was stored.
func (c *Cache) FillOrder(ctx context.Context, o orders.Order, gen int64) (bool, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return false, err
	}
	genKey := fmt.Sprintf(KeyOrderGen, o.ID)

	var stored bool
	err = c.RDB.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := parseGen(tx.Get(ctx, genKey))
		if err != nil || cur != gen {
			return err
		}
		var set *redis.BoolCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			set = pipe.SetNX(ctx, fmt.Sprintf(KeyOrder, o.ID), b, TTLOrderCache)
			return nil
		})
		if err == nil {
			stored = set.Val()
		}
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		// evicted while we were filling
		return false, nil
	}
	return stored, err
}

// DeleteOrder evicts the snapshot and bumps its generation, so fills that
// loaded the order before this call are dropped.
func (c *Cache) DeleteOrder(ctx context.Context, id string) error {
	genKey := fmt.Sprintf(KeyOrderGen, id)
	_, err := c.RDB.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, TTLOrderGen)
		pipe.Del(ctx, fmt.Sprintf(KeyOrder, id))
		return nil
	})
	return err
}

func parseGen(cmd *redis.StringCmd) (int64, error) {
	n, err := cmd.Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (c *Cache) RememberCheckout(ctx context.Context, customer, key string, orderIDs []string) error {
	b, err := json.Marshal(orderIDs)
	if err != nil {
		return err
	}
	return c.RDB.Set(ctx, fmt.Sprintf(KeyIdemCheckout, customer, key), b, TTLIdempotency).Err()
}

func (c *Cache) LookupCheckout(ctx context.Context, customer, key string) ([]string, bool, error) {
	b, err := c.RDB.Get(ctx, fmt.Sprintf(KeyIdemCheckout, customer, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return nil, false, err
	}
	return ids, true, nil
}

// MarkSeen records eventID for service and reports whether this call was the
// first to do so.
func (c *Cache) MarkSeen(ctx context.Context, service, eventID string) (bool, error) {
	return c.RDB.SetNX(ctx, fmt.Sprintf(KeyDedup, service, eventID), "1", TTLDedup).Result()
}

// Forget releases a dedup mark so a failed event can be retried.
func (c *Cache) Forget(ctx context.Context, service, eventID string) error {
	return c.RDB.Del(ctx, fmt.Sprintf(KeyDedup, service, eventID)).Err()
}
