package redisx

import "time"

const (
	// Checkout replay: idem:checkout:{customer}:{idempotency key} -> ["order id", ...]
	KeyIdemCheckout = "idem:checkout:%s:%s"

	// Order snapshot: order:{order_id} -> Order JSON
	KeyOrder = "order:%s"

	// Snapshot generation: order_gen:{order_id} -> counter bumped on every
	// eviction. A fill only lands if the counter has not moved since the
	// filler read the order.
	KeyOrderGen = "order_gen:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLOrderCache  = 5 * time.Minute
	TTLOrderGen    = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)
