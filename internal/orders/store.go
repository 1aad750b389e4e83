package orders

import "context"

// Catalog is the read side of the product store. Missing rows yield ErrNoRecord.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	ListProductsByOwner(ctx context.Context, owner string) ([]Product, error)
}

// Cart returns lines in insertion order, product id breaking ties.
type Cart interface {
	ListCartLines(ctx context.Context, customer string) ([]CartLine, error)
	PutCartLine(ctx context.Context, line CartLine) error
	RemoveCartLines(ctx context.Context, customer string, productIDs []string) error
}

type Ledger interface {
	GetOrder(ctx context.Context, id string) (Order, error)
	ListOrdersByCustomer(ctx context.Context, customer string) ([]Order, error)
	ListOrdersByProducts(ctx context.Context, productIDs []string) ([]Order, error)
}

// Tx is one unit of work. Locks taken through LockCartLines, LockProduct and
// LockOrder are held until the enclosing WithTx returns. Inside a Tx,
// RemoveCartLines fails with ErrCartChanged unless every line was removed, and
// InsertOrder fails with ErrDuplicate on an id collision.
type Tx interface {
	Catalog
	Cart
	Ledger

	// LockCartLines returns the customer's lines like ListCartLines and holds
	// them until the transaction ends. A concurrent checkout of the same cart
	// waits, then sees the lines it left behind.
	LockCartLines(ctx context.Context, customer string) ([]CartLine, error)
	LockProduct(ctx context.Context, id string) (Product, error)
	// DecrementStock fails with ErrStockExhausted instead of going negative.
	DecrementStock(ctx context.Context, productID string, qty int) error

	LockOrder(ctx context.Context, id string) (Order, error)
	InsertOrder(ctx context.Context, o Order) error
	SetOrderStatus(ctx context.Context, id string, s Status) error

	Enqueue(ctx context.Context, ev OutboxEvent) error
}

// Store commits fn's writes when it returns nil and rolls everything back
// otherwise, including when ctx is cancelled before commit.
type Store interface {
	Catalog
	Cart
	Ledger

	WithTx(ctx context.Context, fn func(tx Tx) error) error
}
