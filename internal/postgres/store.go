package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/ariefcatur/go-shop-orders.git/internal/orders"
	"github.com/ariefcatur/go-shop-orders.git/internal/outbox"
)

// dbtx is the query surface shared by *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is the part of *pgxpool.Pool the store uses.
type Pool interface {
	dbtx
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

var _ Pool = (*pgxpool.Pool)(nil)

type Store struct {
	queries
	DB Pool
}

var (
	_ orders.Store  = (*Store)(nil)
	_ orders.Tx     = (*tx)(nil)
	_ outbox.Source = (*Store)(nil)
)

func NewStore(db Pool) *Store {
	return &Store{queries: queries{db: db}, DB: db}
}

// WithTx runs fn in a READ COMMITTED transaction. Row locks taken with
// SELECT ... FOR UPDATE serialize concurrent writers per product and order.
func (s *Store) WithTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	pgtx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	if err := fn(&tx{queries{db: pgtx}}); err != nil {
		_ = pgtx.Rollback(ctx)
		return err
	}
	return errors.Wrap(pgtx.Commit(ctx), "commit tx")
}

type tx struct {
	queries
}

func (t *tx) LockCartLines(ctx context.Context, customer string) ([]orders.CartLine, error) {
	return t.cartLines(ctx, customer, " FOR UPDATE")
}

// RemoveCartLines only succeeds if every requested line was still there.
func (t *tx) RemoveCartLines(ctx context.Context, customer string, productIDs []string) error {
	want := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		want[id] = true
	}
	n, err := t.deleteCartLines(ctx, customer, productIDs)
	if err != nil {
		return err
	}
	if n != int64(len(want)) {
		return errors.Wrapf(orders.ErrCartChanged, "removed %d of %d cart lines of %s", n, len(want), customer)
	}
	return nil
}

func (t *tx) LockProduct(ctx context.Context, id string) (orders.Product, error) {
	return scanProduct(t.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, id))
}

func (t *tx) DecrementStock(ctx context.Context, productID string, qty int) error {
	ct, err := t.db.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id=$1 AND stock >= $2`, productID, qty)
	if err != nil {
		return errors.Wrapf(err, "decrement stock %s", productID)
	}
	if ct.RowsAffected() != 1 {
		return errors.Wrapf(orders.ErrStockExhausted, "decrement stock %s by %d", productID, qty)
	}
	return nil
}

func (t *tx) LockOrder(ctx context.Context, id string) (orders.Order, error) {
	return scanOrder(t.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id))
}

func (t *tx) InsertOrder(ctx context.Context, o orders.Order) error {
	_, err := t.db.Exec(ctx, `
		INSERT INTO orders(id, product_id, quantity, customer, status, created_at, shipping_address, payment_method)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		o.ID, o.ProductID, o.Quantity, o.Customer, string(o.Status), o.Timestamp, o.ShippingAddress, o.PaymentMethod,
	)
	if isUniqueViolation(err) {
		return errors.Wrapf(orders.ErrDuplicate, "insert order %s", o.ID)
	}
	return errors.Wrapf(err, "insert order %s", o.ID)
}

func (t *tx) SetOrderStatus(ctx context.Context, id string, s orders.Status) error {
	ct, err := t.db.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, id, string(s))
	if err != nil {
		return errors.Wrapf(err, "set status of order %s", id)
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNoRecord
	}
	return nil
}

// isUniqueViolation reports a Postgres unique_violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
