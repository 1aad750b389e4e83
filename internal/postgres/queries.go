package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-shop-orders.git/internal/orders"
)

const (
	productColumns = `id, name, description, price::text, stock, owner, active, created_at, updated_at`
	orderColumns   = `id, product_id, quantity, customer, status, created_at, shipping_address, payment_method`
)

type queries struct{ db dbtx }

func (q queries) GetProduct(ctx context.Context, id string) (orders.Product, error) {
	return scanProduct(q.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
}

func (q queries) ListProducts(ctx context.Context) ([]orders.Product, error) {
	rows, err := q.db.Query(ctx, `SELECT `+productColumns+` FROM products WHERE active ORDER BY name, id`)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return collectProducts(rows)
}

func (q queries) ListProductsByOwner(ctx context.Context, owner string) ([]orders.Product, error) {
	rows, err := q.db.Query(ctx, `SELECT `+productColumns+` FROM products WHERE owner=$1 ORDER BY id`, owner)
	if err != nil {
		return nil, errors.Wrap(err, "list products by owner")
	}
	return collectProducts(rows)
}

func (q queries) ListCartLines(ctx context.Context, customer string) ([]orders.CartLine, error) {
	return q.cartLines(ctx, customer, "")
}

func (q queries) cartLines(ctx context.Context, customer, lock string) ([]orders.CartLine, error) {
	rows, err := q.db.Query(ctx, `
		SELECT product_id, customer, quantity, added_at
		FROM cart_lines WHERE customer=$1
		ORDER BY added_at, product_id`+lock, customer)
	if err != nil {
		return nil, errors.Wrap(err, "list cart lines")
	}
	defer rows.Close()

	var out []orders.CartLine
	for rows.Next() {
		var l orders.CartLine
		if err := rows.Scan(&l.ProductID, &l.Customer, &l.Quantity, &l.AddedAt); err != nil {
			return nil, errors.Wrap(err, "scan cart line")
		}
		out = append(out, l)
	}
	return out, errors.Wrap(rows.Err(), "list cart lines")
}

func (q queries) PutCartLine(ctx context.Context, line orders.CartLine) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO cart_lines(product_id, customer, quantity, added_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (product_id, customer) DO UPDATE SET quantity = EXCLUDED.quantity`,
		line.ProductID, line.Customer, line.Quantity, line.AddedAt,
	)
	return errors.Wrap(err, "put cart line")
}

func (q queries) RemoveCartLines(ctx context.Context, customer string, productIDs []string) error {
	_, err := q.deleteCartLines(ctx, customer, productIDs)
	return err
}

func (q queries) deleteCartLines(ctx context.Context, customer string, productIDs []string) (int64, error) {
	ct, err := q.db.Exec(ctx, `DELETE FROM cart_lines WHERE customer=$1 AND product_id = ANY($2)`, customer, productIDs)
	if err != nil {
		return 0, errors.Wrap(err, "remove cart lines")
	}
	return ct.RowsAffected(), nil
}

func (q queries) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	return scanOrder(q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
}

func (q queries) ListOrdersByCustomer(ctx context.Context, customer string) ([]orders.Order, error) {
	rows, err := q.db.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE customer=$1 ORDER BY created_at DESC, id`, customer)
	if err != nil {
		return nil, errors.Wrap(err, "list orders by customer")
	}
	return collectOrders(rows)
}

func (q queries) ListOrdersByProducts(ctx context.Context, productIDs []string) ([]orders.Order, error) {
	rows, err := q.db.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE product_id = ANY($1) ORDER BY created_at DESC, id`, productIDs)
	if err != nil {
		return nil, errors.Wrap(err, "list orders by products")
	}
	return collectOrders(rows)
}

func (q queries) Enqueue(ctx context.Context, ev orders.OutboxEvent) error {
	payload, err := json.Marshal(ev.Envelope)
	if err != nil {
		return errors.Wrap(err, "encode outbox event")
	}
	_, err = q.db.Exec(ctx, `
		INSERT INTO outbox(event_id, event_type, topic, key, payload)
		VALUES ($1,$2,$3,$4,$5)`,
		ev.Envelope.EventID, ev.Envelope.EventType, ev.Topic, ev.Key, payload,
	)
	return errors.Wrap(err, "enqueue outbox event")
}

func scanProduct(row pgx.Row) (orders.Product, error) {
	var (
		p     orders.Product
		price string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Stock, &p.Owner, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Product{}, orders.ErrNoRecord
	}
	if err != nil {
		return orders.Product{}, errors.Wrap(err, "scan product")
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return orders.Product{}, errors.Wrapf(err, "parse price of product %s", p.ID)
	}
	return p, nil
}

func collectProducts(rows pgx.Rows) ([]orders.Product, error) {
	defer rows.Close()
	var out []orders.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "read products")
}

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o      orders.Order
		status string
	)
	err := row.Scan(&o.ID, &o.ProductID, &o.Quantity, &o.Customer, &status, &o.Timestamp, &o.ShippingAddress, &o.PaymentMethod)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, orders.ErrNoRecord
	}
	if err != nil {
		return orders.Order{}, errors.Wrap(err, "scan order")
	}
	o.Status = orders.Status(status)
	o.Timestamp = o.Timestamp.UTC()
	return o, nil
}

func collectOrders(rows pgx.Rows) ([]orders.Order, error) {
	defer rows.Close()
	var out []orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, errors.Wrap(rows.Err(), "read orders")
}
