// Package memstore keeps products, carts, orders and the outbox in process
// memory. Transactions are serialized: WithTx holds the store lock for the
// whole unit of work and works on a copy that replaces the live state only on
// commit.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/ariefcatur/go-shop-orders.git/internal/orders"
	"github.com/ariefcatur/go-shop-orders.git/internal/outbox"
)

type Store struct {
	mu sync.Mutex
	st *state

	// BeforeCommit, when set, runs after fn succeeds and before the new state
	// is installed. A non-nil error aborts the commit.
	BeforeCommit func() error
}

var (
	_ orders.Store  = (*Store)(nil)
	_ outbox.Source = (*Store)(nil)
)

func New() *Store {
	return &Store{st: newState()}
}

// PutProduct inserts or replaces a product outside any transaction.
func (s *Store) PutProduct(p orders.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.products[p.ID] = p
}

func (s *Store) GetProduct(ctx context.Context, id string) (orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.st}.GetProduct(ctx, id)
}

func (s *Store) ListProducts(ctx context.Context) ([]orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.st}.ListProducts(ctx)
}

func (s *Store) ListProductsByOwner(ctx context.Context, owner string) ([]orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.st}.ListProductsByOwner(ctx, owner)
}

func (s *Store) ListCartLines(ctx context.Context, customer string) ([]orders.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.st}.ListCartLines(ctx, customer)
}

func (s *Store) PutCartLine(ctx context.Context, line orders.CartLine) error {
	return s.WithTx(ctx, func(tx orders.Tx) error { return tx.PutCartLine(ctx, line) })
}

// RemoveCartLines ignores lines that are already gone.
func (s *Store) RemoveCartLines(ctx context.Context, customer string, productIDs []string) error {
	return s.WithTx(ctx, func(otx orders.Tx) error {
		otx.(*tx).removeCartLines(customer, productIDs)
		return nil
	})
}

func (s *Store) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.st}.GetOrder(ctx, id)
}

func (s *Store) ListOrdersByCustomer(ctx context.Context, customer string) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.st}.ListOrdersByCustomer(ctx, customer)
}

func (s *Store) ListOrdersByProducts(ctx context.Context, productIDs []string) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.st}.ListOrdersByProducts(ctx, productIDs)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(&tx{view: view{work}}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.BeforeCommit != nil {
		if err := s.BeforeCommit(); err != nil {
			return err
		}
	}
	s.st = work
	return nil
}

// Outbox returns every enqueued event, sent or not, in enqueue order.
func (s *Store) Outbox() []orders.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orders.OutboxEvent, 0, len(s.st.outbox))
	for _, e := range s.st.outbox {
		out = append(out, e.ev)
	}
	return out
}

func (s *Store) FetchPending(ctx context.Context, limit int) ([]outbox.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []outbox.Record
	for _, e := range s.st.outbox {
		if len(out) >= limit {
			break
		}
		if e.sent {
			continue
		}
		payload, err := json.Marshal(e.ev.Envelope)
		if err != nil {
			return nil, err
		}
		out = append(out, outbox.Record{
			ID:        e.id,
			EventID:   e.ev.Envelope.EventID,
			EventType: e.ev.Envelope.EventType,
			Topic:     e.ev.Topic,
			Key:       e.ev.Key,
			Payload:   payload,
		})
	}
	return out, nil
}

func (s *Store) MarkSent(ctx context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sent := make(map[int64]bool, len(ids))
	for _, id := range ids {
		sent[id] = true
	}
	for i := range s.st.outbox {
		if sent[s.st.outbox[i].id] {
			s.st.outbox[i].sent = true
		}
	}
	return nil
}

type outboxEntry struct {
	id   int64
	ev   orders.OutboxEvent
	sent bool
}

type state struct {
	products   map[string]orders.Product
	carts      map[string][]orders.CartLine
	orders     map[string]orders.Order
	orderSeq   []string
	outbox     []outboxEntry
	outboxNext int64
}

func newState() *state {
	return &state{
		products:   map[string]orders.Product{},
		carts:      map[string][]orders.CartLine{},
		orders:     map[string]orders.Order{},
		outboxNext: 1,
	}
}

func (s *state) clone() *state {
	c := &state{
		products:   make(map[string]orders.Product, len(s.products)),
		carts:      make(map[string][]orders.CartLine, len(s.carts)),
		orders:     make(map[string]orders.Order, len(s.orders)),
		orderSeq:   append([]string(nil), s.orderSeq...),
		outbox:     append([]outboxEntry(nil), s.outbox...),
		outboxNext: s.outboxNext,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = append([]orders.CartLine(nil), v...)
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	return c
}

type view struct{ st *state }

func (v view) GetProduct(_ context.Context, id string) (orders.Product, error) {
	p, ok := v.st.products[id]
	if !ok {
		return orders.Product{}, orders.ErrNoRecord
	}
	return p, nil
}

func (v view) ListProducts(_ context.Context) ([]orders.Product, error) {
	var out []orders.Product
	for _, p := range v.st.products {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v view) ListProductsByOwner(_ context.Context, owner string) ([]orders.Product, error) {
	var out []orders.Product
	for _, p := range v.st.products {
		if p.Owner == owner {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v view) ListCartLines(_ context.Context, customer string) ([]orders.CartLine, error) {
	lines := append([]orders.CartLine(nil), v.st.carts[customer]...)
	sort.SliceStable(lines, func(i, j int) bool {
		if !lines[i].AddedAt.Equal(lines[j].AddedAt) {
			return lines[i].AddedAt.Before(lines[j].AddedAt)
		}
		return lines[i].ProductID < lines[j].ProductID
	})
	return lines, nil
}

func (v view) GetOrder(_ context.Context, id string) (orders.Order, error) {
	o, ok := v.st.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNoRecord
	}
	return o, nil
}

func (v view) ListOrdersByCustomer(_ context.Context, customer string) ([]orders.Order, error) {
	var out []orders.Order
	for _, id := range v.st.orderSeq {
		if o := v.st.orders[id]; o.Customer == customer {
			out = append(out, o)
		}
	}
	return out, nil
}

func (v view) ListOrdersByProducts(_ context.Context, productIDs []string) ([]orders.Order, error) {
	want := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		want[id] = true
	}
	var out []orders.Order
	for _, id := range v.st.orderSeq {
		if o := v.st.orders[id]; want[o.ProductID] {
			out = append(out, o)
		}
	}
	return out, nil
}

// LoadProducts reads a JSON array of products and puts each one.
func (s *Store) LoadProducts(r io.Reader) (int, error) {
	var ps []orders.Product
	if err := json.NewDecoder(r).Decode(&ps); err != nil {
		return 0, fmt.Errorf("decode products: %w", err)
	}
	for _, p := range ps {
		s.PutProduct(p)
	}
	return len(ps), nil
}
