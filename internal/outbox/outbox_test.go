package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu      sync.Mutex
	pending []Record
	sent    []int64
}

func (f *fakeSource) FetchPending(_ context.Context, limit int) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) < limit {
		limit = len(f.pending)
	}
	return append([]Record(nil), f.pending[:limit]...), nil
}

func (f *fakeSource) MarkSent(_ context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	done := map[int64]bool{}
	for _, id := range ids {
		done[id] = true
	}
	var rest []Record
	for _, r := range f.pending {
		if !done[r.ID] {
			rest = append(rest, r)
		}
	}
	f.pending = rest
	f.sent = append(f.sent, ids...)
	return nil
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafkago.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func records(n int) []Record {
	out := make([]Record, n)
	for i := range out {
		out[i] = Record{
			ID:        int64(i + 1),
			EventID:   "e",
			EventType: "OrderPlaced",
			Topic:     "order.placed",
			Key:       "o",
			Payload:   []byte(`{}`),
		}
	}
	return out
}

func TestFlushPublishesThenMarksSent(t *testing.T) {
	src := &fakeSource{pending: records(3)}
	w := &fakeWriter{}
	r := &Relay{Source: src, Writer: w, Batch: 2}

	n, err := r.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 2}, src.sent)

	m := w.msgs[0]
	assert.Equal(t, "order.placed", m.Topic)
	assert.Equal(t, []byte("o"), m.Key)
	assert.Contains(t, m.Headers, kafkago.Header{Key: "x-event-type", Value: []byte("OrderPlaced")})

	n, err = r.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = r.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFlushKeepsRecordsWhenBrokerFails(t *testing.T) {
	src := &fakeSource{pending: records(2)}
	r := &Relay{Source: src, Writer: &fakeWriter{err: errors.New("broker down")}}

	_, err := r.Flush(context.Background())
	require.Error(t, err)
	assert.Empty(t, src.sent)
	assert.Len(t, src.pending, 2)
}

func TestRunDrainsUntilCancelled(t *testing.T) {
	src := &fakeSource{pending: records(5)}
	w := &fakeWriter{}
	r := &Relay{Source: src, Writer: w, Batch: 2, Interval: 10 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	assert.Eventually(t, func() bool { return w.count() == 5 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
