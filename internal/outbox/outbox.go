// Package outbox relays events that were committed together with the state
// change they describe. Delivery is at-least-once: a record is marked sent
// only after the broker acknowledged it.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type Record struct {
	ID        int64           `json:"id"`
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Topic     string          `json:"topic"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Source is the table (or in-memory list) of pending records, oldest first.
type Source interface {
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, ids []int64) error
}

// Writer is satisfied by *kafka.Writer and internal/kafka.Producer.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
}

type Relay struct {
	Source   Source
	Writer   Writer
	Batch    int
	Interval time.Duration
	Log      logrus.FieldLogger
}

// Run flushes until ctx is done. A full batch is followed immediately by
// another flush; otherwise the relay waits Interval.
func (r *Relay) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		n, err := r.Flush(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger().WithError(err).Warn("outbox flush failed")
		}
		if err == nil && n == r.batch() {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// Flush publishes one batch and returns how many records were sent.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	recs, err := r.Source.FetchPending(ctx, r.batch())
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, nil
	}

	msgs := make([]kafkago.Message, 0, len(recs))
	ids := make([]int64, 0, len(recs))
	for _, rec := range recs {
		msgs = append(msgs, kafkago.Message{
			Topic: rec.Topic,
			Key:   []byte(rec.Key),
			Value: rec.Payload,
			Headers: []kafkago.Header{
				{Key: "x-event-id", Value: []byte(rec.EventID)},
				{Key: "x-event-type", Value: []byte(rec.EventType)},
				{Key: "x-event-version", Value: []byte("1")},
			},
		})
		ids = append(ids, rec.ID)
	}
	if err := r.Writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, err
	}
	if err := r.Source.MarkSent(ctx, ids); err != nil {
		return 0, err
	}
	r.logger().WithField("count", len(ids)).Debug("outbox flushed")
	return len(ids), nil
}

func (r *Relay) batch() int {
	if r.Batch <= 0 {
		return 100
	}
	return r.Batch
}

func (r *Relay) logger() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}
