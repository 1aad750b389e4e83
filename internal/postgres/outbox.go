package postgres

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ariefcatur/go-shop-orders.git/internal/outbox"
)

func (s *Store) FetchPending(ctx context.Context, limit int) ([]outbox.Record, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, event_id, event_type, topic, key, payload, created_at
		FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "fetch pending outbox")
	}
	defer rows.Close()

	var out []outbox.Record
	for rows.Next() {
		var rec outbox.Record
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.EventType, &rec.Topic, &rec.Key, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan outbox record")
		}
		out = append(out, rec)
	}
	return out, errors.Wrap(rows.Err(), "fetch pending outbox")
}

func (s *Store) MarkSent(ctx context.Context, ids []int64) error {
	_, err := s.DB.Exec(ctx, `UPDATE outbox SET sent_at=now() WHERE id = ANY($1)`, ids)
	return errors.Wrap(err, "mark outbox sent")
}
