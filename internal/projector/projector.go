package projector

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	kafkax "github.com/ariefcatur/go-shop-orders.git/internal/kafka"
	"github.com/ariefcatur/go-shop-orders.git/internal/orders"
	"github.com/ariefcatur/go-shop-orders.git/internal/redisx"
)

// Topics the projector subscribes to.
var Topics = []string{orders.TopicOrderPlaced, orders.TopicOrderStatus}

// Service keeps the redis order snapshots in step with the order event
// stream: OrderPlaced seeds a snapshot, OrderStatusChanged evicts it. The two
// topics are not ordered against each other, so a creation event arriving
// after a status change is dropped. Each event is applied at most once per
// ServiceName.
type Service struct {
	Cache       *redisx.Cache
	ServiceName string
	Log         logrus.FieldLogger
}

// Handle is installed as the consumer handler.
func (s *Service) Handle(ctx context.Context, m kafkago.Message) error {
	if t := kafkax.Header(m, "x-event-type"); t != "" && !handled(t) {
		return nil
	}
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// undecodable: retrying cannot help
		s.logger().WithError(err).WithField("offset", m.Offset).Warn("skip malformed event")
		return nil
	}
	if !handled(env.EventType) {
		return nil
	}

	first, err := s.Cache.MarkSeen(ctx, s.ServiceName, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		return nil
	}

	if err := s.apply(ctx, env); err != nil {
		if ferr := s.Cache.Forget(ctx, s.ServiceName, env.EventID); ferr != nil {
			s.logger().WithError(ferr).WithField("event_id", env.EventID).Warn("release dedup mark")
		}
		return err
	}
	s.logger().WithFields(logrus.Fields{
		"event_id":   env.EventID,
		"event_type": env.EventType,
		"order_id":   env.CorrelationID,
	}).Debug("event applied")
	return nil
}

func (s *Service) apply(ctx context.Context, env orders.Envelope) error {
	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return err
		}
		// generation 0: a status change already seen wins over the creation event
		_, err = s.Cache.FillOrder(ctx, p.Order(), 0)
		return err
	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.Cache.DeleteOrder(ctx, p.OrderID)
	}
	return nil
}

func handled(eventType string) bool {
	return eventType == orders.EventOrderPlaced || eventType == orders.EventOrderStatusChanged
}

func (s *Service) logger() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}
