package orders

import (
	"time"

	"github.com/google/uuid"
)

// Service owns the checkout and order-lifecycle rules on top of a Store.
type Service struct {
	Store       Store
	ServiceName string // producer name stamped on outbox events

	Now   func() time.Time
	NewID func() string
}

func NewService(store Store, serviceName string) *Service {
	return &Service{
		Store:       store,
		ServiceName: serviceName,
		Now:         time.Now,
		NewID:       uuid.NewString,
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID == nil {
		return uuid.NewString()
	}
	return s.NewID()
}
