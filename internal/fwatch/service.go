package fwatch

import (
	"fmt"

	"fwatch-go/internal/model"
)

// Service is the read-side orchestration layer the CLI talks to. It never
// writes events; the engine is the only writer.
type Service struct {
	store  Store
	clock  Clock
	logger Logger
}

// NewService creates a Service over the given store.
func NewService(store Store, clock Clock, logger Logger) *Service {
	return &Service{
		store:  store,
		clock:  clock,
		logger: logger,
	}
}

// RecentEvents returns events matching the query, newest first.
func (s *Service) RecentEvents(q EventQuery) ([]*model.EventRecord, error) {
	recs, err := s.store.QueryEvents(q)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	return recs, nil
}
