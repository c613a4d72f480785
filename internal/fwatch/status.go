package fwatch

import (
	"fmt"

	"fwatch-go/internal/model"
)

// StatusReport is the monitor's state summary: what the log holds and the
// most recent monitoring runs.
type StatusReport struct {
	Statistics *Statistics
	Sessions   []*model.Session
}

// GetStatus summarizes the stored log and recent sessions.
func (s *Service) GetStatus() (*StatusReport, error) {
	stats, err := s.store.Statistics()
	if err != nil {
		return nil, fmt.Errorf("loading statistics: %w", err)
	}

	sessions, err := s.store.ListSessions(10)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	return &StatusReport{
		Statistics: stats,
		Sessions:   sessions,
	}, nil
}
