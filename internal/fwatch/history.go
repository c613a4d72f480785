package fwatch

import (
	"fmt"

	"fwatch-go/internal/model"
)

// GetFileHistory returns the lifecycle of the file currently at path,
// oldest first. The history follows the file identity, so events recorded
// under earlier paths (before moves) are included.
func (s *Service) GetFileHistory(path string, limit int) ([]*model.EventRecord, error) {
	recs, err := s.store.FileHistory(path, limit)
	if err != nil {
		return nil, fmt.Errorf("loading file history: %w", err)
	}
	return recs, nil
}
