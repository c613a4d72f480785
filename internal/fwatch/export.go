package fwatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// exportDocument is the JSON shape written by Export: a slice of recent
// events plus the log statistics, suitable for dashboards and offline
// inspection.
type exportDocument struct {
	GeneratedAt  int64            `json:"generated_at"`
	RecentEvents []exportEvent    `json:"recent_events"`
	Statistics   exportStatistics `json:"statistics"`
}

type exportEvent struct {
	ID         int64  `json:"id"`
	Timestamp  int64  `json:"timestamp"`
	Type       string `json:"type"`
	Path       string `json:"path"`
	Name       string `json:"name"`
	Directory  string `json:"directory"`
	Size       int64  `json:"size"`
	LineCount  int64  `json:"line_count"`
	BlockCount *int64 `json:"block_count"`
}

type exportStatistics struct {
	TableCounts       map[string]int64 `json:"table_counts"`
	EventDistribution map[string]int64 `json:"event_distribution"`
	TimeRange         exportTimeRange  `json:"time_range"`
	DistinctPaths     int64            `json:"distinct_paths"`
	ActiveFiles       int64            `json:"active_files"`
}

type exportTimeRange struct {
	First int64 `json:"first"`
	Last  int64 `json:"last"`
}

// Export writes the export document for the most recent limit events to w.
func (s *Service) Export(w io.Writer, limit int) error {
	recs, err := s.store.LatestEvents(limit)
	if err != nil {
		return fmt.Errorf("loading recent events: %w", err)
	}

	stats, err := s.store.Statistics()
	if err != nil {
		return fmt.Errorf("loading statistics: %w", err)
	}

	doc := exportDocument{
		GeneratedAt:  s.clock.Now().UnixMilli(),
		RecentEvents: make([]exportEvent, 0, len(recs)),
		Statistics: exportStatistics{
			TableCounts: map[string]int64{
				"events":       stats.TotalEvents,
				"files":        stats.TotalFiles,
				"measurements": stats.TotalMeasurements,
				"aggregates":   stats.TotalAggregates,
				"sessions":     stats.TotalSessions,
			},
			EventDistribution: stats.EventsByType,
			TimeRange: exportTimeRange{
				First: stats.FirstTimestamp,
				Last:  stats.LastTimestamp,
			},
			DistinctPaths: stats.DistinctPaths,
			ActiveFiles:   stats.ActiveFiles,
		},
	}

	for _, rec := range recs {
		doc.RecentEvents = append(doc.RecentEvents, exportEvent{
			ID:         rec.ID,
			Timestamp:  rec.Timestamp,
			Type:       rec.TypeCode,
			Path:       rec.FilePath,
			Name:       rec.FileName,
			Directory:  rec.Directory,
			Size:       rec.Measurement.FileSize,
			LineCount:  rec.Measurement.LineCount,
			BlockCount: rec.Measurement.BlockCount,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}
	return nil
}

// ExportEncrypted writes the export document encrypted with the public
// key, so scheduled exports run without a passphrase.
func (s *Service) ExportEncrypted(w io.Writer, limit int, encryptor Encryptor) error {
	var buf bytes.Buffer
	if err := s.Export(&buf, limit); err != nil {
		return err
	}
	if err := encryptor.Encrypt(&buf, w); err != nil {
		return fmt.Errorf("encrypting export: %w", err)
	}
	return nil
}
