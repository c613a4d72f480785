package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fwatch-go/internal/fwatch"
	"fwatch-go/internal/model"
)

// Aggregate maintenance. Every appended event folds into the owning file's
// rollup for the UTC day it falls in, inside the append transaction. The
// classifier never reads these rows; they exist for reporting.

func upsertAggregate(tx *sql.Tx, fileID int64, ins fwatch.EventInsert) error {
	period := periodStart(ins.Timestamp)

	agg, err := loadAggregate(tx, fileID, period)
	if err != nil {
		return err
	}
	if agg == nil {
		agg = &model.Aggregate{
			FileID:            fileID,
			PeriodStart:       period,
			CalculationMethod: "incremental",
		}
	}

	applyEvent(agg, ins)

	return saveAggregate(tx, agg)
}

// periodStart truncates a millisecond timestamp to the start of its UTC day.
func periodStart(ts int64) int64 {
	t := time.UnixMilli(ts).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).UnixMilli()
}

// applyEvent folds one event into the rollup. The first event of a period
// fixes the first_* values; everything after only moves totals, maxima,
// and last_* values.
func applyEvent(agg *model.Aggregate, ins fwatch.EventInsert) {
	m := ins.Measurement
	var blocks int64
	if m.BlockCount != nil {
		blocks = *m.BlockCount
	}

	if agg.TotalEvents == 0 {
		agg.FirstEventTimestamp = ins.Timestamp
		agg.FirstSize = m.FileSize
		agg.FirstLines = m.LineCount
		agg.FirstBlocks = blocks
	}

	agg.TotalSize += m.FileSize
	agg.TotalLines += m.LineCount
	agg.TotalBlocks += blocks
	agg.TotalEvents++

	switch ins.TypeID {
	case model.EventTypeFind:
		agg.TotalFinds++
	case model.EventTypeCreate:
		agg.TotalCreates++
	case model.EventTypeModify:
		agg.TotalModifies++
	case model.EventTypeDelete:
		agg.TotalDeletes++
	case model.EventTypeMove:
		agg.TotalMoves++
	case model.EventTypeRestore:
		agg.TotalRestores++
	}

	agg.LastEventTimestamp = ins.Timestamp
	agg.LastSize = m.FileSize
	agg.LastLines = m.LineCount
	agg.LastBlocks = blocks
	if m.FileSize > agg.MaxSize {
		agg.MaxSize = m.FileSize
	}
	if m.LineCount > agg.MaxLines {
		agg.MaxLines = m.LineCount
	}
	if blocks > agg.MaxBlocks {
		agg.MaxBlocks = blocks
	}

	agg.DominantEventType = dominantEventType(agg)
	agg.LastEventTypeID = ins.TypeID
	agg.LastUpdated = ins.Timestamp
}

// dominantEventType picks the most frequent event type of the period,
// breaking ties toward the lowest catalog id.
func dominantEventType(agg *model.Aggregate) int64 {
	counts := [...]int64{
		agg.TotalFinds,
		agg.TotalCreates,
		agg.TotalModifies,
		agg.TotalDeletes,
		agg.TotalMoves,
		agg.TotalRestores,
	}
	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return int64(best + 1)
}

func loadAggregate(tx *sql.Tx, fileID, period int64) (*model.Aggregate, error) {
	var agg model.Aggregate
	err := tx.QueryRow(`
		SELECT id, file_id, period_start,
		       total_size, total_lines, total_blocks,
		       total_events, total_finds, total_creates, total_modifies,
		       total_deletes, total_moves, total_restores,
		       first_event_timestamp, last_event_timestamp,
		       first_size, max_size, last_size,
		       first_lines, max_lines, last_lines,
		       first_blocks, max_blocks, last_blocks,
		       dominant_event_type, last_event_type_id, last_updated, calculation_method
		FROM aggregates WHERE file_id = ? AND period_start = ?`,
		fileID, period).Scan(
		&agg.ID, &agg.FileID, &agg.PeriodStart,
		&agg.TotalSize, &agg.TotalLines, &agg.TotalBlocks,
		&agg.TotalEvents, &agg.TotalFinds, &agg.TotalCreates, &agg.TotalModifies,
		&agg.TotalDeletes, &agg.TotalMoves, &agg.TotalRestores,
		&agg.FirstEventTimestamp, &agg.LastEventTimestamp,
		&agg.FirstSize, &agg.MaxSize, &agg.LastSize,
		&agg.FirstLines, &agg.MaxLines, &agg.LastLines,
		&agg.FirstBlocks, &agg.MaxBlocks, &agg.LastBlocks,
		&agg.DominantEventType, &agg.LastEventTypeID, &agg.LastUpdated, &agg.CalculationMethod)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("loading aggregate: %w", err)
	}
	return &agg, nil
}

func saveAggregate(tx *sql.Tx, agg *model.Aggregate) error {
	if agg.ID == 0 {
		_, err := tx.Exec(`
			INSERT INTO aggregates (
				file_id, period_start,
				total_size, total_lines, total_blocks,
				total_events, total_finds, total_creates, total_modifies,
				total_deletes, total_moves, total_restores,
				first_event_timestamp, last_event_timestamp,
				first_size, max_size, last_size,
				first_lines, max_lines, last_lines,
				first_blocks, max_blocks, last_blocks,
				dominant_event_type, last_event_type_id, last_updated, calculation_method
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			agg.FileID, agg.PeriodStart,
			agg.TotalSize, agg.TotalLines, agg.TotalBlocks,
			agg.TotalEvents, agg.TotalFinds, agg.TotalCreates, agg.TotalModifies,
			agg.TotalDeletes, agg.TotalMoves, agg.TotalRestores,
			agg.FirstEventTimestamp, agg.LastEventTimestamp,
			agg.FirstSize, agg.MaxSize, agg.LastSize,
			agg.FirstLines, agg.MaxLines, agg.LastLines,
			agg.FirstBlocks, agg.MaxBlocks, agg.LastBlocks,
			agg.DominantEventType, agg.LastEventTypeID, agg.LastUpdated, agg.CalculationMethod)
		if err != nil {
			return fmt.Errorf("inserting aggregate: %w", err)
		}
		return nil
	}

	_, err := tx.Exec(`
		UPDATE aggregates SET
			total_size = ?, total_lines = ?, total_blocks = ?,
			total_events = ?, total_finds = ?, total_creates = ?, total_modifies = ?,
			total_deletes = ?, total_moves = ?, total_restores = ?,
			first_event_timestamp = ?, last_event_timestamp = ?,
			first_size = ?, max_size = ?, last_size = ?,
			first_lines = ?, max_lines = ?, last_lines = ?,
			first_blocks = ?, max_blocks = ?, last_blocks = ?,
			dominant_event_type = ?, last_event_type_id = ?, last_updated = ?
		WHERE id = ?`,
		agg.TotalSize, agg.TotalLines, agg.TotalBlocks,
		agg.TotalEvents, agg.TotalFinds, agg.TotalCreates, agg.TotalModifies,
		agg.TotalDeletes, agg.TotalMoves, agg.TotalRestores,
		agg.FirstEventTimestamp, agg.LastEventTimestamp,
		agg.FirstSize, agg.MaxSize, agg.LastSize,
		agg.FirstLines, agg.MaxLines, agg.LastLines,
		agg.FirstBlocks, agg.MaxBlocks, agg.LastBlocks,
		agg.DominantEventType, agg.LastEventTypeID, agg.LastUpdated,
		agg.ID)
	if err != nil {
		return fmt.Errorf("updating aggregate: %w", err)
	}
	return nil
}
