package database

import (
	"fmt"
	"os"
	"path/filepath"

	"fwatch-go/internal/config"
	"fwatch-go/internal/fwatch"
)

// NewStoreFromConfig creates a Store implementation based on the database
// config type. The sqlite type keeps one database file per host so archives
// from different hosts never collide.
func NewStoreFromConfig(cfg config.DatabaseConfig, hostID string) (fwatch.Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("sqlite database requires data_dir")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dbPath := filepath.Join(cfg.DataDir, hostID+".db")
		return NewSQLiteStore(dbPath)
	case "memory":
		return NewSQLiteStore(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
