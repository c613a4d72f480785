package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for fwatch.
type Config struct {
	HostID     string           `toml:"host_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Watch      WatchConfig      `toml:"watch"`
	Monitor    MonitorConfig    `toml:"monitor"`
	Database   DatabaseConfig   `toml:"database"`
	Archive    ArchiveConfig    `toml:"archive"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// WatchConfig lists the directory trees to monitor and the glob patterns
// that exclude paths from monitoring.
type WatchConfig struct {
	Roots   []string `toml:"roots"`
	Exclude []string `toml:"exclude"`
}

// MonitorConfig tunes event classification timing. Zero values fall back
// to the engine defaults.
type MonitorConfig struct {
	MoveThresholdMS    int64 `toml:"move_threshold_ms,omitempty"`
	ClassifyDelayMS    int64 `toml:"classify_delay_ms,omitempty"`
	RestoreTimeLimitMS int64 `toml:"restore_time_limit_ms,omitempty"`
	ScanBatchSize      int   `toml:"scan_batch_size,omitempty"`
	ScanBatchPauseMS   int64 `toml:"scan_batch_pause_ms,omitempty"`
	ReconcileScanLimit int   `toml:"reconcile_scan_limit,omitempty"`
}

// DatabaseConfig selects the event store backend. Fields beyond Type only
// apply to the backend Type names.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ArchiveConfig selects the snapshot archive backend. Fields beyond Type
// only apply to the backend Type names.
type ArchiveConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"

	// S3 backend
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// Filesystem backend
	FSRoot string `toml:"fs_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for export encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// NewConfig creates a new Config with the provided values and default
// paths for the database, archive, and key pair.
func NewConfig(hostID, baseDir string) *Config {
	return &Config{
		HostID:  hostID,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Archive: ArchiveConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(baseDir, "archive"),
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "fwatch.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "fwatch.key"),
		},
	}
}

// Manager decodes and encodes Config documents.
type Manager struct{}

// Read parses a TOML config from r.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// Write renders cfg as TOML to w.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

// ReadFromFile loads the config file at path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	var m Manager
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Init writes a brand new config file at path, creating parent directories
// as needed. It refuses to replace an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	var m Manager
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
