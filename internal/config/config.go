// Package config handles configuration loading, validation, and hot reload
// for cornerknockd.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Gesture configures the corner-knock recognizer.
	Gesture GestureConfig `toml:"gesture" json:"gesture" yaml:"gesture"`

	// Display describes the touch surface the daemon listens on.
	Display DisplayConfig `toml:"display" json:"display" yaml:"display"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Storage configures the match audit store.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// IPC configures the control socket.
	IPC IPCConfig `toml:"ipc" json:"ipc" yaml:"ipc"`

	// Notify configures completion broadcasting to the host.
	Notify NotifyConfig `toml:"notify" json:"notify" yaml:"notify"`

	// Metrics configures the scrape endpoint.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`
}

// GestureConfig holds the recognizer configuration. The minimums are
// enforced by the gesture package at construction; validation here reports
// them earlier and with config-file field names.
type GestureConfig struct {
	// Sequences are the target gesture codes, e.g. "TLTRBLBR". Non-empty,
	// prefix-free, each a corner code pair repeated three or more times.
	Sequences []string `toml:"sequences" json:"sequences" yaml:"sequences"`

	// CornerSize is the corner hit-region side in pixels (minimum 20).
	CornerSize int `toml:"corner_size" json:"corner_size" yaml:"corner_size"`

	// ResetTimeoutMs is the inactivity window in milliseconds (minimum 1000).
	ResetTimeoutMs int `toml:"reset_timeout_ms" json:"reset_timeout_ms" yaml:"reset_timeout_ms"`

	// TapSlop is the tap movement tolerance in pixels (0 = default).
	TapSlop int `toml:"tap_slop" json:"tap_slop" yaml:"tap_slop"`

	// TapMaxDurationMs is the longest press still counted as a tap
	// (0 = default).
	TapMaxDurationMs int `toml:"tap_max_duration_ms" json:"tap_max_duration_ms" yaml:"tap_max_duration_ms"`
}

// ResetTimeout returns the inactivity window as a duration.
func (g GestureConfig) ResetTimeout() time.Duration {
	return time.Duration(g.ResetTimeoutMs) * time.Millisecond
}

// TapMaxDuration returns the tap duration limit as a duration.
func (g GestureConfig) TapMaxDuration() time.Duration {
	return time.Duration(g.TapMaxDurationMs) * time.Millisecond
}

// DisplayConfig describes the touch surface geometry in pixels.
type DisplayConfig struct {
	Width  int `toml:"width" json:"width" yaml:"width"`
	Height int `toml:"height" json:"height" yaml:"height"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr", "file", or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file when Output includes "file".
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the rotation threshold in megabytes.
	MaxSizeMB int64 `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// RedactSequences masks configured knock sequences and candidate
	// progress in log output.
	RedactSequences bool `toml:"redact_sequences" json:"redact_sequences" yaml:"redact_sequences"`
}

// StorageConfig configures the audit store of completed sequences.
type StorageConfig struct {
	// Enabled turns match auditing on.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// SecretPath is the device secret file the audit HMAC chain key is
	// derived from. Created with fresh random content on first use.
	SecretPath string `toml:"secret_path" json:"secret_path" yaml:"secret_path"`
}

// IPCConfig configures the control socket.
type IPCConfig struct {
	// SocketPath is the unix socket the daemon listens on.
	SocketPath string `toml:"socket_path" json:"socket_path" yaml:"socket_path"`

	// MaxConnections bounds concurrent clients.
	MaxConnections int `toml:"max_connections" json:"max_connections" yaml:"max_connections"`
}

// NotifyConfig configures host notification of completed sequences.
type NotifyConfig struct {
	// DBus emits a session-bus signal on every match (Linux only).
	DBus bool `toml:"dbus" json:"dbus" yaml:"dbus"`
}

// MetricsConfig configures the metrics scrape endpoint.
type MetricsConfig struct {
	// Enabled starts an HTTP listener serving Prometheus text format.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// ListenAddr is the HTTP address, e.g. "127.0.0.1:9321".
	ListenAddr string `toml:"listen_addr" json:"listen_addr" yaml:"listen_addr"`
}

// DefaultConfig returns the default daemon configuration.
func DefaultConfig() *Config {
	dataDir := PlatformDataDir()
	return &Config{
		Version: Version,
		Gesture: GestureConfig{
			CornerSize:     64,
			ResetTimeoutMs: 2000,
		},
		Display: DisplayConfig{
			Width:  1920,
			Height: 1080,
		},
		Logging: LoggingConfig{
			Level:           "info",
			Format:          "text",
			Output:          "stderr",
			MaxSizeMB:       20,
			MaxBackups:      5,
			RedactSequences: true,
		},
		Storage: StorageConfig{
			Enabled:    true,
			Path:       filepath.Join(dataDir, "audit.db"),
			SecretPath: filepath.Join(dataDir, "device.secret"),
		},
		IPC: IPCConfig{
			SocketPath:     filepath.Join(PlatformRuntimeDir(), "cornerknockd.sock"),
			MaxConnections: 16,
		},
		Notify: NotifyConfig{
			DBus: true,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9321",
		},
	}
}

// ApplyEnvOverrides applies environment variable overrides. Variables are
// prefixed with CORNERKNOCK_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CORNERKNOCK_SEQUENCES"); v != "" {
		c.Gesture.Sequences = splitList(v)
	}
	if v := os.Getenv("CORNERKNOCK_CORNER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Gesture.CornerSize = n
		}
	}
	if v := os.Getenv("CORNERKNOCK_RESET_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Gesture.ResetTimeoutMs = n
		}
	}
	if v := os.Getenv("CORNERKNOCK_DISPLAY_WIDTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Display.Width = n
		}
	}
	if v := os.Getenv("CORNERKNOCK_DISPLAY_HEIGHT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Display.Height = n
		}
	}
	if v := os.Getenv("CORNERKNOCK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CORNERKNOCK_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("CORNERKNOCK_SOCKET_PATH"); v != "" {
		c.IPC.SocketPath = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Storage.Path),
		filepath.Dir(c.Storage.SecretPath),
		filepath.Dir(c.IPC.SocketPath),
	}
	if c.Logging.FilePath != "" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
