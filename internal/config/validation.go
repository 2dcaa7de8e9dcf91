package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"cornerknock/internal/gesture"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateGesture(&c.Gesture)...)
	errs = append(errs, validateDisplay(&c.Display)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateIPC(&c.IPC)...)
	errs = append(errs, validateMetrics(&c.Metrics)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateGesture applies the recognizer's construction rules with
// config-file field names, so a bad file is rejected at load time rather
// than at recognizer construction.
func validateGesture(g *GestureConfig) ValidationErrors {
	var errs ValidationErrors

	if g.CornerSize < gesture.MinCornerSize {
		errs = append(errs, ValidationError{
			Field:   "gesture.corner_size",
			Message: fmt.Sprintf("must be at least %d, got %d", gesture.MinCornerSize, g.CornerSize),
		})
	}
	if g.ResetTimeout() < gesture.MinResetTimeout {
		errs = append(errs, ValidationError{
			Field: "gesture.reset_timeout_ms",
			Message: fmt.Sprintf("must be at least %d, got %d",
				gesture.MinResetTimeout/time.Millisecond, g.ResetTimeoutMs),
		})
	}
	if _, err := gesture.NewSequenceSet(g.Sequences); err != nil {
		errs = append(errs, ValidationError{
			Field:   "gesture.sequences",
			Message: err.Error(),
		})
	}
	if g.TapSlop < 0 {
		errs = append(errs, ValidationError{
			Field:   "gesture.tap_slop",
			Message: "must not be negative",
		})
	}
	if g.TapMaxDurationMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "gesture.tap_max_duration_ms",
			Message: "must not be negative",
		})
	}
	return errs
}

func validateDisplay(d *DisplayConfig) ValidationErrors {
	var errs ValidationErrors
	if d.Width <= 0 {
		errs = append(errs, ValidationError{
			Field:   "display.width",
			Message: "must be positive",
		})
	}
	if d.Height <= 0 {
		errs = append(errs, ValidationError{
			Field:   "display.height",
			Message: "must be positive",
		})
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q", l.Level),
		})
	}
	switch strings.ToLower(l.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown format %q", l.Format),
		})
	}
	switch strings.ToLower(l.Output) {
	case "", "stdout", "stderr", "file", "both":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("unknown output %q", l.Output),
		})
	}
	if (strings.EqualFold(l.Output, "file") || strings.EqualFold(l.Output, "both")) && l.FilePath == "" {
		errs = append(errs, ValidationError{
			Field:   "logging.file_path",
			Message: "required when output includes file",
		})
	}
	return errs
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors
	if !s.Enabled {
		return errs
	}
	if s.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "storage.path",
			Message: "required when storage is enabled",
		})
	}
	if s.SecretPath == "" {
		errs = append(errs, ValidationError{
			Field:   "storage.secret_path",
			Message: "required when storage is enabled",
		})
	}
	return errs
}

func validateIPC(i *IPCConfig) ValidationErrors {
	var errs ValidationErrors
	if i.SocketPath == "" {
		errs = append(errs, ValidationError{
			Field:   "ipc.socket_path",
			Message: "required",
		})
	}
	if i.MaxConnections <= 0 {
		errs = append(errs, ValidationError{
			Field:   "ipc.max_connections",
			Message: "must be positive",
		})
	}
	return errs
}

func validateMetrics(m *MetricsConfig) ValidationErrors {
	var errs ValidationErrors
	if !m.Enabled {
		return errs
	}
	if _, _, err := net.SplitHostPort(m.ListenAddr); err != nil {
		errs = append(errs, ValidationError{
			Field:   "metrics.listen_addr",
			Message: fmt.Sprintf("invalid address %q", m.ListenAddr),
		})
	}
	return errs
}
