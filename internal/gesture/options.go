package gesture

import (
	"fmt"
	"log/slog"
	"time"
)

// Domain minimums. Configurations below these limits are rejected at
// construction.
const (
	// MinCornerSize is the smallest allowed corner hit-region side, in pixels.
	MinCornerSize = 20

	// MinResetTimeout is the smallest allowed inactivity window, and the
	// default when none is configured.
	MinResetTimeout = 1000 * time.Millisecond
)

// Defaults for the embedded single-tap detector.
const (
	DefaultTapSlop        = 24
	DefaultTapMaxDuration = 500 * time.Millisecond
)

// ConfigError reports a rejected recognizer configuration. It identifies the
// offending field and is always returned at construction time; the
// recognition loop itself never produces errors.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("gesture: %s: %s", e.Field, e.Message)
}

// Config holds the construction-time configuration of a Recognizer. Geometry
// and sequences are immutable for the life of the instance.
type Config struct {
	// Geometry is the touch surface and corner hit-region description.
	// Geometry.CornerSize must be at least MinCornerSize.
	Geometry Geometry

	// Sequences are the target gesture codes, e.g. "TLTRBLBR". The set must
	// be non-empty and prefix-free.
	Sequences []string

	// ResetTimeout is the inactivity window between taps before the
	// candidate resets. Zero selects MinResetTimeout; non-zero values below
	// the minimum are rejected.
	ResetTimeout time.Duration

	// Listener is invoked with the literal matched sequence string whenever
	// a target completes. Required.
	Listener func(sequence string)

	// TapSlop and TapMaxDuration tune the embedded single-tap detector.
	// Zero values select the defaults. Ignored when Taps is set.
	TapSlop        int
	TapMaxDuration time.Duration

	// Taps overrides the tap-detection collaborator. Nil selects the
	// built-in single-tap detector.
	Taps TapDetector

	// NewTimer builds the reset timer. Nil selects the time.Timer-backed
	// implementation. Tests substitute a manual timer here.
	NewTimer func(d time.Duration, fn func(gen uint64)) ResetTimer

	// Observer receives recognition lifecycle callbacks for metrics and
	// diagnostics. Nil disables observation.
	Observer Observer

	// Logger receives debug logs of candidate growth and resets. Nil
	// selects slog.Default().
	Logger *slog.Logger
}

// validate applies the construction rules in order: corner size, timeout,
// sequence set shape, pairwise distinguishability.
func (c *Config) validate() (SequenceSet, error) {
	if c.Geometry.CornerSize < MinCornerSize {
		return SequenceSet{}, &ConfigError{
			Field:   "corner_size",
			Message: fmt.Sprintf("must be at least %d, got %d", MinCornerSize, c.Geometry.CornerSize),
		}
	}
	if c.ResetTimeout == 0 {
		c.ResetTimeout = MinResetTimeout
	}
	if c.ResetTimeout < MinResetTimeout {
		return SequenceSet{}, &ConfigError{
			Field:   "reset_timeout",
			Message: fmt.Sprintf("must be at least %s, got %s", MinResetTimeout, c.ResetTimeout),
		}
	}
	set, err := NewSequenceSet(c.Sequences)
	if err != nil {
		return SequenceSet{}, err
	}
	if c.Listener == nil {
		return SequenceSet{}, &ConfigError{
			Field:   "listener",
			Message: "a completion listener is required",
		}
	}
	return set, nil
}
