// Package notify delivers sequence match notifications to the rest of the
// system. On Linux the daemon emits a D-Bus signal on the session bus so the
// kiosk shell can reveal its admin surface without polling; everywhere a bus
// is unavailable the match is logged instead.
package notify

import (
	"log/slog"
	"time"
)

// Event describes one completed knock sequence.
type Event struct {
	Sequence  string
	Source    string
	Timestamp time.Time
}

// Notifier delivers match events.
type Notifier interface {
	Notify(ev Event) error
	Close() error
}

// LogNotifier writes match events to the structured log. It is the fallback
// when no session bus is reachable and the default on non-Linux builds.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the event. The sequence itself is left to the logging layer's
// redaction rules.
func (n *LogNotifier) Notify(ev Event) error {
	n.logger.Info("sequence matched",
		"sequence", ev.Sequence,
		"source", ev.Source,
		"timestamp", ev.Timestamp.Format(time.RFC3339Nano),
	)
	return nil
}

// Close implements Notifier.
func (n *LogNotifier) Close() error {
	return nil
}

// Multi fans an event out to several notifiers. Errors are collected but do
// not stop delivery to the remaining notifiers.
type Multi struct {
	notifiers []Notifier
}

// NewMulti creates a fan-out notifier.
func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Notify delivers ev to every notifier, returning the first error seen.
func (m *Multi) Notify(ev Event) error {
	var first error
	for _, n := range m.notifiers {
		if err := n.Notify(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close closes every notifier, returning the first error seen.
func (m *Multi) Close() error {
	var first error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
