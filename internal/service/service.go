// Package service wires the gesture recognizer to the audit store, the
// notifier, metrics and the IPC surface. It owns the recognizer lifecycle:
// configuration reloads swap in a fresh recognizer while keeping the rest of
// the daemon running.
package service

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cornerknock/internal/config"
	"cornerknock/internal/gesture"
	"cornerknock/internal/ipc"
	"cornerknock/internal/metrics"
	"cornerknock/internal/notify"
	"cornerknock/internal/store"
)

// Options carries the collaborators the daemon constructs around the
// service. Store and Notifier may be nil when the corresponding feature is
// disabled.
type Options struct {
	Version  string
	Logger   *slog.Logger
	Store    *store.Store
	Notifier notify.Notifier
	Metrics  *metrics.DaemonMetrics
}

// Service is the daemon core.
type Service struct {
	version  string
	logger   *slog.Logger
	store    *store.Store
	notifier notify.Notifier
	metrics  *metrics.DaemonMetrics

	mu         sync.Mutex
	recognizer *gesture.Recognizer
	cfg        *config.Config
	source     string
	matchCount int64
	startedAt  time.Time

	broadcastMu sync.RWMutex
	broadcast   func(*ipc.MatchEvent)
}

// New builds a service around cfg. The configuration must already be
// validated.
func New(cfg *config.Config, opts Options) (*Service, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Service{
		version:   opts.Version,
		logger:    opts.Logger,
		store:     opts.Store,
		notifier:  opts.Notifier,
		metrics:   opts.Metrics,
		startedAt: time.Now(),
	}

	rec, err := s.buildRecognizer(cfg)
	if err != nil {
		return nil, err
	}
	s.recognizer = rec
	s.cfg = cfg
	return s, nil
}

func (s *Service) buildRecognizer(cfg *config.Config) (*gesture.Recognizer, error) {
	gcfg := gesture.Config{
		Geometry: gesture.Geometry{
			Width:      cfg.Display.Width,
			Height:     cfg.Display.Height,
			CornerSize: cfg.Gesture.CornerSize,
		},
		Sequences:      cfg.Gesture.Sequences,
		ResetTimeout:   cfg.Gesture.ResetTimeout(),
		TapSlop:        cfg.Gesture.TapSlop,
		TapMaxDuration: cfg.Gesture.TapMaxDuration(),
		Listener:       s.onMatch,
		Logger:         s.logger,
	}
	if s.metrics != nil {
		gcfg.Observer = s.metrics
	}

	rec, err := gesture.NewRecognizer(gcfg)
	if err != nil {
		return nil, fmt.Errorf("build recognizer: %w", err)
	}
	return rec, nil
}

// SetBroadcast installs the IPC event broadcast callback.
func (s *Service) SetBroadcast(fn func(*ipc.MatchEvent)) {
	s.broadcastMu.Lock()
	s.broadcast = fn
	s.broadcastMu.Unlock()
}

// HandlePointerEvent feeds one pointer event into the recognizer. source
// labels where the event came from (touch, inject, demo) for the audit
// trail.
func (s *Service) HandlePointerEvent(ev gesture.PointerEvent, source string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = source
	return s.recognizer.ProcessPointerEvent(ev)
}

// onMatch runs on the recognizer's goroutine when a sequence completes. The
// service mutex is already held by HandlePointerEvent.
func (s *Service) onMatch(sequence string) {
	source := s.source
	if source == "" {
		source = store.SourceTouch
	}
	now := time.Now()
	s.matchCount++

	s.logger.Info("knock sequence completed", "sequence", sequence, "source", source)

	if s.store != nil {
		if _, err := s.store.RecordMatch(sequence, source); err != nil {
			s.logger.Error("record match", "error", err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.Notify(notify.Event{
			Sequence:  sequence,
			Source:    source,
			Timestamp: now,
		}); err != nil {
			s.logger.Error("notify match", "error", err)
		}
	}

	s.broadcastMu.RLock()
	broadcast := s.broadcast
	s.broadcastMu.RUnlock()
	if broadcast != nil {
		broadcast(&ipc.MatchEvent{Sequence: sequence, Source: source, Timestamp: now})
	}
}

// SetEnabled toggles the recognizer.
func (s *Service) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.recognizer.SetEnabled(enabled)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetEnabled(enabled)
	}
	s.logger.Info("recognizer state changed", "enabled", enabled)
}

// Enabled reports the recognizer state.
func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recognizer.Enabled()
}

// Reload swaps in a recognizer built from cfg. The previous enabled state
// carries over; any partial candidate is discarded since zone geometry or
// the sequence set may have changed.
func (s *Service) Reload(cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.buildRecognizer(cfg)
	if err != nil {
		return err
	}
	if !s.recognizer.Enabled() {
		rec.SetEnabled(false)
	}
	s.recognizer = rec
	s.cfg = cfg

	s.logger.Info("recognizer rebuilt from new configuration",
		"sequences", rec.Sequences().Len(),
		"corner_size", cfg.Gesture.CornerSize,
	)
	return nil
}

// Status summarizes the daemon for the IPC status call.
func (s *Service) Status(subscribers int) *ipc.StatusResponse {
	s.mu.Lock()
	snap := s.recognizer.Snapshot()
	sequences := s.recognizer.Sequences().Len()
	matchCount := s.matchCount
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.UpdateUptime()
	}

	return &ipc.StatusResponse{
		Version:       s.version,
		StartedAt:     s.startedAt,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Enabled:       snap.Enabled,
		Armed:         snap.Armed,
		Candidate:     snap.Candidate,
		Sequences:     sequences,
		MatchCount:    matchCount,
		StoreEnabled:  s.store != nil,
		Subscribers:   subscribers,
	}
}

// Close releases the service's collaborators.
func (s *Service) Close() error {
	var first error
	if s.notifier != nil {
		if err := s.notifier.Close(); err != nil {
			first = err
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
