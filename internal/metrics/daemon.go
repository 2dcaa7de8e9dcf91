package metrics

import (
	"sync"
	"time"

	"cornerknock/internal/gesture"
)

// DaemonMetrics holds the cornerknockd metric set. It implements
// gesture.Observer so the recognizer can feed it directly.
type DaemonMetrics struct {
	registry *Registry

	PointerEvents *Counter
	MatchesTotal  *Counter
	taps          map[gesture.Corner]*Counter
	resets        map[gesture.ResetCause]*Counter

	RecognizerEnabled *Gauge
	Subscribers       *Gauge
	UptimeSeconds     *Gauge

	KnockDuration *Histogram

	mu         sync.Mutex
	knockStart time.Time

	startTime time.Time
}

// NewDaemonMetrics registers the daemon metric set on registry.
func NewDaemonMetrics(registry *Registry) *DaemonMetrics {
	m := &DaemonMetrics{
		registry: registry,

		PointerEvents: registry.RegisterCounter(
			"pointer_events_total",
			"Total number of pointer events processed",
			nil,
		),
		MatchesTotal: registry.RegisterCounter(
			"matches_total",
			"Total number of completed knock sequences",
			nil,
		),
		taps:   make(map[gesture.Corner]*Counter),
		resets: make(map[gesture.ResetCause]*Counter),

		RecognizerEnabled: registry.RegisterGauge(
			"recognizer_enabled",
			"Whether the recognizer is currently enabled (1 or 0)",
			nil,
		),
		Subscribers: registry.RegisterGauge(
			"event_subscribers",
			"Number of connected match event subscribers",
			nil,
		),
		UptimeSeconds: registry.RegisterGauge(
			"uptime_seconds",
			"Number of seconds the daemon has been running",
			nil,
		),

		KnockDuration: registry.RegisterHistogram(
			"knock_duration_seconds",
			"Time from the first tap of a candidate to sequence completion",
			DurationBuckets,
		),

		startTime: time.Now(),
	}

	corners := []gesture.Corner{
		gesture.CornerTopLeft, gesture.CornerTopRight,
		gesture.CornerBottomLeft, gesture.CornerBottomRight,
	}
	for _, c := range corners {
		m.taps[c] = registry.RegisterCounter(
			"corner_taps_total",
			"Corner taps accepted into a candidate, by corner",
			Labels{"corner": c.Code()},
		)
	}
	causes := []gesture.ResetCause{
		gesture.ResetTimeout, gesture.ResetMismatch,
		gesture.ResetCompleted, gesture.ResetNonCornerTap,
	}
	for _, cause := range causes {
		m.resets[cause] = registry.RegisterCounter(
			"candidate_resets_total",
			"Candidate resets, by cause",
			Labels{"cause": cause.String()},
		)
	}

	m.RecognizerEnabled.Set(1)
	return m
}

// CornerTapped implements gesture.Observer.
func (m *DaemonMetrics) CornerTapped(c gesture.Corner) {
	if counter, ok := m.taps[c]; ok {
		counter.Inc()
	}
	m.mu.Lock()
	if m.knockStart.IsZero() {
		m.knockStart = time.Now()
	}
	m.mu.Unlock()
}

// CandidateReset implements gesture.Observer.
func (m *DaemonMetrics) CandidateReset(cause gesture.ResetCause) {
	if counter, ok := m.resets[cause]; ok {
		counter.Inc()
	}
	m.mu.Lock()
	start := m.knockStart
	m.knockStart = time.Time{}
	m.mu.Unlock()

	if cause == gesture.ResetCompleted && !start.IsZero() {
		m.KnockDuration.ObserveDuration(time.Since(start))
	}
}

// SequenceMatched implements gesture.Observer.
func (m *DaemonMetrics) SequenceMatched(string) {
	m.MatchesTotal.Inc()
}

// SetEnabled reflects the recognizer's enabled state.
func (m *DaemonMetrics) SetEnabled(enabled bool) {
	if enabled {
		m.RecognizerEnabled.Set(1)
	} else {
		m.RecognizerEnabled.Set(0)
	}
}

// UpdateUptime refreshes the uptime gauge. Called before every scrape and
// status report.
func (m *DaemonMetrics) UpdateUptime() {
	m.UptimeSeconds.Set(int64(time.Since(m.startTime).Seconds()))
}

// Registry returns the underlying registry.
func (m *DaemonMetrics) Registry() *Registry {
	return m.registry
}
