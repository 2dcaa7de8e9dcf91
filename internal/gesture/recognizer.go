package gesture

import (
	"log/slog"
	"sync"
)

// Recognizer is the corner-knock state machine. It owns the candidate
// sequence, the armed/enabled flags, and the reset timer, and it is the only
// component that mutates them.
//
// Pointer events and the timer callback are the two event sources; both are
// serialized through a single mutex, so a timeout firing concurrently with an
// in-flight tap cannot interleave with the candidate update. The completion
// listener is invoked outside the lock and may safely call back into the
// Recognizer.
type Recognizer struct {
	mu sync.Mutex

	geom      Geometry
	sequences SequenceSet
	listener  func(string)
	observer  Observer
	logger    *slog.Logger
	timer     ResetTimer
	taps      TapDetector

	enabled   bool
	armed     bool
	corner    Corner
	hasCorner bool
	candidate []byte
}

// NewRecognizer validates cfg and builds a recognizer. The returned instance
// is enabled. Errors are *ConfigError values identifying the rejected field.
func NewRecognizer(cfg Config) (*Recognizer, error) {
	set, err := cfg.validate()
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var observer Observer = nopObserver{}
	if cfg.Observer != nil {
		observer = cfg.Observer
	}
	r := &Recognizer{
		geom:      cfg.Geometry,
		sequences: set,
		listener:  cfg.Listener,
		observer:  observer,
		logger:    logger,
		enabled:   true,
	}
	if cfg.Taps != nil {
		r.taps = cfg.Taps
	} else {
		r.taps = newSingleTapDetector(&cfg)
	}
	newTimer := cfg.NewTimer
	if newTimer == nil {
		newTimer = NewResetTimer
	}
	r.timer = newTimer(cfg.ResetTimeout, r.onTimeout)
	return r, nil
}

// ProcessPointerEvent consumes one raw pointer action. It returns true when
// the event belongs to an in-progress corner tap (the host should not handle
// it elsewhere) and false when the recognizer is disabled or the event did
// not start inside a corner zone.
func (r *Recognizer) ProcessPointerEvent(ev PointerEvent) bool {
	r.mu.Lock()
	consumed, matched := r.processLocked(ev)
	r.mu.Unlock()
	if matched != "" {
		r.listener(matched)
	}
	return consumed
}

func (r *Recognizer) processLocked(ev PointerEvent) (consumed bool, matched string) {
	if !r.enabled {
		return false, ""
	}
	// Reclassified per event, never cached across events.
	r.corner, r.hasCorner = r.geom.CornerAt(ev.X, ev.Y)
	if ev.Kind == PointerDown && r.hasCorner {
		r.armed = true
	}
	if !r.armed {
		return false, ""
	}
	tapped := r.taps.Feed(ev)
	if ev.Kind == PointerUp || ev.Kind == PointerCancel {
		r.armed = false
	}
	if tapped {
		matched = r.tapCompletedLocked()
	}
	return true, matched
}

// tapCompletedLocked advances the candidate after a resolved single tap.
// A tap outside every corner discards progress; leaving the zones mid-drag
// does not (the candidate only resets on resolved taps and timeouts).
func (r *Recognizer) tapCompletedLocked() string {
	if !r.hasCorner {
		r.resetLocked(ResetNonCornerTap)
		return ""
	}
	r.observer.CornerTapped(r.corner)
	r.timer.Start()
	r.candidate = append(r.candidate, r.corner.Code()...)
	r.logger.Debug("corner tapped",
		"corner", r.corner.Code(),
		"candidate", string(r.candidate))

	target, kind := r.sequences.Match(string(r.candidate))
	switch kind {
	case MatchExact:
		r.observer.SequenceMatched(target)
		r.resetLocked(ResetCompleted)
		return target
	case MatchPrefix:
		r.timer.Delay()
		return ""
	default:
		r.resetLocked(ResetMismatch)
		return ""
	}
}

// onTimeout is the ResetTimer callback. Idempotent when the candidate is
// already empty. A callback can block on the mutex while an in-flight tap
// restarts the timer; the generation check drops such a stale callback so it
// cannot discard the progress the tap just made.
func (r *Recognizer) onTimeout(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.timer.Gen() {
		return
	}
	r.resetLocked(ResetTimeout)
}

func (r *Recognizer) resetLocked(cause ResetCause) {
	if len(r.candidate) == 0 {
		return
	}
	r.logger.Debug("candidate reset",
		"cause", cause.String(),
		"candidate", string(r.candidate))
	r.candidate = r.candidate[:0]
	r.timer.Stop()
	r.observer.CandidateReset(cause)
}

// SetEnabled toggles event processing. Disabling stops the reset timer and
// suppresses all processing but deliberately keeps the accumulated candidate;
// re-enabling resumes from the prior candidate, and the next tap restarts the
// inactivity window.
func (r *Recognizer) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
	if !enabled {
		r.timer.Stop()
	}
}

// Enabled reports whether the recognizer is processing events.
func (r *Recognizer) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// State is a point-in-time snapshot of the recognizer for status reporting.
type State struct {
	Enabled   bool   `json:"enabled"`
	Armed     bool   `json:"armed"`
	Candidate string `json:"candidate"`
}

// Snapshot returns the current recognizer state.
func (r *Recognizer) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State{
		Enabled:   r.enabled,
		Armed:     r.armed,
		Candidate: string(r.candidate),
	}
}

// Sequences returns the validated target set.
func (r *Recognizer) Sequences() SequenceSet {
	return r.sequences
}

// Geometry returns the surface geometry the recognizer was built with.
func (r *Recognizer) Geometry() Geometry {
	return r.geom
}
