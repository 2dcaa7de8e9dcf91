package gesture

import (
	"sync"
	"time"
)

// ResetTimer is the scoped timer contract consumed by the Recognizer: a
// single pending "fire after the configured duration" callback.
//
// Start begins a fresh countdown, replacing any pending one. Delay resets a
// pending countdown back to the full duration without double-firing. Stop
// cancels the pending callback and is a no-op when none is pending. At most
// one callback is ever pending per timer.
//
// Every Start, Stop, and Delay advances the generation reported by Gen, and
// the callback receives the generation it was scheduled under. A callback
// whose generation no longer matches Gen was overtaken by a later Start,
// Delay, or Stop while it was in flight and must be ignored.
type ResetTimer interface {
	Start()
	Stop()
	Delay()
	Gen() uint64
}

// resetTimer is the time.Timer-backed ResetTimer. The callback runs on the
// runtime timer goroutine; the Recognizer serializes it against pointer
// events with its own lock and drops it there when the generation is stale.
type resetTimer struct {
	mu      sync.Mutex
	d       time.Duration
	fn      func(gen uint64)
	timer   *time.Timer
	gen     uint64
	pending bool
}

// NewResetTimer returns a ResetTimer firing fn once, d after the most recent
// Start or Delay, unless stopped first.
func NewResetTimer(d time.Duration, fn func(gen uint64)) ResetTimer {
	return &resetTimer{d: d, fn: fn}
}

func (t *resetTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.pending = true
	t.timer = time.AfterFunc(t.d, func() { t.fire(gen) })
}

func (t *resetTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	t.pending = false
}

func (t *resetTimer) Delay() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.pending {
		return
	}
	t.timer.Stop()
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(t.d, func() { t.fire(gen) })
}

func (t *resetTimer) Gen() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}

func (t *resetTimer) fire(gen uint64) {
	t.mu.Lock()
	if !t.pending || gen != t.gen {
		// Stopped or rescheduled after the runtime timer fired but before
		// we got here.
		t.mu.Unlock()
		return
	}
	t.pending = false
	t.mu.Unlock()
	t.fn(gen)
}
