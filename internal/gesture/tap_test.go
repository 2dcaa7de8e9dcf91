package gesture

import (
	"testing"
	"time"
)

func newTestTapDetector() *singleTapDetector {
	return newSingleTapDetector(&Config{})
}

func TestSingleTapDetected(t *testing.T) {
	d := newTestTapDetector()
	base := time.Now()

	d.Feed(PointerEvent{Kind: PointerDown, X: 100, Y: 100, Time: base})
	if !d.Feed(PointerEvent{Kind: PointerUp, X: 105, Y: 98, Time: base.Add(120 * time.Millisecond)}) {
		t.Error("down/up within slop and duration should be a tap")
	}
}

func TestTapRejectedAfterDrag(t *testing.T) {
	d := newTestTapDetector()
	base := time.Now()

	d.Feed(PointerEvent{Kind: PointerDown, X: 100, Y: 100, Time: base})
	d.Feed(PointerEvent{Kind: PointerMove, X: 200, Y: 100, Time: base.Add(50 * time.Millisecond)})
	if d.Feed(PointerEvent{Kind: PointerUp, X: 100, Y: 100, Time: base.Add(100 * time.Millisecond)}) {
		t.Error("a drag beyond the slop is not a tap even when it returns to the origin")
	}
}

func TestTapRejectedWhenUpDrifts(t *testing.T) {
	d := newTestTapDetector()
	base := time.Now()

	d.Feed(PointerEvent{Kind: PointerDown, X: 100, Y: 100, Time: base})
	if d.Feed(PointerEvent{Kind: PointerUp, X: 100 + DefaultTapSlop + 1, Y: 100, Time: base.Add(50 * time.Millisecond)}) {
		t.Error("an up beyond the slop is not a tap")
	}
}

func TestLongPressRejected(t *testing.T) {
	d := newTestTapDetector()
	base := time.Now()

	d.Feed(PointerEvent{Kind: PointerDown, X: 100, Y: 100, Time: base})
	if d.Feed(PointerEvent{Kind: PointerUp, X: 100, Y: 100, Time: base.Add(2 * time.Second)}) {
		t.Error("a long press is not a tap")
	}
}

func TestCancelAbortsTap(t *testing.T) {
	d := newTestTapDetector()
	base := time.Now()

	d.Feed(PointerEvent{Kind: PointerDown, X: 100, Y: 100, Time: base})
	d.Feed(PointerEvent{Kind: PointerCancel, X: 100, Y: 100, Time: base.Add(10 * time.Millisecond)})
	if d.Feed(PointerEvent{Kind: PointerUp, X: 100, Y: 100, Time: base.Add(20 * time.Millisecond)}) {
		t.Error("an up after cancel is not a tap")
	}
}

func TestUpWithoutDownRejected(t *testing.T) {
	d := newTestTapDetector()
	if d.Feed(PointerEvent{Kind: PointerUp, X: 100, Y: 100, Time: time.Now()}) {
		t.Error("an up with no tracked down is not a tap")
	}
}

func TestZeroTimeSkipsDurationCheck(t *testing.T) {
	// Hosts that cannot timestamp events send zero times; the duration
	// check is skipped rather than rejecting every tap.
	d := newTestTapDetector()

	d.Feed(PointerEvent{Kind: PointerDown, X: 100, Y: 100})
	if !d.Feed(PointerEvent{Kind: PointerUp, X: 100, Y: 100}) {
		t.Error("zero-time events should still resolve as taps")
	}
}
