package gesture

// TapDetector disambiguates a raw pointer stream into completed single taps.
// Feed examines one event and reports whether it resolved a qualifying tap.
// The Recognizer only feeds events while armed, so implementations never see
// a stream that began outside a corner zone.
type TapDetector interface {
	Feed(ev PointerEvent) (tapped bool)
}

// singleTapDetector is the built-in TapDetector: a down followed by an up
// within a movement slop and a maximum press duration. Drags beyond the slop
// and long presses do not qualify; cancel aborts the pending tap.
type singleTapDetector struct {
	slop   int
	maxDur int64 // nanoseconds; 0 disables the duration check

	tracking bool
	moved    bool
	downX    int
	downY    int
	downNs   int64
}

func newSingleTapDetector(cfg *Config) *singleTapDetector {
	slop := cfg.TapSlop
	if slop == 0 {
		slop = DefaultTapSlop
	}
	maxDur := cfg.TapMaxDuration
	if maxDur == 0 {
		maxDur = DefaultTapMaxDuration
	}
	return &singleTapDetector{slop: slop, maxDur: maxDur.Nanoseconds()}
}

func (d *singleTapDetector) Feed(ev PointerEvent) bool {
	switch ev.Kind {
	case PointerDown:
		d.tracking = true
		d.moved = false
		d.downX, d.downY = ev.X, ev.Y
		d.downNs = 0
		if !ev.Time.IsZero() {
			d.downNs = ev.Time.UnixNano()
		}
	case PointerMove:
		if d.tracking && !d.moved {
			if abs(ev.X-d.downX) > d.slop || abs(ev.Y-d.downY) > d.slop {
				d.moved = true
			}
		}
	case PointerUp:
		if !d.tracking {
			return false
		}
		d.tracking = false
		if d.moved {
			return false
		}
		if abs(ev.X-d.downX) > d.slop || abs(ev.Y-d.downY) > d.slop {
			return false
		}
		if d.maxDur > 0 && !ev.Time.IsZero() && d.downNs != 0 {
			if ev.Time.UnixNano()-d.downNs > d.maxDur {
				return false
			}
		}
		return true
	case PointerCancel:
		d.tracking = false
	}
	return false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
