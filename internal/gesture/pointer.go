package gesture

import "time"

// PointerKind identifies the phase of a pointer event.
type PointerKind int

const (
	// PointerDown is emitted when a pointer first touches the surface.
	PointerDown PointerKind = iota
	// PointerMove is emitted while a pointer travels across the surface.
	PointerMove
	// PointerUp is emitted when a pointer leaves the surface normally.
	PointerUp
	// PointerCancel is emitted when the host aborts the gesture
	// (focus loss, palm rejection, window teardown).
	PointerCancel
)

// String returns the string representation of the pointer kind.
func (k PointerKind) String() string {
	switch k {
	case PointerDown:
		return "down"
	case PointerMove:
		return "move"
	case PointerUp:
		return "up"
	case PointerCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// PointerEvent is a single already-disambiguated pointer action delivered
// by the host. Coordinates are in the same pixel space as the Geometry the
// recognizer was built with, origin at the top-left corner.
type PointerEvent struct {
	Kind PointerKind
	X    int
	Y    int
	Time time.Time
}
