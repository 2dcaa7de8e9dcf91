// Package gesture implements corner-knock gesture recognition: it classifies
// raw pointer coordinates into screen-corner zones, accumulates recognized
// corner taps into a candidate sequence, and matches the candidate against a
// validated set of target sequences with prefix-based early pruning.
//
// The package has no platform dependencies. The host feeds it pointer events
// (down, move, up, cancel) in screen pixels; the recognizer reports whether
// it consumed each event and invokes a listener when a configured sequence
// completes.
package gesture

import "fmt"

// Corner identifies one of the four screen corners.
type Corner int

const (
	CornerTopLeft Corner = iota
	CornerTopRight
	CornerBottomLeft
	CornerBottomRight
)

// Code returns the stable two-character encoding of the corner: the vertical
// token (T or B) followed by the horizontal token (L or R). These codes are
// the alphabet of target sequence strings.
func (c Corner) Code() string {
	switch c {
	case CornerTopLeft:
		return "TL"
	case CornerTopRight:
		return "TR"
	case CornerBottomLeft:
		return "BL"
	case CornerBottomRight:
		return "BR"
	default:
		return "??"
	}
}

// String returns a human-readable corner name.
func (c Corner) String() string {
	switch c {
	case CornerTopLeft:
		return "top-left"
	case CornerTopRight:
		return "top-right"
	case CornerBottomLeft:
		return "bottom-left"
	case CornerBottomRight:
		return "bottom-right"
	default:
		return fmt.Sprintf("corner(%d)", int(c))
	}
}

// Geometry describes the touch surface and the corner hit regions. CornerSize
// is the side of the square threshold, in pixels, measured from each edge.
// Values are fixed for the life of a recognizer.
type Geometry struct {
	Width      int
	Height     int
	CornerSize int
}

// CornerAt classifies a coordinate into a corner zone. The second return
// value is false when the point lies outside every corner.
//
// Rules are evaluated in a fixed order (top-left, bottom-left, top-right,
// bottom-right). The conditions are mutually exclusive for any CornerSize up
// to half the smaller screen dimension; beyond that the zones overlap and the
// first rule in order wins. Callers must not reorder the rules.
func (g Geometry) CornerAt(x, y int) (Corner, bool) {
	switch {
	case x <= g.CornerSize && y <= g.CornerSize:
		return CornerTopLeft, true
	case x <= g.CornerSize && y > g.Height-g.CornerSize:
		return CornerBottomLeft, true
	case x > g.Width-g.CornerSize && y <= g.CornerSize:
		return CornerTopRight, true
	case x > g.Width-g.CornerSize && y > g.Height-g.CornerSize:
		return CornerBottomRight, true
	}
	return 0, false
}
