// cornerknock-demo opens a window that behaves like a kiosk screen: tap the
// corners in the configured order to trigger a match. It runs its own
// recognizer so the gesture feel can be tuned without a daemon, display
// server integration or config file.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"gioui.org/app"
	"gioui.org/io/event"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget/material"

	"cornerknock/internal/gesture"
)

var (
	sequences    = flag.String("sequences", "TLTRBR", "comma-separated knock sequences")
	cornerSize   = flag.Int("corner-size", 120, "corner hit-region size in pixels")
	resetTimeout = flag.Duration("timeout", 2*time.Second, "inactivity window between taps")
)

func main() {
	flag.Parse()

	go func() {
		w := new(app.Window)
		w.Option(app.Title("Corner Knock Demo"))
		w.Option(app.Size(unit.Dp(800), unit.Dp(600)))

		if err := loop(w); err != nil {
			log.Fatal(err)
		}
		os.Exit(0)
	}()
	app.Main()
}

// demoState tracks what the window shows. The recognizer invokes the match
// listener on the UI goroutine, but the window is also redrawn on a timer,
// so access is serialized anyway.
type demoState struct {
	mu        sync.Mutex
	matched   string
	matchedAt time.Time
}

func (d *demoState) onMatch(sequence string) {
	d.mu.Lock()
	d.matched = sequence
	d.matchedAt = time.Now()
	d.mu.Unlock()
	fmt.Printf("matched %s\n", sequence)
}

func (d *demoState) recentMatch() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.matched == "" || time.Since(d.matchedAt) > 3*time.Second {
		return "", false
	}
	return d.matched, true
}

func loop(w *app.Window) error {
	th := material.NewTheme()
	state := &demoState{}

	var (
		rec        *gesture.Recognizer
		geom       gesture.Geometry
		recErr     error
		pointerTag = new(int)
	)

	buildRecognizer := func(width, height int) {
		geom = gesture.Geometry{Width: width, Height: height, CornerSize: *cornerSize}
		rec, recErr = gesture.NewRecognizer(gesture.Config{
			Geometry:     geom,
			Sequences:    strings.Split(*sequences, ","),
			ResetTimeout: *resetTimeout,
			Listener:     state.onMatch,
		})
	}

	var ops op.Ops
	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err

		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)

			// Rebuild the recognizer when the window size changes; the
			// corner zones are anchored to the surface dimensions.
			if rec == nil || geom.Width != e.Size.X || geom.Height != e.Size.Y {
				buildRecognizer(e.Size.X, e.Size.Y)
			}
			if recErr != nil {
				return recErr
			}

			drainPointerEvents(gtx, pointerTag, rec)
			drawFrame(gtx, th, e.Size, geom, rec, state, pointerTag)

			// Keep repainting so the match banner and candidate expire
			// visually without user input.
			w.Invalidate()
			e.Frame(gtx.Ops)
		}
	}
}

func drainPointerEvents(gtx layout.Context, tag event.Tag, rec *gesture.Recognizer) {
	for {
		ev, ok := gtx.Event(pointer.Filter{
			Target: tag,
			Kinds:  pointer.Press | pointer.Drag | pointer.Release | pointer.Cancel,
		})
		if !ok {
			return
		}
		pe, ok := ev.(pointer.Event)
		if !ok {
			continue
		}

		var kind gesture.PointerKind
		switch pe.Kind {
		case pointer.Press:
			kind = gesture.PointerDown
		case pointer.Drag:
			kind = gesture.PointerMove
		case pointer.Release:
			kind = gesture.PointerUp
		case pointer.Cancel:
			kind = gesture.PointerCancel
		default:
			continue
		}

		rec.ProcessPointerEvent(gesture.PointerEvent{
			Kind: kind,
			X:    int(pe.Position.X),
			Y:    int(pe.Position.Y),
			Time: time.Now(),
		})
	}
}

func drawFrame(gtx layout.Context, th *material.Theme, size image.Point, geom gesture.Geometry, rec *gesture.Recognizer, state *demoState, tag event.Tag) {
	// Background.
	paint.Fill(gtx.Ops, color.NRGBA{R: 0x20, G: 0x24, B: 0x28, A: 0xFF})

	// Pointer input covers the whole surface.
	defer clip.Rect(image.Rect(0, 0, size.X, size.Y)).Push(gtx.Ops).Pop()
	event.Op(gtx.Ops, tag)

	// Corner zones.
	cs := geom.CornerSize
	zones := []image.Rectangle{
		image.Rect(0, 0, cs, cs),                         // TL
		image.Rect(size.X-cs, 0, size.X, cs),             // TR
		image.Rect(0, size.Y-cs, cs, size.Y),             // BL
		image.Rect(size.X-cs, size.Y-cs, size.X, size.Y), // BR
	}
	zoneColor := color.NRGBA{R: 0x3A, G: 0x4A, B: 0x5A, A: 0xFF}
	for _, z := range zones {
		fillRect(gtx.Ops, z, zoneColor)
	}

	snap := rec.Snapshot()
	status := "Tap the corners in order"
	if snap.Candidate != "" {
		status = "Candidate: " + snap.Candidate
	}
	if matched, ok := state.recentMatch(); ok {
		status = "MATCHED " + matched
	}

	layout.Center.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		label := material.H5(th, status)
		label.Color = color.NRGBA{R: 0xE0, G: 0xE6, B: 0xEC, A: 0xFF}
		return label.Layout(gtx)
	})
}

func fillRect(ops *op.Ops, r image.Rectangle, c color.NRGBA) {
	defer clip.Rect(r).Push(ops).Pop()
	paint.ColorOp{Color: c}.Add(ops)
	paint.PaintOp{}.Add(ops)
}
