package overlay

import (
	"math"

	"github.com/screenshotos/screenshotos/internal/geometry"
)

// MinDragDistance is the minimum pointer travel, in overlay logical
// pixels, for a release to count as a selection. Anything shorter is a
// stray click and leaves the gesture open instead of resolving it.
const MinDragDistance = 5.0

// Phase is the state of one capture gesture.
type Phase int

const (
	// PhaseAwaitingReady: overlay windows are being created; nothing is
	// visible yet and input is ignored.
	PhaseAwaitingReady Phase = iota
	// PhaseSelecting: overlays are visible and the pointer is tracked.
	PhaseSelecting
	// PhaseResolved: the user completed a drag past the minimum distance.
	PhaseResolved
	// PhaseCancelled: the user pressed Escape.
	PhaseCancelled
)

// Result is a resolved selection: the raw overlay-space rectangle and the
// display whose overlay it was drawn on.
type Result struct {
	Selection geometry.SelectionRect
	DisplayID int
}

// gesture tracks a single rubber-band drag across the overlay windows.
// It is plain state driven by input events; all windowing lives in the
// Controller.
type gesture struct {
	phase     Phase
	dragging  bool
	displayID int
	startX    float64
	startY    float64
	curX      float64
	curY      float64
	result    *Result
}

func newGesture() *gesture {
	return &gesture{phase: PhaseAwaitingReady}
}

// ready transitions out of PhaseAwaitingReady once every overlay window
// is mapped.
func (g *gesture) ready() {
	if g.phase == PhaseAwaitingReady {
		g.phase = PhaseSelecting
	}
}

// press begins a drag on the overlay belonging to displayID.
func (g *gesture) press(displayID int, x, y float64) {
	if g.phase != PhaseSelecting {
		return
	}
	g.dragging = true
	g.displayID = displayID
	g.startX, g.startY = x, y
	g.curX, g.curY = x, y
}

// move updates the live rubber-band corner.
func (g *gesture) move(x, y float64) {
	if g.phase != PhaseSelecting || !g.dragging {
		return
	}
	g.curX, g.curY = x, y
}

// release ends the drag. A travel distance under MinDragDistance is a
// no-op click: the gesture stays in PhaseSelecting with the overlays
// open. Returns the result when the gesture resolved.
func (g *gesture) release(x, y float64) *Result {
	if g.phase != PhaseSelecting || !g.dragging {
		return nil
	}
	g.dragging = false
	g.curX, g.curY = x, y

	if math.Hypot(x-g.startX, y-g.startY) < MinDragDistance {
		return nil
	}

	g.phase = PhaseResolved
	g.result = &Result{
		Selection: g.rect(),
		DisplayID: g.displayID,
	}
	return g.result
}

// cancel aborts the gesture.
func (g *gesture) cancel() {
	if g.phase == PhaseSelecting || g.phase == PhaseAwaitingReady {
		g.phase = PhaseCancelled
	}
}

// rect returns the normalized selection rectangle for the current drag.
func (g *gesture) rect() geometry.SelectionRect {
	x1, x2 := g.startX, g.curX
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	y1, y2 := g.startY, g.curY
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	return geometry.SelectionRect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}
