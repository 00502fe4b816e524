package display

import "errors"

// ErrNoDisplays is returned when the OS reports no connected displays.
// Callers must treat this as fatal for the current operation; an empty
// display list is never returned.
var ErrNoDisplays = errors.New("no displays available")

// Rect is a rectangle in logical pixels in the global virtual-screen space.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Contains reports whether the point (x, y) lies inside the rectangle.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Intersect returns the intersection of two rectangles. A non-overlapping
// pair yields a zero-size rectangle.
func (r Rect) Intersect(o Rect) Rect {
	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.X+r.Width, o.X+o.Width)
	y2 := min(r.Y+r.Height, o.Y+o.Height)
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Display is an immutable snapshot of one connected display. The OS is
// authoritative; ids may be reassigned when monitors reconnect, so a
// snapshot is only valid for the operation it was taken for.
type Display struct {
	ID          int     `json:"id"`
	Bounds      Rect    `json:"bounds"`
	WorkArea    Rect    `json:"workArea"`
	ScaleFactor float64 `json:"scaleFactor"`
	Primary     bool    `json:"primary"`
}

// Backend enumerates connected displays.
type Backend interface {
	// Displays returns a snapshot of all connected displays in a stable
	// enumeration order. The order doubles as the capture index, so a
	// single snapshot must be reused for the whole of one operation.
	Displays() ([]Display, error)

	// Close releases the backend's resources.
	Close() error

	// Name returns the backend name (e.g. "x11", "static")
	Name() string
}
