// Package geometry converts user selections drawn in overlay-window
// coordinates into physical device-pixel rectangles that are valid for
// cropping a raw capture buffer.
//
// Four coordinate spaces meet here: overlay-local logical pixels (origin
// at a display's work-area top-left), display work-area logical pixels,
// display-bounds logical pixels, and physical device pixels. Transform is
// the only place in the codebase allowed to do this conversion.
package geometry

import (
	"errors"
	"math"
)

// ErrInvalidSelection is returned for malformed selection geometry:
// non-finite coordinates or a non-positive size.
var ErrInvalidSelection = errors.New("invalid selection geometry")

// SelectionRect is a user-drawn rectangle in the logical coordinate space
// of one overlay window. Its origin is the owning display's work-area
// top-left corner.
type SelectionRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether the selection has finite coordinates and a
// positive size.
func (s SelectionRect) Valid() bool {
	for _, v := range [4]float64{s.X, s.Y, s.Width, s.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return s.Width > 0 && s.Height > 0
}

// PhysicalRect is a rectangle in device-pixel space of a specific
// display's full bounds (origin at the bounds top-left, not the work
// area). It is the only rectangle type valid for cropping a raw capture
// buffer. Invariants: X >= 0, Y >= 0, Width >= 1, Height >= 1, and the
// rectangle fits inside the display's physical bounds.
type PhysicalRect struct {
	X         int `json:"x"`
	Y         int `json:"y"`
	Width     int `json:"width"`
	Height    int `json:"height"`
	DisplayID int `json:"displayId"`
}

// Translate returns the rectangle shifted by (dx, dy).
func (p PhysicalRect) Translate(dx, dy int) PhysicalRect {
	p.X += dx
	p.Y += dy
	return p
}
