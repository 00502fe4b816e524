package geometry

import (
	"math"

	"github.com/screenshotos/screenshotos/internal/display"
	"github.com/screenshotos/screenshotos/internal/logger"
)

// NoDisplay marks a transform call with no explicit target display.
const NoDisplay = -1

// Transform converts a selection drawn in one display's overlay space into
// a clamped physical-pixel rectangle on that display.
//
// displays must be the same snapshot used to place the overlay windows; a
// fresh enumeration could reorder or drop monitors mid-gesture.
// targetDisplayID selects the display the selection belongs to; pass
// NoDisplay to use the first enumerated display. An unknown id degrades to
// the first display rather than failing, so losing a monitor mid-gesture
// never aborts a capture the user is actively performing.
//
// The function is pure and deterministic: identical inputs always yield
// the identical rectangle.
func Transform(displays []display.Display, sel SelectionRect, targetDisplayID int) (PhysicalRect, error) {
	if !sel.Valid() {
		return PhysicalRect{}, ErrInvalidSelection
	}
	if len(displays) == 0 {
		return PhysicalRect{}, display.ErrNoDisplays
	}

	target := displays[0]
	if targetDisplayID != NoDisplay {
		found := false
		for _, d := range displays {
			if d.ID == targetDisplayID {
				target = d
				found = true
				break
			}
		}
		if !found {
			logger.WithComponent("geometry").Warn().
				Int("target_display_id", targetDisplayID).
				Int("fallback_display_id", target.ID).
				Msg("Target display not found, degrading to first enumerated display")
		}
	}

	// The overlay's logical origin is the work-area corner; cropping is
	// relative to the full bounds. The offset between the two is the menu
	// bar / dock inset.
	offsetX := float64(target.WorkArea.X - target.Bounds.X)
	offsetY := float64(target.WorkArea.Y - target.Bounds.Y)

	scale := target.ScaleFactor
	if scale <= 0 {
		scale = 1
	}

	// Each dimension is rounded independently. Width is NOT computed as
	// round(right)-round(left); repeated transforms must not accumulate
	// off-by-one drift, and downstream consumers depend on the exact
	// rounding behavior.
	x := int(math.Round((sel.X + offsetX) * scale))
	y := int(math.Round((sel.Y + offsetY) * scale))
	w := int(math.Round(sel.Width * scale))
	h := int(math.Round(sel.Height * scale))

	physW := int(math.Round(float64(target.Bounds.Width) * scale))
	physH := int(math.Round(float64(target.Bounds.Height) * scale))
	// A display reporting degenerate bounds still yields a 1x1 crop space.
	if physW < 1 {
		physW = 1
	}
	if physH < 1 {
		physH = 1
	}

	// Clamp, never reject: multi-monitor drags routinely extend past a
	// display edge and must still produce a usable crop. Floor at 1x1 so
	// rounding can never produce a zero-area rectangle.
	x = clamp(x, 0, physW-1)
	y = clamp(y, 0, physH-1)
	w = clamp(w, 1, physW-x)
	h = clamp(h, 1, physH-y)

	return PhysicalRect{
		X:         x,
		Y:         y,
		Width:     w,
		Height:    h,
		DisplayID: target.ID,
	}, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
