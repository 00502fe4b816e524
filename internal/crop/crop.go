// Package crop extracts physical-pixel rectangles from captured buffers.
package crop

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/screenshotos/screenshotos/internal/geometry"
	"github.com/screenshotos/screenshotos/internal/logger"
)

// ErrOutOfBounds is returned when the requested rectangle lies entirely
// outside the buffer's own pixel dimensions. The transformer already
// clamps against declared display bounds, so hitting this means the
// captured buffer's actual resolution disagreed with the display metadata
// (a stale display snapshot), which must be surfaced distinctly from
// selection errors.
var ErrOutOfBounds = errors.New("crop rectangle outside captured buffer")

// Crop copies the given physical rectangle out of a captured buffer into
// a fresh RGBA image. A rectangle partially overlapping the buffer is
// intersected; only a fully disjoint rectangle fails.
func Crop(src image.Image, rect geometry.PhysicalRect) (*image.RGBA, error) {
	bufBounds := src.Bounds()
	want := image.Rect(rect.X, rect.Y, rect.X+rect.Width, rect.Y+rect.Height)

	if !want.Overlaps(bufBounds) {
		return nil, fmt.Errorf("%w: rect %v vs buffer %v (display %d)",
			ErrOutOfBounds, want, bufBounds, rect.DisplayID)
	}

	clipped := want.Intersect(bufBounds)
	if clipped != want {
		logger.WithComponent("crop").Warn().
			Str("requested", want.String()).
			Str("clipped", clipped.String()).
			Int("display_id", rect.DisplayID).
			Msg("Crop rectangle exceeded buffer, intersecting - display metadata may be stale")
	}

	out := image.NewRGBA(image.Rect(0, 0, clipped.Dx(), clipped.Dy()))
	draw.Draw(out, out.Bounds(), src, clipped.Min, draw.Src)
	return out, nil
}
