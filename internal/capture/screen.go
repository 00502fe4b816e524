package capture

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	"github.com/screenshotos/screenshotos/internal/logger"
)

// ScreenBackend captures displays through the OS screenshot facility.
type ScreenBackend struct{}

// NewScreenBackend creates the OS-level capture backend.
func NewScreenBackend() *ScreenBackend {
	return &ScreenBackend{}
}

// NumDisplays returns the number of active displays.
func (b *ScreenBackend) NumDisplays() int {
	return screenshot.NumActiveDisplays()
}

// DisplayBounds returns the bounds of the display at the given
// enumeration position.
func (b *ScreenBackend) DisplayBounds(index int) image.Rectangle {
	return screenshot.GetDisplayBounds(index)
}

// CaptureDisplay captures the full content of one display.
func (b *ScreenBackend) CaptureDisplay(index int) (*image.RGBA, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("%w: no active displays", ErrBackend)
	}
	if index < 0 || index >= n {
		return nil, fmt.Errorf("%w: display index %d out of range (%d active)", ErrBackend, index, n)
	}

	img, err := screenshot.CaptureDisplay(index)
	if err != nil {
		return nil, fmt.Errorf("%w: display %d: %v", ErrBackend, index, err)
	}

	logger.WithComponent("capture").Debug().
		Int("display_index", index).
		Str("bounds", img.Bounds().String()).
		Msg("Captured display")

	return img, nil
}

// CaptureFullVirtualScreen captures the union of every active display's
// bounds in one buffer.
func (b *ScreenBackend) CaptureFullVirtualScreen() (*image.RGBA, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("%w: no active displays", ErrBackend)
	}

	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}

	img, err := screenshot.CaptureRect(union)
	if err != nil {
		return nil, fmt.Errorf("%w: virtual screen %v: %v", ErrBackend, union, err)
	}

	logger.WithComponent("capture").Debug().
		Int("displays", n).
		Str("bounds", union.String()).
		Msg("Captured full virtual screen")

	return img, nil
}
