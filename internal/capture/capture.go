// Package capture invokes OS-level raw screen capture.
package capture

import (
	"errors"
	"image"
)

// ErrBackend is returned when the OS capture call fails. Callers should
// fall back to the full virtual screen rather than aborting; partial
// degradation beats total capture failure.
var ErrBackend = errors.New("capture backend failure")

// Backend captures raw screen content.
//
// Display arguments are enumeration positions, not display ids. Callers
// must map id to index against the same display snapshot used for the id
// lookup; re-enumerating between lookup and capture is a real source of
// wrong-monitor bugs.
type Backend interface {
	// NumDisplays returns the number of active displays.
	NumDisplays() int

	// DisplayBounds returns the pixel bounds of the display at the given
	// enumeration position, in the virtual-screen space the backend
	// actually captures. This is authoritative over any display-model
	// metadata for interpreting captured buffers.
	DisplayBounds(index int) image.Rectangle

	// CaptureDisplay captures one display's full content.
	CaptureDisplay(index int) (*image.RGBA, error)

	// CaptureFullVirtualScreen captures the union of all display bounds.
	CaptureFullVirtualScreen() (*image.RGBA, error)
}
