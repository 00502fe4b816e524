package display

import (
	"fmt"

	"github.com/screenshotos/screenshotos/internal/logger"
)

// Manager is the read-only display model consumed by the rest of the
// pipeline. It is a pass-through query over a Backend with the single
// guarantee that it never hands out an empty display list.
type Manager struct {
	backend Backend
}

// NewManager creates a display manager on top of the given backend.
func NewManager(backend Backend) *Manager {
	return &Manager{backend: backend}
}

// ListDisplays returns a snapshot of all connected displays.
func (m *Manager) ListDisplays() ([]Display, error) {
	displays, err := m.backend.Displays()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate displays: %w", err)
	}
	if len(displays) == 0 {
		logger.WithComponent("display").Error().
			Str("backend", m.backend.Name()).
			Msg("Backend reported zero displays")
		return nil, ErrNoDisplays
	}
	return displays, nil
}

// PrimaryDisplay returns the primary display, falling back to the first
// enumerated display when the backend does not flag one.
func (m *Manager) PrimaryDisplay() (Display, error) {
	displays, err := m.ListDisplays()
	if err != nil {
		return Display{}, err
	}
	for _, d := range displays {
		if d.Primary {
			return d, nil
		}
	}
	return displays[0], nil
}

// Close releases the underlying backend.
func (m *Manager) Close() error {
	return m.backend.Close()
}
