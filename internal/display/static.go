package display

// StaticBackend serves a fixed display list. It backs tests and headless
// runs where no display server is reachable.
type StaticBackend struct {
	List []Display
	Err  error
}

// NewStaticBackend creates a backend that always returns the given displays.
func NewStaticBackend(displays ...Display) *StaticBackend {
	return &StaticBackend{List: displays}
}

// Displays returns the configured display list.
func (b *StaticBackend) Displays() ([]Display, error) {
	if b.Err != nil {
		return nil, b.Err
	}
	return b.List, nil
}

// Close is a no-op.
func (b *StaticBackend) Close() error {
	return nil
}

// Name returns the backend name.
func (b *StaticBackend) Name() string {
	return "static"
}
