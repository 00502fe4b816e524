// Package overlay manages the per-display rubber-band selection windows
// for area capture.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/screenshotos/screenshotos/internal/capture"
	"github.com/screenshotos/screenshotos/internal/display"
	"github.com/screenshotos/screenshotos/internal/logger"
)

// ErrSelectionInProgress is returned when a second area-selection gesture
// is requested while one is already pending. Two live sets of overlay
// windows are never allowed.
var ErrSelectionInProgress = errors.New("area selection already in progress")

const escapeKeysym = 0xff1b

// Selector resolves one area-selection gesture. Implemented by
// Controller; the interface exists so the orchestrator can be exercised
// without a display server.
type Selector interface {
	// Select shows the overlays and blocks until the user resolves or
	// cancels the gesture, or ctx is cancelled. A nil Result with a nil
	// error means the user cancelled.
	Select(ctx context.Context, displays []display.Display) (*Result, error)
}

// Controller owns the overlay window set for the lifetime of one capture
// gesture. Exactly one instance should exist process-wide; the
// orchestrator enforces that.
type Controller struct {
	mu     sync.Mutex
	active bool

	// frames freezes each display's current content behind its overlay,
	// so the rubber band can be drawn without a compositor.
	frames capture.Backend
}

// NewController creates an overlay selection controller. The capture
// backend is used to freeze the on-screen frame behind each overlay.
func NewController(frames capture.Backend) *Controller {
	return &Controller{frames: frames}
}

// Select runs one selection gesture across all displays.
func (c *Controller) Select(ctx context.Context, displays []display.Display) (*Result, error) {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return nil, ErrSelectionInProgress
	}
	c.active = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
	}()

	if len(displays) == 0 {
		return nil, display.ErrNoDisplays
	}

	sess, err := newSession(c.frames, displays)
	if err != nil {
		return nil, err
	}
	defer sess.teardown()

	done := make(chan struct{})
	go func() {
		defer close(done)
		sess.eventLoop()
	}()

	select {
	case <-ctx.Done():
		// Closing the connection unblocks the event loop.
		sess.close()
		<-done
		return nil, ctx.Err()
	case <-done:
	}

	if sess.gesture.phase == PhaseResolved {
		return sess.gesture.result, nil
	}
	return nil, nil
}

// session is the X11 state for one gesture: a dedicated connection and
// one overlay window per display.
type session struct {
	conn      *xgb.Conn
	windows   []*overlayWindow
	byWindow  map[xproto.Window]*overlayWindow
	gesture   *gesture
	escCode   xproto.Keycode
	closeOnce sync.Once
	closed    bool
	pressed   *overlayWindow
}

func newSession(frames capture.Backend, displays []display.Display) (*session, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	s := &session{
		conn:     conn,
		byWindow: make(map[xproto.Window]*overlayWindow),
		gesture:  newGesture(),
	}

	s.escCode = keycodeFor(conn, escapeKeysym)

	// Create every window before mapping any of them. All overlays must
	// become visible together; a partial reveal looks broken.
	for i, d := range displays {
		var frame = frozenFrame(frames, i, d)
		w, err := createOverlayWindow(conn, d, frame)
		if err != nil {
			s.teardown()
			return nil, fmt.Errorf("failed to create overlay for display %d: %w", d.ID, err)
		}
		s.windows = append(s.windows, w)
		s.byWindow[w.id] = w
	}

	for _, w := range s.windows {
		if err := xproto.MapWindowChecked(conn, w.id).Check(); err != nil {
			s.teardown()
			return nil, fmt.Errorf("failed to map overlay window: %w", err)
		}
	}
	conn.Sync()

	// Keyboard focus follows the overlay so Escape reaches us.
	xproto.SetInputFocus(conn, xproto.InputFocusPointerRoot, s.windows[0].id, xproto.TimeCurrentTime)

	s.gesture.ready()

	logger.WithComponent("overlay").Debug().
		Int("windows", len(s.windows)).
		Msg("Overlay windows mapped")

	return s, nil
}

// eventLoop consumes X events until the gesture resolves or cancels.
func (s *session) eventLoop() {
	for s.gesture.phase == PhaseSelecting || s.gesture.phase == PhaseAwaitingReady {
		ev, err := s.conn.WaitForEvent()
		if err != nil {
			logger.WithComponent("overlay").Debug().Err(err).Msg("Overlay event error")
			continue
		}
		if ev == nil {
			// Connection closed.
			s.gesture.cancel()
			return
		}

		switch e := ev.(type) {
		case xproto.ExposeEvent:
			if w, ok := s.byWindow[e.Window]; ok {
				w.redrawAll(s.conn)
			}
		case xproto.ButtonPressEvent:
			if e.Detail != 1 {
				continue
			}
			if w, ok := s.byWindow[e.Event]; ok {
				s.pressed = w
				lx, ly := w.toLogical(int(e.EventX), int(e.EventY))
				s.gesture.press(w.disp.ID, lx, ly)
			}
		case xproto.MotionNotifyEvent:
			if w, ok := s.byWindow[e.Event]; ok && w == s.pressed {
				lx, ly := w.toLogical(int(e.EventX), int(e.EventY))
				s.gesture.move(lx, ly)
				w.drawBand(s.conn, s.gesture.rect())
			}
		case xproto.ButtonReleaseEvent:
			if e.Detail != 1 || s.pressed == nil {
				continue
			}
			w := s.pressed
			s.pressed = nil
			lx, ly := w.toLogical(int(e.EventX), int(e.EventY))
			if res := s.gesture.release(lx, ly); res != nil {
				return
			}
			// Sub-threshold click: stay open, wipe the band.
			w.clearBand(s.conn)
		case xproto.KeyPressEvent:
			if e.Detail == s.escCode {
				s.gesture.cancel()
				return
			}
		}
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		s.closed = true
		s.conn.Close()
	})
}

// teardown destroys every overlay window and releases the connection.
// Windows are gone before the caller issues the real capture, so the
// overlay itself can never appear in the screenshot.
func (s *session) teardown() {
	if !s.closed {
		for _, w := range s.windows {
			w.destroy(s.conn)
		}
		s.conn.Sync()
	}
	s.close()
}

// frozenFrame grabs the display's current content for the overlay
// background. Failure is non-fatal; the overlay falls back to a dimmed
// blank window.
func frozenFrame(frames capture.Backend, index int, d display.Display) *frameImage {
	if frames == nil {
		return nil
	}
	img, err := frames.CaptureDisplay(index)
	if err != nil {
		logger.WithComponent("overlay").Warn().
			Err(err).
			Int("display_id", d.ID).
			Msg("Failed to freeze display frame for overlay background")
		return nil
	}
	return newFrameImage(img)
}

// keycodeFor resolves a keysym to a keycode via the server keyboard map.
func keycodeFor(conn *xgb.Conn, keysym uint32) xproto.Keycode {
	setup := xproto.Setup(conn)
	first := setup.MinKeycode
	count := byte(setup.MaxKeycode - setup.MinKeycode + 1)

	reply, err := xproto.GetKeyboardMapping(conn, first, count).Reply()
	if err != nil {
		return 0
	}

	per := int(reply.KeysymsPerKeycode)
	for i := 0; i < int(count); i++ {
		for j := 0; j < per; j++ {
			idx := i*per + j
			if idx < len(reply.Keysyms) && uint32(reply.Keysyms[idx]) == keysym {
				return first + xproto.Keycode(i)
			}
		}
	}
	return 0
}
