package hotkey

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/screenshotos/screenshotos/internal/logger"
)

// ignorableMods are lock-state modifiers that must not prevent a
// shortcut from matching. Each grab is registered once per combination.
var ignorableMods = []uint16{
	0,
	xproto.ModMaskLock,              // CapsLock
	xproto.ModMask2,                 // NumLock
	xproto.ModMaskLock | xproto.ModMask2,
}

// Listener grabs keys on the X root window and invokes callbacks when
// they are pressed, regardless of which window has focus.
type Listener struct {
	mu       sync.Mutex
	conn     *xgb.Conn
	root     xproto.Window
	bindings map[string]grabbed
	running  bool
}

type grabbed struct {
	binding  Binding
	keycode  xproto.Keycode
	callback func()
}

// NewListener connects to the X server for global key grabs.
func NewListener() (*Listener, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	setup := xproto.Setup(conn)
	return &Listener{
		conn:     conn,
		root:     setup.DefaultScreen(conn).Root,
		bindings: make(map[string]grabbed),
	}, nil
}

// Register parses an accelerator, grabs it globally, and arranges for
// the callback to run on each press. Re-registering an accelerator
// replaces its callback.
func (l *Listener) Register(accelerator string, callback func()) error {
	binding, err := Parse(accelerator)
	if err != nil {
		return err
	}

	keycode, err := l.keycodeFor(binding.Keysym)
	if err != nil {
		return fmt.Errorf("no keycode for %q: %w", accelerator, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if old, ok := l.bindings[accelerator]; ok {
		l.ungrab(old)
	}

	for _, extra := range ignorableMods {
		err := xproto.GrabKeyChecked(l.conn, true, l.root,
			binding.Modifiers|extra, keycode,
			xproto.GrabModeAsync, xproto.GrabModeAsync).Check()
		if err != nil {
			return fmt.Errorf("failed to grab %q: %w", accelerator, err)
		}
	}

	l.bindings[accelerator] = grabbed{binding: binding, keycode: keycode, callback: callback}
	logger.WithComponent("hotkey").Info().
		Str("accelerator", accelerator).
		Msg("Global shortcut registered")
	return nil
}

// Unregister releases one accelerator's grab.
func (l *Listener) Unregister(accelerator string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if g, ok := l.bindings[accelerator]; ok {
		l.ungrab(g)
		delete(l.bindings, accelerator)
	}
}

func (l *Listener) ungrab(g grabbed) {
	for _, extra := range ignorableMods {
		xproto.UngrabKey(l.conn, g.keycode, l.root, g.binding.Modifiers|extra)
	}
}

// Start runs the event loop until Close is called. Callbacks run on
// their own goroutines so a slow capture never blocks the loop.
func (l *Listener) Start() {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()

	go l.loop()
}

func (l *Listener) loop() {
	for {
		ev, err := l.conn.WaitForEvent()
		if ev == nil && err == nil {
			return // connection closed
		}
		if err != nil {
			logger.WithComponent("hotkey").Warn().
				Err(err).
				Msg("X event error")
			continue
		}

		press, ok := ev.(xproto.KeyPressEvent)
		if !ok {
			continue
		}
		l.dispatch(press)
	}
}

func (l *Listener) dispatch(press xproto.KeyPressEvent) {
	state := press.State &^ (xproto.ModMaskLock | xproto.ModMask2)

	l.mu.Lock()
	var cb func()
	for _, g := range l.bindings {
		if g.keycode == press.Detail && g.binding.Modifiers == state {
			cb = g.callback
			break
		}
	}
	l.mu.Unlock()

	if cb != nil {
		go cb()
	}
}

// Close releases all grabs and disconnects.
func (l *Listener) Close() {
	l.mu.Lock()
	for _, g := range l.bindings {
		l.ungrab(g)
	}
	l.bindings = make(map[string]grabbed)
	l.mu.Unlock()
	l.conn.Close()
}

// keycodeFor scans the keyboard mapping for the first keycode producing
// the keysym.
func (l *Listener) keycodeFor(sym xproto.Keysym) (xproto.Keycode, error) {
	setup := xproto.Setup(l.conn)
	first := setup.MinKeycode
	count := byte(setup.MaxKeycode - setup.MinKeycode + 1)

	reply, err := xproto.GetKeyboardMapping(l.conn, first, count).Reply()
	if err != nil {
		return 0, fmt.Errorf("keyboard mapping: %w", err)
	}

	per := int(reply.KeysymsPerKeycode)
	for i := 0; i < int(count); i++ {
		for j := 0; j < per; j++ {
			if reply.Keysyms[i*per+j] == sym {
				return first + xproto.Keycode(i), nil
			}
		}
	}
	return 0, fmt.Errorf("keysym 0x%x not on keyboard", sym)
}
