// Package hotkey registers global keyboard shortcuts on the X server
// and dispatches capture actions when they fire.
package hotkey

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
)

// Binding is a parsed accelerator: a keysym plus a modifier mask.
type Binding struct {
	Keysym    xproto.Keysym
	Modifiers uint16
}

// keysyms for the non-letter keys accelerators commonly use.
var namedKeysyms = map[string]xproto.Keysym{
	"space":  0x0020,
	"return": 0xff0d,
	"enter":  0xff0d,
	"tab":    0xff09,
	"escape": 0xff1b,
	"esc":    0xff1b,
	"f1":     0xffbe, "f2": 0xffbf, "f3": 0xffc0, "f4": 0xffc1,
	"f5": 0xffc2, "f6": 0xffc3, "f7": 0xffc4, "f8": 0xffc5,
	"f9": 0xffc6, "f10": 0xffc7, "f11": 0xffc8, "f12": 0xffc9,
	"printscreen": 0xff61,
	"print":       0xff61,
	"up":          0xff52,
	"down":        0xff54,
	"left":        0xff51,
	"right":       0xff53,
}

// Parse turns an accelerator string such as "CommandOrControl+Shift+4"
// into an X11 binding. "CommandOrControl" and "Command" both map to
// Control here; the Electron-style spelling is kept so configs written
// on other platforms keep working.
func Parse(accelerator string) (Binding, error) {
	parts := strings.Split(accelerator, "+")
	if len(parts) == 0 || accelerator == "" {
		return Binding{}, fmt.Errorf("empty accelerator")
	}

	var b Binding
	for i, part := range parts {
		token := strings.ToLower(strings.TrimSpace(part))
		isLast := i == len(parts)-1

		switch token {
		case "commandorcontrol", "command", "cmdorctrl", "cmd", "control", "ctrl":
			b.Modifiers |= xproto.ModMaskControl
			continue
		case "shift":
			b.Modifiers |= xproto.ModMaskShift
			continue
		case "alt", "option":
			b.Modifiers |= xproto.ModMask1
			continue
		case "super", "meta":
			b.Modifiers |= xproto.ModMask4
			continue
		}

		if !isLast {
			return Binding{}, fmt.Errorf("unknown modifier %q in %q", part, accelerator)
		}

		sym, err := keysymFor(token)
		if err != nil {
			return Binding{}, fmt.Errorf("bad key in %q: %w", accelerator, err)
		}
		b.Keysym = sym
	}

	if b.Keysym == 0 {
		return Binding{}, fmt.Errorf("accelerator %q has no key, only modifiers", accelerator)
	}
	return b, nil
}

func keysymFor(token string) (xproto.Keysym, error) {
	if sym, ok := namedKeysyms[token]; ok {
		return sym, nil
	}
	// Single printable ASCII characters map directly to their keysym.
	if len(token) == 1 {
		c := token[0]
		if c >= '0' && c <= '9' || c >= 'a' && c <= 'z' {
			return xproto.Keysym(c), nil
		}
	}
	return 0, fmt.Errorf("unrecognized key %q", token)
}
