package activeapp

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/screenshotos/screenshotos/internal/logger"
)

// X11Provider samples the foreground application via EWMH properties.
type X11Provider struct {
	conn *xgb.Conn
	root xproto.Window
}

// NewX11Provider connects to the X server.
func NewX11Provider() (*X11Provider, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	screen := xproto.Setup(conn).DefaultScreen(conn)
	return &X11Provider{conn: conn, root: screen.Root}, nil
}

// Close closes the X11 connection.
func (p *X11Provider) Close() error {
	p.conn.Close()
	return nil
}

// ActiveApp reads _NET_ACTIVE_WINDOW and resolves its WM_CLASS and
// title. Every failure path degrades to the System sentinel.
func (p *X11Provider) ActiveApp() AppInfo {
	win, err := p.activeWindow()
	if err != nil || win == 0 {
		logger.WithComponent("activeapp").Debug().
			Err(err).
			Msg("No active window, falling back to System")
		return System
	}

	info := System
	if class := p.windowClass(win); class != "" {
		info.Name = class
	}
	info.WindowTitle = p.windowTitle(win)
	return info
}

func (p *X11Provider) activeWindow() (xproto.Window, error) {
	atom, err := p.atom("_NET_ACTIVE_WINDOW")
	if err != nil {
		return 0, err
	}

	reply, err := xproto.GetProperty(
		p.conn, false, p.root, atom, xproto.AtomWindow, 0, 1,
	).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to get _NET_ACTIVE_WINDOW: %w", err)
	}
	if len(reply.Value) < 4 {
		return 0, nil
	}
	v := reply.Value
	return xproto.Window(uint32(v[0]) | uint32(v[1])<<8 | uint32(v[2])<<16 | uint32(v[3])<<24), nil
}

// windowClass returns the class half of WM_CLASS (instance\0class\0).
func (p *X11Provider) windowClass(win xproto.Window) string {
	reply, err := xproto.GetProperty(
		p.conn, false, win, xproto.AtomWmClass, xproto.AtomString, 0, 256,
	).Reply()
	if err != nil || len(reply.Value) == 0 {
		return ""
	}
	parts := strings.Split(string(reply.Value), "\x00")
	if len(parts) >= 2 && parts[1] != "" {
		return parts[1]
	}
	return parts[0]
}

// windowTitle prefers _NET_WM_NAME (UTF-8) over the legacy WM_NAME.
func (p *X11Provider) windowTitle(win xproto.Window) string {
	if atom, err := p.atom("_NET_WM_NAME"); err == nil {
		if utf8Atom, err := p.atom("UTF8_STRING"); err == nil {
			reply, err := xproto.GetProperty(
				p.conn, false, win, atom, utf8Atom, 0, 1024,
			).Reply()
			if err == nil && len(reply.Value) > 0 {
				return string(reply.Value)
			}
		}
	}

	reply, err := xproto.GetProperty(
		p.conn, false, win, xproto.AtomWmName, xproto.AtomString, 0, 1024,
	).Reply()
	if err != nil || len(reply.Value) == 0 {
		return ""
	}
	return string(reply.Value)
}

func (p *X11Provider) atom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(p.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}
