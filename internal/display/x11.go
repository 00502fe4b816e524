package display

import (
	"fmt"
	"math"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xinerama"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/screenshotos/screenshotos/internal/logger"
)

// X11Backend enumerates displays via the Xinerama extension and reads the
// desktop work area from EWMH properties on the root window.
type X11Backend struct {
	conn            *xgb.Conn
	root            xproto.Window
	screen          *xproto.ScreenInfo
	xineramaActive  bool
	workAreaAtom    xproto.Atom
	currentDesktopA xproto.Atom
}

// NewX11Backend connects to the X server and initializes Xinerama.
func NewX11Backend() (*X11Backend, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	b := &X11Backend{
		conn:   conn,
		root:   screen.Root,
		screen: screen,
	}

	if err := xinerama.Init(conn); err != nil {
		logger.WithComponent("display").Warn().
			Err(err).
			Msg("Xinerama extension not available - treating X screen as a single display")
	} else if active, err := xinerama.IsActive(conn).Reply(); err == nil && active.State != 0 {
		b.xineramaActive = true
	}

	b.workAreaAtom, _ = b.atom("_NET_WORKAREA")
	b.currentDesktopA, _ = b.atom("_NET_CURRENT_DESKTOP")

	return b, nil
}

// Name returns the backend name.
func (b *X11Backend) Name() string {
	return "x11"
}

// Close closes the X11 connection.
func (b *X11Backend) Close() error {
	b.conn.Close()
	return nil
}

// Displays returns a snapshot of all connected displays. Monitor order
// follows the Xinerama screen enumeration, which matches the capture
// backend's display index order.
func (b *X11Backend) Displays() ([]Display, error) {
	scale := b.scaleFactor()
	workArea, haveWorkArea := b.desktopWorkArea()

	bounds := b.monitorBounds()
	displays := make([]Display, 0, len(bounds))
	for i, r := range bounds {
		d := Display{
			ID:          i,
			Bounds:      r,
			WorkArea:    r,
			ScaleFactor: scale,
			Primary:     i == 0,
		}
		// The EWMH work area is a single desktop-wide rectangle;
		// clip it to each monitor to get the per-display inset.
		if haveWorkArea {
			clipped := r.Intersect(workArea)
			if clipped.Width > 0 && clipped.Height > 0 {
				d.WorkArea = clipped
			}
		}
		// X11 reports device pixels; the display model carries logical
		// pixels, so divide the scale back out.
		d.Bounds = scaleRect(d.Bounds, 1/scale)
		d.WorkArea = scaleRect(d.WorkArea, 1/scale)
		displays = append(displays, d)
	}

	logger.WithComponent("display").Debug().
		Int("count", len(displays)).
		Float64("scale", scale).
		Bool("xinerama", b.xineramaActive).
		Msg("Enumerated displays")

	return displays, nil
}

// monitorBounds lists per-monitor bounds, falling back to the whole X
// screen when Xinerama is unavailable.
func (b *X11Backend) monitorBounds() []Rect {
	if b.xineramaActive {
		reply, err := xinerama.QueryScreens(b.conn).Reply()
		if err == nil && len(reply.ScreenInfo) > 0 {
			rects := make([]Rect, 0, len(reply.ScreenInfo))
			for _, si := range reply.ScreenInfo {
				rects = append(rects, Rect{
					X:      int(si.XOrg),
					Y:      int(si.YOrg),
					Width:  int(si.Width),
					Height: int(si.Height),
				})
			}
			return rects
		}
		if err != nil {
			logger.WithComponent("display").Warn().
				Err(err).
				Msg("Xinerama QueryScreens failed, falling back to root screen")
		}
	}

	return []Rect{{
		X:      0,
		Y:      0,
		Width:  int(b.screen.WidthInPixels),
		Height: int(b.screen.HeightInPixels),
	}}
}

// desktopWorkArea reads _NET_WORKAREA for the current desktop.
func (b *X11Backend) desktopWorkArea() (Rect, bool) {
	if b.workAreaAtom == 0 {
		return Rect{}, false
	}

	reply, err := xproto.GetProperty(
		b.conn,
		false,
		b.root,
		b.workAreaAtom,
		xproto.AtomCardinal,
		0,
		(1<<32)-1,
	).Reply()
	if err != nil || reply.ValueLen < 4 {
		return Rect{}, false
	}

	// _NET_WORKAREA is an array of x,y,w,h CARD32 quadruples, one per
	// virtual desktop.
	desktop := b.currentDesktop()
	offset := desktop * 16
	if offset+16 > len(reply.Value) {
		offset = 0
	}

	card := func(i int) int {
		v := reply.Value[offset+i*4:]
		return int(uint32(v[0]) | uint32(v[1])<<8 | uint32(v[2])<<16 | uint32(v[3])<<24)
	}

	return Rect{X: card(0), Y: card(1), Width: card(2), Height: card(3)}, true
}

// currentDesktop reads _NET_CURRENT_DESKTOP, defaulting to 0.
func (b *X11Backend) currentDesktop() int {
	if b.currentDesktopA == 0 {
		return 0
	}
	reply, err := xproto.GetProperty(
		b.conn, false, b.root, b.currentDesktopA, xproto.AtomCardinal, 0, 1,
	).Reply()
	if err != nil || len(reply.Value) < 4 {
		return 0
	}
	v := reply.Value
	return int(uint32(v[0]) | uint32(v[1])<<8 | uint32(v[2])<<16 | uint32(v[3])<<24)
}

// scaleFactor derives the HiDPI scale from the X screen's physical size.
// X11 has no first-class per-monitor scale; 96 DPI is the 1.0 baseline
// and the result is snapped to quarter steps the way desktop
// environments expose it.
func (b *X11Backend) scaleFactor() float64 {
	mm := float64(b.screen.WidthInMillimeters)
	if mm <= 0 {
		return 1.0
	}
	dpi := float64(b.screen.WidthInPixels) / mm * 25.4
	scale := math.Round(dpi/96.0*4) / 4
	if scale < 1.0 {
		scale = 1.0
	}
	return scale
}

func scaleRect(r Rect, f float64) Rect {
	return Rect{
		X:      int(math.Round(float64(r.X) * f)),
		Y:      int(math.Round(float64(r.Y) * f)),
		Width:  int(math.Round(float64(r.Width) * f)),
		Height: int(math.Round(float64(r.Height) * f)),
	}
}

func (b *X11Backend) atom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(b.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}
