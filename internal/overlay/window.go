package overlay

import (
	"fmt"
	"image"
	"math"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/screenshotos/screenshotos/internal/display"
	"github.com/screenshotos/screenshotos/internal/geometry"
)

// overlayWindow is one borderless, always-on-top selection window sized
// to a display's work area.
type overlayWindow struct {
	id       xproto.Window
	gc       xproto.Gcontext
	disp     display.Display
	scale    float64
	width    int // device px
	height   int // device px
	frame    *frameImage
	prevBand image.Rectangle
	hasBand  bool
}

// createOverlayWindow creates (but does not map) the overlay window for
// one display, positioned over its work area in device pixels.
func createOverlayWindow(conn *xgb.Conn, d display.Display, frame *frameImage) (*overlayWindow, error) {
	scale := d.ScaleFactor
	if scale <= 0 {
		scale = 1
	}

	devX := int(math.Round(float64(d.WorkArea.X) * scale))
	devY := int(math.Round(float64(d.WorkArea.Y) * scale))
	devW := int(math.Round(float64(d.WorkArea.Width) * scale))
	devH := int(math.Round(float64(d.WorkArea.Height) * scale))
	if devW < 1 || devH < 1 {
		return nil, fmt.Errorf("display %d has degenerate work area", d.ID)
	}

	windowID, err := xproto.NewWindowId(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create window ID: %w", err)
	}

	screen := xproto.Setup(conn).DefaultScreen(conn)

	// Override-redirect keeps the window manager away: no decorations,
	// no focus stealing animations, always on top.
	mask := uint32(xproto.CwBackPixel | xproto.CwOverrideRedirect | xproto.CwEventMask)
	values := []uint32{
		0x202020, // dark backdrop while the frozen frame uploads
		1,        // override-redirect
		xproto.EventMaskExposure |
			xproto.EventMaskButtonPress |
			xproto.EventMaskButtonRelease |
			xproto.EventMaskPointerMotion |
			xproto.EventMaskKeyPress |
			xproto.EventMaskStructureNotify,
	}

	err = xproto.CreateWindowChecked(
		conn,
		screen.RootDepth,
		windowID,
		screen.Root,
		int16(devX), int16(devY),
		uint16(devW), uint16(devH),
		0,
		xproto.WindowClassInputOutput,
		screen.RootVisual,
		mask,
		values,
	).Check()
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	gc, err := xproto.NewGcontextId(conn)
	if err != nil {
		xproto.DestroyWindow(conn, windowID)
		return nil, fmt.Errorf("failed to create graphics context: %w", err)
	}
	err = xproto.CreateGCChecked(
		conn,
		gc,
		xproto.Drawable(windowID),
		xproto.GcForeground|xproto.GcBackground,
		[]uint32{0xffffffff, 0x00000000},
	).Check()
	if err != nil {
		xproto.DestroyWindow(conn, windowID)
		return nil, fmt.Errorf("failed to create GC: %w", err)
	}

	w := &overlayWindow{
		id:     windowID,
		gc:     gc,
		disp:   d,
		scale:  scale,
		width:  devW,
		height: devH,
		frame:  frame,
	}

	if w.frame != nil {
		// The frozen frame covers the full display bounds; the window only
		// spans the work area, so crop the inset off.
		insetX := devX - int(math.Round(float64(d.Bounds.X)*scale))
		insetY := devY - int(math.Round(float64(d.Bounds.Y)*scale))
		w.frame.clip(image.Rect(insetX, insetY, insetX+devW, insetY+devH))
	}

	return w, nil
}

// toLogical converts window-local device pixels to overlay logical
// pixels.
func (w *overlayWindow) toLogical(x, y int) (float64, float64) {
	return float64(x) / w.scale, float64(y) / w.scale
}

// bandRect converts a logical selection into a window-local device rect.
func (w *overlayWindow) bandRect(sel geometry.SelectionRect) image.Rectangle {
	x0 := int(math.Round(sel.X * w.scale))
	y0 := int(math.Round(sel.Y * w.scale))
	x1 := int(math.Round((sel.X + sel.Width) * w.scale))
	y1 := int(math.Round((sel.Y + sel.Height) * w.scale))
	return image.Rect(x0, y0, x1, y1)
}

// redrawAll repaints the whole window. Used on Expose.
func (w *overlayWindow) redrawAll(conn *xgb.Conn) {
	if w.frame == nil {
		return
	}
	w.frame.reset()
	if w.hasBand {
		w.frame.renderBand(w.prevBand)
	}
	w.putRegion(conn, image.Rect(0, 0, w.width, w.height))
}

// drawBand paints the rubber band for the current selection, repainting
// only the union of the previous and new band regions.
func (w *overlayWindow) drawBand(conn *xgb.Conn, sel geometry.SelectionRect) {
	band := w.bandRect(sel)

	dirty := band
	if w.hasBand {
		dirty = dirty.Union(w.prevBand)
	}
	dirty = inflate(dirty, labelMargin).Intersect(image.Rect(0, 0, w.width, w.height))

	if w.frame != nil {
		w.frame.restore(dirty)
		w.frame.renderBand(band)
		w.putRegion(conn, dirty)
	} else {
		// No frozen frame: fall back to server-side rectangle drawing.
		xproto.ClearArea(conn, false, w.id,
			int16(dirty.Min.X), int16(dirty.Min.Y),
			uint16(dirty.Dx()), uint16(dirty.Dy()))
		xproto.PolyRectangle(conn, xproto.Drawable(w.id), w.gc, []xproto.Rectangle{{
			X:      int16(band.Min.X),
			Y:      int16(band.Min.Y),
			Width:  uint16(band.Dx()),
			Height: uint16(band.Dy()),
		}})
	}

	w.prevBand = band
	w.hasBand = true
}

// clearBand removes the rubber band after a sub-threshold click.
func (w *overlayWindow) clearBand(conn *xgb.Conn) {
	if !w.hasBand {
		return
	}
	dirty := inflate(w.prevBand, labelMargin).Intersect(image.Rect(0, 0, w.width, w.height))
	if w.frame != nil {
		w.frame.restore(dirty)
		w.putRegion(conn, dirty)
	} else {
		xproto.ClearArea(conn, false, w.id,
			int16(dirty.Min.X), int16(dirty.Min.Y),
			uint16(dirty.Dx()), uint16(dirty.Dy()))
	}
	w.hasBand = false
}

// putRegion uploads a region of the composited frame to the window,
// honoring the server's scanline padding.
func (w *overlayWindow) putRegion(conn *xgb.Conn, region image.Rectangle) {
	if w.frame == nil || region.Empty() {
		return
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)
	depth := screen.RootDepth

	var bitsPerPixel, scanlinePad uint8
	for _, format := range setup.PixmapFormats {
		if format.Depth == depth {
			bitsPerPixel = format.BitsPerPixel
			scanlinePad = format.ScanlinePad
			break
		}
	}
	if bitsPerPixel != 24 && bitsPerPixel != 32 {
		return
	}

	bytesPerPixel := int(bitsPerPixel) / 8
	padBytes := int(scanlinePad) / 8
	stride := ((region.Dx()*bytesPerPixel + padBytes - 1) / padBytes) * padBytes

	// Stay under the server's maximum request length by uploading in
	// row bands.
	const maxChunkBytes = 256 * 1024
	rowsPerChunk := maxChunkBytes / stride
	if rowsPerChunk < 1 {
		rowsPerChunk = 1
	}

	src := w.frame.composite
	for y0 := 0; y0 < region.Dy(); y0 += rowsPerChunk {
		rows := region.Dy() - y0
		if rows > rowsPerChunk {
			rows = rowsPerChunk
		}

		data := make([]byte, stride*rows)
		for y := 0; y < rows; y++ {
			rowStart := y * stride
			for x := 0; x < region.Dx(); x++ {
				srcIdx := src.PixOffset(region.Min.X+x, region.Min.Y+y0+y)
				dstIdx := rowStart + x*bytesPerPixel
				// RGBA to X11 BGRx
				data[dstIdx] = src.Pix[srcIdx+2]
				data[dstIdx+1] = src.Pix[srcIdx+1]
				data[dstIdx+2] = src.Pix[srcIdx]
				if bytesPerPixel == 4 {
					data[dstIdx+3] = 0
				}
			}
		}

		xproto.PutImage(
			conn,
			xproto.ImageFormatZPixmap,
			xproto.Drawable(w.id),
			w.gc,
			uint16(region.Dx()),
			uint16(rows),
			int16(region.Min.X), int16(region.Min.Y+y0),
			0,
			depth,
			data,
		)
	}
}

func (w *overlayWindow) destroy(conn *xgb.Conn) {
	if w.gc != 0 {
		xproto.FreeGC(conn, w.gc)
	}
	if w.id != 0 {
		xproto.DestroyWindow(conn, w.id)
	}
}

func inflate(r image.Rectangle, by int) image.Rectangle {
	return image.Rect(r.Min.X-by, r.Min.Y-by, r.Max.X+by, r.Max.Y+by+labelHeight)
}
