package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	// labelMargin pads dirty regions so the dimension label never leaves
	// trails when the band moves.
	labelMargin = 80
	labelHeight = 20
)

var (
	bandColor  = color.RGBA{R: 0x3d, G: 0x9b, B: 0xff, A: 0xff}
	labelColor = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	labelBack  = color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}
)

// frameImage holds the frozen, dimmed display frame and the composite
// the rubber band is painted onto.
type frameImage struct {
	background *image.RGBA
	composite  *image.RGBA
}

// newFrameImage dims a captured frame for use as the overlay backdrop.
// Dimming makes the live rubber band read as "the area that will be
// captured at full brightness".
func newFrameImage(captured *image.RGBA) *frameImage {
	b := captured.Bounds()
	bg := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(bg, bg.Bounds(), captured, b.Min, draw.Src)
	for i := 0; i+3 < len(bg.Pix); i += 4 {
		bg.Pix[i] = dim(bg.Pix[i])
		bg.Pix[i+1] = dim(bg.Pix[i+1])
		bg.Pix[i+2] = dim(bg.Pix[i+2])
	}

	comp := image.NewRGBA(bg.Bounds())
	copy(comp.Pix, bg.Pix)

	return &frameImage{background: bg, composite: comp}
}

// clip narrows the frame to the given region (the window's work area
// within the display bounds).
func (f *frameImage) clip(region image.Rectangle) {
	region = region.Intersect(f.background.Bounds())
	bg := image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	draw.Draw(bg, bg.Bounds(), f.background, region.Min, draw.Src)
	comp := image.NewRGBA(bg.Bounds())
	copy(comp.Pix, bg.Pix)
	f.background = bg
	f.composite = comp
}

// reset restores the whole composite to the dimmed background.
func (f *frameImage) reset() {
	copy(f.composite.Pix, f.background.Pix)
}

// restore copies the dimmed background back over one region of the
// composite, erasing any previously painted band.
func (f *frameImage) restore(region image.Rectangle) {
	region = region.Intersect(f.background.Bounds())
	draw.Draw(f.composite, region, f.background, region.Min, draw.Src)
}

// renderBand paints the selection: the selected area at full brightness,
// a border, and a dimension label.
func (f *frameImage) renderBand(band image.Rectangle) {
	band = band.Canon()
	inner := band.Intersect(f.composite.Bounds())
	if inner.Empty() {
		return
	}

	// Undimmed content inside the selection.
	srcBright := image.NewRGBA(inner)
	draw.Draw(srcBright, inner, f.background, inner.Min, draw.Src)
	for i := 0; i+3 < len(srcBright.Pix); i += 4 {
		srcBright.Pix[i] = brighten(srcBright.Pix[i])
		srcBright.Pix[i+1] = brighten(srcBright.Pix[i+1])
		srcBright.Pix[i+2] = brighten(srcBright.Pix[i+2])
	}
	draw.Draw(f.composite, inner, srcBright, inner.Min, draw.Src)

	// Border.
	drawBorder(f.composite, inner, bandColor)

	// Dimension label below the band (above when there is no room).
	label := fmt.Sprintf("%d x %d", band.Dx(), band.Dy())
	lx := inner.Min.X
	ly := inner.Max.Y + 4
	if ly+labelHeight > f.composite.Bounds().Max.Y {
		ly = inner.Min.Y - labelHeight - 4
	}
	drawLabel(f.composite, lx, ly, label)
}

// dim darkens one channel to 3/5. The multiply must happen in int;
// uint8 arithmetic wraps for any value past 85.
func dim(v uint8) uint8 {
	return uint8(int(v) * 3 / 5)
}

// brighten reverses the 3/5 dimming applied by newFrameImage.
func brighten(v uint8) uint8 {
	n := int(v) * 5 / 3
	if n > 255 {
		n = 255
	}
	return uint8(n)
}

func drawBorder(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetRGBA(x, r.Min.Y, c)
		img.SetRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, c)
		img.SetRGBA(r.Max.X-1, y, c)
	}
}

func drawLabel(img *image.RGBA, x, y int, text string) {
	if y < 0 {
		y = 0
	}
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil() + 8

	back := image.Rect(x, y, x+w, y+labelHeight).Intersect(img.Bounds())
	if back.Empty() {
		return
	}
	draw.Draw(img, back, &image.Uniform{labelBack}, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelColor),
		Face: face,
		Dot:  fixed.P(x+4, y+14),
	}
	d.DrawString(text)
}
