package matchup

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// PlateStyle controls how label plates are drawn.
type PlateStyle struct {
	Background color.NRGBA
	Foreground color.NRGBA
	Padding    int
	LineGap    int
	Radius     int
}

// DefaultPlateStyle is a dark rounded plate with white text.
var DefaultPlateStyle = PlateStyle{
	Background: color.NRGBA{R: 0, G: 0, B: 0, A: 170},
	Foreground: color.NRGBA{R: 255, G: 255, B: 255, A: 255},
	Padding:    6,
	LineGap:    3,
	Radius:     6,
}

// DefaultFlashColor is the translucent flash fill.
var DefaultFlashColor = color.NRGBA{R: 255, G: 255, B: 255, A: 110}

// OverlayRenderer draws labels, banners, highlight rectangles and flashes.
// It does no I/O; output depends only on the target size and inputs.
type OverlayRenderer struct {
	face  font.Face
	style PlateStyle
}

// NewOverlayRenderer creates a renderer using the built-in 7x13 bitmap face.
func NewOverlayRenderer(style PlateStyle) *OverlayRenderer {
	return &OverlayRenderer{face: basicfont.Face7x13, style: style}
}

// TextScale picks an integer upscale for bitmap text on a panel of height h.
func TextScale(h int) int {
	if s := h / 240; s > 1 {
		return s
	}
	return 1
}

// Measure returns the unscaled pixel size of a block of lines.
func (o *OverlayRenderer) Measure(lines []string) (w, h int) {
	lineH := o.face.Metrics().Height.Ceil()
	for i, line := range lines {
		if lw := font.MeasureString(o.face, line).Ceil(); lw > w {
			w = lw
		}
		h += lineH
		if i > 0 {
			h += o.style.LineGap
		}
	}
	return w, h
}

// PlateSize returns the size of the plate DrawPlate would draw.
func (o *OverlayRenderer) PlateSize(lines []string, scale int) image.Point {
	if scale < 1 {
		scale = 1
	}
	w, h := o.Measure(lines)
	pad := 2 * o.style.Padding
	return image.Pt((w+pad)*scale, (h+pad)*scale)
}

// DrawPlate draws lines left-aligned on a rounded, semi-opaque plate whose
// top-left corner is at. The plate is sized to the widest line and clipped to
// dst. It returns the plate rectangle.
func (o *OverlayRenderer) DrawPlate(dst draw.Image, at image.Point, lines []string, scale int) image.Rectangle {
	if len(lines) == 0 {
		return image.Rectangle{}
	}
	if scale < 1 {
		scale = 1
	}
	size := o.PlateSize(lines, scale)
	plate := image.Rectangle{Min: at, Max: at.Add(size)}.Intersect(dst.Bounds())
	if plate.Empty() {
		return plate
	}

	mask := &roundedRect{r: image.Rectangle{Min: at, Max: at.Add(size)}, radius: o.style.Radius * scale}
	draw.DrawMask(dst, plate, image.NewUniform(o.style.Background), image.Point{}, mask, plate.Min, draw.Over)

	// Text is rasterised at 1x and scaled with nearest neighbour so bitmap
	// glyphs stay crisp.
	text := image.NewNRGBA(image.Rect(0, 0, size.X/scale, size.Y/scale))
	o.drawLines(text, image.Pt(o.style.Padding, o.style.Padding), lines)
	draw.NearestNeighbor.Scale(dst, image.Rectangle{Min: at, Max: at.Add(size)}, text, text.Bounds(), draw.Over, nil)
	return plate
}

func (o *OverlayRenderer) drawLines(dst draw.Image, origin image.Point, lines []string) {
	m := o.face.Metrics()
	lineH := m.Height.Ceil()
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(o.style.Foreground), Face: o.face}
	y := origin.Y + m.Ascent.Ceil()
	for _, line := range lines {
		d.Dot = fixed.P(origin.X, y)
		d.DrawString(line)
		y += lineH + o.style.LineGap
	}
}

// Banner draws a single centered line on a plate along the top edge of r.
func (o *OverlayRenderer) Banner(dst draw.Image, r image.Rectangle, text string, scale int) image.Rectangle {
	size := o.PlateSize([]string{text}, scale)
	x := r.Min.X + (r.Dx()-size.X)/2
	if x < r.Min.X {
		x = r.Min.X
	}
	y := r.Min.Y + o.style.Padding*scale
	return o.DrawPlate(dst, image.Pt(x, y), []string{text}, scale)
}

// Flash fills r with a translucent color.
func (o *OverlayRenderer) Flash(dst draw.Image, r image.Rectangle, c color.NRGBA) {
	draw.Draw(dst, r.Intersect(dst.Bounds()), image.NewUniform(c), image.Point{}, draw.Over)
}

// Highlight outlines r with a border of the given thickness.
func (o *OverlayRenderer) Highlight(dst draw.Image, r image.Rectangle, c color.NRGBA, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y+thickness, r.Min.X+thickness, r.Max.Y-thickness),
		image.Rect(r.Max.X-thickness, r.Min.Y+thickness, r.Max.X, r.Max.Y-thickness),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Over)
	}
}

// roundedRect is an alpha mask that is opaque inside r with corners of the
// given radius cut away.
type roundedRect struct {
	r      image.Rectangle
	radius int
}

func (m *roundedRect) ColorModel() color.Model { return color.AlphaModel }
func (m *roundedRect) Bounds() image.Rectangle { return m.r }

func (m *roundedRect) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(m.r) {
		return color.Transparent
	}
	rad := m.radius
	if half := min(m.r.Dx(), m.r.Dy()) / 2; rad > half {
		rad = half
	}
	if rad <= 0 {
		return color.Opaque
	}
	// Distance from the nearest corner circle center, on pixel centers.
	cx, cy := x, y
	switch {
	case x < m.r.Min.X+rad:
		cx = m.r.Min.X + rad
	case x >= m.r.Max.X-rad:
		cx = m.r.Max.X - rad - 1
	}
	switch {
	case y < m.r.Min.Y+rad:
		cy = m.r.Min.Y + rad
	case y >= m.r.Max.Y-rad:
		cy = m.r.Max.Y - rad - 1
	}
	dx, dy := x-cx, y-cy
	if dx*dx+dy*dy > rad*rad {
		return color.Transparent
	}
	return color.Opaque
}
