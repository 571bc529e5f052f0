package matchup

import (
	"fmt"
	"image"
)

// Layout places the scaled pitch and swing panels on the composite canvas.
type Layout struct {
	Width  int
	Height int
	Pitch  image.Rectangle
	Swing  image.Rectangle // empty for the pitcher-only variant
}

// ComputeLayout scales both panels to a common height (the smaller of the
// two) and places them side by side with gap pixels between. When the total
// exceeds maxWidth both panels shrink proportionally. Dimensions are kept even
// for 4:2:0 encoders.
func ComputeLayout(variant Variant, pitch, swing image.Point, maxWidth, gap int) (Layout, error) {
	if pitch.X <= 0 || pitch.Y <= 0 {
		return Layout{}, NewSourceLoad(fmt.Sprintf("pitch clip has invalid size %dx%d", pitch.X, pitch.Y), nil)
	}
	if gap < 0 {
		gap = 0
	}

	if variant == VariantPitcherOnly {
		w, h := pitch.X, pitch.Y
		if maxWidth > 0 && w > maxWidth {
			h = h * maxWidth / w
			w = maxWidth
		}
		w, h = evenDown(w), evenDown(h)
		return Layout{Width: w, Height: h, Pitch: image.Rect(0, 0, w, h)}, nil
	}

	if swing.X <= 0 || swing.Y <= 0 {
		return Layout{}, NewSourceLoad(fmt.Sprintf("swing clip has invalid size %dx%d", swing.X, swing.Y), nil)
	}

	h := min(pitch.Y, swing.Y)
	pw := scaleWidth(pitch, h)
	sw := scaleWidth(swing, h)
	if maxWidth > 0 && pw+gap+sw > maxWidth {
		avail := maxWidth - gap
		if avail < 2 {
			return Layout{}, NewInvalidRequest(fmt.Sprintf("max width %d leaves no room for panels with gap %d", maxWidth, gap))
		}
		h = h * avail / (pw + sw)
		pw = scaleWidth(pitch, h)
		sw = scaleWidth(swing, h)
		// Rounding can overshoot by a pixel per panel.
		for pw+gap+sw > maxWidth && sw > 2 {
			sw -= 2
		}
	}

	h = evenDown(h)
	pw, sw = evenDown(pw), evenDown(sw)
	if h < 2 || pw < 2 || sw < 2 {
		return Layout{}, NewInvalidRequest(fmt.Sprintf("composite too small: %dx%d + %dx%d", pw, h, sw, h))
	}
	width := evenUp(pw + gap + sw)
	// An odd gap makes the even-up add a column; take it from the swing panel.
	for maxWidth > 0 && width > maxWidth && sw > 2 {
		sw -= 2
		width = evenUp(pw + gap + sw)
	}
	return Layout{
		Width:  width,
		Height: h,
		Pitch:  image.Rect(0, 0, pw, h),
		Swing:  image.Rect(pw+gap, 0, pw+gap+sw, h),
	}, nil
}

func scaleWidth(size image.Point, h int) int {
	return (size.X*h + size.Y/2) / size.Y
}

func evenDown(n int) int { return n &^ 1 }

func evenUp(n int) int { return (n + 1) &^ 1 }
