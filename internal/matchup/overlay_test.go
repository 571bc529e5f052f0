package matchup_test

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"matchup-go/internal/matchup"
)

func filled(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestTextScale(t *testing.T) {
	tests := map[int]int{120: 1, 240: 1, 479: 1, 480: 2, 720: 3, 1080: 4}
	for h, want := range tests {
		if got := matchup.TextScale(h); got != want {
			t.Errorf("TextScale(%d) = %d, want %d", h, got, want)
		}
	}
}

func TestOverlay_DrawPlate(t *testing.T) {
	ov := matchup.NewOverlayRenderer(matchup.DefaultPlateStyle)
	bg := color.RGBA{R: 10, G: 200, B: 30, A: 255}
	dst := filled(200, 100, bg)

	lines := []string{"Cole", "slider 87mph"}
	r := ov.DrawPlate(dst, image.Pt(10, 10), lines, 1)
	if want := ov.PlateSize(lines, 1); r.Size() != want {
		t.Errorf("plate size %v, want %v", r.Size(), want)
	}
	if dst.RGBAAt(r.Min.X+r.Dx()/2, r.Max.Y-2) == bg {
		t.Error("plate background not drawn")
	}
	if dst.RGBAAt(r.Max.X+5, r.Max.Y+5) != bg {
		t.Error("plate drew outside its rectangle")
	}

	if r := ov.DrawPlate(dst, image.Pt(0, 0), nil, 1); !r.Empty() {
		t.Errorf("plate for no lines = %v, want empty", r)
	}
}

func TestOverlay_DrawPlateClipped(t *testing.T) {
	ov := matchup.NewOverlayRenderer(matchup.DefaultPlateStyle)
	dst := filled(40, 20, color.RGBA{A: 255})
	r := ov.DrawPlate(dst, image.Pt(30, 10), []string{"a long label"}, 2)
	if !r.In(dst.Bounds()) {
		t.Errorf("plate %v not clipped to %v", r, dst.Bounds())
	}
}

func TestOverlay_PlateScales(t *testing.T) {
	ov := matchup.NewOverlayRenderer(matchup.DefaultPlateStyle)
	lines := []string{"swing 0.40s"}
	one, two := ov.PlateSize(lines, 1), ov.PlateSize(lines, 2)
	if two.X != 2*one.X || two.Y != 2*one.Y {
		t.Errorf("scale 2 plate %v, want twice %v", two, one)
	}
}

func TestOverlay_FlashAndHighlight(t *testing.T) {
	ov := matchup.NewOverlayRenderer(matchup.DefaultPlateStyle)
	bg := color.RGBA{R: 20, G: 20, B: 20, A: 255}
	dst := filled(60, 40, bg)

	ov.Flash(dst, image.Rect(0, 0, 30, 40), matchup.DefaultFlashColor)
	if got := dst.RGBAAt(10, 10); got.R <= bg.R {
		t.Errorf("flashed pixel %v not brightened", got)
	}
	if dst.RGBAAt(45, 10) != bg {
		t.Error("flash leaked outside its rectangle")
	}

	ov.Highlight(dst, image.Rect(30, 0, 60, 40), color.NRGBA{R: 255, A: 255}, 2)
	if got := dst.RGBAAt(59, 20); got.R != 255 {
		t.Errorf("border pixel %v, want red", got)
	}
	if dst.RGBAAt(45, 20) != bg {
		t.Error("highlight filled the interior")
	}
}

func TestOverlay_Deterministic(t *testing.T) {
	ov := matchup.NewOverlayRenderer(matchup.DefaultPlateStyle)
	draw := func() []byte {
		dst := filled(328, 120, color.RGBA{B: 64, A: 255})
		ov.DrawPlate(dst, image.Pt(6, 6), []string{"Judge", "swing 0.40s"}, 1)
		ov.Banner(dst, dst.Bounds(), "REPLAY", 1)
		return dst.Pix
	}
	if !bytes.Equal(draw(), draw()) {
		t.Error("overlay output is not deterministic")
	}
}
