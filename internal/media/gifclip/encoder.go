package gifclip

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color/palette"
	"image/gif"
	"math"
	"sync"

	"golang.org/x/image/draw"

	"matchup-go/internal/matchup"
)

// Encoder buffers paletted frames and writes an animated GIF on Close.
type Encoder struct {
	mu     sync.Mutex
	opts   matchup.EncoderOptions
	frames []*image.Paletted
	delays []int
	state  encoderState
}

type encoderState int

const (
	encoderNew encoderState = iota
	encoderOpen
	encoderDone
)

// NewEncoder creates an unopened Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Factory returns an EncoderFactory handing out GIF encoders.
func Factory() matchup.EncoderFactory {
	return matchup.EncoderFactoryFunc(func() matchup.Encoder { return NewEncoder() })
}

func (e *Encoder) Open(ctx context.Context, opts matchup.EncoderOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != encoderNew {
		return fmt.Errorf("encoder already opened")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return fmt.Errorf("invalid encoder size %dx%d", opts.Width, opts.Height)
	}
	if opts.FPS <= 0 {
		return fmt.Errorf("invalid encoder fps %v", opts.FPS)
	}
	e.opts = opts
	e.state = encoderOpen
	return nil
}

// WriteFrame quantizes img to the Plan 9 palette. Frames of another size are
// scaled to the encoder canvas.
func (e *Encoder) WriteFrame(img image.Image) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != encoderOpen {
		return fmt.Errorf("write on encoder that is not open")
	}

	rect := image.Rect(0, 0, e.opts.Width, e.opts.Height)
	src := img
	if img.Bounds().Size() != rect.Size() {
		scaled := image.NewRGBA(rect)
		draw.ApproxBiLinear.Scale(scaled, rect, img, img.Bounds(), draw.Src, nil)
		src = scaled
	}

	p := image.NewPaletted(rect, palette.Plan9)
	draw.FloydSteinberg.Draw(p, rect, src, src.Bounds().Min)

	n := len(e.frames)
	e.frames = append(e.frames, p)
	e.delays = append(e.delays, frameDelay(n, e.opts.FPS))
	return nil
}

// frameDelay is the centisecond delay of frame i. Rounding the cumulative
// timestamp keeps long clips from drifting off the source rate.
func frameDelay(i int, fps float64) int {
	at := func(n int) int { return int(math.Round(float64(n) * 100 / fps)) }
	return at(i+1) - at(i)
}

func (e *Encoder) Close(ctx context.Context) (*matchup.EncodedClip, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != encoderOpen {
		return nil, fmt.Errorf("close on encoder that is not open")
	}
	e.state = encoderDone
	frames, delays := e.frames, e.delays
	e.frames, e.delays = nil, nil

	if len(frames) == 0 {
		return &matchup.EncodedClip{MimeType: MimeType, Width: e.opts.Width, Height: e.opts.Height, FPS: e.opts.FPS}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err := gif.EncodeAll(&buf, &gif.GIF{
		Image: frames,
		Delay: delays,
		Config: image.Config{
			ColorModel: frames[0].Palette,
			Width:      e.opts.Width,
			Height:     e.opts.Height,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding gif: %w", err)
	}

	return &matchup.EncodedClip{
		Data:     buf.Bytes(),
		MimeType: MimeType,
		Width:    e.opts.Width,
		Height:   e.opts.Height,
		FPS:      e.opts.FPS,
		Frames:   len(frames),
	}, nil
}

func (e *Encoder) Abort() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = encoderDone
	e.frames, e.delays = nil, nil
	return nil
}

var _ matchup.Encoder = (*Encoder)(nil)
