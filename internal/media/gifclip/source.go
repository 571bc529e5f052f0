// Package gifclip is a pure-Go media backend over animated GIF. Sources are
// decoded eagerly into memory, so seeks are instant and deterministic.
package gifclip

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"matchup-go/internal/matchup"
)

// MimeType is the mime type of clips this backend encodes.
const MimeType = "image/gif"

// Source is a VideoSource over decoded GIF frames. Frame indices are
// authoritative; timestamps are index/fps. GIF delays are centiseconds, so
// the container rate is not reported.
type Source struct {
	mu     sync.Mutex
	frames []*image.RGBA
	width  int
	height int
	fps    float64
	paced  bool
	target int
	closed bool
}

// Decode reads an animated GIF from r.
func Decode(r io.Reader, fps float64, paced bool) (*Source, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("fps must be positive, got %v", fps)
	}
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, fmt.Errorf("decoding gif: %w", err)
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("gif has no frames")
	}

	w, h := g.Config.Width, g.Config.Height
	if w == 0 || h == 0 {
		b := g.Image[0].Bounds()
		w, h = b.Max.X, b.Max.Y
	}
	return &Source{
		frames: composite(g, w, h),
		width:  w,
		height: h,
		fps:    fps,
		paced:  paced,
		target: -1,
	}, nil
}

// composite flattens GIF frames, which may be partial and carry disposal
// methods, into full canvases.
func composite(g *gif.GIF, w, h int) []*image.RGBA {
	bounds := image.Rect(0, 0, w, h)
	canvas := image.NewRGBA(bounds)
	out := make([]*image.RGBA, 0, len(g.Image))

	for i, frame := range g.Image {
		var saved *image.RGBA
		disposal := byte(0)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		if disposal == gif.DisposalPrevious {
			saved = cloneRGBA(canvas)
		}

		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		out = append(out, cloneRGBA(canvas))

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = saved
		}
	}
	return out
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}

func (s *Source) LoadMetadata(ctx context.Context) (matchup.SourceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return matchup.SourceInfo{}, fmt.Errorf("source is closed")
	}
	n := len(s.frames)
	return matchup.SourceInfo{
		Width:           s.width,
		Height:          s.height,
		DurationSeconds: matchup.FramesToSeconds(n, s.fps),
		FrameCount:      n,
	}, nil
}

func (s *Source) Seek(ctx context.Context, seconds float64) error {
	f, err := matchup.TimeToFrame(seconds, s.fps)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("seek on closed source")
	}
	// Past the end a player shows the last frame.
	s.target = min(f, len(s.frames)-1)
	return nil
}

func (s *Source) Decoded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.target >= 0
}

func (s *Source) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("source is closed")
	}
	if s.target < 0 {
		return nil, fmt.Errorf("no frame presented")
	}
	return cloneRGBA(s.frames[s.target]), nil
}

// Play streams every frame in order. Paced sources hold each frame for
// 1/(fps*rate); unpaced ones deliver as fast as the reader accepts.
func (s *Source) Play(ctx context.Context, rate float64) (<-chan matchup.PresentedFrame, func() error, error) {
	if rate <= 0 {
		rate = 1
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, fmt.Errorf("play on closed source")
	}
	frames := s.frames
	paced := s.paced
	s.mu.Unlock()

	ch := make(chan matchup.PresentedFrame)
	done := make(chan struct{})
	var playErr error

	go func() {
		defer close(done)
		defer close(ch)

		var tick <-chan time.Time
		if paced {
			t := time.NewTicker(time.Duration(float64(time.Second) / (s.fps * rate)))
			defer t.Stop()
			tick = t.C
		}
		for i, img := range frames {
			if err := ctx.Err(); err != nil {
				playErr = err
				return
			}
			if tick != nil && i > 0 {
				select {
				case <-ctx.Done():
					playErr = ctx.Err()
					return
				case <-tick:
				}
			}
			f := matchup.PresentedFrame{
				Index: matchup.ClipFrame(i),
				Time:  matchup.FramesToSeconds(i, s.fps),
				Image: cloneRGBA(img),
			}
			select {
			case <-ctx.Done():
				playErr = ctx.Err()
				return
			case ch <- f:
			}
		}
	}()

	wait := func() error {
		<-done
		return playErr
	}
	return ch, wait, nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.frames = nil
	return nil
}

var _ matchup.VideoSource = (*Source)(nil)

// Opener opens GIF files and stored GIF clips.
type Opener struct {
	Paced bool
}

// NewOpener creates an Opener.
func NewOpener(paced bool) *Opener {
	return &Opener{Paced: paced}
}

func (o *Opener) OpenFile(ctx context.Context, path string, fps float64) (matchup.VideoSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	src, err := Decode(f, fps, o.Paced)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return src, nil
}

func (o *Opener) OpenClip(ctx context.Context, clip *matchup.StoredClip, fps float64) (matchup.VideoSource, error) {
	if clip.MimeType != MimeType {
		return nil, fmt.Errorf("gif backend cannot open %s clips", clip.MimeType)
	}
	src, err := Decode(bytes.NewReader(clip.Data), fps, o.Paced)
	if err != nil {
		return nil, err
	}
	return src, nil
}

var _ matchup.SourceOpener = (*Opener)(nil)
