package testutil

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"matchup-go/internal/matchup"
)

// Tints distinguish the two sides of a composite in the blue channel.
const (
	PitchTint uint8 = 0x40
	SwingTint uint8 = 0xC0
)

// FakeFrameColor is the uniform color of frame idx in a FakeSource. The
// frame index is recoverable from the red and green channels.
func FakeFrameColor(idx int, tint uint8) color.RGBA {
	return color.RGBA{R: uint8(idx % 256), G: uint8(idx / 256), B: tint, A: 255}
}

// FakeFrameIndex recovers the frame index and tint from a FakeSource pixel.
func FakeFrameIndex(c color.Color) (idx int, tint uint8) {
	r, g, b, _ := c.RGBA()
	return int(r>>8) + 256*int(g>>8), uint8(b >> 8)
}

// FakeSource is an in-memory VideoSource whose frames are uniform fills
// encoding their index. Decode latency and stalls are configurable.
type FakeSource struct {
	mu sync.Mutex

	Width, Height int
	FPS           float64
	Colors        []color.RGBA

	// DecodeLatency delays Decoded() after each seek.
	DecodeLatency time.Duration
	// StallAt never finishes decoding this frame. -1 disables.
	StallAt int
	// MetadataErr fails LoadMetadata.
	MetadataErr error
	// ReportedFrames overrides the frame count LoadMetadata reports (0 = actual).
	ReportedFrames int
	// ReportedFPS overrides the fps LoadMetadata reports (0 = FPS).
	ReportedFPS float64
	// PlayInterval paces playback per frame; 0 sends as fast as it is read.
	PlayInterval time.Duration
	// PlayRepeat sends every frame this many times during playback.
	PlayRepeat int
	// PlayDrop skips these frame indices during playback.
	PlayDrop map[int]bool

	target  int
	readyAt time.Time
	closed  bool
	seeks   []int
	plays   int
}

// NewFakeSource creates a source with frames frames of the given size and tint.
func NewFakeSource(frames, width, height int, fps float64, tint uint8) *FakeSource {
	colors := make([]color.RGBA, frames)
	for i := range colors {
		colors[i] = FakeFrameColor(i, tint)
	}
	return &FakeSource{Width: width, Height: height, FPS: fps, Colors: colors, StallAt: -1, target: -1}
}

func (s *FakeSource) frameCount() int {
	if s.ReportedFrames > 0 {
		return s.ReportedFrames
	}
	return len(s.Colors)
}

func (s *FakeSource) LoadMetadata(ctx context.Context) (matchup.SourceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MetadataErr != nil {
		return matchup.SourceInfo{}, s.MetadataErr
	}
	fps := s.FPS
	if s.ReportedFPS != 0 {
		fps = s.ReportedFPS
	}
	n := s.frameCount()
	return matchup.SourceInfo{
		Width:           s.Width,
		Height:          s.Height,
		DurationSeconds: float64(n) / s.FPS,
		FPS:             fps,
		FrameCount:      n,
	}, nil
}

func (s *FakeSource) Seek(ctx context.Context, seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("seek on closed source")
	}
	f, err := matchup.TimeToFrame(seconds, s.FPS)
	if err != nil {
		return err
	}
	if f >= len(s.Colors) {
		f = len(s.Colors) - 1
	}
	s.target = f
	s.readyAt = time.Now().Add(s.DecodeLatency)
	s.seeks = append(s.seeks, f)
	return nil
}

func (s *FakeSource) Decoded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target < 0 || s.target == s.StallAt {
		return false
	}
	return !time.Now().Before(s.readyAt)
}

func (s *FakeSource) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target < 0 {
		return nil, fmt.Errorf("no frame presented")
	}
	return s.image(s.target), nil
}

func (s *FakeSource) image(idx int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
	c := s.Colors[idx]
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func (s *FakeSource) Play(ctx context.Context, rate float64) (<-chan matchup.PresentedFrame, func() error, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, fmt.Errorf("play on closed source")
	}
	s.plays++
	n := len(s.Colors)
	repeat := max(s.PlayRepeat, 1)
	interval := s.PlayInterval
	if rate > 0 {
		interval = time.Duration(float64(interval) / rate)
	}
	drop := s.PlayDrop
	s.mu.Unlock()

	ch := make(chan matchup.PresentedFrame)
	done := make(chan struct{})
	var playErr error
	go func() {
		defer close(done)
		defer close(ch)
		for i := 0; i < n; i++ {
			if drop[i] {
				continue
			}
			if interval > 0 {
				select {
				case <-ctx.Done():
					playErr = ctx.Err()
					return
				case <-time.After(interval):
				}
			}
			s.mu.Lock()
			img := s.image(i)
			s.mu.Unlock()
			for r := 0; r < repeat; r++ {
				f := matchup.PresentedFrame{Index: matchup.ClipFrame(i), Time: float64(i) / s.FPS, Image: img}
				select {
				case <-ctx.Done():
					playErr = ctx.Err()
					return
				case ch <- f:
				}
			}
		}
	}()
	wait := func() error {
		<-done
		return playErr
	}
	return ch, wait, nil
}

func (s *FakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *FakeSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Seeks returns the frame index of every seek, in order.
func (s *FakeSource) Seeks() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.seeks...)
}

// Plays returns the number of Play calls.
func (s *FakeSource) Plays() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays
}

var _ matchup.VideoSource = (*FakeSource)(nil)

// FakeOpener serves registered FakeSources for paths and decodes clips
// produced by RecordingEncoder.
type FakeOpener struct {
	mu      sync.Mutex
	files   map[string]func() *FakeSource
	opened  []*FakeSource
	OpenErr error
}

func NewFakeOpener() *FakeOpener {
	return &FakeOpener{files: make(map[string]func() *FakeSource)}
}

// AddFile registers a factory for path; each open gets a fresh source.
func (o *FakeOpener) AddFile(path string, fn func() *FakeSource) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.files[path] = fn
}

func (o *FakeOpener) OpenFile(ctx context.Context, path string, fps float64) (matchup.VideoSource, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.OpenErr != nil {
		return nil, o.OpenErr
	}
	fn, ok := o.files[path]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	src := fn()
	o.opened = append(o.opened, src)
	return src, nil
}

func (o *FakeOpener) OpenClip(ctx context.Context, clip *matchup.StoredClip, fps float64) (matchup.VideoSource, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.OpenErr != nil {
		return nil, o.OpenErr
	}
	src, err := DecodeRecording(clip.Data, fps)
	if err != nil {
		return nil, err
	}
	o.opened = append(o.opened, src)
	return src, nil
}

// Opened returns every source handed out so far.
func (o *FakeOpener) Opened() []*FakeSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*FakeSource(nil), o.opened...)
}

// AllClosed reports whether every opened source was closed.
func (o *FakeOpener) AllClosed() bool {
	for _, s := range o.Opened() {
		if !s.Closed() {
			return false
		}
	}
	return true
}

var _ matchup.SourceOpener = (*FakeOpener)(nil)
