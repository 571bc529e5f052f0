package matchup

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

// CaptureOptions bounds the waits a capture performs.
type CaptureOptions struct {
	SeekTimeout  time.Duration // a seek that has not decoded by then is a stall
	PollInterval time.Duration // decode-readiness poll period
}

// DefaultCaptureOptions returns the standard capture timings.
func DefaultCaptureOptions() CaptureOptions {
	return CaptureOptions{
		SeekTimeout:  1500 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	}
}

func (o CaptureOptions) withDefaults() CaptureOptions {
	d := DefaultCaptureOptions()
	if o.SeekTimeout <= 0 {
		o.SeekTimeout = d.SeekTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	return o
}

// CapturePipeline drives video sources frame by frame, either by explicit
// per-frame seeks (stepped) or by sampling real-time playback.
type CapturePipeline struct {
	opts CaptureOptions
	log  Logger
}

// NewCapturePipeline creates a pipeline. Zero option fields take defaults.
func NewCapturePipeline(opts CaptureOptions, log Logger) *CapturePipeline {
	if log == nil {
		log = NewNopLogger()
	}
	return &CapturePipeline{opts: opts.withDefaults(), log: log}
}

// Options returns the effective timings.
func (p *CapturePipeline) Options() CaptureOptions { return p.opts }

// CaptureStepped seeks src to each frame in turn and calls fn once per frame,
// after the source confirms the frame is decoded. Frames are indices in src's
// own coordinates and must be non-negative and strictly increasing. fn is
// never called for a frame after an earlier call returned an error.
func CaptureStepped[F ~int](ctx context.Context, p *CapturePipeline, src VideoSource, fps float64, frames []F, fn func(F, image.Image) error) error {
	r := p.stepped(src, fps)
	for _, f := range frames {
		img, err := r.read(ctx, int(f))
		if err != nil {
			return err
		}
		if err := fn(f, img); err != nil {
			return err
		}
	}
	return nil
}

// Play streams src at rate and calls fn for every presented frame in strictly
// increasing index order, dropping repeats. It returns when the stream ends.
// A gap between frames longer than the seek timeout is a stall.
func (p *CapturePipeline) Play(ctx context.Context, src VideoSource, rate float64, fn func(PresentedFrame) error) error {
	pr, err := p.playback(ctx, src, rate)
	if err != nil {
		return err
	}
	defer pr.stop()
	for {
		f, ok, err := pr.next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(f); err != nil {
			return err
		}
	}
}

// steppedReader reads individual frames from a source by seeking.
type steppedReader struct {
	p    *CapturePipeline
	src  VideoSource
	fps  float64
	last int
}

func (p *CapturePipeline) stepped(src VideoSource, fps float64) *steppedReader {
	return &steppedReader{p: p, src: src, fps: fps, last: -1}
}

func (r *steppedReader) read(ctx context.Context, frame int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame <= r.last {
		return nil, NewInvalidFrame(fmt.Sprintf("capture frames must be strictly increasing: %d after %d", frame, r.last),
			map[string]any{"frame": frame, "previous": r.last})
	}
	t, err := SeekTime(frame, r.fps)
	if err != nil {
		return nil, err
	}

	seekCtx, cancel := context.WithTimeout(ctx, r.p.opts.SeekTimeout)
	defer cancel()

	if err := r.src.Seek(seekCtx, t); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewSourceLoad(fmt.Sprintf("seeking to frame %d", frame), err)
	}
	if err := r.p.awaitDecoded(ctx, seekCtx, r.src, frame); err != nil {
		return nil, err
	}

	img, err := r.src.Frame()
	if err != nil {
		return nil, NewSourceLoad(fmt.Sprintf("reading frame %d", frame), err)
	}
	r.last = frame
	return img, nil
}

// awaitDecoded polls src until it reports decoded pixels. A completed seek is
// not enough: the presented frame may still be the previous one.
func (p *CapturePipeline) awaitDecoded(ctx, seekCtx context.Context, src VideoSource, frame int) error {
	if src.Decoded() {
		return nil
	}
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-seekCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return NewSourceLoad(fmt.Sprintf("frame %d not decoded within %s", frame, p.opts.SeekTimeout),
				context.DeadlineExceeded)
		case <-ticker.C:
			if src.Decoded() {
				return nil
			}
		}
	}
}

// playbackReader samples a playing source. It keeps at most one frame read
// ahead so callers can take frames opportunistically without skipping.
type playbackReader struct {
	p       *CapturePipeline
	frames  <-chan PresentedFrame
	wait    func() error
	cancel  context.CancelFunc
	last    ClipFrame
	pending *PresentedFrame
	done    bool
}

func (p *CapturePipeline) playback(ctx context.Context, src VideoSource, rate float64) (*playbackReader, error) {
	if rate <= 0 {
		return nil, NewInvalidRequest(fmt.Sprintf("playback rate must be positive, got %v", rate))
	}
	playCtx, cancel := context.WithCancel(ctx)
	ch, wait, err := src.Play(playCtx, rate)
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewSourceLoad("starting playback", err)
	}
	return &playbackReader{p: p, frames: ch, wait: wait, cancel: cancel, last: -1}, nil
}

// accept filters repeats and reports whether f advances the stream.
func (r *playbackReader) accept(f PresentedFrame) bool {
	if f.Index <= r.last {
		return false
	}
	r.last = f.Index
	return true
}

// next blocks for the next new frame. ok is false at end of stream.
func (r *playbackReader) next(ctx context.Context) (PresentedFrame, bool, error) {
	if r.pending != nil {
		f := *r.pending
		r.pending = nil
		return f, true, nil
	}
	if r.done {
		return PresentedFrame{}, false, nil
	}
	timer := time.NewTimer(r.p.opts.SeekTimeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return PresentedFrame{}, false, ctx.Err()
		case <-timer.C:
			return PresentedFrame{}, false, NewSourceLoad(
				fmt.Sprintf("playback stalled after frame %d", r.last), context.DeadlineExceeded)
		case f, open := <-r.frames:
			if !open {
				return PresentedFrame{}, false, r.finish(ctx)
			}
			if r.accept(f) {
				return f, true, nil
			}
		}
	}
}

// upTo returns the newest available frame with index <= target without
// blocking, holding back the first frame past target. ok is false when no new
// frame at or before target was available.
func (r *playbackReader) upTo(ctx context.Context, target ClipFrame) (PresentedFrame, bool, error) {
	var (
		best  PresentedFrame
		found bool
	)
	take := func(f PresentedFrame) bool {
		if f.Index > target {
			r.pending = &f
			return false
		}
		best, found = f, true
		return true
	}
	if r.pending != nil {
		f := *r.pending
		r.pending = nil
		if !take(f) {
			return best, found, nil
		}
	}
	for !r.done {
		select {
		case <-ctx.Done():
			return best, found, ctx.Err()
		case f, open := <-r.frames:
			if !open {
				return best, found, r.finish(ctx)
			}
			if !r.accept(f) {
				continue
			}
			if !take(f) {
				return best, found, nil
			}
		default:
			return best, found, nil
		}
	}
	return best, found, nil
}

// exhausted reports whether the stream has ended and nothing is held back.
func (r *playbackReader) exhausted() bool {
	return r.done && r.pending == nil
}

func (r *playbackReader) finish(ctx context.Context) error {
	r.done = true
	if err := r.wait(); err != nil && !errors.Is(err, context.Canceled) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return NewSourceLoad("playback ended with error", err)
	}
	return nil
}

// stop cancels playback and drains the channel so the producer can exit.
func (r *playbackReader) stop() {
	r.cancel()
	if r.done {
		return
	}
	for range r.frames {
	}
	r.done = true
	r.wait()
}
