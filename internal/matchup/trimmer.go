package matchup

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"golang.org/x/image/draw"
)

// TrimOptions configures a Trimmer.
type TrimOptions struct {
	DrainGrace     time.Duration // sink held open after the last frame
	MinOutputBytes int           // smaller outputs are EMPTY_OUTPUT
	FrameCounter   bool          // burn the source frame number into each frame
}

// DefaultTrimOptions returns the standard trim settings.
func DefaultTrimOptions() TrimOptions {
	return TrimOptions{
		DrainGrace:     250 * time.Millisecond,
		MinOutputBytes: 1024,
	}
}

// Trimmer produces frame-exact clips from a range of a source.
type Trimmer struct {
	capture  *CapturePipeline
	encoders EncoderFactory
	overlay  *OverlayRenderer
	opts     TrimOptions
	log      Logger
}

// NewTrimmer creates a Trimmer.
func NewTrimmer(capture *CapturePipeline, encoders EncoderFactory, overlay *OverlayRenderer, opts TrimOptions, log Logger) *Trimmer {
	if log == nil {
		log = NewNopLogger()
	}
	return &Trimmer{capture: capture, encoders: encoders, overlay: overlay, opts: opts, log: log}
}

// TrimResult is an encoded trim plus the window actually captured.
type TrimResult struct {
	Clip    *EncodedClip
	Window  TrimWindow
	Clamped bool // end was pulled in to the source's last frame
}

// Trim encodes exactly the inclusive range [start, end] of src. Output frame 0
// is source frame start and the output keeps the source's pixel size. An end
// past the source's last frame is clamped, since reported durations are often
// imprecise near the tail.
func (t *Trimmer) Trim(ctx context.Context, src VideoSource, start, end SourceFrame, fps float64) (res *TrimResult, err error) {
	if err := checkFPS(fps); err != nil {
		return nil, err
	}
	if start < 0 || start >= end {
		return nil, NewInvalidFrame(fmt.Sprintf("trim range must satisfy 0 <= start < end, got [%d,%d]", start, end),
			map[string]any{"start": int(start), "end": int(end)})
	}

	info, err := loadMetadata(ctx, t.capture, src)
	if err != nil {
		return nil, err
	}
	if info.FrameCount <= 0 || info.Width <= 0 || info.Height <= 0 {
		return nil, NewSourceLoad(fmt.Sprintf("source reports no frames (%dx%d, %d frames)", info.Width, info.Height, info.FrameCount), nil)
	}
	// Frame numbers and the frame count are only meaningful at the source's
	// own rate. An unreported rate (0) is taken on trust.
	if info.FPS != 0 && math.Abs(info.FPS-fps) >= 0.01 {
		return nil, NewInvalidRequest(fmt.Sprintf("source runs at %.3f fps but was tagged at %.3f fps; resampling is not supported", info.FPS, fps))
	}

	window := TrimWindow{Start: start, End: end}
	clamped := false
	if last := SourceFrame(info.FrameCount - 1); window.End > last {
		t.log.Warn("trim end clamped to source tail", "requested_end", int(end), "clamped_end", int(last), "source_frames", info.FrameCount)
		window.End = last
		clamped = true
	}
	if window.Start >= window.End {
		return nil, NewInvalidFrame(fmt.Sprintf("trim start %d is at or past the source's last frame %d", start, window.End),
			map[string]any{"start": int(start), "source_frames": info.FrameCount})
	}

	t.log.Info("trim started", "window", window.String(), "frames", window.Len(), "fps", fps)

	rel := &releaser{}
	defer rel.releaseInto(&err, t.log)

	enc := t.encoders.NewEncoder()
	if err := enc.Open(ctx, EncoderOptions{Width: info.Width, Height: info.Height, FPS: fps}); err != nil {
		return nil, fmt.Errorf("opening encoder: %w", err)
	}
	guard := &encoderGuard{enc: enc}
	rel.add("encoder", guard.finish)

	frames := make([]SourceFrame, 0, window.Len())
	for f := window.Start; f <= window.End; f++ {
		frames = append(frames, f)
	}

	written := 0
	err = CaptureStepped(ctx, t.capture, src, fps, frames, func(f SourceFrame, img image.Image) error {
		if t.opts.FrameCounter {
			img = t.stamp(img, window.ToClip(f), f)
		}
		if err := enc.WriteFrame(img); err != nil {
			return fmt.Errorf("encoding frame %d: %w", f, err)
		}
		written++
		return nil
	})
	if err != nil {
		return nil, err
	}

	clip, err := finishEncode(ctx, guard, t.opts.DrainGrace, t.opts.MinOutputBytes)
	if err != nil {
		return nil, err
	}
	if clip.Frames == 0 {
		clip.Frames = written
	}

	t.log.Info("trim finished", "window", window.String(), "frames", written, "bytes", clip.Size())
	return &TrimResult{Clip: clip, Window: window, Clamped: clamped}, nil
}

func (t *Trimmer) stamp(img image.Image, local ClipFrame, source SourceFrame) image.Image {
	dst := image.NewRGBA(img.Bounds())
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	b := dst.Bounds()
	lines := []string{fmt.Sprintf("%03d  src %d", local, source)}
	scale := TextScale(b.Dy())
	size := t.overlay.PlateSize(lines, scale)
	t.overlay.DrawPlate(dst, image.Pt(b.Min.X+4*scale, b.Max.Y-size.Y-4*scale), lines, scale)
	return dst
}

// loadMetadata waits for source metadata, bounded by the seek timeout.
func loadMetadata(ctx context.Context, capture *CapturePipeline, src VideoSource) (SourceInfo, error) {
	mctx, cancel := context.WithTimeout(ctx, capture.opts.SeekTimeout)
	defer cancel()
	info, err := src.LoadMetadata(mctx)
	if err != nil {
		if ctx.Err() != nil {
			return SourceInfo{}, ctx.Err()
		}
		return SourceInfo{}, NewSourceLoad("loading source metadata", err)
	}
	return info, nil
}

// finishEncode holds the sink open for the drain grace, then finalises it.
// Closing an encoder before it flushes truncates the last frames.
func finishEncode(ctx context.Context, guard *encoderGuard, grace time.Duration, minBytes int) (*EncodedClip, error) {
	if grace > 0 {
		timer := time.NewTimer(grace)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	guard.closed = true
	clip, err := guard.enc.Close(ctx)
	if err != nil {
		return nil, fmt.Errorf("finalizing encoder: %w", err)
	}
	if clip == nil || clip.Size() < minBytes {
		size := 0
		if clip != nil {
			size = clip.Size()
		}
		return nil, NewEmptyOutput(size, minBytes)
	}
	return clip, nil
}
