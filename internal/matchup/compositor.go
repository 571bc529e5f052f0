package matchup

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"time"

	"golang.org/x/image/draw"
)

// CaptureMode selects how the compositor reads its sources.
type CaptureMode string

const (
	// ModeStepped seeks every source frame explicitly. Deterministic.
	ModeStepped CaptureMode = "stepped"
	// ModePlayback lets both clips play and samples them as frames arrive.
	ModePlayback CaptureMode = "playback"
)

// ComposeOptions configures a Compositor.
type ComposeOptions struct {
	FlashFrames        int
	FlashColor         color.NRGBA
	MaxWidth           int
	Gap                int
	TitleHoldFrames    int
	TrailingHoldFrames int
	ReplayRate         float64 // 0 disables; slow-motion factor in (0,1)
	FrameCounter       bool
	Mode               CaptureMode
	PlaybackRate       float64
	DrainGrace         time.Duration
	MinOutputBytes     int
}

// DefaultComposeOptions returns the standard composite settings.
func DefaultComposeOptions() ComposeOptions {
	return ComposeOptions{
		FlashFrames:        DefaultFlashFrames,
		FlashColor:         DefaultFlashColor,
		MaxWidth:           1280,
		Gap:                8,
		TrailingHoldFrames: 6,
		Mode:               ModeStepped,
		PlaybackRate:       1,
		DrainGrace:         250 * time.Millisecond,
		MinOutputBytes:     1024,
	}
}

// ComposeRequest is one composite render. Pitch and Swing are opened stored
// clips; the caller owns them. Swing may be nil for the pitcher-only variant.
type ComposeRequest struct {
	Pitch        VideoSource
	PitchContact ClipFrame
	Swing        VideoSource
	SwingStart   SourceFrame
	SwingContact SourceFrame
	FPS          float64
	Labels       Labels
	Variant      Variant
}

// ComposeResult is an encoded composite plus how it was laid out.
type ComposeResult struct {
	Clip            *EncodedClip
	Plan            *AlignmentPlan
	Layout          Layout
	PitchSideFrames int // main-pass timeline frames drawn on the pitch side
	SwingSideFrames int // main-pass timeline frames drawn on the swing side
	OutputFrames    int
	Warnings        []string
}

// Compositor renders aligned matchup clips.
type Compositor struct {
	capture  *CapturePipeline
	encoders EncoderFactory
	overlay  *OverlayRenderer
	opts     ComposeOptions
	log      Logger
}

// NewCompositor creates a Compositor.
func NewCompositor(capture *CapturePipeline, encoders EncoderFactory, overlay *OverlayRenderer, opts ComposeOptions, log Logger) *Compositor {
	if log == nil {
		log = NewNopLogger()
	}
	if opts.Mode == "" {
		opts.Mode = ModeStepped
	}
	if opts.PlaybackRate <= 0 {
		opts.PlaybackRate = 1
	}
	return &Compositor{capture: capture, encoders: encoders, overlay: overlay, opts: opts, log: log}
}

// composeJob is the state of one Compose call.
type composeJob struct {
	c        *Compositor
	req      ComposeRequest
	plan     *AlignmentPlan
	layout   Layout
	enc      Encoder
	swingMax ClipFrame // last readable swing clip frame
	res      *ComposeResult
	last     *image.RGBA
}

// Compose aligns the swing clip's contact frame with the pitch clip's contact
// frame and encodes the side-by-side (or pitcher-only) composite.
func (c *Compositor) Compose(ctx context.Context, req ComposeRequest) (res *ComposeResult, err error) {
	if err := checkFPS(req.FPS); err != nil {
		return nil, err
	}
	if req.Variant == "" {
		req.Variant = VariantSideBySide
	}
	if req.Pitch == nil {
		return nil, NewInvalidRequest("compose requires a pitch clip")
	}
	sideBySide := req.Variant == VariantSideBySide
	if sideBySide && req.Swing == nil {
		return nil, NewInvalidRequest("side-by-side compose requires a swing clip")
	}

	pitchInfo, err := loadMetadata(ctx, c.capture, req.Pitch)
	if err != nil {
		return nil, err
	}
	if err := checkClipFPS("pitch", pitchInfo.FPS, req.FPS); err != nil {
		return nil, err
	}

	plan, err := PlanAlignment(AlignmentInput{
		PitchFrames:  pitchInfo.FrameCount,
		PitchContact: req.PitchContact,
		SwingStart:   req.SwingStart,
		SwingContact: req.SwingContact,
		FlashFrames:  c.opts.FlashFrames,
	})
	if err != nil {
		return nil, err
	}

	job := &composeJob{c: c, req: req, plan: plan, res: &ComposeResult{Plan: plan}}

	var swingSize image.Point
	if sideBySide {
		swingInfo, err := loadMetadata(ctx, c.capture, req.Swing)
		if err != nil {
			return nil, err
		}
		if err := checkClipFPS("swing", swingInfo.FPS, req.FPS); err != nil {
			return nil, err
		}
		// One frame of slack: the encoder may drop or repeat the tail.
		if swingInfo.FrameCount < plan.SwingClipFrames-1 || swingInfo.FrameCount <= 0 {
			return nil, NewInvalidAlignment(
				fmt.Sprintf("swing clip has %d frames but its tags span %d", swingInfo.FrameCount, plan.SwingClipFrames),
				map[string]any{"swing_clip_frames": swingInfo.FrameCount, "tagged_frames": plan.SwingClipFrames})
		}
		job.swingMax = ClipFrame(min(swingInfo.FrameCount, plan.SwingClipFrames) - 1)
		swingSize = image.Pt(swingInfo.Width, swingInfo.Height)
	}

	job.layout, err = ComputeLayout(req.Variant, image.Pt(pitchInfo.Width, pitchInfo.Height), swingSize, c.opts.MaxWidth, c.opts.Gap)
	if err != nil {
		return nil, err
	}
	job.res.Layout = job.layout

	c.log.Info("alignment planned",
		"variant", string(req.Variant),
		"offset", int(plan.Offset),
		"raw_offset", plan.RawOffset,
		"clamped", plan.Clamped,
		"pitch_frames", plan.PitchFrames,
		"pitch_contact", int(plan.PitchContact),
		"swing_frames", plan.SwingFrames,
		"total_frames", plan.TotalFrames,
		"mode", string(c.opts.Mode))
	if plan.Clamped {
		msg := fmt.Sprintf("swing of %d frames does not fit before pitch contact at frame %d; aligned start clamped to 0",
			plan.SwingFrames, plan.PitchContact)
		job.res.Warnings = append(job.res.Warnings, msg)
		c.log.Warn("swing does not fit before pitch contact", "swing_frames", plan.SwingFrames, "pitch_contact", int(plan.PitchContact))
	}
	if plan.Degenerate {
		job.res.Warnings = append(job.res.Warnings, "swing start and contact are the same frame")
		c.log.Warn("zero-length swing", "frame", int(req.SwingStart))
	}

	rel := &releaser{}
	defer rel.releaseInto(&err, c.log)

	job.enc = c.encoders.NewEncoder()
	if err := job.enc.Open(ctx, EncoderOptions{Width: job.layout.Width, Height: job.layout.Height, FPS: req.FPS}); err != nil {
		return nil, fmt.Errorf("opening encoder: %w", err)
	}
	guard := &encoderGuard{enc: job.enc}
	rel.add("encoder", guard.finish)

	switch c.opts.Mode {
	case ModePlayback:
		err = job.runPlayback(ctx)
	default:
		err = job.runStepped(ctx)
	}
	if err != nil {
		return nil, err
	}
	if c.opts.ReplayRate > 0 && c.opts.ReplayRate < 1 {
		if err := job.runReplay(ctx); err != nil {
			return nil, err
		}
	}
	if err := job.holdLast(c.opts.TrailingHoldFrames); err != nil {
		return nil, err
	}

	clip, err := finishEncode(ctx, guard, c.opts.DrainGrace, c.opts.MinOutputBytes)
	if err != nil {
		return nil, err
	}
	if clip.Frames == 0 {
		clip.Frames = job.res.OutputFrames
	}
	job.res.Clip = clip

	c.log.Info("compose finished",
		"variant", string(req.Variant),
		"output_frames", job.res.OutputFrames,
		"pitch_side_frames", job.res.PitchSideFrames,
		"swing_side_frames", job.res.SwingSideFrames,
		"bytes", clip.Size())
	return job.res, nil
}

func checkClipFPS(side string, reported, want float64) error {
	if reported == 0 || math.Abs(reported-want) < 0.01 {
		return nil
	}
	return NewInvalidAlignment(
		fmt.Sprintf("%s clip runs at %.3f fps but composites render at %.3f fps; resampling is not supported", side, reported, want),
		map[string]any{"side": side, "clip_fps": reported, "fps": want})
}

// frameCursor serves clip frames from a stepped reader, re-using the last
// capture when a side is held.
type frameCursor struct {
	r     *steppedReader
	limit ClipFrame
	frame ClipFrame
	img   image.Image
}

func newFrameCursor(r *steppedReader, limit ClipFrame) *frameCursor {
	return &frameCursor{r: r, limit: limit, frame: -1}
}

func (fc *frameCursor) at(ctx context.Context, f ClipFrame) (image.Image, error) {
	if f > fc.limit {
		f = fc.limit
	}
	if f == fc.frame && fc.img != nil {
		return fc.img, nil
	}
	img, err := fc.r.read(ctx, int(f))
	if err != nil {
		return nil, err
	}
	fc.frame, fc.img = f, img
	return img, nil
}

func (j *composeJob) sideBySide() bool { return j.req.Variant == VariantSideBySide }

func (j *composeJob) cursors() (pitch, swing *frameCursor) {
	pitch = newFrameCursor(j.c.capture.stepped(j.req.Pitch, j.req.FPS), ClipFrame(j.plan.PitchFrames-1))
	if j.sideBySide() {
		swing = newFrameCursor(j.c.capture.stepped(j.req.Swing, j.req.FPS), j.swingMax)
	}
	return pitch, swing
}

// runStepped renders the title hold and the main pass by explicit seeks.
func (j *composeJob) runStepped(ctx context.Context) error {
	pc, sc := j.cursors()
	for t := TimelineFrame(0); int(t) < j.plan.TotalFrames; t++ {
		pimg, err := pc.at(ctx, j.plan.Pitch(t).Frame)
		if err != nil {
			return fmt.Errorf("pitch side: %w", err)
		}
		var simg image.Image
		if sc != nil {
			if simg, err = sc.at(ctx, j.plan.Swing(t).Frame); err != nil {
				return fmt.Errorf("swing side: %w", err)
			}
		}
		if t == 0 {
			if err := j.titleHold(pimg, simg); err != nil {
				return err
			}
		}
		if err := j.emitMain(t, pimg, simg); err != nil {
			return err
		}
	}
	return nil
}

// runReplay re-renders the timeline in slow motion with a banner. Output
// frame k shows timeline frame floor(k*rate).
func (j *composeJob) runReplay(ctx context.Context) error {
	rate := j.c.opts.ReplayRate
	pc, sc := j.cursors()
	n := int(math.Ceil(float64(j.plan.TotalFrames) / rate))
	for k := 0; k < n; k++ {
		t := TimelineFrame(math.Floor(float64(k) * rate))
		if int(t) >= j.plan.TotalFrames {
			break
		}
		pimg, err := pc.at(ctx, j.plan.Pitch(t).Frame)
		if err != nil {
			return fmt.Errorf("replay pitch side: %w", err)
		}
		var simg image.Image
		if sc != nil {
			if simg, err = sc.at(ctx, j.plan.Swing(t).Frame); err != nil {
				return fmt.Errorf("replay swing side: %w", err)
			}
		}
		frame := j.render(pimg, simg, t, j.plan.Flash(t), "REPLAY")
		if err := j.write(frame); err != nil {
			return err
		}
	}
	return nil
}

// runPlayback lets the pitch clip play and drive the timeline. The swing clip
// shows its frozen first frame until the aligned offset, then plays in step
// with the timeline. If the swing outlasts the pitch, swing frames drive the
// remaining ticks with the pitch held.
func (j *composeJob) runPlayback(ctx context.Context) error {
	rate := j.c.opts.PlaybackRate
	var frozen image.Image
	if j.sideBySide() {
		// Frame 0 comes from a stepped read: playback starts only at the offset.
		img, err := j.c.capture.stepped(j.req.Swing, j.req.FPS).read(ctx, 0)
		if err != nil {
			return fmt.Errorf("swing side: %w", err)
		}
		frozen = img
	}

	pitch, err := j.c.capture.playback(ctx, j.req.Pitch, rate)
	if err != nil {
		return fmt.Errorf("pitch side: %w", err)
	}
	defer pitch.stop()

	var swing *playbackReader
	defer func() {
		if swing != nil {
			swing.stop()
		}
	}()

	var (
		t        TimelineFrame
		pimg     image.Image
		simg     = frozen
		pitchEOS bool
	)

	// From the offset on, each tick waits (bounded by the seek timeout) for
	// the swing frame it owes, so both contacts land on the same tick. A
	// frame the decoder dropped leaves the previous one on screen.
	swingAt := func(t TimelineFrame) error {
		if !j.sideBySide() {
			return nil
		}
		if t < j.plan.Offset {
			simg = frozen
			return nil
		}
		if swing == nil {
			r, err := j.c.capture.playback(ctx, j.req.Swing, rate)
			if err != nil {
				return fmt.Errorf("swing side: %w", err)
			}
			swing = r
		}
		target := min(j.plan.Swing(t).Frame, j.swingMax)
		f, ok, err := swing.upTo(ctx, target)
		if err != nil {
			return fmt.Errorf("swing side: %w", err)
		}
		if ok {
			simg = f.Image
			if f.Index >= target {
				return nil
			}
		}
		for !swing.exhausted() && swing.last < target {
			f, ok, err := swing.next(ctx)
			if err != nil {
				return fmt.Errorf("swing side: %w", err)
			}
			if !ok {
				return nil
			}
			if f.Index > target {
				swing.pending = &f
				return nil
			}
			simg = f.Image
		}
		return nil
	}

	emit := func() error {
		if err := swingAt(t); err != nil {
			return err
		}
		if t == 0 {
			if err := j.titleHold(pimg, simg); err != nil {
				return err
			}
		}
		if err := j.emitMain(t, pimg, simg); err != nil {
			return err
		}
		t++
		return nil
	}

	for int(t) < j.plan.TotalFrames && !pitchEOS {
		f, ok, err := pitch.next(ctx)
		if err != nil {
			return fmt.Errorf("pitch side: %w", err)
		}
		if !ok {
			pitchEOS = true
			break
		}
		if pimg == nil {
			pimg = f.Image
		}
		target := TimelineFrame(f.Index)
		if int(target) >= j.plan.PitchFrames {
			target = TimelineFrame(j.plan.PitchFrames - 1)
		}
		// Frames the decoder skipped are filled with the previous pitch image
		// so the timeline stays in register.
		for t < target {
			if err := emit(); err != nil {
				return err
			}
		}
		if t == target {
			pimg = f.Image
			if err := emit(); err != nil {
				return err
			}
		}
		if int(t) >= j.plan.PitchFrames {
			pitchEOS = true
		}
	}
	if pimg == nil {
		return NewSourceLoad("pitch playback produced no frames", nil)
	}
	for int(t) < j.plan.TotalFrames {
		if err := emit(); err != nil {
			return err
		}
	}

	// Recording may only end once both sides reach natural end of stream.
	if err := drainPlayback(ctx, pitch); err != nil {
		return fmt.Errorf("pitch side: %w", err)
	}
	if swing != nil {
		if err := drainPlayback(ctx, swing); err != nil {
			return fmt.Errorf("swing side: %w", err)
		}
	}
	return nil
}

func drainPlayback(ctx context.Context, r *playbackReader) error {
	r.pending = nil
	for !r.done {
		if _, ok, err := r.next(ctx); err != nil {
			return err
		} else if !ok {
			return nil
		}
	}
	return nil
}

// titleHold writes the opening title card: frame 0 of both sides, frozen.
func (j *composeJob) titleHold(pimg, simg image.Image) error {
	n := j.c.opts.TitleHoldFrames
	if n <= 0 {
		return nil
	}
	card := j.render(pimg, simg, 0, false, j.titleText())
	for i := 0; i < n; i++ {
		if err := j.write(card); err != nil {
			return err
		}
	}
	return nil
}

func (j *composeJob) titleText() string {
	l := j.req.Labels
	switch {
	case l.HitterName != "" && l.PitcherName != "":
		return l.HitterName + " vs " + l.PitcherName
	case l.PitcherName != "":
		return l.PitcherName
	default:
		return l.HitterName
	}
}

// emitMain writes one main-pass timeline frame and counts its sides.
func (j *composeJob) emitMain(t TimelineFrame, pimg, simg image.Image) error {
	frame := j.render(pimg, simg, t, j.plan.Flash(t), "")
	if err := j.write(frame); err != nil {
		return err
	}
	j.res.PitchSideFrames++
	if j.sideBySide() {
		j.res.SwingSideFrames++
	}
	return nil
}

func (j *composeJob) holdLast(n int) error {
	if j.last == nil {
		return nil
	}
	for i := 0; i < n; i++ {
		if err := j.write(j.last); err != nil {
			return err
		}
	}
	return nil
}

func (j *composeJob) write(frame *image.RGBA) error {
	if err := j.enc.WriteFrame(frame); err != nil {
		return fmt.Errorf("encoding composite frame %d: %w", j.res.OutputFrames, err)
	}
	j.last = frame
	j.res.OutputFrames++
	return nil
}

// render draws one composite frame.
func (j *composeJob) render(pimg, simg image.Image, t TimelineFrame, flash bool, banner string) *image.RGBA {
	lay := j.layout
	ov := j.c.overlay
	canvas := image.NewRGBA(image.Rect(0, 0, lay.Width, lay.Height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	draw.ApproxBiLinear.Scale(canvas, lay.Pitch, pimg, pimg.Bounds(), draw.Src, nil)
	if simg != nil && !lay.Swing.Empty() {
		draw.ApproxBiLinear.Scale(canvas, lay.Swing, simg, simg.Bounds(), draw.Src, nil)
	}
	if flash {
		ov.Flash(canvas, lay.Pitch, j.c.opts.FlashColor)
		if !lay.Swing.Empty() {
			ov.Highlight(canvas, lay.Swing, j.c.opts.FlashColor, 2*TextScale(lay.Height))
		}
	}

	scale := TextScale(lay.Height)
	margin := 6 * scale
	l := j.req.Labels
	duration := l.SwingDurationLabel
	if duration == "" {
		duration = FormatSwingDuration(j.plan.SwingFrames, j.req.FPS)
	}
	if j.sideBySide() {
		ov.DrawPlate(canvas, lay.Pitch.Min.Add(image.Pt(margin, margin)), nonEmpty(l.PitcherName, l.PitchDescription), scale)
		ov.DrawPlate(canvas, lay.Swing.Min.Add(image.Pt(margin, margin)), nonEmpty(l.HitterName, l.SwingDescription, duration), scale)
	} else {
		vs := ""
		if l.HitterName != "" {
			vs = "vs " + l.HitterName
		}
		ov.DrawPlate(canvas, lay.Pitch.Min.Add(image.Pt(margin, margin)), nonEmpty(l.PitcherName, l.PitchDescription, vs, duration), scale)
	}

	if banner != "" {
		ov.Banner(canvas, canvas.Bounds(), banner, scale)
	}
	if j.c.opts.FrameCounter {
		lines := []string{fmt.Sprintf("%03d", t)}
		size := ov.PlateSize(lines, scale)
		ov.DrawPlate(canvas, image.Pt(margin, lay.Height-size.Y-margin), lines, scale)
	}
	return canvas
}

func nonEmpty(lines ...string) []string {
	var out []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
