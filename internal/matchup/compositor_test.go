package matchup_test

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	"matchup-go/internal/matchup"
	"matchup-go/internal/testutil"
)

// Panels are 160x120 so the composite is 328x120 with no scaling: pitch in
// [0,160), swing in [168,328). Sample points sit clear of label plates.
const (
	panelW = 160
	panelH = 120
)

var (
	pitchPoint = image.Pt(150, 110)
	swingPoint = image.Pt(318, 110)
)

func sample(f *image.RGBA, p image.Point) (int, uint8) {
	return testutil.FakeFrameIndex(f.RGBAAt(p.X, p.Y))
}

type composeFixture struct {
	e     *testutil.Engine
	pitch *testutil.FakeSource
	swing *testutil.FakeSource
}

func newComposeFixture(t *testing.T, pitchFrames, swingFrames int, opts ...testutil.EngineOption) *composeFixture {
	t.Helper()
	return &composeFixture{
		e:     testutil.NewEngine(t, opts...),
		pitch: testutil.NewFakeSource(pitchFrames, panelW, panelH, testutil.TestFPS, testutil.PitchTint),
		swing: testutil.NewFakeSource(swingFrames, panelW, panelH, testutil.TestFPS, testutil.SwingTint),
	}
}

// sceneA is a 90-frame pitch with contact at 80 and a 12-frame swing.
func (f *composeFixture) sceneA() matchup.ComposeRequest {
	return matchup.ComposeRequest{
		Pitch:        f.pitch,
		PitchContact: 80,
		Swing:        f.swing,
		SwingStart:   100,
		SwingContact: 112,
		FPS:          testutil.TestFPS,
		Labels:       matchup.Labels{HitterName: "Judge", PitcherName: "Cole"},
	}
}

func withCompose(mutate func(o *matchup.ComposeOptions)) testutil.EngineOption {
	o := matchup.DefaultComposeOptions()
	o.DrainGrace = 0
	o.MinOutputBytes = 1
	mutate(&o)
	return testutil.WithCompose(o)
}

func clampFrame(f, lo, hi int) int { return max(lo, min(f, hi)) }

func TestCompose_AlignsContactFrames(t *testing.T) {
	f := newComposeFixture(t, 90, 13)
	res, err := f.e.Compositor.Compose(context.Background(), f.sceneA())
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}

	if res.Plan.Offset != 68 || res.Plan.TotalFrames != 90 {
		t.Fatalf("plan offset %d total %d, want 68 and 90", res.Plan.Offset, res.Plan.TotalFrames)
	}
	if res.Layout.Width != 328 || res.Layout.Height != panelH {
		t.Errorf("layout %dx%d, want 328x120", res.Layout.Width, res.Layout.Height)
	}
	if res.PitchSideFrames != 90 || res.SwingSideFrames != 90 {
		t.Errorf("side frames pitch=%d swing=%d, want both 90", res.PitchSideFrames, res.SwingSideFrames)
	}
	if res.OutputFrames != 96 || res.Clip.Frames != 96 {
		t.Errorf("output frames %d (clip %d), want 90 plus a 6-frame hold", res.OutputFrames, res.Clip.Frames)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings %v", res.Warnings)
	}

	frames := f.e.Encoders.Last().Frames()
	if len(frames) != 96 {
		t.Fatalf("encoder got %d frames, want 96", len(frames))
	}
	for ti := 0; ti < 90; ti++ {
		frame := frames[ti]
		wantSwing := clampFrame(ti-68, 0, 12)
		if si, tint := sample(frame, swingPoint); si != wantSwing || tint != testutil.SwingTint {
			t.Errorf("t=%d swing shows %d (tint %#x), want %d", ti, si, tint, wantSwing)
		}
		flash := ti >= 68 && ti < 71
		got := frame.RGBAAt(pitchPoint.X, pitchPoint.Y)
		plain := testutil.FakeFrameColor(ti, testutil.PitchTint)
		if flash && got == plain {
			t.Errorf("t=%d is in the flash window but the pitch panel is not flashed", ti)
		}
		if !flash && got != plain {
			t.Errorf("t=%d pitch pixel %v, want frame %d %v", ti, got, ti, plain)
		}
	}

	// Contact lines up: the swing reaches its last frame on the pitch contact frame.
	if si, _ := sample(frames[80], swingPoint); si != 12 {
		t.Errorf("swing at pitch contact shows %d, want 12", si)
	}
	if si, _ := sample(frames[79], swingPoint); si != 11 {
		t.Errorf("swing one frame before contact shows %d, want 11", si)
	}

	last := frames[89]
	for i := 90; i < 96; i++ {
		if frames[i].RGBAAt(pitchPoint.X, pitchPoint.Y) != last.RGBAAt(pitchPoint.X, pitchPoint.Y) {
			t.Errorf("trailing frame %d differs from the final timeline frame", i)
		}
	}
}

func TestCompose_CallerOwnsSources(t *testing.T) {
	f := newComposeFixture(t, 90, 13)
	if _, err := f.e.Compositor.Compose(context.Background(), f.sceneA()); err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if f.pitch.Closed() || f.swing.Closed() {
		t.Error("Compose() closed a source it does not own")
	}
}

func TestCompose_Deterministic(t *testing.T) {
	render := func() []byte {
		f := newComposeFixture(t, 40, 9)
		req := f.sceneA()
		req.PitchContact = 30
		req.SwingStart, req.SwingContact = 0, 8
		res, err := f.e.Compositor.Compose(context.Background(), req)
		if err != nil {
			t.Fatalf("Compose() error = %v", err)
		}
		return res.Clip.Data
	}
	if a, b := render(), render(); string(a) != string(b) {
		t.Error("two renders of the same input differ")
	}
}

func TestCompose_ClampedSwing(t *testing.T) {
	f := newComposeFixture(t, 40, 21)
	req := f.sceneA()
	req.PitchContact = 10
	req.SwingStart, req.SwingContact = 0, 20

	res, err := f.e.Compositor.Compose(context.Background(), req)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if !res.Plan.Clamped || res.Plan.Offset != 0 || res.Plan.RawOffset != -10 {
		t.Errorf("plan clamped=%v offset=%d raw=%d, want clamped at 0 from -10", res.Plan.Clamped, res.Plan.Offset, res.Plan.RawOffset)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "clamped") {
		t.Errorf("warnings = %v, want one clamp warning", res.Warnings)
	}
	frames := f.e.Encoders.Last().Frames()
	if si, _ := sample(frames[5], swingPoint); si != 5 {
		t.Errorf("clamped swing at t=5 shows %d, want 5", si)
	}
}

func TestCompose_DegenerateSwing(t *testing.T) {
	f := newComposeFixture(t, 50, 1)
	req := f.sceneA()
	req.PitchContact = 30
	req.SwingStart, req.SwingContact = 7, 7

	res, err := f.e.Compositor.Compose(context.Background(), req)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if !res.Plan.Degenerate || res.Plan.Offset != 30 {
		t.Errorf("plan degenerate=%v offset=%d, want degenerate at 30", res.Plan.Degenerate, res.Plan.Offset)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "same frame") {
		t.Errorf("warnings = %v, want the zero-length swing warning", res.Warnings)
	}
}

func TestCompose_InvalidAlignment(t *testing.T) {
	tests := []struct {
		name   string
		pitch  int
		swing  int
		mutate func(f *composeFixture, req *matchup.ComposeRequest)
	}{
		{
			name: "pitch contact beyond clip", pitch: 100, swing: 13,
			mutate: func(_ *composeFixture, req *matchup.ComposeRequest) { req.PitchContact = 200 },
		},
		{
			name: "swing contact before start", pitch: 90, swing: 13,
			mutate: func(_ *composeFixture, req *matchup.ComposeRequest) { req.SwingContact = 90 },
		},
		{
			name: "pitch fps mismatch", pitch: 90, swing: 13,
			mutate: func(f *composeFixture, _ *matchup.ComposeRequest) { f.pitch.ReportedFPS = 60 },
		},
		{
			name: "swing fps mismatch", pitch: 90, swing: 13,
			mutate: func(f *composeFixture, _ *matchup.ComposeRequest) { f.swing.ReportedFPS = 24 },
		},
		{
			name: "swing clip shorter than its tags", pitch: 90, swing: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newComposeFixture(t, tt.pitch, tt.swing)
			req := f.sceneA()
			if tt.mutate != nil {
				tt.mutate(f, &req)
			}
			_, err := f.e.Compositor.Compose(context.Background(), req)
			if !matchup.IsCode(err, matchup.ErrInvalidAlignment) {
				t.Errorf("error = %v, want INVALID_ALIGNMENT", err)
			}
			if n := len(f.e.Encoders.Encoders()); n != 0 {
				t.Errorf("%d encoders opened for a rejected composite", n)
			}
		})
	}
}

func TestCompose_InvalidRequest(t *testing.T) {
	f := newComposeFixture(t, 90, 13)
	ctx := context.Background()

	req := f.sceneA()
	req.Swing = nil
	if _, err := f.e.Compositor.Compose(ctx, req); !matchup.IsCode(err, matchup.ErrInvalidRequest) {
		t.Errorf("side-by-side without swing: error = %v, want INVALID_REQUEST", err)
	}

	req = f.sceneA()
	req.Pitch = nil
	req.Variant = matchup.VariantPitcherOnly
	if _, err := f.e.Compositor.Compose(ctx, req); !matchup.IsCode(err, matchup.ErrInvalidRequest) {
		t.Errorf("without pitch: error = %v, want INVALID_REQUEST", err)
	}

	req = f.sceneA()
	req.FPS = 0
	if _, err := f.e.Compositor.Compose(ctx, req); !matchup.IsCode(err, matchup.ErrInvalidFrame) {
		t.Errorf("zero fps: error = %v, want INVALID_FRAME", err)
	}
}

func TestCompose_PitcherOnly(t *testing.T) {
	f := newComposeFixture(t, 90, 13)
	req := f.sceneA()
	req.Swing = nil
	req.Variant = matchup.VariantPitcherOnly

	res, err := f.e.Compositor.Compose(context.Background(), req)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if res.Layout.Width != panelW || !res.Layout.Swing.Empty() {
		t.Errorf("layout %+v, want a single %d-wide panel", res.Layout, panelW)
	}
	if res.PitchSideFrames != 90 || res.SwingSideFrames != 0 {
		t.Errorf("side frames pitch=%d swing=%d, want 90 and 0", res.PitchSideFrames, res.SwingSideFrames)
	}
	frames := f.e.Encoders.Last().Frames()
	if idx, _ := sample(frames[20], pitchPoint); idx != 20 {
		t.Errorf("t=20 pitch shows %d", idx)
	}
}

func TestCompose_TitleHold(t *testing.T) {
	f := newComposeFixture(t, 90, 13, withCompose(func(o *matchup.ComposeOptions) { o.TitleHoldFrames = 4 }))
	res, err := f.e.Compositor.Compose(context.Background(), f.sceneA())
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if res.OutputFrames != 4+90+6 {
		t.Errorf("output frames = %d, want 100", res.OutputFrames)
	}
	if res.PitchSideFrames != 90 {
		t.Errorf("title frames counted as timeline frames: %d", res.PitchSideFrames)
	}
	frames := f.e.Encoders.Last().Frames()
	for i := 0; i < 5; i++ {
		if idx, _ := sample(frames[i], pitchPoint); idx != 0 {
			t.Errorf("output frame %d shows pitch %d, want frame 0 held", i, idx)
		}
	}
	// The centered title plate covers the top of the pitch panel on the card only.
	if frames[0].RGBAAt(130, 14) == frames[4].RGBAAt(130, 14) {
		t.Error("title card has no banner")
	}
}

func TestCompose_Replay(t *testing.T) {
	f := newComposeFixture(t, 90, 13, withCompose(func(o *matchup.ComposeOptions) { o.ReplayRate = 0.5 }))
	res, err := f.e.Compositor.Compose(context.Background(), f.sceneA())
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if res.OutputFrames != 90+180+6 {
		t.Fatalf("output frames = %d, want 90 + 180 replay + 6", res.OutputFrames)
	}
	if res.PitchSideFrames != 90 {
		t.Errorf("replay counted as timeline frames: %d", res.PitchSideFrames)
	}
	frames := f.e.Encoders.Last().Frames()
	for k := 0; k < 180; k++ {
		ti := k / 2
		if ti >= 68 && ti < 71 {
			continue
		}
		if idx, _ := sample(frames[90+k], pitchPoint); idx != ti {
			t.Errorf("replay frame %d shows pitch %d, want %d", k, idx, ti)
		}
		if si, _ := sample(frames[90+k], swingPoint); si != clampFrame(ti-68, 0, 12) {
			t.Errorf("replay frame %d shows swing %d", k, si)
		}
	}
}

func TestCompose_ReplayIgnoredOutsideRange(t *testing.T) {
	for _, rate := range []float64{1, 2, -0.5} {
		f := newComposeFixture(t, 30, 5, withCompose(func(o *matchup.ComposeOptions) { o.ReplayRate = rate }))
		req := f.sceneA()
		req.PitchContact, req.SwingStart, req.SwingContact = 20, 0, 4
		res, err := f.e.Compositor.Compose(context.Background(), req)
		if err != nil {
			t.Fatalf("rate %v: Compose() error = %v", rate, err)
		}
		if res.OutputFrames != 30+6 {
			t.Errorf("rate %v: output frames = %d, want no replay", rate, res.OutputFrames)
		}
	}
}

func TestCompose_FrameCounter(t *testing.T) {
	f := newComposeFixture(t, 30, 5, withCompose(func(o *matchup.ComposeOptions) { o.FrameCounter = true }))
	req := f.sceneA()
	req.PitchContact, req.SwingStart, req.SwingContact = 20, 0, 4
	if _, err := f.e.Compositor.Compose(context.Background(), req); err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	frames := f.e.Encoders.Last().Frames()
	plain := testutil.FakeFrameColor(3, testutil.PitchTint)
	if frames[3].RGBAAt(12, 104) == plain {
		t.Error("no frame counter plate in the bottom-left corner")
	}
	if idx, _ := sample(frames[3], pitchPoint); idx != 3 {
		t.Errorf("counter disturbed the pitch sample: %d", idx)
	}
}

func TestCompose_Playback(t *testing.T) {
	for _, interval := range []time.Duration{0, 3 * time.Millisecond} {
		t.Run(interval.String(), func(t *testing.T) {
			f := newComposeFixture(t, 90, 13, withCompose(func(o *matchup.ComposeOptions) { o.Mode = matchup.ModePlayback }))
			f.pitch.PlayInterval = interval
			f.swing.PlayInterval = interval
			res, err := f.e.Compositor.Compose(context.Background(), f.sceneA())
			if err != nil {
				t.Fatalf("Compose() error = %v", err)
			}
			if res.PitchSideFrames != 90 || res.SwingSideFrames != 90 || res.OutputFrames != 96 {
				t.Errorf("frames pitch=%d swing=%d output=%d, want 90/90/96",
					res.PitchSideFrames, res.SwingSideFrames, res.OutputFrames)
			}
			if f.pitch.Plays() != 1 || f.swing.Plays() != 1 {
				t.Errorf("plays pitch=%d swing=%d, want one each", f.pitch.Plays(), f.swing.Plays())
			}

			frames := f.e.Encoders.Last().Frames()
			for ti := 0; ti < 90; ti++ {
				if ti < 68 || ti >= 71 {
					if idx, _ := sample(frames[ti], pitchPoint); idx != ti {
						t.Errorf("t=%d pitch shows %d", ti, idx)
					}
				}
				if si, _ := sample(frames[ti], swingPoint); si != clampFrame(ti-68, 0, 12) {
					t.Errorf("t=%d swing shows %d, want %d", ti, si, clampFrame(ti-68, 0, 12))
				}
			}
			if si, _ := sample(frames[80], swingPoint); si != 12 {
				t.Errorf("swing contact frame at pitch contact t=80: got %d, want 12", si)
			}
		})
	}
}

func TestCompose_PlaybackFillsDroppedFrames(t *testing.T) {
	f := newComposeFixture(t, 30, 5, withCompose(func(o *matchup.ComposeOptions) { o.Mode = matchup.ModePlayback }))
	f.pitch.PlayDrop = map[int]bool{10: true, 11: true}
	f.pitch.PlayRepeat = 2
	req := f.sceneA()
	req.PitchContact, req.SwingStart, req.SwingContact = 25, 0, 4

	res, err := f.e.Compositor.Compose(context.Background(), req)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if res.PitchSideFrames != 30 {
		t.Fatalf("pitch side frames = %d, want the timeline kept in register at 30", res.PitchSideFrames)
	}
	frames := f.e.Encoders.Last().Frames()
	for ti, want := range map[int]int{9: 9, 10: 9, 11: 9, 12: 12} {
		if idx, _ := sample(frames[ti], pitchPoint); idx != want {
			t.Errorf("t=%d pitch shows %d, want %d", ti, idx, want)
		}
	}
}

func TestCompose_PlaybackStall(t *testing.T) {
	f := newComposeFixture(t, 30, 5,
		withCompose(func(o *matchup.ComposeOptions) { o.Mode = matchup.ModePlayback }),
		testutil.WithCapture(matchup.CaptureOptions{SeekTimeout: 40 * time.Millisecond, PollInterval: time.Millisecond}))
	f.pitch.PlayInterval = time.Second
	req := f.sceneA()
	req.PitchContact, req.SwingStart, req.SwingContact = 20, 0, 4

	_, err := f.e.Compositor.Compose(context.Background(), req)
	if !matchup.IsCode(err, matchup.ErrSourceLoad) {
		t.Fatalf("error = %v, want SOURCE_LOAD", err)
	}
	if !f.e.Encoders.Last().Aborted() {
		t.Error("encoder not aborted after a stall")
	}
}

func TestCompose_FailuresAbortEncoder(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *composeFixture)
		check func(err error) bool
	}{
		{
			name:  "write failure",
			setup: func(f *composeFixture) { f.e.Encoders.Configure = func(e *testutil.RecordingEncoder) { e.FailAfter = 10 } },
			check: func(err error) bool { return err != nil },
		},
		{
			name:  "swing stall",
			setup: func(f *composeFixture) { f.swing.StallAt = 4 },
			check: func(err error) bool { return matchup.IsCode(err, matchup.ErrSourceLoad) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newComposeFixture(t, 90, 13,
				testutil.WithCapture(matchup.CaptureOptions{SeekTimeout: 40 * time.Millisecond, PollInterval: time.Millisecond}))
			tt.setup(f)
			_, err := f.e.Compositor.Compose(context.Background(), f.sceneA())
			if !tt.check(err) {
				t.Fatalf("unexpected error %v", err)
			}
			enc := f.e.Encoders.Last()
			if !enc.Aborted() || enc.Closed() {
				t.Errorf("encoder aborted=%v closed=%v, want aborted", enc.Aborted(), enc.Closed())
			}
		})
	}
}

func TestCompose_Cancelled(t *testing.T) {
	f := newComposeFixture(t, 90, 13)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.e.Compositor.Compose(ctx, f.sceneA())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if !f.e.Encoders.Last().Aborted() {
		t.Error("encoder not aborted after cancellation")
	}
}

func TestCompose_EmptyOutput(t *testing.T) {
	f := newComposeFixture(t, 30, 5)
	f.e.Encoders.Configure = func(e *testutil.RecordingEncoder) { e.EmptyOutput = true }
	req := f.sceneA()
	req.PitchContact, req.SwingStart, req.SwingContact = 20, 0, 4
	_, err := f.e.Compositor.Compose(context.Background(), req)
	if !matchup.IsCode(err, matchup.ErrEmptyOutput) {
		t.Errorf("error = %v, want EMPTY_OUTPUT", err)
	}
}
