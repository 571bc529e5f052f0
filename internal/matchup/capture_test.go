package matchup_test

import (
	"context"
	"errors"
	"image"
	"slices"
	"testing"
	"time"

	"matchup-go/internal/matchup"
	"matchup-go/internal/testutil"
)

func newTestPipeline() *matchup.CapturePipeline {
	return matchup.NewCapturePipeline(matchup.CaptureOptions{
		SeekTimeout:  100 * time.Millisecond,
		PollInterval: time.Millisecond,
	}, nil)
}

func TestCaptureStepped_ReadsRequestedFrames(t *testing.T) {
	src := testutil.NewFakeSource(50, 8, 8, 30, testutil.SwingTint)
	src.DecodeLatency = 2 * time.Millisecond
	frames := []matchup.SourceFrame{0, 1, 7, 8, 30, 49}

	var got []int
	err := matchup.CaptureStepped(context.Background(), newTestPipeline(), src, 30, frames,
		func(f matchup.SourceFrame, img image.Image) error {
			idx, tint := testutil.FakeFrameIndex(img.At(4, 4))
			if idx != int(f) || tint != testutil.SwingTint {
				t.Errorf("frame %d: captured index %d tint %#x", f, idx, tint)
			}
			got = append(got, idx)
			return nil
		})
	if err != nil {
		t.Fatalf("CaptureStepped() error = %v", err)
	}

	want := []int{0, 1, 7, 8, 30, 49}
	if !slices.Equal(got, want) {
		t.Errorf("captured %v, want %v", got, want)
	}
	if seeks := src.Seeks(); !slices.Equal(seeks, want) {
		t.Errorf("seeks = %v, want one per frame %v", seeks, want)
	}
}

func TestCaptureStepped_RejectsNonIncreasingFrames(t *testing.T) {
	for _, frames := range [][]matchup.SourceFrame{{3, 3}, {5, 2}, {-1}} {
		src := testutil.NewFakeSource(10, 4, 4, 30, 0)
		calls := 0
		err := matchup.CaptureStepped(context.Background(), newTestPipeline(), src, 30, frames,
			func(matchup.SourceFrame, image.Image) error { calls++; return nil })
		if !matchup.IsCode(err, matchup.ErrInvalidFrame) {
			t.Errorf("frames %v: error = %v, want INVALID_FRAME", frames, err)
		}
		if calls > 1 {
			t.Errorf("frames %v: fn called %d times", frames, calls)
		}
	}
}

func TestCaptureStepped_StallIsSourceLoad(t *testing.T) {
	src := testutil.NewFakeSource(10, 4, 4, 30, 0)
	src.StallAt = 5
	frames := []matchup.SourceFrame{0, 1, 2, 3, 4, 5, 6, 7}

	calls := 0
	start := time.Now()
	err := matchup.CaptureStepped(context.Background(), newTestPipeline(), src, 30, frames,
		func(matchup.SourceFrame, image.Image) error { calls++; return nil })
	if !matchup.IsCode(err, matchup.ErrSourceLoad) {
		t.Fatalf("error = %v, want SOURCE_LOAD", err)
	}
	if calls != 5 {
		t.Errorf("fn called %d times, want 5 frames before the stall", calls)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("stall took %s to surface", elapsed)
	}
}

func TestCaptureStepped_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := testutil.NewFakeSource(20, 4, 4, 30, 0)
	frames := []matchup.SourceFrame{0, 1, 2, 3, 4, 5}

	calls := 0
	err := matchup.CaptureStepped(ctx, newTestPipeline(), src, 30, frames,
		func(f matchup.SourceFrame, _ image.Image) error {
			calls++
			if f == 2 {
				cancel()
			}
			return nil
		})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times after cancel at frame 2", calls)
	}
}

func TestCaptureStepped_CallbackErrorStops(t *testing.T) {
	boom := errors.New("boom")
	src := testutil.NewFakeSource(20, 4, 4, 30, 0)
	calls := 0
	err := matchup.CaptureStepped(context.Background(), newTestPipeline(), src, 30, []matchup.SourceFrame{0, 1, 2},
		func(matchup.SourceFrame, image.Image) error { calls++; return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want the callback error", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestCaptureStepped_InvalidFPS(t *testing.T) {
	src := testutil.NewFakeSource(5, 4, 4, 30, 0)
	err := matchup.CaptureStepped(context.Background(), newTestPipeline(), src, 0, []matchup.SourceFrame{0},
		func(matchup.SourceFrame, image.Image) error { return nil })
	if !matchup.IsCode(err, matchup.ErrInvalidFrame) {
		t.Errorf("error = %v, want INVALID_FRAME", err)
	}
}

func collectPlay(t *testing.T, p *matchup.CapturePipeline, src matchup.VideoSource) ([]int, error) {
	t.Helper()
	var got []int
	err := p.Play(context.Background(), src, 1, func(f matchup.PresentedFrame) error {
		idx, _ := testutil.FakeFrameIndex(f.Image.At(0, 0))
		if idx != int(f.Index) {
			t.Errorf("presented index %d carries pixels of frame %d", f.Index, idx)
		}
		got = append(got, int(f.Index))
		return nil
	})
	return got, err
}

func TestPlay(t *testing.T) {
	tests := []struct {
		name   string
		repeat int
		drop   map[int]bool
		want   []int
	}{
		{name: "every frame", want: []int{0, 1, 2, 3, 4, 5}},
		{name: "repeats filtered", repeat: 3, want: []int{0, 1, 2, 3, 4, 5}},
		{name: "drops skipped", drop: map[int]bool{2: true, 3: true}, want: []int{0, 1, 4, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testutil.NewFakeSource(6, 4, 4, 30, 0)
			src.PlayRepeat = tt.repeat
			src.PlayDrop = tt.drop
			got, err := collectPlay(t, newTestPipeline(), src)
			if err != nil {
				t.Fatalf("Play() error = %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("presented %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlay_StallIsSourceLoad(t *testing.T) {
	src := testutil.NewFakeSource(4, 4, 4, 30, 0)
	src.PlayInterval = time.Second
	p := matchup.NewCapturePipeline(matchup.CaptureOptions{SeekTimeout: 30 * time.Millisecond, PollInterval: time.Millisecond}, nil)
	_, err := collectPlay(t, p, src)
	if !matchup.IsCode(err, matchup.ErrSourceLoad) {
		t.Errorf("error = %v, want SOURCE_LOAD", err)
	}
}

func TestPlay_InvalidRate(t *testing.T) {
	src := testutil.NewFakeSource(4, 4, 4, 30, 0)
	err := newTestPipeline().Play(context.Background(), src, 0, func(matchup.PresentedFrame) error { return nil })
	if !matchup.IsCode(err, matchup.ErrInvalidRequest) {
		t.Errorf("error = %v, want INVALID_REQUEST", err)
	}
	if src.Plays() != 0 {
		t.Errorf("source started playing %d times", src.Plays())
	}
}

func TestPlay_CallbackErrorStopsPlayback(t *testing.T) {
	boom := errors.New("boom")
	src := testutil.NewFakeSource(100, 4, 4, 30, 0)
	calls := 0
	err := newTestPipeline().Play(context.Background(), src, 1, func(matchup.PresentedFrame) error {
		calls++
		if calls == 3 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want the callback error", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
}
