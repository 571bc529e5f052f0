package matchup

import (
	"fmt"
	"math"
)

// DefaultFPS is the single frame rate every clip in a matchup shares.
const DefaultFPS = 30.0

// frameEpsilon absorbs IEEE-754 error in seconds*fps so that a time computed
// from frame f never floors to f-1.
const frameEpsilon = 1e-6

// SourceFrame is a frame index relative to frame 0 of an original upload.
type SourceFrame int

// ClipFrame is a frame index relative to frame 0 of a stored (trimmed) clip.
type ClipFrame int

// TimelineFrame is a frame index on a composite's unified timeline.
type TimelineFrame int

// TrimWindow is an inclusive source-frame range that became a stored clip.
// It is the only bridge between SourceFrame and ClipFrame coordinates.
type TrimWindow struct {
	Start SourceFrame
	End   SourceFrame
}

// Len returns the number of frames in the window (inclusive range).
func (w TrimWindow) Len() int {
	return int(w.End-w.Start) + 1
}

// ToClip converts a source frame into the clip's local coordinates.
func (w TrimWindow) ToClip(f SourceFrame) ClipFrame {
	return ClipFrame(f - w.Start)
}

// ToSource converts a clip-local frame back into source coordinates.
func (w TrimWindow) ToSource(f ClipFrame) SourceFrame {
	return w.Start + SourceFrame(f)
}

// Contains reports whether f lies inside the window.
func (w TrimWindow) Contains(f SourceFrame) bool {
	return f >= w.Start && f <= w.End
}

func (w TrimWindow) String() string {
	return fmt.Sprintf("[%d,%d]", w.Start, w.End)
}

func checkFPS(fps float64) error {
	if math.IsNaN(fps) || math.IsInf(fps, 0) || fps <= 0 {
		return NewInvalidFrame(fmt.Sprintf("fps must be positive and finite, got %v", fps),
			map[string]any{"fps": fps})
	}
	return nil
}

func checkSeconds(seconds float64) error {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return NewInvalidFrame(fmt.Sprintf("time must be non-negative and finite, got %v", seconds),
			map[string]any{"seconds": seconds})
	}
	return nil
}

// FrameToTime returns the presentation start time of frame in seconds.
func FrameToTime(frame int, fps float64) (float64, error) {
	if err := checkFPS(fps); err != nil {
		return 0, err
	}
	if frame < 0 {
		return 0, NewInvalidFrame(fmt.Sprintf("frame must be non-negative, got %d", frame),
			map[string]any{"frame": frame})
	}
	return float64(frame) / fps, nil
}

// TimeToFrame returns the frame presented at seconds. It floors rather than
// rounds: a frame is never attributed to the next index because of decoder jitter.
func TimeToFrame(seconds, fps float64) (int, error) {
	if err := checkFPS(fps); err != nil {
		return 0, err
	}
	if err := checkSeconds(seconds); err != nil {
		return 0, err
	}
	return int(math.Floor(seconds*fps + frameEpsilon)), nil
}

// FrameCount returns the number of frames in durationSeconds of video.
func FrameCount(durationSeconds, fps float64) (int, error) {
	if err := checkFPS(fps); err != nil {
		return 0, err
	}
	if err := checkSeconds(durationSeconds); err != nil {
		return 0, err
	}
	return int(math.Round(durationSeconds * fps)), nil
}

// SeekTime returns the midpoint of frame's presentation interval. Seeking there
// leaves half a frame of slack on either side before a decoder lands on a neighbour.
func SeekTime(frame int, fps float64) (float64, error) {
	start, err := FrameToTime(frame, fps)
	if err != nil {
		return 0, err
	}
	return start + 0.5/fps, nil
}

// FramesToSeconds converts a frame span (not an index) into seconds.
func FramesToSeconds(frames int, fps float64) float64 {
	if fps <= 0 {
		return 0
	}
	return float64(frames) / fps
}
