package matchup

import "fmt"

// DefaultFlashFrames is the length of the flash window at the aligned instant.
const DefaultFlashFrames = 3

// AlignmentInput is the tagging data needed to align a swing on a pitch.
type AlignmentInput struct {
	PitchFrames  int        // total frames in the stored pitch clip
	PitchContact ClipFrame  // contact relative to the stored pitch clip's frame 0
	SwingStart   SourceFrame
	SwingContact SourceFrame
	FlashFrames  int
}

// AlignmentPlan maps every composite timeline frame to the frame each side
// shows. The swing clip's last frame (contact) lands on the pitch clip's
// contact frame unless the swing is longer than the pitch run-up allows.
type AlignmentPlan struct {
	PitchFrames     int
	PitchContact    ClipFrame
	SwingFrames     int // contact - start
	SwingClipFrames int // frames in the stored swing clip (inclusive range)
	RawOffset       int
	Offset          TimelineFrame // timeline frame where swing clip frame 0 starts playing
	Clamped         bool          // RawOffset < 0; swing does not fit before contact
	Degenerate      bool          // start and contact tagged on the same frame
	TotalFrames     int
	FlashStart      TimelineFrame
	FlashEnd        TimelineFrame // exclusive, never past TotalFrames
}

// SideSample is the clip frame one side shows at a timeline frame.
type SideSample struct {
	Frame  ClipFrame
	Frozen bool // held frame: head padding or tail hold
}

// PlanAlignment computes the composite timeline for a swing and pitch.
func PlanAlignment(in AlignmentInput) (*AlignmentPlan, error) {
	if in.PitchFrames <= 0 {
		return nil, NewInvalidAlignment(fmt.Sprintf("pitch clip has no frames (%d)", in.PitchFrames),
			map[string]any{"pitch_frames": in.PitchFrames})
	}
	if in.PitchContact < 0 || int(in.PitchContact) >= in.PitchFrames {
		return nil, NewInvalidAlignment(
			fmt.Sprintf("pitch contact frame %d is outside the pitch clip's %d frames", in.PitchContact, in.PitchFrames),
			map[string]any{"pitch_contact": int(in.PitchContact), "pitch_frames": in.PitchFrames})
	}
	if in.SwingStart < 0 || in.SwingContact < in.SwingStart {
		return nil, NewInvalidAlignment(
			fmt.Sprintf("swing contact %d precedes swing start %d", in.SwingContact, in.SwingStart),
			map[string]any{"swing_start": int(in.SwingStart), "swing_contact": int(in.SwingContact)})
	}
	flash := in.FlashFrames
	if flash < 0 {
		flash = 0
	}

	swingFrames := int(in.SwingContact - in.SwingStart)
	plan := &AlignmentPlan{
		PitchFrames:     in.PitchFrames,
		PitchContact:    in.PitchContact,
		SwingFrames:     swingFrames,
		SwingClipFrames: swingFrames + 1,
		RawOffset:       int(in.PitchContact) - swingFrames,
		Degenerate:      swingFrames == 0,
	}
	plan.Offset = TimelineFrame(plan.RawOffset)
	if plan.RawOffset < 0 {
		plan.Offset = 0
		plan.Clamped = true
	}
	plan.TotalFrames = max(in.PitchFrames, int(plan.Offset)+plan.SwingClipFrames)
	plan.FlashStart = plan.Offset
	plan.FlashEnd = min(plan.Offset+TimelineFrame(flash), TimelineFrame(plan.TotalFrames))
	return plan, nil
}

// Pitch returns the pitch clip frame shown at t. The pitch plays from
// timeline frame 0 and holds its last frame once it runs out.
func (p *AlignmentPlan) Pitch(t TimelineFrame) SideSample {
	if int(t) >= p.PitchFrames {
		return SideSample{Frame: ClipFrame(p.PitchFrames - 1), Frozen: true}
	}
	return SideSample{Frame: ClipFrame(t)}
}

// Swing returns the swing clip frame shown at t: its own first frame frozen
// before Offset, then real playback, then its last frame held.
func (p *AlignmentPlan) Swing(t TimelineFrame) SideSample {
	if t < p.Offset {
		return SideSample{Frame: 0, Frozen: true}
	}
	local := int(t - p.Offset)
	if local >= p.SwingClipFrames {
		return SideSample{Frame: ClipFrame(p.SwingClipFrames - 1), Frozen: true}
	}
	return SideSample{Frame: ClipFrame(local)}
}

// Flash reports whether t is inside the flash window.
func (p *AlignmentPlan) Flash(t TimelineFrame) bool {
	return t >= p.FlashStart && t < p.FlashEnd
}

// SwingAtContact is the timeline frame where the swing clip shows contact.
func (p *AlignmentPlan) SwingAtContact() TimelineFrame {
	return p.Offset + TimelineFrame(p.SwingFrames)
}
