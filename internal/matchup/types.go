package matchup

import (
	"fmt"
	"time"
)

// Variant selects the composite layout of a matchup clip.
type Variant string

const (
	VariantSideBySide  Variant = "sideBySide"
	VariantPitcherOnly Variant = "pitcherOnly"
)

// ParseVariant validates a variant name. The empty string selects side-by-side.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case "", VariantSideBySide:
		return VariantSideBySide, nil
	case VariantPitcherOnly:
		return VariantPitcherOnly, nil
	default:
		return "", NewInvalidRequest(fmt.Sprintf("unknown variant %q (want %s or %s)", s, VariantSideBySide, VariantPitcherOnly))
	}
}

// Team is a named group of hitters and pitchers.
type Team struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Hitter owns tagged swings. Name is unique.
type Hitter struct {
	ID        string
	Name      string
	TeamName  string // empty when unaffiliated
	CreatedAt time.Time
}

// Pitcher owns tagged pitches. Name is unique.
type Pitcher struct {
	ID        string
	Name      string
	TeamName  string
	CreatedAt time.Time
}

// Swing is a tagged swing whose stored clip spans [StartFrame, ContactFrame]
// of the original upload. Clip frame 0 is StartFrame.
type Swing struct {
	ID           string
	HitterName   string
	Index        int // 1-based ordinal within the hitter's swings
	ClipKey      string
	StartFrame   SourceFrame
	ContactFrame SourceFrame
	FPS          float64
	Description  string
	CreatedAt    time.Time
}

// Frames returns the canonical swing length: contact minus start.
func (s *Swing) Frames() int {
	return int(s.ContactFrame - s.StartFrame)
}

// Window returns the source range that was trimmed into the stored clip.
func (s *Swing) Window() TrimWindow {
	return TrimWindow{Start: s.StartFrame, End: s.ContactFrame}
}

// DurationSeconds converts the swing length to seconds.
func (s *Swing) DurationSeconds() float64 {
	return FramesToSeconds(s.Frames(), s.FPS)
}

// Pitch is a tagged pitch. SourceContact is the contact frame in the original
// upload; ClipContact is that same instant relative to the stored clip.
type Pitch struct {
	ID            string
	PitcherName   string
	Index         int
	ClipKey       string
	SourceContact SourceFrame
	TrimStart     SourceFrame
	TrimEnd       SourceFrame
	ClipContact   ClipFrame
	ClipFrames    int
	FPS           float64
	Description   string
	CreatedAt     time.Time
}

// Window returns the source range that was trimmed into the stored clip.
func (p *Pitch) Window() TrimWindow {
	return TrimWindow{Start: p.TrimStart, End: p.TrimEnd}
}

// MatchupRecord is a cached composite of one swing against one pitch.
// It can always be regenerated from the swing and pitch it references.
type MatchupRecord struct {
	ID          string
	SwingID     string
	PitchID     string
	HitterName  string
	SwingIndex  int
	PitcherName string
	PitchIndex  int
	ClipKey     string
	Variant     Variant
	Offset      TimelineFrame
	Clamped     bool
	TotalFrames int
	CreatedAt   time.Time
}

// EncodedClip is the product of a trim or compose: finished bytes plus what
// is known about their content.
type EncodedClip struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
	FPS      float64
	Frames   int
}

// Size returns the encoded byte length.
func (c *EncodedClip) Size() int { return len(c.Data) }

// DurationSeconds returns the nominal playback duration.
func (c *EncodedClip) DurationSeconds() float64 {
	return FramesToSeconds(c.Frames, c.FPS)
}

// StoredClip is what the clip store persists under a key.
type StoredClip struct {
	MimeType  string
	CreatedAt time.Time
	Data      []byte
}

// Labels is the text burned into a composite.
type Labels struct {
	HitterName         string
	PitcherName        string
	SwingDescription   string
	PitchDescription   string
	SwingDurationLabel string // e.g. "swing 0.40s"; derived when empty
}

// FormatSwingDuration renders a swing length for overlay text.
func FormatSwingDuration(frames int, fps float64) string {
	return fmt.Sprintf("swing %.2fs", FramesToSeconds(frames, fps))
}

// ClipExtension returns the file extension for a stored clip's mime type.
func ClipExtension(mimeType string) string {
	switch mimeType {
	case "video/mp4":
		return ".mp4"
	case "video/quicktime":
		return ".mov"
	case "video/webm":
		return ".webm"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}
