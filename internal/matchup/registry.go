package matchup

import "context"

// Registry persists entities and matchup records. Lookup methods return
// (nil, nil) when nothing matches. Names are unique per entity kind; creating
// a duplicate returns a NAME_ALREADY_EXISTS error.
//
// Deleting a hitter or pitcher cascades to its swings or pitches, and deleting
// a swing or pitch cascades to the matchup records referencing it. Stored clips
// are not touched; the service owns that.
type Registry interface {
	CreateTeam(ctx context.Context, team *Team) error
	FindTeam(ctx context.Context, name string) (*Team, error)
	ListTeams(ctx context.Context) ([]*Team, error)
	DeleteTeam(ctx context.Context, name string) (bool, error)

	CreateHitter(ctx context.Context, hitter *Hitter) error
	FindHitter(ctx context.Context, name string) (*Hitter, error)
	ListHitters(ctx context.Context) ([]*Hitter, error)
	DeleteHitter(ctx context.Context, name string) (bool, error)

	CreatePitcher(ctx context.Context, pitcher *Pitcher) error
	FindPitcher(ctx context.Context, name string) (*Pitcher, error)
	ListPitchers(ctx context.Context) ([]*Pitcher, error)
	DeletePitcher(ctx context.Context, name string) (bool, error)

	// InsertSwing assigns swing.Index as the next ordinal for its hitter.
	InsertSwing(ctx context.Context, swing *Swing) error
	FindSwing(ctx context.Context, id string) (*Swing, error)
	FindSwingByIndex(ctx context.Context, hitterName string, index int) (*Swing, error)
	ListSwings(ctx context.Context, hitterName string) ([]*Swing, error)
	DeleteSwing(ctx context.Context, id string) (bool, error)

	// InsertPitch assigns pitch.Index as the next ordinal for its pitcher.
	InsertPitch(ctx context.Context, pitch *Pitch) error
	FindPitch(ctx context.Context, id string) (*Pitch, error)
	FindPitchByIndex(ctx context.Context, pitcherName string, index int) (*Pitch, error)
	ListPitches(ctx context.Context, pitcherName string) ([]*Pitch, error)
	DeletePitch(ctx context.Context, id string) (bool, error)

	// PutMatchup inserts rec, replacing any record for the same swing, pitch
	// and variant. The replaced record is returned so its clip can be released.
	PutMatchup(ctx context.Context, rec *MatchupRecord) (*MatchupRecord, error)
	FindMatchup(ctx context.Context, swingID, pitchID string, variant Variant) (*MatchupRecord, error)
	ListMatchups(ctx context.Context) ([]*MatchupRecord, error)
	ListMatchupsForSwing(ctx context.Context, swingID string) ([]*MatchupRecord, error)
	ListMatchupsForPitch(ctx context.Context, pitchID string) ([]*MatchupRecord, error)
	DeleteMatchup(ctx context.Context, id string) (bool, error)

	// ReferencedClipKeys returns every clip key held by a swing, pitch or matchup.
	ReferencedClipKeys(ctx context.Context) ([]string, error)

	Close() error
}
