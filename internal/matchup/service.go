package matchup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceOptions holds the tagging defaults the service applies.
type ServiceOptions struct {
	FPS             float64
	PitchLeadFrames int // frames kept before pitch contact
	PitchTailFrames int // frames kept after pitch contact
	// SweepGrace keeps unreferenced clips younger than this out of the
	// orphan sweep, covering the gap between storing a clip and recording it.
	SweepGrace time.Duration
}

// DefaultServiceOptions returns the standard tagging defaults.
func DefaultServiceOptions() ServiceOptions {
	return ServiceOptions{FPS: DefaultFPS, PitchLeadFrames: 45, PitchTailFrames: 15, SweepGrace: 10 * time.Minute}
}

// Service is the orchestration layer between callers and the trim/compose
// engine. It fetches inputs from the clip store, runs trims and composites,
// and stores results only after they succeed.
type Service struct {
	registry   Registry
	store      ClipStore
	opener     SourceOpener
	trimmer    *Trimmer
	compositor *Compositor
	opts       ServiceOptions
	logger     Logger
	clock      Clock
	idgen      IDGenerator
	keys       IDGenerator
}

// NewService creates a Service with the provided dependencies. idgen makes
// registry row ids; keys makes clip store key suffixes.
func NewService(registry Registry, store ClipStore, opener SourceOpener, trimmer *Trimmer, compositor *Compositor,
	opts ServiceOptions, logger Logger, clock Clock, idgen, keys IDGenerator) *Service {
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	return &Service{
		registry:   registry,
		store:      store,
		opener:     opener,
		trimmer:    trimmer,
		compositor: compositor,
		opts:       opts,
		logger:     logger,
		clock:      clock,
		idgen:      idgen,
		keys:       keys,
	}
}

// Options returns the tagging defaults in effect.
func (s *Service) Options() ServiceOptions { return s.opts }

func cleanName(kind, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", NewInvalidRequest(kind + " name must not be empty")
	}
	return name, nil
}

// CreateTeam registers a team. Names are unique.
func (s *Service) CreateTeam(ctx context.Context, name string) (*Team, error) {
	name, err := cleanName("team", name)
	if err != nil {
		return nil, err
	}
	team := &Team{ID: s.idgen.New(), Name: name, CreatedAt: s.clock.Now()}
	if err := s.registry.CreateTeam(ctx, team); err != nil {
		return nil, err
	}
	s.logger.Info("team created", "name", name)
	return team, nil
}

// ListTeams returns all teams ordered by name.
func (s *Service) ListTeams(ctx context.Context) ([]*Team, error) {
	return s.registry.ListTeams(ctx)
}

// DeleteTeam removes a team. Its hitters and pitchers become unaffiliated.
func (s *Service) DeleteTeam(ctx context.Context, name string) error {
	ok, err := s.registry.DeleteTeam(ctx, name)
	if err != nil {
		return fmt.Errorf("deleting team: %w", err)
	}
	if !ok {
		return NewNotFound("team", name)
	}
	s.logger.Info("team deleted", "name", name)
	return nil
}

func (s *Service) checkTeam(ctx context.Context, teamName string) (string, error) {
	teamName = strings.TrimSpace(teamName)
	if teamName == "" {
		return "", nil
	}
	team, err := s.registry.FindTeam(ctx, teamName)
	if err != nil {
		return "", fmt.Errorf("finding team: %w", err)
	}
	if team == nil {
		return "", NewNotFound("team", teamName)
	}
	return teamName, nil
}

// CreateHitter registers a hitter, optionally on a team.
func (s *Service) CreateHitter(ctx context.Context, name, teamName string) (*Hitter, error) {
	name, err := cleanName("hitter", name)
	if err != nil {
		return nil, err
	}
	if teamName, err = s.checkTeam(ctx, teamName); err != nil {
		return nil, err
	}
	h := &Hitter{ID: s.idgen.New(), Name: name, TeamName: teamName, CreatedAt: s.clock.Now()}
	if err := s.registry.CreateHitter(ctx, h); err != nil {
		return nil, err
	}
	s.logger.Info("hitter created", "name", name, "team", teamName)
	return h, nil
}

// ListHitters returns all hitters ordered by name.
func (s *Service) ListHitters(ctx context.Context) ([]*Hitter, error) {
	return s.registry.ListHitters(ctx)
}

// CreatePitcher registers a pitcher, optionally on a team.
func (s *Service) CreatePitcher(ctx context.Context, name, teamName string) (*Pitcher, error) {
	name, err := cleanName("pitcher", name)
	if err != nil {
		return nil, err
	}
	if teamName, err = s.checkTeam(ctx, teamName); err != nil {
		return nil, err
	}
	p := &Pitcher{ID: s.idgen.New(), Name: name, TeamName: teamName, CreatedAt: s.clock.Now()}
	if err := s.registry.CreatePitcher(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("pitcher created", "name", name, "team", teamName)
	return p, nil
}

// ListPitchers returns all pitchers ordered by name.
func (s *Service) ListPitchers(ctx context.Context) ([]*Pitcher, error) {
	return s.registry.ListPitchers(ctx)
}

// DeleteHitter removes a hitter, their swings, the matchups built on those
// swings, and every clip they referenced.
func (s *Service) DeleteHitter(ctx context.Context, name string) error {
	swings, err := s.registry.ListSwings(ctx, name)
	if err != nil {
		return fmt.Errorf("listing swings: %w", err)
	}
	var keys []string
	for _, sw := range swings {
		mk, err := s.matchupKeys(s.registry.ListMatchupsForSwing(ctx, sw.ID))
		if err != nil {
			return err
		}
		keys = append(append(keys, sw.ClipKey), mk...)
	}

	ok, err := s.registry.DeleteHitter(ctx, name)
	if err != nil {
		return fmt.Errorf("deleting hitter: %w", err)
	}
	if !ok {
		return NewNotFound("hitter", name)
	}
	s.logger.Info("hitter deleted", "name", name, "swings", len(swings))
	return s.deleteClips(ctx, keys)
}

// DeletePitcher removes a pitcher, their pitches, dependent matchups and clips.
func (s *Service) DeletePitcher(ctx context.Context, name string) error {
	pitches, err := s.registry.ListPitches(ctx, name)
	if err != nil {
		return fmt.Errorf("listing pitches: %w", err)
	}
	var keys []string
	for _, p := range pitches {
		mk, err := s.matchupKeys(s.registry.ListMatchupsForPitch(ctx, p.ID))
		if err != nil {
			return err
		}
		keys = append(append(keys, p.ClipKey), mk...)
	}

	ok, err := s.registry.DeletePitcher(ctx, name)
	if err != nil {
		return fmt.Errorf("deleting pitcher: %w", err)
	}
	if !ok {
		return NewNotFound("pitcher", name)
	}
	s.logger.Info("pitcher deleted", "name", name, "pitches", len(pitches))
	return s.deleteClips(ctx, keys)
}

func (s *Service) matchupKeys(recs []*MatchupRecord, err error) ([]string, error) {
	if err != nil {
		return nil, fmt.Errorf("listing matchups: %w", err)
	}
	keys := make([]string, 0, len(recs))
	for _, r := range recs {
		keys = append(keys, r.ClipKey)
	}
	return keys, nil
}

// deleteClips removes clips whose registry rows are already gone. Failures
// are collected; anything left behind is picked up by SweepOrphans.
func (s *Service) deleteClips(ctx context.Context, keys []string) error {
	var errs []error
	for _, key := range keys {
		if _, err := s.store.Delete(ctx, key); err != nil {
			s.logger.Warn("clip delete failed", "key", key, "error", err)
			errs = append(errs, fmt.Errorf("deleting clip %s: %w", key, err))
			continue
		}
		s.logger.Info("clip deleted", "key", key)
	}
	return errors.Join(errs...)
}

// GetClip returns a stored clip by key.
func (s *Service) GetClip(ctx context.Context, key string) (*StoredClip, error) {
	clip, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("getting clip: %w", err)
	}
	if clip == nil {
		return nil, NewNotFound("clip", key)
	}
	return clip, nil
}

// putClip stores an encoded clip under a fresh key.
func (s *Service) putClip(ctx context.Context, prefix string, clip *EncodedClip) (string, error) {
	key := clipKey(prefix, s.keys)
	stored := &StoredClip{MimeType: clip.MimeType, CreatedAt: s.clock.Now(), Data: clip.Data}
	if err := s.store.Put(ctx, key, stored); err != nil {
		return "", fmt.Errorf("storing clip: %w", err)
	}
	s.logger.Info("clip stored", "key", key, "bytes", clip.Size(), "mime", clip.MimeType)
	return key, nil
}

// rollbackClip removes a clip whose registry row could not be written, so a
// failed operation leaves nothing persisted.
func (s *Service) rollbackClip(ctx context.Context, key string) {
	if _, err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Error("clip rollback failed", "key", key, "error", err)
		return
	}
	s.logger.Info("clip rolled back", "key", key)
}
