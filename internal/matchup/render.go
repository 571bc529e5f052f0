package matchup

import (
	"context"
	"fmt"
	"slices"
)

// MatchupRender is the outcome of a render request.
type MatchupRender struct {
	Record   *MatchupRecord
	Cached   bool     // served from an existing record without rendering
	Warnings []string // data-quality warnings from alignment
}

// RenderMatchup always re-renders the composite of swing and pitch. The new
// record replaces any previous one for the same pair and variant (last write
// wins) and the superseded clip is deleted.
func (s *Service) RenderMatchup(ctx context.Context, swingID, pitchID string, variant Variant) (*MatchupRender, error) {
	swing, pitch, err := s.loadPair(ctx, swingID, pitchID)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, swing, pitch, variant)
}

// GetOrRenderMatchup returns the cached matchup for the pair and variant if
// its clip is still stored, and renders it otherwise.
func (s *Service) GetOrRenderMatchup(ctx context.Context, swingID, pitchID string, variant Variant) (*MatchupRender, error) {
	swing, pitch, err := s.loadPair(ctx, swingID, pitchID)
	if err != nil {
		return nil, err
	}
	rec, err := s.registry.FindMatchup(ctx, swingID, pitchID, variant)
	if err != nil {
		return nil, fmt.Errorf("finding matchup: %w", err)
	}
	if rec != nil {
		clip, err := s.store.Get(ctx, rec.ClipKey)
		if err != nil {
			return nil, fmt.Errorf("checking cached clip: %w", err)
		}
		if clip != nil {
			s.logger.Debug("matchup cache hit", "key", rec.ClipKey)
			return &MatchupRender{Record: rec, Cached: true}, nil
		}
		s.logger.Warn("matchup record has no clip; re-rendering", "key", rec.ClipKey)
	}
	return s.render(ctx, swing, pitch, variant)
}

// ListMatchups returns all matchup records, newest first.
func (s *Service) ListMatchups(ctx context.Context) ([]*MatchupRecord, error) {
	return s.registry.ListMatchups(ctx)
}

// DeleteMatchup removes a matchup record and its clip.
func (s *Service) DeleteMatchup(ctx context.Context, id string) error {
	recs, err := s.registry.ListMatchups(ctx)
	if err != nil {
		return fmt.Errorf("listing matchups: %w", err)
	}
	i := slices.IndexFunc(recs, func(r *MatchupRecord) bool { return r.ID == id })
	if i < 0 {
		return NewNotFound("matchup", id)
	}
	if _, err := s.registry.DeleteMatchup(ctx, id); err != nil {
		return fmt.Errorf("deleting matchup: %w", err)
	}
	return s.deleteClips(ctx, []string{recs[i].ClipKey})
}

func (s *Service) loadPair(ctx context.Context, swingID, pitchID string) (*Swing, *Pitch, error) {
	swing, err := s.registry.FindSwing(ctx, swingID)
	if err != nil {
		return nil, nil, fmt.Errorf("finding swing: %w", err)
	}
	if swing == nil {
		return nil, nil, NewNotFound("swing", swingID)
	}
	pitch, err := s.registry.FindPitch(ctx, pitchID)
	if err != nil {
		return nil, nil, fmt.Errorf("finding pitch: %w", err)
	}
	if pitch == nil {
		return nil, nil, NewNotFound("pitch", pitchID)
	}
	if swing.FPS != pitch.FPS {
		return nil, nil, NewInvalidAlignment(
			fmt.Sprintf("swing was tagged at %v fps and pitch at %v fps", swing.FPS, pitch.FPS),
			map[string]any{"swing_fps": swing.FPS, "pitch_fps": pitch.FPS})
	}
	return swing, pitch, nil
}

func (s *Service) openStored(ctx context.Context, kind, key string, fps float64, rel *releaser) (VideoSource, error) {
	clip, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("getting %s clip: %w", kind, err)
	}
	if clip == nil {
		return nil, NewNotFound(kind+" clip", key)
	}
	src, err := s.opener.OpenClip(ctx, clip, fps)
	if err != nil {
		return nil, NewSourceLoad(fmt.Sprintf("opening %s clip %s", kind, key), err)
	}
	rel.add(kind+" source", src.Close)
	return src, nil
}

func (s *Service) render(ctx context.Context, swing *Swing, pitch *Pitch, variant Variant) (out *MatchupRender, err error) {
	if variant == "" {
		variant = VariantSideBySide
	}
	rel := &releaser{}
	defer rel.releaseInto(&err, s.logger)

	pitchSrc, err := s.openStored(ctx, "pitch", pitch.ClipKey, pitch.FPS, rel)
	if err != nil {
		return nil, err
	}
	var swingSrc VideoSource
	if variant == VariantSideBySide {
		if swingSrc, err = s.openStored(ctx, "swing", swing.ClipKey, swing.FPS, rel); err != nil {
			return nil, err
		}
	}

	res, err := s.compositor.Compose(ctx, ComposeRequest{
		Pitch:        pitchSrc,
		PitchContact: pitch.ClipContact,
		Swing:        swingSrc,
		SwingStart:   swing.StartFrame,
		SwingContact: swing.ContactFrame,
		FPS:          pitch.FPS,
		Variant:      variant,
		Labels: Labels{
			HitterName:       swing.HitterName,
			PitcherName:      pitch.PitcherName,
			SwingDescription: swing.Description,
			PitchDescription: pitch.Description,
		},
	})
	if err != nil {
		return nil, err
	}

	key, err := s.putClip(ctx, MatchupKeyPrefix, res.Clip)
	if err != nil {
		return nil, err
	}
	rec := &MatchupRecord{
		ID:          s.idgen.New(),
		SwingID:     swing.ID,
		PitchID:     pitch.ID,
		HitterName:  swing.HitterName,
		SwingIndex:  swing.Index,
		PitcherName: pitch.PitcherName,
		PitchIndex:  pitch.Index,
		ClipKey:     key,
		Variant:     variant,
		Offset:      res.Plan.Offset,
		Clamped:     res.Plan.Clamped,
		TotalFrames: res.Plan.TotalFrames,
		CreatedAt:   s.clock.Now(),
	}
	prev, err := s.registry.PutMatchup(ctx, rec)
	if err != nil {
		s.rollbackClip(ctx, key)
		return nil, fmt.Errorf("recording matchup: %w", err)
	}
	if prev != nil && prev.ClipKey != key {
		if err := s.deleteClips(ctx, []string{prev.ClipKey}); err != nil {
			s.logger.Warn("superseded matchup clip left behind", "key", prev.ClipKey, "error", err)
		}
	}

	s.logger.Info("matchup rendered",
		"hitter", swing.HitterName, "swing", swing.Index,
		"pitcher", pitch.PitcherName, "pitch", pitch.Index,
		"variant", string(variant), "offset", int(rec.Offset), "key", key)
	return &MatchupRender{Record: rec, Warnings: res.Warnings}, nil
}
