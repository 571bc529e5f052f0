package matchup

import (
	"context"
	"fmt"
)

// SwingInput is a swing tagged on a raw upload.
type SwingInput struct {
	HitterName   string
	SourcePath   string
	StartFrame   SourceFrame
	ContactFrame SourceFrame
	FPS          float64 // 0 uses the service default
	Description  string
}

// PitchInput is a pitch tagged on a raw upload.
type PitchInput struct {
	PitcherName  string
	SourcePath   string
	ContactFrame SourceFrame
	FPS          float64
	Description  string
}

func (s *Service) fps(f float64) float64 {
	if f == 0 {
		return s.opts.FPS
	}
	return f
}

// AddSwing trims [start, contact] from the upload, stores the clip and
// records the swing. Stored clip frame 0 is the swing start.
func (s *Service) AddSwing(ctx context.Context, in SwingInput) (*Swing, error) {
	hitter, err := s.registry.FindHitter(ctx, in.HitterName)
	if err != nil {
		return nil, fmt.Errorf("finding hitter: %w", err)
	}
	if hitter == nil {
		return nil, NewNotFound("hitter", in.HitterName)
	}
	if in.StartFrame < 0 || in.StartFrame >= in.ContactFrame {
		return nil, NewInvalidRequest(fmt.Sprintf("swing start %d must precede contact %d", in.StartFrame, in.ContactFrame))
	}
	fps := s.fps(in.FPS)
	if fps != s.opts.FPS {
		return nil, NewInvalidRequest(fmt.Sprintf("swing fps %v differs from the configured %v; resampling is not supported", fps, s.opts.FPS))
	}

	res, err := s.trimUpload(ctx, in.SourcePath, in.StartFrame, in.ContactFrame, fps)
	if err != nil {
		return nil, err
	}
	contact := in.ContactFrame
	if res.Clamped {
		contact = res.Window.End
		s.logger.Warn("swing contact beyond source tail", "tagged_contact", int(in.ContactFrame), "contact", int(contact))
	}

	key, err := s.putClip(ctx, SwingKeyPrefix, res.Clip)
	if err != nil {
		return nil, err
	}
	swing := &Swing{
		ID:           s.idgen.New(),
		HitterName:   hitter.Name,
		ClipKey:      key,
		StartFrame:   in.StartFrame,
		ContactFrame: contact,
		FPS:          fps,
		Description:  in.Description,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.registry.InsertSwing(ctx, swing); err != nil {
		s.rollbackClip(ctx, key)
		return nil, fmt.Errorf("recording swing: %w", err)
	}
	s.logger.Info("swing added", "hitter", hitter.Name, "index", swing.Index, "frames", swing.Frames(), "key", key)
	return swing, nil
}

// AddPitch trims a window around contact (lead frames before, tail frames
// after, clamped to the source) and records the contact frame relative to the
// stored clip.
func (s *Service) AddPitch(ctx context.Context, in PitchInput) (*Pitch, error) {
	pitcher, err := s.registry.FindPitcher(ctx, in.PitcherName)
	if err != nil {
		return nil, fmt.Errorf("finding pitcher: %w", err)
	}
	if pitcher == nil {
		return nil, NewNotFound("pitcher", in.PitcherName)
	}
	if in.ContactFrame < 0 {
		return nil, NewInvalidRequest(fmt.Sprintf("pitch contact %d must be non-negative", in.ContactFrame))
	}
	fps := s.fps(in.FPS)
	if fps != s.opts.FPS {
		return nil, NewInvalidRequest(fmt.Sprintf("pitch fps %v differs from the configured %v; resampling is not supported", fps, s.opts.FPS))
	}

	start := max(in.ContactFrame-SourceFrame(s.opts.PitchLeadFrames), 0)
	end := in.ContactFrame + SourceFrame(s.opts.PitchTailFrames)
	if end <= start {
		end = start + 1
	}
	res, err := s.trimUpload(ctx, in.SourcePath, start, end, fps)
	if err != nil {
		return nil, err
	}
	if !res.Window.Contains(in.ContactFrame) {
		return nil, NewInvalidAlignment(
			fmt.Sprintf("pitch contact %d is beyond the source's last frame %d", in.ContactFrame, res.Window.End),
			map[string]any{"contact": int(in.ContactFrame), "last_frame": int(res.Window.End)})
	}

	key, err := s.putClip(ctx, PitchKeyPrefix, res.Clip)
	if err != nil {
		return nil, err
	}
	pitch := &Pitch{
		ID:            s.idgen.New(),
		PitcherName:   pitcher.Name,
		ClipKey:       key,
		SourceContact: in.ContactFrame,
		TrimStart:     res.Window.Start,
		TrimEnd:       res.Window.End,
		ClipContact:   res.Window.ToClip(in.ContactFrame),
		ClipFrames:    res.Window.Len(),
		FPS:           fps,
		Description:   in.Description,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.registry.InsertPitch(ctx, pitch); err != nil {
		s.rollbackClip(ctx, key)
		return nil, fmt.Errorf("recording pitch: %w", err)
	}
	s.logger.Info("pitch added", "pitcher", pitcher.Name, "index", pitch.Index,
		"window", res.Window.String(), "clip_contact", int(pitch.ClipContact), "key", key)
	return pitch, nil
}

func (s *Service) trimUpload(ctx context.Context, path string, start, end SourceFrame, fps float64) (res *TrimResult, err error) {
	src, err := s.opener.OpenFile(ctx, path, fps)
	if err != nil {
		return nil, NewSourceLoad(fmt.Sprintf("opening %s", path), err)
	}
	rel := &releaser{}
	rel.add("source", src.Close)
	defer rel.releaseInto(&err, s.logger)

	return s.trimmer.Trim(ctx, src, start, end, fps)
}

// FindSwing resolves a hitter's swing by its 1-based index.
func (s *Service) FindSwing(ctx context.Context, hitterName string, index int) (*Swing, error) {
	sw, err := s.registry.FindSwingByIndex(ctx, hitterName, index)
	if err != nil {
		return nil, fmt.Errorf("finding swing: %w", err)
	}
	if sw == nil {
		return nil, NewNotFound("swing", fmt.Sprintf("%s #%d", hitterName, index))
	}
	return sw, nil
}

// FindPitch resolves a pitcher's pitch by its 1-based index.
func (s *Service) FindPitch(ctx context.Context, pitcherName string, index int) (*Pitch, error) {
	p, err := s.registry.FindPitchByIndex(ctx, pitcherName, index)
	if err != nil {
		return nil, fmt.Errorf("finding pitch: %w", err)
	}
	if p == nil {
		return nil, NewNotFound("pitch", fmt.Sprintf("%s #%d", pitcherName, index))
	}
	return p, nil
}

// ListSwings returns a hitter's swings in index order.
func (s *Service) ListSwings(ctx context.Context, hitterName string) ([]*Swing, error) {
	return s.registry.ListSwings(ctx, hitterName)
}

// ListPitches returns a pitcher's pitches in index order.
func (s *Service) ListPitches(ctx context.Context, pitcherName string) ([]*Pitch, error) {
	return s.registry.ListPitches(ctx, pitcherName)
}

// DeleteSwing removes a swing, the matchups built on it, and their clips.
func (s *Service) DeleteSwing(ctx context.Context, id string) error {
	sw, err := s.registry.FindSwing(ctx, id)
	if err != nil {
		return fmt.Errorf("finding swing: %w", err)
	}
	if sw == nil {
		return NewNotFound("swing", id)
	}
	keys, err := s.matchupKeys(s.registry.ListMatchupsForSwing(ctx, id))
	if err != nil {
		return err
	}
	if _, err := s.registry.DeleteSwing(ctx, id); err != nil {
		return fmt.Errorf("deleting swing: %w", err)
	}
	s.logger.Info("swing deleted", "hitter", sw.HitterName, "index", sw.Index, "matchups", len(keys))
	return s.deleteClips(ctx, append(keys, sw.ClipKey))
}

// DeletePitch removes a pitch, the matchups built on it, and their clips.
func (s *Service) DeletePitch(ctx context.Context, id string) error {
	p, err := s.registry.FindPitch(ctx, id)
	if err != nil {
		return fmt.Errorf("finding pitch: %w", err)
	}
	if p == nil {
		return NewNotFound("pitch", id)
	}
	keys, err := s.matchupKeys(s.registry.ListMatchupsForPitch(ctx, id))
	if err != nil {
		return err
	}
	if _, err := s.registry.DeletePitch(ctx, id); err != nil {
		return fmt.Errorf("deleting pitch: %w", err)
	}
	s.logger.Info("pitch deleted", "pitcher", p.PitcherName, "index", p.Index, "matchups", len(keys))
	return s.deleteClips(ctx, append(keys, p.ClipKey))
}
