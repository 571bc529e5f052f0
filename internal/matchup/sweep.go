package matchup

import (
	"context"
	"fmt"
)

// SweepResult summarises an orphan sweep.
type SweepResult struct {
	Scanned        int
	DeletedClips   []string
	PrunedMatchups []string // records whose clip had vanished from the store
	SkippedRecent  []string // unreferenced but inside the grace period
}

// SweepOrphans deletes stored clips that no swing, pitch or matchup record
// references, and drops matchup records whose clip is missing. With dryRun
// nothing is deleted.
//
// A clip is stored before its registry row is written, so an import or render
// running alongside the sweep briefly owns an unreferenced clip. Clips whose
// key time falls inside ServiceOptions.SweepGrace are skipped; keys without a
// timestamp get no such protection.
func (s *Service) SweepOrphans(ctx context.Context, dryRun bool) (*SweepResult, error) {
	keys, err := s.store.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing stored clips: %w", err)
	}
	refs, err := s.registry.ReferencedClipKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing referenced clips: %w", err)
	}

	referenced := make(map[string]bool, len(refs))
	for _, k := range refs {
		referenced[k] = true
	}
	stored := make(map[string]bool, len(keys))
	res := &SweepResult{Scanned: len(keys)}
	cutoff := s.clock.Now().Add(-s.opts.SweepGrace)

	for _, key := range keys {
		stored[key] = true
		if referenced[key] {
			continue
		}
		if at, ok := clipKeyTime(key); ok && at.After(cutoff) {
			res.SkippedRecent = append(res.SkippedRecent, key)
			continue
		}
		res.DeletedClips = append(res.DeletedClips, key)
		if dryRun {
			continue
		}
		if _, err := s.store.Delete(ctx, key); err != nil {
			return res, fmt.Errorf("deleting orphan clip %s: %w", key, err)
		}
	}

	recs, err := s.registry.ListMatchups(ctx)
	if err != nil {
		return res, fmt.Errorf("listing matchups: %w", err)
	}
	for _, rec := range recs {
		if stored[rec.ClipKey] {
			continue
		}
		res.PrunedMatchups = append(res.PrunedMatchups, rec.ID)
		if dryRun {
			continue
		}
		if _, err := s.registry.DeleteMatchup(ctx, rec.ID); err != nil {
			return res, fmt.Errorf("pruning matchup %s: %w", rec.ID, err)
		}
	}

	s.logger.Info("orphan sweep finished",
		"scanned", res.Scanned,
		"deleted_clips", len(res.DeletedClips),
		"pruned_matchups", len(res.PrunedMatchups),
		"skipped_recent", len(res.SkippedRecent),
		"dry_run", dryRun)
	return res, nil
}
