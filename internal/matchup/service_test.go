package matchup_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"matchup-go/internal/clipstore"
	"matchup-go/internal/matchup"
	"matchup-go/internal/testutil"
)

const (
	swingUpload = "/uploads/judge.mp4"
	pitchUpload = "/uploads/cole.mp4"
)

func newServiceEngine(t *testing.T, opts ...testutil.EngineOption) *testutil.Engine {
	t.Helper()
	e := testutil.NewEngine(t, opts...)
	e.AddUpload(swingUpload, 200, testutil.SwingTint)
	e.AddUpload(pitchUpload, 200, testutil.PitchTint)

	ctx := context.Background()
	if _, err := e.Service.CreateHitter(ctx, "Judge", ""); err != nil {
		t.Fatalf("CreateHitter() error = %v", err)
	}
	if _, err := e.Service.CreatePitcher(ctx, "Cole", ""); err != nil {
		t.Fatalf("CreatePitcher() error = %v", err)
	}
	return e
}

// seedPair tags a 13-frame swing and a pitch with contact at clip frame 45.
func seedPair(t *testing.T, e *testutil.Engine) (*matchup.Swing, *matchup.Pitch) {
	t.Helper()
	ctx := context.Background()
	swing, err := e.Service.AddSwing(ctx, matchup.SwingInput{HitterName: "Judge", SourcePath: swingUpload, StartFrame: 100, ContactFrame: 112})
	if err != nil {
		t.Fatalf("AddSwing() error = %v", err)
	}
	pitch, err := e.Service.AddPitch(ctx, matchup.PitchInput{PitcherName: "Cole", SourcePath: pitchUpload, ContactFrame: 80})
	if err != nil {
		t.Fatalf("AddPitch() error = %v", err)
	}
	return swing, pitch
}

func storedKeys(t *testing.T, e *testutil.Engine) []string {
	t.Helper()
	keys, err := e.Store.ListKeys(context.Background())
	if err != nil {
		t.Fatalf("ListKeys() error = %v", err)
	}
	return keys
}

// storedFrames decodes a stored recording into the source frame indices it holds.
func storedFrames(t *testing.T, e *testutil.Engine, key string) []int {
	t.Helper()
	clip, err := e.Service.GetClip(context.Background(), key)
	if err != nil {
		t.Fatalf("GetClip(%s) error = %v", key, err)
	}
	src, err := testutil.DecodeRecording(clip.Data, testutil.TestFPS)
	if err != nil {
		t.Fatalf("DecodeRecording(%s) error = %v", key, err)
	}
	out := make([]int, len(src.Colors))
	for i, c := range src.Colors {
		out[i], _ = testutil.FakeFrameIndex(c)
	}
	return out
}

func TestService_Teams(t *testing.T) {
	e := testutil.NewEngine(t)
	ctx := context.Background()
	svc := e.Service

	if _, err := svc.CreateTeam(ctx, "Yankees"); err != nil {
		t.Fatalf("CreateTeam() error = %v", err)
	}
	if _, err := svc.CreateTeam(ctx, "Yankees"); !matchup.IsCode(err, matchup.ErrNameAlreadyExists) {
		t.Errorf("duplicate team: error = %v, want NAME_ALREADY_EXISTS", err)
	}
	if _, err := svc.CreateTeam(ctx, "  "); !matchup.IsCode(err, matchup.ErrInvalidRequest) {
		t.Errorf("blank team: error = %v, want INVALID_REQUEST", err)
	}

	if _, err := svc.CreateHitter(ctx, "Judge", "Mets"); !matchup.IsCode(err, matchup.ErrNotFound) {
		t.Errorf("unknown team: error = %v, want NOT_FOUND", err)
	}
	h, err := svc.CreateHitter(ctx, " Judge ", "Yankees")
	if err != nil {
		t.Fatalf("CreateHitter() error = %v", err)
	}
	if h.Name != "Judge" || h.TeamName != "Yankees" {
		t.Errorf("hitter = %+v", h)
	}
	if _, err := svc.CreateHitter(ctx, "Judge", ""); !matchup.IsCode(err, matchup.ErrNameAlreadyExists) {
		t.Errorf("duplicate hitter: error = %v, want NAME_ALREADY_EXISTS", err)
	}
	if _, err := svc.CreatePitcher(ctx, "Cole", "Yankees"); err != nil {
		t.Fatalf("CreatePitcher() error = %v", err)
	}

	if err := svc.DeleteTeam(ctx, "Yankees"); err != nil {
		t.Fatalf("DeleteTeam() error = %v", err)
	}
	if err := svc.DeleteTeam(ctx, "Yankees"); !matchup.IsCode(err, matchup.ErrNotFound) {
		t.Errorf("second DeleteTeam() error = %v, want NOT_FOUND", err)
	}
	hitters, err := svc.ListHitters(ctx)
	if err != nil || len(hitters) != 1 {
		t.Fatalf("ListHitters() = %v, %v", hitters, err)
	}
	if hitters[0].TeamName != "" {
		t.Errorf("hitter still on deleted team %q", hitters[0].TeamName)
	}
	pitchers, _ := svc.ListPitchers(ctx)
	if len(pitchers) != 1 || pitchers[0].TeamName != "" {
		t.Errorf("pitchers after team delete = %+v", pitchers)
	}
}

func TestService_AddSwing(t *testing.T) {
	e := newServiceEngine(t)
	ctx := context.Background()

	swing, err := e.Service.AddSwing(ctx, matchup.SwingInput{
		HitterName: "Judge", SourcePath: swingUpload, StartFrame: 20, ContactFrame: 32, Description: "opposite field",
	})
	if err != nil {
		t.Fatalf("AddSwing() error = %v", err)
	}
	if swing.Index != 1 || swing.Frames() != 12 || swing.FPS != testutil.TestFPS {
		t.Errorf("swing = %+v", swing)
	}
	if !strings.HasPrefix(swing.ClipKey, matchup.SwingKeyPrefix+"-") {
		t.Errorf("clip key %q lacks the swing prefix", swing.ClipKey)
	}
	// Stored clip frame 0 is the tagged start; the last frame is contact.
	if got := storedFrames(t, e, swing.ClipKey); !slices.Equal(got, span(20, 32)) {
		t.Errorf("stored swing frames = %v, want 20..32", got)
	}

	second, err := e.Service.AddSwing(ctx, matchup.SwingInput{HitterName: "Judge", SourcePath: swingUpload, StartFrame: 50, ContactFrame: 60})
	if err != nil {
		t.Fatalf("second AddSwing() error = %v", err)
	}
	if second.Index != 2 {
		t.Errorf("second swing index = %d, want 2", second.Index)
	}
	found, err := e.Service.FindSwing(ctx, "Judge", 2)
	if err != nil || found.ID != second.ID {
		t.Errorf("FindSwing(Judge, 2) = %+v, %v", found, err)
	}
	if _, err := e.Service.FindSwing(ctx, "Judge", 3); !matchup.IsCode(err, matchup.ErrNotFound) {
		t.Errorf("FindSwing(Judge, 3) error = %v, want NOT_FOUND", err)
	}
	if !e.Opener.AllClosed() {
		t.Error("upload sources left open")
	}
}

func TestService_AddSwingClampsContact(t *testing.T) {
	e := newServiceEngine(t)
	e.AddUpload("/uploads/short.mp4", 30, testutil.SwingTint)

	swing, err := e.Service.AddSwing(context.Background(), matchup.SwingInput{
		HitterName: "Judge", SourcePath: "/uploads/short.mp4", StartFrame: 20, ContactFrame: 40,
	})
	if err != nil {
		t.Fatalf("AddSwing() error = %v", err)
	}
	if swing.ContactFrame != 29 {
		t.Errorf("contact = %d, want clamped to the last frame 29", swing.ContactFrame)
	}
}

func TestService_AddSwingInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   matchup.SwingInput
		code matchup.ErrorCode
	}{
		{"unknown hitter", matchup.SwingInput{HitterName: "Soto", SourcePath: swingUpload, StartFrame: 1, ContactFrame: 5}, matchup.ErrNotFound},
		{"contact before start", matchup.SwingInput{HitterName: "Judge", SourcePath: swingUpload, StartFrame: 9, ContactFrame: 5}, matchup.ErrInvalidRequest},
		{"zero length", matchup.SwingInput{HitterName: "Judge", SourcePath: swingUpload, StartFrame: 5, ContactFrame: 5}, matchup.ErrInvalidRequest},
		{"other fps", matchup.SwingInput{HitterName: "Judge", SourcePath: swingUpload, StartFrame: 1, ContactFrame: 5, FPS: 60}, matchup.ErrInvalidRequest},
		{"missing upload", matchup.SwingInput{HitterName: "Judge", SourcePath: "/uploads/none.mp4", StartFrame: 1, ContactFrame: 5}, matchup.ErrSourceLoad},
		{"start past tail", matchup.SwingInput{HitterName: "Judge", SourcePath: swingUpload, StartFrame: 250, ContactFrame: 260}, matchup.ErrInvalidFrame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newServiceEngine(t)
			_, err := e.Service.AddSwing(context.Background(), tt.in)
			if !matchup.IsCode(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
			if keys := storedKeys(t, e); len(keys) != 0 {
				t.Errorf("failed AddSwing stored %v", keys)
			}
			if !e.Opener.AllClosed() {
				t.Error("upload source left open")
			}
		})
	}
}

func TestService_AddPitchWindow(t *testing.T) {
	tests := []struct {
		name        string
		frames      int
		contact     matchup.SourceFrame
		wantStart   matchup.SourceFrame
		wantEnd     matchup.SourceFrame
		wantContact matchup.ClipFrame
	}{
		{"centered", 200, 80, 35, 95, 45},
		{"near the start", 200, 10, 0, 25, 10},
		{"near the tail", 120, 110, 65, 119, 45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newServiceEngine(t)
			e.AddUpload("/uploads/p.mp4", tt.frames, testutil.PitchTint)
			p, err := e.Service.AddPitch(context.Background(), matchup.PitchInput{PitcherName: "Cole", SourcePath: "/uploads/p.mp4", ContactFrame: tt.contact})
			if err != nil {
				t.Fatalf("AddPitch() error = %v", err)
			}
			if p.TrimStart != tt.wantStart || p.TrimEnd != tt.wantEnd || p.ClipContact != tt.wantContact {
				t.Errorf("window [%d,%d] contact %d, want [%d,%d] contact %d",
					p.TrimStart, p.TrimEnd, p.ClipContact, tt.wantStart, tt.wantEnd, tt.wantContact)
			}
			if p.ClipFrames != int(tt.wantEnd-tt.wantStart)+1 {
				t.Errorf("clip frames = %d", p.ClipFrames)
			}
			got := storedFrames(t, e, p.ClipKey)
			if got[p.ClipContact] != int(tt.contact) {
				t.Errorf("stored clip frame %d is source frame %d, want contact %d", p.ClipContact, got[p.ClipContact], tt.contact)
			}
		})
	}
}

func TestService_AddPitchContactPastTail(t *testing.T) {
	e := newServiceEngine(t)
	e.AddUpload("/uploads/p.mp4", 120, testutil.PitchTint)
	_, err := e.Service.AddPitch(context.Background(), matchup.PitchInput{PitcherName: "Cole", SourcePath: "/uploads/p.mp4", ContactFrame: 150})
	if !matchup.IsCode(err, matchup.ErrInvalidAlignment) {
		t.Errorf("error = %v, want INVALID_ALIGNMENT", err)
	}
	if keys := storedKeys(t, e); len(keys) != 0 {
		t.Errorf("rejected pitch stored %v", keys)
	}
	if pitches, _ := e.Service.ListPitches(context.Background(), "Cole"); len(pitches) != 0 {
		t.Errorf("rejected pitch recorded: %+v", pitches)
	}
}

func TestService_RenderMatchup(t *testing.T) {
	e := newServiceEngine(t)
	ctx := context.Background()
	swing, pitch := seedPair(t, e)

	r, err := e.Service.RenderMatchup(ctx, swing.ID, pitch.ID, "")
	if err != nil {
		t.Fatalf("RenderMatchup() error = %v", err)
	}
	rec := r.Record
	if rec.Variant != matchup.VariantSideBySide || rec.Offset != 33 || rec.Clamped || rec.TotalFrames != 61 {
		t.Errorf("record = %+v, want sideBySide at offset 45-12=33 over 61 frames", rec)
	}
	if rec.HitterName != "Judge" || rec.SwingIndex != 1 || rec.PitcherName != "Cole" || rec.PitchIndex != 1 {
		t.Errorf("record names = %+v", rec)
	}
	if r.Cached {
		t.Error("first render reported as cached")
	}
	if _, err := e.Service.GetClip(ctx, rec.ClipKey); err != nil {
		t.Errorf("rendered clip not stored: %v", err)
	}
	if !e.Opener.AllClosed() {
		t.Error("stored clip sources left open after render")
	}

	encoders := len(e.Encoders.Encoders())
	cached, err := e.Service.GetOrRenderMatchup(ctx, swing.ID, pitch.ID, matchup.VariantSideBySide)
	if err != nil {
		t.Fatalf("GetOrRenderMatchup() error = %v", err)
	}
	if !cached.Cached || cached.Record.ID != rec.ID {
		t.Errorf("GetOrRenderMatchup() = %+v, want the cached record", cached)
	}
	if len(e.Encoders.Encoders()) != encoders {
		t.Error("cache hit rendered again")
	}

	again, err := e.Service.RenderMatchup(ctx, swing.ID, pitch.ID, matchup.VariantSideBySide)
	if err != nil {
		t.Fatalf("second RenderMatchup() error = %v", err)
	}
	if again.Record.ClipKey == rec.ClipKey {
		t.Fatal("forced render reused the clip key")
	}
	if _, err := e.Service.GetClip(ctx, rec.ClipKey); !matchup.IsCode(err, matchup.ErrNotFound) {
		t.Errorf("superseded clip still stored: %v", err)
	}
	recs, _ := e.Service.ListMatchups(ctx)
	if len(recs) != 1 {
		t.Errorf("%d matchup records after re-render, want 1", len(recs))
	}

	if _, err := e.Service.RenderMatchup(ctx, swing.ID, pitch.ID, matchup.VariantPitcherOnly); err != nil {
		t.Fatalf("pitcherOnly RenderMatchup() error = %v", err)
	}
	if recs, _ := e.Service.ListMatchups(ctx); len(recs) != 2 {
		t.Errorf("%d matchup records, want one per variant", len(recs))
	}
}

func TestService_GetOrRenderMissingClip(t *testing.T) {
	e := newServiceEngine(t)
	ctx := context.Background()
	swing, pitch := seedPair(t, e)

	first, err := e.Service.GetOrRenderMatchup(ctx, swing.ID, pitch.ID, matchup.VariantSideBySide)
	if err != nil {
		t.Fatalf("GetOrRenderMatchup() error = %v", err)
	}
	if first.Cached {
		t.Error("nothing to serve from cache yet")
	}
	if _, err := e.Store.Delete(ctx, first.Record.ClipKey); err != nil {
		t.Fatal(err)
	}

	second, err := e.Service.GetOrRenderMatchup(ctx, swing.ID, pitch.ID, matchup.VariantSideBySide)
	if err != nil {
		t.Fatalf("GetOrRenderMatchup() error = %v", err)
	}
	if second.Cached || second.Record.ClipKey == first.Record.ClipKey {
		t.Errorf("record with a missing clip was served from cache: %+v", second)
	}
}

func TestService_RenderMatchupErrors(t *testing.T) {
	e := newServiceEngine(t)
	ctx := context.Background()
	swing, pitch := seedPair(t, e)

	if _, err := e.Service.RenderMatchup(ctx, "nope", pitch.ID, ""); !matchup.IsCode(err, matchup.ErrNotFound) {
		t.Errorf("unknown swing: error = %v, want NOT_FOUND", err)
	}
	if _, err := e.Service.RenderMatchup(ctx, swing.ID, "nope", ""); !matchup.IsCode(err, matchup.ErrNotFound) {
		t.Errorf("unknown pitch: error = %v, want NOT_FOUND", err)
	}

	if _, err := e.Store.Delete(ctx, pitch.ClipKey); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Service.RenderMatchup(ctx, swing.ID, pitch.ID, ""); !matchup.IsCode(err, matchup.ErrNotFound) {
		t.Errorf("missing pitch clip: error = %v, want NOT_FOUND", err)
	}
}

func TestService_RenderFailureStoresNothing(t *testing.T) {
	e := newServiceEngine(t)
	ctx := context.Background()
	swing, pitch := seedPair(t, e)
	before := storedKeys(t, e)

	e.Encoders.Configure = func(enc *testutil.RecordingEncoder) { enc.FailAfter = 3 }
	if _, err := e.Service.RenderMatchup(ctx, swing.ID, pitch.ID, ""); err == nil {
		t.Fatal("RenderMatchup() should fail")
	}
	if after := storedKeys(t, e); !slices.Equal(after, before) {
		t.Errorf("stored keys changed from %v to %v", before, after)
	}
	if recs, _ := e.Service.ListMatchups(ctx); len(recs) != 0 {
		t.Errorf("failed render recorded %+v", recs)
	}
	if !e.Opener.AllClosed() {
		t.Error("sources left open after a failed render")
	}
	if !e.Encoders.Last().Aborted() {
		t.Error("encoder not aborted")
	}
}

func TestService_DeleteCascades(t *testing.T) {
	tests := []struct {
		name     string
		del      func(svc *matchup.Service, swing *matchup.Swing, pitch *matchup.Pitch) error
		survivor func(swing *matchup.Swing, pitch *matchup.Pitch) []string
	}{
		{
			name:     "swing",
			del:      func(svc *matchup.Service, sw *matchup.Swing, _ *matchup.Pitch) error { return svc.DeleteSwing(context.Background(), sw.ID) },
			survivor: func(_ *matchup.Swing, p *matchup.Pitch) []string { return []string{p.ClipKey} },
		},
		{
			name:     "pitch",
			del:      func(svc *matchup.Service, _ *matchup.Swing, p *matchup.Pitch) error { return svc.DeletePitch(context.Background(), p.ID) },
			survivor: func(sw *matchup.Swing, _ *matchup.Pitch) []string { return []string{sw.ClipKey} },
		},
		{
			name:     "hitter",
			del:      func(svc *matchup.Service, _ *matchup.Swing, _ *matchup.Pitch) error { return svc.DeleteHitter(context.Background(), "Judge") },
			survivor: func(_ *matchup.Swing, p *matchup.Pitch) []string { return []string{p.ClipKey} },
		},
		{
			name:     "pitcher",
			del:      func(svc *matchup.Service, _ *matchup.Swing, _ *matchup.Pitch) error { return svc.DeletePitcher(context.Background(), "Cole") },
			survivor: func(sw *matchup.Swing, _ *matchup.Pitch) []string { return []string{sw.ClipKey} },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newServiceEngine(t)
			ctx := context.Background()
			swing, pitch := seedPair(t, e)
			for _, v := range []matchup.Variant{matchup.VariantSideBySide, matchup.VariantPitcherOnly} {
				if _, err := e.Service.RenderMatchup(ctx, swing.ID, pitch.ID, v); err != nil {
					t.Fatalf("RenderMatchup(%s) error = %v", v, err)
				}
			}

			if err := tt.del(e.Service, swing, pitch); err != nil {
				t.Fatalf("delete error = %v", err)
			}
			if got, want := storedKeys(t, e), tt.survivor(swing, pitch); !slices.Equal(got, want) {
				t.Errorf("stored keys = %v, want only %v", got, want)
			}
			if recs, _ := e.Service.ListMatchups(ctx); len(recs) != 0 {
				t.Errorf("dependent matchups survived: %+v", recs)
			}
		})
	}
}

func TestService_DeleteUnknown(t *testing.T) {
	e := newServiceEngine(t)
	ctx := context.Background()
	checks := map[string]error{
		"swing":   e.Service.DeleteSwing(ctx, "nope"),
		"pitch":   e.Service.DeletePitch(ctx, "nope"),
		"hitter":  e.Service.DeleteHitter(ctx, "Soto"),
		"pitcher": e.Service.DeletePitcher(ctx, "Ryan"),
		"matchup": e.Service.DeleteMatchup(ctx, "nope"),
	}
	for kind, err := range checks {
		if !matchup.IsCode(err, matchup.ErrNotFound) {
			t.Errorf("delete unknown %s: error = %v, want NOT_FOUND", kind, err)
		}
	}
}

func TestService_DeleteMatchup(t *testing.T) {
	e := newServiceEngine(t)
	ctx := context.Background()
	swing, pitch := seedPair(t, e)
	r, err := e.Service.RenderMatchup(ctx, swing.ID, pitch.ID, "")
	if err != nil {
		t.Fatalf("RenderMatchup() error = %v", err)
	}
	if err := e.Service.DeleteMatchup(ctx, r.Record.ID); err != nil {
		t.Fatalf("DeleteMatchup() error = %v", err)
	}
	if got := storedKeys(t, e); slices.Contains(got, r.Record.ClipKey) || len(got) != 2 {
		t.Errorf("stored keys after DeleteMatchup = %v", got)
	}
}

func TestService_SweepOrphans(t *testing.T) {
	e := newServiceEngine(t)
	ctx := context.Background()
	swing, pitch := seedPair(t, e)
	r, err := e.Service.RenderMatchup(ctx, swing.ID, pitch.ID, "")
	if err != nil {
		t.Fatalf("RenderMatchup() error = %v", err)
	}

	orphan := &matchup.StoredClip{MimeType: testutil.RecordingMimeType, Data: []byte("left over")}
	if err := e.Store.Put(ctx, "swing-orphan", orphan); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Store.Delete(ctx, r.Record.ClipKey); err != nil {
		t.Fatal(err)
	}

	dry, err := e.Service.SweepOrphans(ctx, true)
	if err != nil {
		t.Fatalf("SweepOrphans(dry) error = %v", err)
	}
	if dry.Scanned != 3 || !slices.Equal(dry.DeletedClips, []string{"swing-orphan"}) || !slices.Equal(dry.PrunedMatchups, []string{r.Record.ID}) {
		t.Errorf("dry run = %+v", dry)
	}
	if len(storedKeys(t, e)) != 3 {
		t.Error("dry run deleted clips")
	}
	if recs, _ := e.Service.ListMatchups(ctx); len(recs) != 1 {
		t.Error("dry run pruned records")
	}

	res, err := e.Service.SweepOrphans(ctx, false)
	if err != nil {
		t.Fatalf("SweepOrphans() error = %v", err)
	}
	if len(res.DeletedClips) != 1 || len(res.PrunedMatchups) != 1 {
		t.Errorf("sweep = %+v", res)
	}
	if got, want := storedKeys(t, e), []string{pitch.ClipKey, swing.ClipKey}; !slices.Equal(got, want) {
		t.Errorf("stored keys after sweep = %v, want %v", got, want)
	}
	if recs, _ := e.Service.ListMatchups(ctx); len(recs) != 0 {
		t.Errorf("dangling record survived: %+v", recs)
	}

	again, err := e.Service.SweepOrphans(ctx, false)
	if err != nil || len(again.DeletedClips) != 0 || len(again.PrunedMatchups) != 0 {
		t.Errorf("second sweep = %+v, %v; want nothing left to do", again, err)
	}
}

func TestService_SweepSparesFreshClips(t *testing.T) {
	opts := matchup.DefaultServiceOptions()
	opts.FPS = testutil.TestFPS
	opts.SweepGrace = time.Minute
	e := newServiceEngine(t, testutil.WithService(opts))
	ctx := context.Background()
	keys := matchup.NewULIDGenerator(e.Clock)

	put := func(key string) {
		t.Helper()
		clip := &matchup.StoredClip{MimeType: testutil.RecordingMimeType, Data: []byte(key)}
		if err := e.Store.Put(ctx, key, clip); err != nil {
			t.Fatal(err)
		}
	}
	stale := matchup.SwingKeyPrefix + "-" + keys.New()
	put(stale)
	e.Clock.Advance(2 * time.Minute)
	// Stored but not yet recorded by an import still in flight.
	inFlight := matchup.SwingKeyPrefix + "-" + keys.New()
	put(inFlight)
	put("pitch-untimed")

	res, err := e.Service.SweepOrphans(ctx, false)
	if err != nil {
		t.Fatalf("SweepOrphans() error = %v", err)
	}
	slices.Sort(res.DeletedClips)
	if want := []string{"pitch-untimed", stale}; !slices.Equal(res.DeletedClips, want) {
		t.Errorf("deleted %v, want %v", res.DeletedClips, want)
	}
	if !slices.Equal(res.SkippedRecent, []string{inFlight}) {
		t.Errorf("skipped %v, want only the in-flight clip", res.SkippedRecent)
	}
	if got := storedKeys(t, e); !slices.Equal(got, []string{inFlight}) {
		t.Errorf("stored keys = %v, want [%s]", got, inFlight)
	}

	e.Clock.Advance(2 * time.Minute)
	res, err = e.Service.SweepOrphans(ctx, false)
	if err != nil || !slices.Equal(res.DeletedClips, []string{inFlight}) {
		t.Errorf("sweep after the grace period = %+v, %v; want %s deleted", res, err, inFlight)
	}
}

// failingStore rejects every Put.
type failingStore struct {
	matchup.ClipStore
}

var errStoreDown = errors.New("store unavailable")

func (s failingStore) Put(context.Context, string, *matchup.StoredClip) error { return errStoreDown }

func TestService_StoreFailureRecordsNothing(t *testing.T) {
	e := newServiceEngine(t, testutil.WithStoreWrapper(func(m *clipstore.MemoryStore) matchup.ClipStore {
		return failingStore{m}
	}))
	ctx := context.Background()

	_, err := e.Service.AddSwing(ctx, matchup.SwingInput{HitterName: "Judge", SourcePath: swingUpload, StartFrame: 1, ContactFrame: 9})
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("AddSwing() error = %v, want the store error", err)
	}
	if swings, _ := e.Service.ListSwings(ctx, "Judge"); len(swings) != 0 {
		t.Errorf("swing recorded without a clip: %+v", swings)
	}
}

func TestService_EncryptedStore(t *testing.T) {
	e := newServiceEngine(t, testutil.WithStoreWrapper(func(m *clipstore.MemoryStore) matchup.ClipStore {
		return testutil.NewSealedTestStore(m)
	}))
	ctx := context.Background()
	swing, pitch := seedPair(t, e)

	r, err := e.Service.RenderMatchup(ctx, swing.ID, pitch.ID, "")
	if err != nil {
		t.Fatalf("RenderMatchup() over an encrypted store error = %v", err)
	}
	raw, err := e.Store.Get(ctx, r.Record.ClipKey)
	if err != nil || raw == nil {
		t.Fatalf("raw Get() = %v, %v", raw, err)
	}
	if strings.HasPrefix(string(raw.Data), "MUREC001") {
		t.Error("clip stored in the clear")
	}
	if got := storedFrames(t, e, swing.ClipKey); !slices.Equal(got, span(100, 112)) {
		t.Errorf("decrypted swing frames = %v, want 100..112", got)
	}
}
