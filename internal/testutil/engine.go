package testutil

import (
	"testing"
	"time"

	"matchup-go/internal/clipstore"
	"matchup-go/internal/database"
	"matchup-go/internal/matchup"
)

// TestFPS is the frame rate the test engine is configured for.
const TestFPS = 30

// Engine is a matchup service wired to fakes: a FakeOpener for media, a
// RecordingEncoderFactory for output, an in-memory registry and store, and
// stub clock and ids.
type Engine struct {
	Opener     *FakeOpener
	Encoders   *RecordingEncoderFactory
	Capture    *matchup.CapturePipeline
	Overlay    *matchup.OverlayRenderer
	Trimmer    *matchup.Trimmer
	Compositor *matchup.Compositor
	Registry   *database.SQLiteRegistry
	Store      *clipstore.MemoryStore
	Clock      *StubClock
	Service    *matchup.Service
}

// EngineOption adjusts engine settings before it is built.
type EngineOption func(*engineConfig)

type engineConfig struct {
	capture matchup.CaptureOptions
	trim    matchup.TrimOptions
	compose matchup.ComposeOptions
	service matchup.ServiceOptions
	wrap    func(*clipstore.MemoryStore) matchup.ClipStore
}

// WithCompose sets the compositor options.
func WithCompose(opts matchup.ComposeOptions) EngineOption {
	return func(c *engineConfig) { c.compose = opts }
}

// WithTrim sets the trimmer options.
func WithTrim(opts matchup.TrimOptions) EngineOption {
	return func(c *engineConfig) { c.trim = opts }
}

// WithCapture sets the capture timings.
func WithCapture(opts matchup.CaptureOptions) EngineOption {
	return func(c *engineConfig) { c.capture = opts }
}

// WithService sets the tagging defaults.
func WithService(opts matchup.ServiceOptions) EngineOption {
	return func(c *engineConfig) { c.service = opts }
}

// WithStoreWrapper puts the service in front of wrap(Engine.Store) instead
// of the bare memory store.
func WithStoreWrapper(wrap func(*clipstore.MemoryStore) matchup.ClipStore) EngineOption {
	return func(c *engineConfig) { c.wrap = wrap }
}

// NewEngine builds an Engine with settings tuned for fast tests: no drain
// grace, a one-byte output minimum and a short seek timeout.
func NewEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()

	compose := matchup.DefaultComposeOptions()
	compose.DrainGrace = 0
	compose.MinOutputBytes = 1
	cfg := engineConfig{
		capture: matchup.CaptureOptions{SeekTimeout: 500 * time.Millisecond, PollInterval: time.Millisecond},
		trim:    matchup.TrimOptions{MinOutputBytes: 1},
		compose: compose,
		service: matchup.ServiceOptions{FPS: TestFPS, PitchLeadFrames: 45, PitchTailFrames: 15},
	}
	for _, o := range opts {
		o(&cfg)
	}

	e := &Engine{
		Opener:   NewFakeOpener(),
		Encoders: NewRecordingEncoderFactory(),
		Overlay:  matchup.NewOverlayRenderer(matchup.DefaultPlateStyle),
		Registry: NewTestDatabase(t),
		Store:    NewTestStore(),
		Clock:    FixedClock(),
	}
	e.Capture = matchup.NewCapturePipeline(cfg.capture, nil)
	e.Trimmer = matchup.NewTrimmer(e.Capture, e.Encoders, e.Overlay, cfg.trim, nil)
	e.Compositor = matchup.NewCompositor(e.Capture, e.Encoders, e.Overlay, cfg.compose, nil)

	var store matchup.ClipStore = e.Store
	if cfg.wrap != nil {
		store = cfg.wrap(e.Store)
	}
	e.Service = matchup.NewService(e.Registry, store, e.Opener, e.Trimmer, e.Compositor, cfg.service,
		matchup.NewNopLogger(), e.Clock, NewStubIDGenerator(), NewPrefixedIDGenerator("k"))
	return e
}

// AddUpload registers a raw upload of n frames at path.
func (e *Engine) AddUpload(path string, n int, tint uint8) {
	e.Opener.AddFile(path, func() *FakeSource {
		return NewFakeSource(n, 64, 48, TestFPS, tint)
	})
}
