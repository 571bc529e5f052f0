package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"matchup-go/internal/clipstore"
	"matchup-go/internal/config"
	"matchup-go/internal/database"
	"matchup-go/internal/encryption"
	"matchup-go/internal/matchup"
	"matchup-go/internal/media"
)

// console receives a copy of every log line. Tests silence it.
var console io.Writer = os.Stderr

// MatchupApp is the application layer between the CLI and matchup.Service.
// It constructs all dependencies from config, exposes operations that accept
// raw paths, and releases the registry and log file on Close.
type MatchupApp struct {
	cfg       *config.Config
	registry  matchup.Registry
	store     matchup.ClipStore
	sealed    *clipstore.EncryptedStore // nil when clips are stored in the clear
	encryptor matchup.Encryptor
	backend   *media.Backend
	service   *matchup.Service
	logger    *slog.Logger
	clock     matchup.Clock
	op        *Operation
	logFile   *os.File
}

// NewMatchupApp creates a fully wired MatchupApp from the given config.
// operation names the CLI command being run (e.g. "AddSwing", "Render").
// The caller must call Close when done.
func NewMatchupApp(ctx context.Context, cfg *config.Config, operation string) (*MatchupApp, error) {
	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	backend, err := media.NewBackendFromConfig(cfg.Media)
	if err != nil {
		return nil, fmt.Errorf("creating media backend: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if enc != nil && !enc.IsConfigured() {
		return nil, fmt.Errorf("encryption keys not found: run `matchup keys init` first")
	}

	store, err := clipstore.NewStoreFromConfig(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("creating clip store: %w", err)
	}

	registry, err := database.NewRegistryFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating registry: %w", err)
	}

	clock := matchup.RealClock{}
	op := NewOperation(operation, clock.Now())
	logger, logFile, err := newLogger(cfg.LogDir, op.ID, level, console)
	if err != nil {
		registry.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &MatchupApp{
		cfg:       cfg,
		registry:  registry,
		store:     store,
		encryptor: enc,
		backend:   backend,
		logger:    logger,
		clock:     clock,
		op:        op,
		logFile:   logFile,
	}
	if enc != nil {
		a.sealed = clipstore.NewEncryptedStore(store, enc, nil)
		a.store = a.sealed
	}
	a.service = a.newService(a.store)

	logger.Debug("operation started", "operation", operation, "media", backend.MimeType, "store", cfg.Store.Type)
	return a, nil
}

// newService builds the engine and service over store.
func (a *MatchupApp) newService(store matchup.ClipStore) *matchup.Service {
	rc := a.cfg.Render
	capture := matchup.NewCapturePipeline(matchup.CaptureOptions{
		SeekTimeout:  rc.SeekTimeout.Duration,
		PollInterval: rc.PollInterval.Duration,
	}, a.logger)
	overlay := matchup.NewOverlayRenderer(matchup.DefaultPlateStyle)

	trimmer := matchup.NewTrimmer(capture, a.backend.Encoders, overlay, matchup.TrimOptions{
		DrainGrace:     rc.DrainGrace.Duration,
		MinOutputBytes: rc.MinOutputBytes,
		FrameCounter:   rc.FrameCounter,
	}, a.logger)

	compositor := matchup.NewCompositor(capture, a.backend.Encoders, overlay, matchup.ComposeOptions{
		FlashFrames:        rc.FlashFrames,
		FlashColor:         matchup.DefaultFlashColor,
		MaxWidth:           rc.MaxWidth,
		Gap:                rc.Gap,
		TitleHoldFrames:    rc.TitleHoldFrames,
		TrailingHoldFrames: rc.TrailingHoldFrames,
		ReplayRate:         rc.ReplayRate,
		FrameCounter:       rc.FrameCounter,
		Mode:               matchup.CaptureMode(rc.CaptureMode),
		PlaybackRate:       rc.PlaybackRate,
		DrainGrace:         rc.DrainGrace.Duration,
		MinOutputBytes:     rc.MinOutputBytes,
	}, a.logger)

	opts := matchup.ServiceOptions{
		FPS:             rc.FPS,
		PitchLeadFrames: rc.PitchLeadFrames,
		PitchTailFrames: rc.PitchTailFrames,
		SweepGrace:      a.cfg.Store.SweepGrace.Duration,
	}
	return matchup.NewService(a.registry, store, a.backend.Opener, trimmer, compositor, opts,
		a.logger, a.clock, matchup.UUIDGenerator{}, matchup.NewULIDGenerator(a.clock))
}

// Service returns the wired matchup service.
func (a *MatchupApp) Service() *matchup.Service { return a.service }

// Logger returns the operation logger.
func (a *MatchupApp) Logger() *slog.Logger { return a.logger }

// Encrypted reports whether stored clips are encrypted.
func (a *MatchupApp) Encrypted() bool { return a.sealed != nil }

// Unlock makes encrypted clips readable for the rest of the operation.
// Rendering and export need it; adding swings and pitches does not.
func (a *MatchupApp) Unlock(passphrase string) error {
	if a.sealed == nil {
		return nil
	}
	dec, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking clip store: %w", err)
	}
	a.store = a.sealed.Unlocked(dec)
	a.service = a.newService(a.store)
	return nil
}

// AddSwing resolves the upload path and imports a tagged swing.
func (a *MatchupApp) AddSwing(ctx context.Context, in matchup.SwingInput) (*matchup.Swing, error) {
	p, err := resolveUpload(in.SourcePath)
	if err != nil {
		return nil, err
	}
	in.SourcePath = p
	swing, err := a.service.AddSwing(ctx, in)
	a.op.Fail(err)
	return swing, err
}

// AddPitch resolves the upload path and imports a tagged pitch.
func (a *MatchupApp) AddPitch(ctx context.Context, in matchup.PitchInput) (*matchup.Pitch, error) {
	p, err := resolveUpload(in.SourcePath)
	if err != nil {
		return nil, err
	}
	in.SourcePath = p
	pitch, err := a.service.AddPitch(ctx, in)
	a.op.Fail(err)
	return pitch, err
}

func resolveUpload(rawPath string) (string, error) {
	p, err := filepath.Abs(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("reading upload: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("upload %s is a directory", p)
	}
	return p, nil
}

// ExportClip writes the stored clip under key into dir, named after the key
// with an extension matching its mime type. It returns the written path.
func (a *MatchupApp) ExportClip(ctx context.Context, key, dir string) (string, error) {
	clip, err := a.service.GetClip(ctx, key)
	if err != nil {
		a.op.Fail(err)
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}
	dest := filepath.Join(dir, key+matchup.ClipExtension(clip.MimeType))

	// Write to a temp file in the same directory, then rename.
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(clip.Data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing %s: %w", dest, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming into place: %w", err)
	}

	a.logger.Info("clip exported", "key", key, "path", dest, "bytes", len(clip.Data))
	return dest, nil
}

// Fail records that the operation did not succeed.
func (a *MatchupApp) Fail(err error) { a.op.Fail(err) }

// Close logs the operation outcome and closes all resources.
func (a *MatchupApp) Close() error {
	var firstErr error

	if a.op.Err != nil {
		a.logger.Error("operation finished", "operation", a.op.Name, "status", a.op.Status,
			"elapsed", a.op.Elapsed(a.clock.Now()), "error", a.op.Err)
	} else {
		a.logger.Info("operation finished", "operation", a.op.Name, "status", a.op.Status,
			"elapsed", a.op.Elapsed(a.clock.Now()))
	}

	if err := a.registry.Close(); err != nil {
		firstErr = fmt.Errorf("closing registry: %w", err)
	}

	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}

	return firstErr
}
