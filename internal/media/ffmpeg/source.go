package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"matchup-go/internal/matchup"
)

// Settings configures the ffmpeg backend. Zero fields take defaults.
type Settings struct {
	FFmpegPath   string
	ScratchDir   string
	Codec        string
	ProbeTimeout time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.FFmpegPath == "" {
		s.FFmpegPath = "ffmpeg"
	}
	if s.ScratchDir == "" {
		s.ScratchDir = os.TempDir()
	}
	if s.Codec == "" {
		s.Codec = "libx264"
	}
	if s.ProbeTimeout <= 0 {
		s.ProbeTimeout = 10 * time.Second
	}
	return s
}

// Opener opens uploads and stored clips as ffmpeg-backed sources.
type Opener struct {
	settings Settings
}

// NewOpener creates an Opener.
func NewOpener(settings Settings) *Opener {
	return &Opener{settings: settings.withDefaults()}
}

func (o *Opener) OpenFile(ctx context.Context, path string, fps float64) (matchup.VideoSource, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("fps must be positive, got %v", fps)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return newSource(o.settings, path, fps, nil), nil
}

// OpenClip copies the clip to a scratch file, since ffmpeg seeks need a
// seekable input. The copy is removed when the source closes.
func (o *Opener) OpenClip(ctx context.Context, clip *matchup.StoredClip, fps float64) (matchup.VideoSource, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("fps must be positive, got %v", fps)
	}
	if err := os.MkdirAll(o.settings.ScratchDir, 0755); err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	f, err := os.CreateTemp(o.settings.ScratchDir, "clip-*"+matchup.ClipExtension(clip.MimeType))
	if err != nil {
		return nil, fmt.Errorf("creating scratch file: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(clip.Data); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("writing scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("closing scratch file: %w", err)
	}

	cleanup := func() error {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	return newSource(o.settings, path, fps, cleanup), nil
}

var _ matchup.SourceOpener = (*Opener)(nil)

// Source decodes single frames on demand with one ffmpeg run per seek, and
// streams full playback through a long-running ffmpeg.
type Source struct {
	settings Settings
	path     string
	fps      float64
	cleanup  func() error

	life   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	info   *matchup.SourceInfo
	job    *decodeJob
	closed bool
}

type decodeJob struct {
	frame  int
	cancel context.CancelFunc
	done   chan struct{}
	img    *image.RGBA
	err    error
}

func newSource(settings Settings, path string, fps float64, cleanup func() error) *Source {
	life, cancel := context.WithCancel(context.Background())
	return &Source{
		settings: settings,
		path:     path,
		fps:      fps,
		cleanup:  cleanup,
		life:     life,
		cancel:   cancel,
	}
}

func (s *Source) LoadMetadata(ctx context.Context) (matchup.SourceInfo, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return matchup.SourceInfo{}, fmt.Errorf("source is closed")
	}
	if s.info != nil {
		info := *s.info
		s.mu.Unlock()
		return info, nil
	}
	s.mu.Unlock()

	info, err := probe(ctx, s.path, s.settings.ProbeTimeout)
	if err != nil {
		return matchup.SourceInfo{}, err
	}
	if info.Width <= 0 || info.Height <= 0 {
		return matchup.SourceInfo{}, fmt.Errorf("probe reported no dimensions for %s", s.path)
	}
	// Without a frame count the tag rate decides how many frames exist.
	if info.FrameCount == 0 && info.DurationSeconds > 0 {
		info.FrameCount, _ = matchup.FrameCount(info.DurationSeconds, s.fps)
	}

	s.mu.Lock()
	s.info = &info
	s.mu.Unlock()
	return info, nil
}

// Seek starts decoding the frame presented at seconds and returns at once.
// A newer seek cancels one still in flight.
func (s *Source) Seek(ctx context.Context, seconds float64) error {
	frame, err := matchup.TimeToFrame(seconds, s.fps)
	if err != nil {
		return err
	}
	info, err := s.LoadMetadata(ctx)
	if err != nil {
		return err
	}
	if info.FrameCount > 0 && frame >= info.FrameCount {
		frame = info.FrameCount - 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("seek on closed source")
	}
	if s.job != nil {
		s.job.cancel()
	}

	jobCtx, cancel := context.WithCancel(s.life)
	job := &decodeJob{frame: frame, cancel: cancel, done: make(chan struct{})}
	s.job = job
	go func() {
		defer close(job.done)
		defer cancel()
		job.img, job.err = s.decodeFrame(jobCtx, frame, info.Width, info.Height)
	}()
	return nil
}

// Decoded reports whether the last seek has finished, successfully or not.
// A failed decode surfaces from Frame.
func (s *Source) Decoded() bool {
	s.mu.Lock()
	job := s.job
	s.mu.Unlock()
	if job == nil {
		return false
	}
	select {
	case <-job.done:
		return true
	default:
		return false
	}
}

func (s *Source) Frame() (image.Image, error) {
	s.mu.Lock()
	job := s.job
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("source is closed")
	}
	if job == nil {
		return nil, fmt.Errorf("no frame presented")
	}
	select {
	case <-job.done:
	default:
		return nil, fmt.Errorf("frame %d is still decoding", job.frame)
	}
	if job.err != nil {
		return nil, job.err
	}
	out := image.NewRGBA(job.img.Rect)
	copy(out.Pix, job.img.Pix)
	return out, nil
}

func (s *Source) decodeFrame(ctx context.Context, frame, w, h int) (*image.RGBA, error) {
	var stdout bytes.Buffer
	stderr := newStderrTail()
	cmd := exec.CommandContext(ctx, s.settings.FFmpegPath, frameArgs(s.path, frame, s.fps)...)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, commandError(fmt.Sprintf("decoding frame %d", frame), err, stderr)
	}

	size := w * h * 4
	if stdout.Len() < size {
		return nil, fmt.Errorf("decoding frame %d: got %d bytes, want %d", frame, stdout.Len(), size)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	copy(img.Pix, stdout.Bytes()[:size])
	return img, nil
}

// Play streams every frame of the source paced at rate times real time.
func (s *Source) Play(ctx context.Context, rate float64) (<-chan matchup.PresentedFrame, func() error, error) {
	if rate <= 0 {
		rate = 1
	}
	info, err := s.LoadMetadata(ctx)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, fmt.Errorf("play on closed source")
	}
	playCtx, cancel := context.WithCancel(s.life)
	s.mu.Unlock()
	stop := context.AfterFunc(ctx, cancel)

	stderr := newStderrTail()
	cmd := exec.CommandContext(playCtx, s.settings.FFmpegPath, playArgs(s.path, rate)...)
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stop()
		cancel()
		return nil, nil, fmt.Errorf("creating playback pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		stop()
		cancel()
		return nil, nil, fmt.Errorf("starting playback: %w", err)
	}

	ch := make(chan matchup.PresentedFrame)
	done := make(chan struct{})
	var playErr error

	go func() {
		defer close(done)
		defer close(ch)
		defer stop()
		defer cancel()

		size := info.Width * info.Height * 4
		for n := 0; ; n++ {
			img := image.NewRGBA(image.Rect(0, 0, info.Width, info.Height))
			if _, err := io.ReadFull(stdout, img.Pix[:size]); err != nil {
				werr := cmd.Wait()
				switch {
				case ctx.Err() != nil:
					playErr = ctx.Err()
				case errors.Is(err, io.EOF):
					if werr != nil {
						playErr = commandError("playback", werr, stderr)
					}
				default:
					playErr = commandError("playback", errors.Join(err, werr), stderr)
				}
				return
			}

			at := matchup.FramesToSeconds(n, s.fps)
			idx, _ := matchup.TimeToFrame(at, s.fps)
			f := matchup.PresentedFrame{Index: matchup.ClipFrame(idx), Time: at, Image: img}
			select {
			case <-playCtx.Done():
				cmd.Wait()
				playErr = ctx.Err()
				if playErr == nil {
					playErr = playCtx.Err()
				}
				return
			case ch <- f:
			}
		}
	}()

	wait := func() error {
		<-done
		return playErr
	}
	return ch, wait, nil
}

// Close cancels in-flight decodes and removes any scratch copy.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	job := s.job
	s.mu.Unlock()

	s.cancel()
	if job != nil {
		<-job.done
	}
	if s.cleanup != nil {
		if err := s.cleanup(); err != nil {
			return fmt.Errorf("removing scratch copy: %w", err)
		}
	}
	return nil
}

var _ matchup.VideoSource = (*Source)(nil)

// frameArgs decodes exactly one frame. Seeking half a frame early makes the
// first frame at or after the seek point the requested one.
func frameArgs(path string, frame int, fps float64) []string {
	ss := max(0, (float64(frame)-0.5)/fps)
	return ffmpeg.Input(path, ffmpeg.KwArgs{"ss": formatFloat(ss), "loglevel": "error"}).
		Output("pipe:", ffmpeg.KwArgs{"frames:v": "1", "f": "rawvideo", "pix_fmt": "rgba"}).
		GetArgs()
}

// playArgs streams every decoded frame without duplication or drops.
func playArgs(path string, rate float64) []string {
	return ffmpeg.Input(path, ffmpeg.KwArgs{"readrate": formatFloat(rate), "loglevel": "error"}).
		Output("pipe:", ffmpeg.KwArgs{"f": "rawvideo", "pix_fmt": "rgba", "fps_mode": "passthrough"}).
		GetArgs()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// scratchPath is where an encoder writes before the clip is read back.
func scratchPath(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating scratch directory: %w", err)
	}
	f, err := os.CreateTemp(dir, "encode-*.mp4")
	if err != nil {
		return "", fmt.Errorf("creating scratch file: %w", err)
	}
	name := f.Name()
	f.Close()
	return filepath.Clean(name), nil
}
