package ffmpeg

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"golang.org/x/image/draw"

	"matchup-go/internal/matchup"
)

// MimeType is the mime type of clips this backend encodes.
const MimeType = "video/mp4"

// NewEncoderFactory returns an EncoderFactory handing out ffmpeg encoders.
func NewEncoderFactory(settings Settings) matchup.EncoderFactory {
	settings = settings.withDefaults()
	return matchup.EncoderFactoryFunc(func() matchup.Encoder { return NewEncoder(settings) })
}

// Encoder pipes raw RGBA frames into an ffmpeg process writing an MP4 to a
// scratch file.
type Encoder struct {
	settings Settings

	mu     sync.Mutex
	opts   matchup.EncoderOptions
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *limitedWriter
	out    string
	buf    *image.RGBA
	frames int
	state  encoderState
}

type encoderState int

const (
	encoderNew encoderState = iota
	encoderOpen
	encoderDone
)

// NewEncoder creates an unopened Encoder.
func NewEncoder(settings Settings) *Encoder {
	return &Encoder{settings: settings.withDefaults()}
}

// Open starts ffmpeg. The process lives until Close or Abort, or until ctx
// is done.
func (e *Encoder) Open(ctx context.Context, opts matchup.EncoderOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != encoderNew {
		return fmt.Errorf("encoder already opened")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return fmt.Errorf("invalid encoder size %dx%d", opts.Width, opts.Height)
	}
	if opts.FPS <= 0 {
		return fmt.Errorf("invalid encoder fps %v", opts.FPS)
	}

	out, err := scratchPath(e.settings.ScratchDir)
	if err != nil {
		return err
	}

	e.stderr = newStderrTail()
	cmd := exec.CommandContext(ctx, e.settings.FFmpegPath, encodeArgs(out, opts, e.settings.Codec)...)
	cmd.Stderr = e.stderr
	cmd.Stdout = io.Discard
	stdin, err := cmd.StdinPipe()
	if err != nil {
		os.Remove(out)
		return fmt.Errorf("creating encoder pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		os.Remove(out)
		if _, lookErr := exec.LookPath(e.settings.FFmpegPath); lookErr != nil {
			return &DependencyError{Name: e.settings.FFmpegPath, InstallURL: InstallURL}
		}
		return fmt.Errorf("starting encoder: %w", err)
	}

	e.opts = opts
	e.cmd = cmd
	e.stdin = stdin
	e.out = out
	e.buf = image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	e.state = encoderOpen
	return nil
}

// WriteFrame sends one frame. Frames of another size are scaled to the
// encoder canvas.
func (e *Encoder) WriteFrame(img image.Image) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != encoderOpen {
		return fmt.Errorf("write on encoder that is not open")
	}

	rect := e.buf.Rect
	if img.Bounds().Size() == rect.Size() {
		draw.Draw(e.buf, rect, img, img.Bounds().Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(e.buf, rect, img, img.Bounds(), draw.Src, nil)
	}
	if _, err := e.stdin.Write(e.buf.Pix); err != nil {
		return commandError(fmt.Sprintf("writing frame %d", e.frames), err, e.stderr)
	}
	e.frames++
	return nil
}

// Close flushes ffmpeg and returns the finished MP4.
func (e *Encoder) Close(ctx context.Context) (*matchup.EncodedClip, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != encoderOpen {
		return nil, fmt.Errorf("close on encoder that is not open")
	}
	e.state = encoderDone
	defer os.Remove(e.out)

	if err := e.stdin.Close(); err != nil {
		e.cmd.Process.Kill()
		e.cmd.Wait()
		return nil, fmt.Errorf("closing encoder input: %w", err)
	}
	if err := e.cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, commandError("encoding", err, e.stderr)
	}

	data, err := os.ReadFile(e.out)
	if err != nil {
		return nil, fmt.Errorf("reading encoded clip: %w", err)
	}
	return &matchup.EncodedClip{
		Data:     data,
		MimeType: MimeType,
		Width:    evenUp(e.opts.Width),
		Height:   evenUp(e.opts.Height),
		FPS:      e.opts.FPS,
		Frames:   e.frames,
	}, nil
}

// Abort kills ffmpeg and discards its output.
func (e *Encoder) Abort() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != encoderOpen {
		e.state = encoderDone
		return nil
	}
	e.state = encoderDone
	e.stdin.Close()
	e.cmd.Process.Kill()
	e.cmd.Wait()
	if err := os.Remove(e.out); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing aborted output: %w", err)
	}
	return nil
}

var _ matchup.Encoder = (*Encoder)(nil)

// encodeArgs reads raw RGBA from stdin at the clip rate and writes a
// faststart MP4 with a constant frame rate.
func encodeArgs(out string, opts matchup.EncoderOptions, codec string) []string {
	rate := formatFloat(opts.FPS)
	output := ffmpeg.KwArgs{
		"c:v":      codec,
		"pix_fmt":  "yuv420p",
		"movflags": "+faststart",
		"r":        rate,
	}
	switch codec {
	case "libx264":
		output["preset"] = "veryfast"
		output["crf"] = "18"
	case "mpeg4":
		output["q:v"] = "2"
	}
	// yuv420p needs even dimensions. Odd sources get one black row or
	// column on the bottom or right edge.
	if opts.Width%2 != 0 || opts.Height%2 != 0 {
		output["vf"] = "pad=ceil(iw/2)*2:ceil(ih/2)*2"
	}
	return ffmpeg.Input("pipe:", ffmpeg.KwArgs{
		"f":        "rawvideo",
		"pix_fmt":  "rgba",
		"s":        fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"r":        rate,
		"loglevel": "error",
	}).Output(out, output).OverWriteOutput().GetArgs()
}

func evenUp(n int) int { return (n + 1) &^ 1 }
