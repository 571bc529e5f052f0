package matchup

import (
	"context"
	"image"
)

// SourceInfo describes a loaded video.
type SourceInfo struct {
	Width           int
	Height          int
	DurationSeconds float64
	FPS             float64 // 0 when the container does not report a rate
	FrameCount      int
}

// PresentedFrame is one frame delivered by a source in playback mode.
type PresentedFrame struct {
	Index ClipFrame // derived from the presentation timestamp by TimeToFrame
	Time  float64
	Image image.Image
}

// VideoSource is a seekable decoded video. Implementations are not safe for
// concurrent use; one capture drives one source.
type VideoSource interface {
	// LoadMetadata blocks until dimensions and duration are known.
	LoadMetadata(ctx context.Context) (SourceInfo, error)

	// Seek positions the source at seconds. Returning nil means the seek was
	// accepted, not that the target frame is decoded.
	Seek(ctx context.Context, seconds float64) error

	// Decoded reports whether pixels for the last seek target are available.
	Decoded() bool

	// Frame returns the currently presented frame. The returned image is owned
	// by the caller.
	Frame() (image.Image, error)

	// Play streams frames in presentation order at rate times real time. The
	// channel closes at natural end of stream or when ctx is done; the error
	// func reports why playback stopped once the channel is closed.
	Play(ctx context.Context, rate float64) (<-chan PresentedFrame, func() error, error)

	// Close releases decoder state: temp files, subprocesses, buffers.
	Close() error
}

// SourceOpener materialises videos as sources.
type SourceOpener interface {
	// OpenFile opens a raw upload on disk.
	OpenFile(ctx context.Context, path string, fps float64) (VideoSource, error)

	// OpenClip opens stored clip bytes. Any scratch copy is released on Close.
	OpenClip(ctx context.Context, clip *StoredClip, fps float64) (VideoSource, error)
}

// EncoderOptions configures an encoder before the first frame.
type EncoderOptions struct {
	Width  int
	Height int
	FPS    float64
}

// Encoder is an append-only, single-writer sink. Every Open must be followed
// by exactly one Close or Abort; writes after either fail.
type Encoder interface {
	Open(ctx context.Context, opts EncoderOptions) error
	WriteFrame(img image.Image) error
	Close(ctx context.Context) (*EncodedClip, error)
	Abort() error
}

// EncoderFactory hands out a fresh Encoder per operation.
type EncoderFactory interface {
	NewEncoder() Encoder
}

// EncoderFactoryFunc adapts a function to EncoderFactory.
type EncoderFactoryFunc func() Encoder

func (f EncoderFactoryFunc) NewEncoder() Encoder { return f() }
