package testutil

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"matchup-go/internal/matchup"
)

// RecordingMimeType marks clips produced by RecordingEncoder.
const RecordingMimeType = "application/x-matchup-recording"

var recordingMagic = []byte("MUREC001")

// RecordingEncoder keeps a copy of every frame written and encodes each as
// its center pixel, so FakeOpener can play the result back.
type RecordingEncoder struct {
	mu sync.Mutex

	// EmptyOutput makes Close return zero bytes.
	EmptyOutput bool
	// FailAfter fails the write of frame N (1-based). 0 disables.
	FailAfter int

	opts    matchup.EncoderOptions
	frames  []*image.RGBA
	opened  bool
	closed  bool
	aborted bool
}

func NewRecordingEncoder() *RecordingEncoder { return &RecordingEncoder{} }

func (e *RecordingEncoder) Open(ctx context.Context, opts matchup.EncoderOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.opened {
		return fmt.Errorf("encoder already opened")
	}
	e.opts = opts
	e.opened = true
	return nil
}

func (e *RecordingEncoder) WriteFrame(img image.Image) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.opened || e.closed || e.aborted {
		return fmt.Errorf("write on encoder that is not open")
	}
	if b := img.Bounds(); b.Dx() != e.opts.Width || b.Dy() != e.opts.Height {
		return fmt.Errorf("frame is %dx%d, encoder expects %dx%d", b.Dx(), b.Dy(), e.opts.Width, e.opts.Height)
	}
	if e.FailAfter > 0 && len(e.frames)+1 >= e.FailAfter {
		return fmt.Errorf("injected write failure at frame %d", len(e.frames)+1)
	}
	cp := image.NewRGBA(image.Rect(0, 0, e.opts.Width, e.opts.Height))
	draw.Draw(cp, cp.Bounds(), img, img.Bounds().Min, draw.Src)
	e.frames = append(e.frames, cp)
	return nil
}

func (e *RecordingEncoder) Close(ctx context.Context) (*matchup.EncodedClip, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.opened || e.closed || e.aborted {
		return nil, fmt.Errorf("close on encoder that is not open")
	}
	e.closed = true
	clip := &matchup.EncodedClip{
		MimeType: RecordingMimeType,
		Width:    e.opts.Width,
		Height:   e.opts.Height,
		FPS:      e.opts.FPS,
		Frames:   len(e.frames),
	}
	if !e.EmptyOutput {
		clip.Data = encodeRecording(e.opts.Width, e.opts.Height, e.frames)
	}
	return clip, nil
}

func (e *RecordingEncoder) Abort() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.aborted = true
	return nil
}

// Frames returns the frames written so far.
func (e *RecordingEncoder) Frames() []*image.RGBA {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*image.RGBA(nil), e.frames...)
}

// Closed reports whether Close finalised the encoder.
func (e *RecordingEncoder) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Aborted reports whether Abort was called.
func (e *RecordingEncoder) Aborted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.aborted
}

var _ matchup.Encoder = (*RecordingEncoder)(nil)

// RecordingEncoderFactory hands out RecordingEncoders and remembers them.
type RecordingEncoderFactory struct {
	mu       sync.Mutex
	encoders []*RecordingEncoder
	// Configure, if set, adjusts each new encoder.
	Configure func(*RecordingEncoder)
}

func NewRecordingEncoderFactory() *RecordingEncoderFactory {
	return &RecordingEncoderFactory{}
}

func (f *RecordingEncoderFactory) NewEncoder() matchup.Encoder {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := NewRecordingEncoder()
	if f.Configure != nil {
		f.Configure(e)
	}
	f.encoders = append(f.encoders, e)
	return e
}

// Encoders returns every encoder handed out, oldest first.
func (f *RecordingEncoderFactory) Encoders() []*RecordingEncoder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*RecordingEncoder(nil), f.encoders...)
}

// Last returns the most recent encoder, or nil.
func (f *RecordingEncoderFactory) Last() *RecordingEncoder {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.encoders) == 0 {
		return nil
	}
	return f.encoders[len(f.encoders)-1]
}

func encodeRecording(w, h int, frames []*image.RGBA) []byte {
	var buf bytes.Buffer
	buf.Write(recordingMagic)
	binary.Write(&buf, binary.BigEndian, [3]uint32{uint32(w), uint32(h), uint32(len(frames))})
	for _, f := range frames {
		c := f.RGBAAt(w/2, h/2)
		buf.Write([]byte{c.R, c.G, c.B, c.A})
	}
	return buf.Bytes()
}

// DecodeRecording turns RecordingEncoder output back into a FakeSource.
func DecodeRecording(data []byte, fps float64) (*FakeSource, error) {
	if !bytes.HasPrefix(data, recordingMagic) {
		return nil, fmt.Errorf("not a recording")
	}
	r := bytes.NewReader(data[len(recordingMagic):])
	var hdr [3]uint32
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("reading recording header: %w", err)
	}
	n := int(hdr[2])
	if r.Len() != 4*n {
		return nil, fmt.Errorf("recording has %d bytes of frames, want %d", r.Len(), 4*n)
	}
	src := NewFakeSource(0, int(hdr[0]), int(hdr[1]), fps, 0)
	src.Colors = make([]color.RGBA, n)
	for i := range src.Colors {
		var px [4]byte
		if _, err := r.Read(px[:]); err != nil {
			return nil, fmt.Errorf("reading frame %d: %w", i, err)
		}
		src.Colors[i] = color.RGBA{R: px[0], G: px[1], B: px[2], A: px[3]}
	}
	return src, nil
}
