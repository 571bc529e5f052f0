// Package ffmpeg is the production media backend. Sources decode through
// ffmpeg subprocesses writing raw RGBA to a pipe; encoders pipe raw RGBA into
// ffmpeg and collect an MP4.
package ffmpeg

import (
	"bytes"
	"fmt"
	"os/exec"
)

const InstallURL = "https://ffmpeg.org/download.html"

// DependencyError reports a binary missing from PATH.
type DependencyError struct {
	Name       string
	InstallURL string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s not found. Install from: %s", e.Name, e.InstallURL)
}

// CheckBinaries verifies that ffmpeg and ffprobe can be executed.
func CheckBinaries(ffmpegPath string) error {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	for _, name := range []string{ffmpegPath, "ffprobe"} {
		if _, err := exec.LookPath(name); err != nil {
			return &DependencyError{Name: name, InstallURL: InstallURL}
		}
	}
	return nil
}

const maxStderrBytes = 4096

// limitedWriter is an io.Writer that keeps only the last limit bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func newStderrTail() *limitedWriter {
	return &limitedWriter{w: &bytes.Buffer{}, limit: maxStderrBytes}
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}

func (lw *limitedWriter) String() string {
	return string(bytes.TrimSpace(lw.w.Bytes()))
}

// commandError wraps a failed subprocess with its stderr tail.
func commandError(what string, err error, stderr *limitedWriter) error {
	if tail := stderr.String(); tail != "" {
		return fmt.Errorf("%s: %w: %s", what, err, tail)
	}
	return fmt.Errorf("%s: %w", what, err)
}
