// Package media builds the configured video backend.
package media

import (
	"fmt"

	"matchup-go/internal/config"
	"matchup-go/internal/matchup"
	"matchup-go/internal/media/ffmpeg"
	"matchup-go/internal/media/gifclip"
)

// Backend pairs a source opener with the encoders that write clips it can
// read back.
type Backend struct {
	Opener   matchup.SourceOpener
	Encoders matchup.EncoderFactory
	MimeType string
}

// NewBackendFromConfig creates the backend selected by cfg.Type.
func NewBackendFromConfig(cfg config.MediaConfig) (*Backend, error) {
	switch cfg.Type {
	case "", "ffmpeg":
		settings := ffmpeg.Settings{
			FFmpegPath: cfg.FFmpegPath,
			ScratchDir: cfg.ScratchDir,
			Codec:      cfg.Codec,
		}
		if err := ffmpeg.CheckBinaries(cfg.FFmpegPath); err != nil {
			return nil, err
		}
		return &Backend{
			Opener:   ffmpeg.NewOpener(settings),
			Encoders: ffmpeg.NewEncoderFactory(settings),
			MimeType: ffmpeg.MimeType,
		}, nil
	case "gif":
		return &Backend{
			Opener:   gifclip.NewOpener(cfg.Paced),
			Encoders: gifclip.Factory(),
			MimeType: gifclip.MimeType,
		}, nil
	default:
		return nil, fmt.Errorf("unknown media type: %s", cfg.Type)
	}
}
