package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"matchup-go/internal/matchup"
)

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NbFrames     string `json:"nb_frames"`
	Duration     string `json:"duration"`
}

// probe runs ffprobe on path and returns what it reports about the first
// video stream.
func probe(ctx context.Context, path string, timeout time.Duration) (matchup.SourceInfo, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return matchup.SourceInfo{}, context.DeadlineExceeded
	}

	out, err := ffmpeg.ProbeWithTimeout(path, timeout, ffmpeg.KwArgs{})
	if err != nil {
		return matchup.SourceInfo{}, fmt.Errorf("probing %s: %w", path, err)
	}
	return parseProbe([]byte(out))
}

// parseProbe extracts SourceInfo from ffprobe JSON. Stream values win over
// container values; an unreadable rate is reported as 0.
func parseProbe(data []byte) (matchup.SourceInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return matchup.SourceInfo{}, fmt.Errorf("decoding probe output: %w", err)
	}

	var video *probeStream
	for i := range out.Streams {
		if out.Streams[i].CodecType == "video" {
			video = &out.Streams[i]
			break
		}
	}
	if video == nil {
		return matchup.SourceInfo{}, fmt.Errorf("no video stream")
	}

	info := matchup.SourceInfo{Width: video.Width, Height: video.Height}
	info.FPS = parseRate(video.AvgFrameRate)
	if info.FPS == 0 {
		info.FPS = parseRate(video.RFrameRate)
	}

	info.DurationSeconds = parseSeconds(video.Duration)
	if info.DurationSeconds == 0 {
		info.DurationSeconds = parseSeconds(out.Format.Duration)
	}

	if n, err := strconv.Atoi(video.NbFrames); err == nil && n > 0 {
		info.FrameCount = n
	} else if info.FPS > 0 && info.DurationSeconds > 0 {
		info.FrameCount, _ = matchup.FrameCount(info.DurationSeconds, info.FPS)
	}
	return info, nil
}

// parseRate reads an ffprobe rational such as "30000/1001".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			return 0
		}
		return v
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 || n < 0 {
		return 0
	}
	return n / d
}

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
