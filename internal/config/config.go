package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for matchup.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	LogLevel   string           `toml:"log_level"` // debug, info, warn or error
	Render     RenderConfig     `toml:"render"`
	Media      MediaConfig      `toml:"media"`
	Store      StoreConfig      `toml:"store"`
	Database   DatabaseConfig   `toml:"database"`
	Encryption EncryptionConfig `toml:"encryption"`
	Server     ServerConfig     `toml:"server"`
}

// Duration is a time.Duration that reads and writes as a string like "250ms".
type Duration struct {
	time.Duration
}

// D wraps d as a Duration.
func D(d time.Duration) Duration { return Duration{d} }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// RenderConfig holds trim and composite settings.
type RenderConfig struct {
	FPS                float64  `toml:"fps"`
	FlashFrames        int      `toml:"flash_frames"`
	MaxWidth           int      `toml:"max_width"`
	Gap                int      `toml:"gap"`
	SeekTimeout        Duration `toml:"seek_timeout"`
	PollInterval       Duration `toml:"poll_interval"`
	DrainGrace         Duration `toml:"drain_grace"`
	MinOutputBytes     int      `toml:"min_output_bytes"`
	TitleHoldFrames    int      `toml:"title_hold_frames"`
	TrailingHoldFrames int      `toml:"trailing_hold_frames"`
	ReplayRate         float64  `toml:"replay_rate"` // 0 disables the slow-motion replay
	FrameCounter       bool     `toml:"frame_counter"`
	PitchLeadFrames    int      `toml:"pitch_lead_frames"`
	PitchTailFrames    int      `toml:"pitch_tail_frames"`
	CaptureMode        string   `toml:"capture_mode"` // "stepped" (default) or "playback"
	PlaybackRate       float64  `toml:"playback_rate"`
}

// MediaConfig selects the video backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type MediaConfig struct {
	Type       string `toml:"type"`                  // "ffmpeg" or "gif"
	FFmpegPath string `toml:"ffmpeg_path,omitempty"` // only used for type=ffmpeg; ffprobe is found on PATH
	Codec      string `toml:"codec,omitempty"`       // only used for type=ffmpeg, default libx264
	ScratchDir string `toml:"scratch_dir,omitempty"`
	Paced      bool   `toml:"paced,omitempty"` // only used for type=gif: play back in real time
}

// StoreConfig represents configuration for the clip store backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type string `toml:"type"` // "memory", "filesystem", or "s3"

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// SweepGrace protects clips younger than this from the orphan sweep.
	SweepGrace Duration `toml:"sweep_grace"`
}

// DatabaseConfig represents configuration for the entity registry.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// EncryptionConfig holds paths to the age key pair used to encrypt stored clips.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// ServerConfig holds settings for the clip playback server.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// NewConfig creates a new Config rooted at baseDir with default settings.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		Render:   DefaultRenderConfig(),
		Media: MediaConfig{
			Type:       "ffmpeg",
			ScratchDir: filepath.Join(baseDir, "scratch"),
		},
		Store: StoreConfig{
			Type:   "filesystem",
			FSRoot:     filepath.Join(baseDir, "clips"),
			SweepGrace: D(10 * time.Minute),
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "matchup.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "matchup.key"),
		},
		Server: ServerConfig{Addr: "127.0.0.1:8790"},
	}
}

// DefaultRenderConfig returns the standard render settings.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		FPS:                30,
		FlashFrames:        3,
		MaxWidth:           1280,
		Gap:                8,
		SeekTimeout:        D(1500 * time.Millisecond),
		PollInterval:       D(5 * time.Millisecond),
		DrainGrace:         D(250 * time.Millisecond),
		MinOutputBytes:     1024,
		TrailingHoldFrames: 6,
		PitchLeadFrames:    45,
		PitchTailFrames:    15,
		CaptureMode:        "stepped",
		PlaybackRate:       1,
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader. Render settings that are
// absent keep their defaults.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	cfg := Config{Render: DefaultRenderConfig()}
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to a new config file at path. It refuses to overwrite.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
