package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration returns the duration value of the environment variable named
// by key. Plain integers are read as milliseconds ("1250"); anything else goes
// through time.ParseDuration ("1.25s"). Invalid values yield fallback.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Millisecond
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return fallback
}

// Defaults for the presentation timings, in the units the coaching engine
// assumes (milliseconds).
const (
	DefaultAudioDelay      = 1250 * time.Millisecond
	DefaultOverlayDuration = 2500 * time.Millisecond
	DefaultProgressDelay   = 1000 * time.Millisecond
)

// Config is the complete client configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Status  StatusConfig  `yaml:"status"`
	Media   MediaConfig   `yaml:"media"`
	Overlay OverlayConfig `yaml:"overlay"`
	Timings TimingsConfig `yaml:"timings"`
	Journal JournalConfig `yaml:"journal"`
	Log     LogConfig     `yaml:"log"`
}

type SourceConfig struct {
	URL               string        `yaml:"url"`
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
}

type StatusConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type MediaConfig struct {
	AssetsDir string `yaml:"assets_dir"`
	// PlayerCommand is a command template such as "mpv --no-terminal {src}".
	// Empty selects the log-only player.
	PlayerCommand string `yaml:"player_command"`
}

type OverlayConfig struct {
	Width       int `yaml:"width"`
	Height      int `yaml:"height"`
	RefreshRate int `yaml:"refresh_rate"`
}

type TimingsConfig struct {
	AudioDelay      time.Duration `yaml:"audio_delay"`
	OverlayDuration time.Duration `yaml:"overlay_duration"`
	ProgressDelay   time.Duration `yaml:"progress_delay"`
}

type JournalConfig struct {
	// Path of the SQLite journal. Empty keeps the journal in memory.
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			URL:               "ws://127.0.0.1:9090",
			ReconnectAttempts: 5,
			ReconnectDelay:    2 * time.Second,
		},
		Status:  StatusConfig{Addr: ":8080", AllowedOrigins: []string{"*"}},
		Media:   MediaConfig{AssetsDir: "."},
		Overlay: OverlayConfig{Width: 1280, Height: 720, RefreshRate: 60},
		Timings: TimingsConfig{
			AudioDelay:      DefaultAudioDelay,
			OverlayDuration: DefaultOverlayDuration,
			ProgressDelay:   DefaultProgressDelay,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// LoadFile builds a Config from defaults, then the YAML file at path (if path
// is non-empty), then COACH_* environment variable overrides:
//
//	COACH_SOURCE_URL, COACH_RECONNECT_ATTEMPTS, COACH_RECONNECT_DELAY,
//	COACH_STATUS_ADDR, COACH_ASSETS_DIR, COACH_PLAYER_CMD,
//	COACH_SURFACE_WIDTH, COACH_SURFACE_HEIGHT, COACH_REFRESH_RATE,
//	COACH_AUDIO_DELAY, COACH_OVERLAY_DURATION, COACH_PROGRESS_DELAY,
//	COACH_JOURNAL_PATH, LOG_LEVEL, LOG_FORMAT
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Source.URL = GetEnv("COACH_SOURCE_URL", cfg.Source.URL)
	cfg.Source.ReconnectAttempts = GetEnvInt("COACH_RECONNECT_ATTEMPTS", cfg.Source.ReconnectAttempts)
	cfg.Source.ReconnectDelay = GetEnvDuration("COACH_RECONNECT_DELAY", cfg.Source.ReconnectDelay)

	cfg.Status.Addr = GetEnv("COACH_STATUS_ADDR", cfg.Status.Addr)
	if v := os.Getenv("COACH_ALLOWED_ORIGINS"); v != "" {
		cfg.Status.AllowedOrigins = strings.Split(v, ",")
	}

	cfg.Media.AssetsDir = GetEnv("COACH_ASSETS_DIR", cfg.Media.AssetsDir)
	cfg.Media.PlayerCommand = GetEnv("COACH_PLAYER_CMD", cfg.Media.PlayerCommand)

	cfg.Overlay.Width = GetEnvInt("COACH_SURFACE_WIDTH", cfg.Overlay.Width)
	cfg.Overlay.Height = GetEnvInt("COACH_SURFACE_HEIGHT", cfg.Overlay.Height)
	cfg.Overlay.RefreshRate = GetEnvInt("COACH_REFRESH_RATE", cfg.Overlay.RefreshRate)

	cfg.Timings.AudioDelay = GetEnvDuration("COACH_AUDIO_DELAY", cfg.Timings.AudioDelay)
	cfg.Timings.OverlayDuration = GetEnvDuration("COACH_OVERLAY_DURATION", cfg.Timings.OverlayDuration)
	cfg.Timings.ProgressDelay = GetEnvDuration("COACH_PROGRESS_DELAY", cfg.Timings.ProgressDelay)

	cfg.Journal.Path = GetEnv("COACH_JOURNAL_PATH", cfg.Journal.Path)

	cfg.Log.Level = GetEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = GetEnv("LOG_FORMAT", cfg.Log.Format)
}

func (c *Config) validate() error {
	if c.Source.URL == "" {
		return fmt.Errorf("source.url is required")
	}
	if c.Overlay.Width <= 0 || c.Overlay.Height <= 0 {
		return fmt.Errorf("overlay surface must be positive, got %dx%d", c.Overlay.Width, c.Overlay.Height)
	}
	if c.Overlay.RefreshRate <= 0 {
		return fmt.Errorf("overlay.refresh_rate must be positive")
	}
	if c.Timings.AudioDelay < 0 || c.Timings.OverlayDuration < 0 || c.Timings.ProgressDelay < 0 {
		return fmt.Errorf("timings must not be negative")
	}
	if c.Source.ReconnectAttempts < 0 {
		return fmt.Errorf("source.reconnect_attempts must not be negative")
	}
	return nil
}
