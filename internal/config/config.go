// Package config provides configuration management for the Hashreel Agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort        = 8790
	DefaultLogLevel    = "info"
	DefaultDataDir     = ".hashreel"
	DefaultCropPercent = 2.0
	DefaultMirror      = true

	// Environment variable names
	EnvPort     = "HASHREEL_PORT"
	EnvLogLevel = "HASHREEL_LOG_LEVEL"
	EnvDataDir  = "HASHREEL_DATA_DIR"

	// Transform environment variable names
	EnvCropPercent = "HASHREEL_CROP_PERCENT"
	EnvMirror      = "HASHREEL_MIRROR"

	// External tool environment variable names
	EnvFetcherPath = "HASHREEL_YTDLP_PATH"
	EnvEncoderPath = "HASHREEL_FFMPEG_PATH"
	EnvProberPath  = "HASHREEL_FFPROBE_PATH"

	// Discovery environment variable names
	EnvScrollAttempts  = "HASHREEL_SCROLL_ATTEMPTS"
	EnvScrollPauseSecs = "HASHREEL_SCROLL_PAUSE_SECS"
	EnvBrowserHeadless = "HASHREEL_BROWSER_HEADLESS"

	// Ledger filename
	LedgerFilename = "processed_videos.txt"

	// Database filename
	DBFilename = "hashreel.db"

	// Discovery defaults
	DefaultScrollAttempts  = 5
	DefaultScrollPauseSecs = 3
	DefaultPageWaitSecs    = 45

	// External tool defaults
	DefaultFetcherPath = "yt-dlp"
	DefaultEncoderPath = "ffmpeg"
	DefaultProberPath  = "ffprobe"

	// External tool timeouts (seconds)
	DefaultFetchTimeout    = 120
	DefaultVerifyTimeout   = 30
	DefaultGeometryTimeout = 10
	DefaultEncodeTimeout   = 120
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	LedgerPath() string
	VideosDir() string
	OutputDir() string

	CropPercent() float64
	Mirror() bool

	FetcherPath() string
	EncoderPath() string
	ProberPath() string

	ScrollAttempts() int
	ScrollPause() time.Duration
	PageWait() time.Duration
	BrowserHeadless() bool

	FetchTimeout() time.Duration
	VerifyTimeout() time.Duration
	GeometryTimeout() time.Duration
	EncodeTimeout() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string

	cropPercent float64
	mirror      bool

	fetcherPath string
	encoderPath string
	proberPath  string

	scrollAttempts  int
	scrollPauseSecs int
	browserHeadless bool
}

// New creates a new EnvConfig with defaults and environment variable overrides.
// Out-of-range values are rejected here rather than deep in the pipeline.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:            DefaultPort,
		logLevel:        DefaultLogLevel,
		dataDir:         defaultDataDir(),
		cropPercent:     DefaultCropPercent,
		mirror:          DefaultMirror,
		fetcherPath:     DefaultFetcherPath,
		encoderPath:     DefaultEncoderPath,
		proberPath:      DefaultProberPath,
		scrollAttempts:  DefaultScrollAttempts,
		scrollPauseSecs: DefaultScrollPauseSecs,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if cp := os.Getenv(EnvCropPercent); cp != "" {
		percent, err := strconv.ParseFloat(cp, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvCropPercent, err)
		}
		if percent < 0 || percent >= 50 {
			return nil, fmt.Errorf("invalid %s: crop percent must be in [0, 50)", EnvCropPercent)
		}
		cfg.cropPercent = percent
	}

	if m := os.Getenv(EnvMirror); m != "" {
		mirror, err := strconv.ParseBool(m)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvMirror, err)
		}
		cfg.mirror = mirror
	}

	if fp := os.Getenv(EnvFetcherPath); fp != "" {
		cfg.fetcherPath = fp
	}
	if ep := os.Getenv(EnvEncoderPath); ep != "" {
		cfg.encoderPath = ep
	}
	if pp := os.Getenv(EnvProberPath); pp != "" {
		cfg.proberPath = pp
	}

	if sa := os.Getenv(EnvScrollAttempts); sa != "" {
		attempts, err := strconv.Atoi(sa)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvScrollAttempts, err)
		}
		if attempts < 1 {
			return nil, fmt.Errorf("invalid %s: scroll attempts must be positive", EnvScrollAttempts)
		}
		cfg.scrollAttempts = attempts
	}

	if sp := os.Getenv(EnvScrollPauseSecs); sp != "" {
		pause, err := strconv.Atoi(sp)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvScrollPauseSecs, err)
		}
		if pause < 0 {
			return nil, fmt.Errorf("invalid %s: scroll pause must not be negative", EnvScrollPauseSecs)
		}
		cfg.scrollPauseSecs = pause
	}

	if bh := os.Getenv(EnvBrowserHeadless); bh != "" {
		headless, err := strconv.ParseBool(bh)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvBrowserHeadless, err)
		}
		cfg.browserHeadless = headless
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite run-history database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// LedgerPath returns the full path to the processed-ID ledger file
func (c *EnvConfig) LedgerPath() string {
	return filepath.Join(c.dataDir, LedgerFilename)
}

// VideosDir returns the directory downloaded videos are written to
func (c *EnvConfig) VideosDir() string {
	return filepath.Join(c.dataDir, "videos")
}

// OutputDir returns the directory transformed videos are written to
func (c *EnvConfig) OutputDir() string {
	return filepath.Join(c.dataDir, "edited")
}

// CropPercent returns the border crop percentage in [0, 50)
func (c *EnvConfig) CropPercent() float64 {
	return c.cropPercent
}

// Mirror reports whether the horizontal flip is applied
func (c *EnvConfig) Mirror() bool {
	return c.mirror
}

func (c *EnvConfig) FetcherPath() string {
	return c.fetcherPath
}

func (c *EnvConfig) EncoderPath() string {
	return c.encoderPath
}

func (c *EnvConfig) ProberPath() string {
	return c.proberPath
}

func (c *EnvConfig) ScrollAttempts() int {
	return c.scrollAttempts
}

func (c *EnvConfig) ScrollPause() time.Duration {
	return time.Duration(c.scrollPauseSecs) * time.Second
}

func (c *EnvConfig) PageWait() time.Duration {
	return DefaultPageWaitSecs * time.Second
}

func (c *EnvConfig) BrowserHeadless() bool {
	return c.browserHeadless
}

func (c *EnvConfig) FetchTimeout() time.Duration {
	return DefaultFetchTimeout * time.Second
}

func (c *EnvConfig) VerifyTimeout() time.Duration {
	return DefaultVerifyTimeout * time.Second
}

func (c *EnvConfig) GeometryTimeout() time.Duration {
	return DefaultGeometryTimeout * time.Second
}

func (c *EnvConfig) EncodeTimeout() time.Duration {
	return DefaultEncodeTimeout * time.Second
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
