// Package config loads go-movenet settings from YAML, the environment
// and command-line overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/teslashibe/go-movenet/pkg/camera"
	"github.com/teslashibe/go-movenet/pkg/tracking"
	"gopkg.in/yaml.v3"
)

// Environment overrides.
const (
	EnvPort     = "MOVENET_PORT"
	EnvLogLevel = "MOVENET_LOG_LEVEL"
	EnvModelDir = "MOVENET_MODEL_DIR"
	EnvCamera   = "CAMERA_DEVICE"
)

// Defaults.
const (
	DefaultPort          = 8073
	DefaultLogLevel      = "info"
	DefaultModelDir      = "models"
	DefaultFrameInterval = 16 * time.Millisecond
	DefaultPoseInterval  = 100 * time.Millisecond
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Model    ModelConfig    `yaml:"model"`
	Camera   camera.Config  `yaml:"camera"`
	Tracking TrackingConfig `yaml:"tracking"`
}

// ServerConfig configures the HTTP bridge.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	StaticDir    string        `yaml:"static_dir"`
	PoseInterval time.Duration `yaml:"pose_interval"` // e.g. "100ms"
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ModelConfig selects and tunes the MoveNet models. Empty file names keep
// the backend's defaults.
type ModelConfig struct {
	Dir           string `yaml:"dir"`
	LightningFile string `yaml:"lightning_file,omitempty"`
	ThunderFile   string `yaml:"thunder_file,omitempty"`
	LightningURL  string `yaml:"lightning_url,omitempty"` // Fetched when the file is missing
	ThunderURL    string `yaml:"thunder_url,omitempty"`
	Mirror        bool   `yaml:"mirror"`
	Backend       string `yaml:"backend"`
	Target        string `yaml:"target"`
	WarmupRuns    int    `yaml:"warmup_runs"`
}

// TrackingConfig configures the estimation loop.
type TrackingConfig struct {
	FrameInterval time.Duration `yaml:"frame_interval"` // 0 runs unpaced
	MinScore      float64       `yaml:"min_score"`
	Smoothing     bool          `yaml:"smoothing"` // Kalman-filter keypoint positions
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         DefaultPort,
			PoseInterval: DefaultPoseInterval,
		},
		Log: LogConfig{Level: DefaultLogLevel},
		Model: ModelConfig{
			Dir:        DefaultModelDir,
			Mirror:     true,
			Backend:    "default",
			Target:     "cpu",
			WarmupRuns: 1,
		},
		Camera: camera.DefaultConfig(),
		Tracking: TrackingConfig{
			FrameInterval: DefaultFrameInterval,
			MinScore:      tracking.DefaultMinScore,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. getenv is usually
// os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	var errs []error
	if v := getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvPort, err))
		} else {
			c.Server.Port = port
		}
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := getenv(EnvModelDir); v != "" {
		c.Model.Dir = v
	}
	if v := getenv(EnvCamera); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvCamera, err))
		} else {
			c.Camera.DeviceID = id
		}
	}
	return errors.Join(errs...)
}

// Validate checks every section. Returns a list of problems, or nil.
func (c *Config) Validate() []string {
	var problems []string

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 0 and 65535")
	}
	if c.Server.PoseInterval <= 0 {
		problems = append(problems, "server.pose_interval must be > 0")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level %q must be debug, info, warn or error", c.Log.Level))
	}
	if c.Model.Dir == "" {
		problems = append(problems, "model.dir is required")
	}
	if c.Model.WarmupRuns < 0 {
		problems = append(problems, "model.warmup_runs must be >= 0")
	}
	for _, p := range c.Camera.Validate() {
		problems = append(problems, "camera."+p)
	}
	if c.Tracking.FrameInterval < 0 {
		problems = append(problems, "tracking.frame_interval must be >= 0")
	}
	if c.Tracking.MinScore < 0 || c.Tracking.MinScore > 1 {
		problems = append(problems, "tracking.min_score must be between 0 and 1")
	}
	return problems
}

// Controller returns the tracking controller configuration.
func (c *Config) Controller() tracking.Config {
	return tracking.Config{
		FrameInterval: c.Tracking.FrameInterval,
		MinScore:      c.Tracking.MinScore,
	}
}
