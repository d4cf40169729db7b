package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed thresholds.yaml
var thresholdsYAML []byte

type Config struct {
	Camera     CameraConfig
	Recognizer RecognizerConfig
	Attendance AttendanceConfig
	Database   DatabaseConfig
	SIS        SISConfig
	Web        WebConfig
	Thresholds ThresholdsConfig
}

type CameraConfig struct {
	Device string // V4L2 device path (e.g., /dev/video0)
	Dir    string // directory of JPEG frames, used instead of a device when set
}

type RecognizerConfig struct {
	URL     string // face recognition server URL (defaults to http://localhost:8000)
	Model   string // model name, used to select a distance threshold
	Timeout time.Duration
}

type AttendanceConfig struct {
	Cooldown     time.Duration // minimum time between two marks for one person
	TickInterval time.Duration // camera sampling cadence
	OverlapMode  string        // "skip" or "queue" for ticks arriving while busy
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist sample HNSW index (optional, if empty index is rebuilt on startup)
}

type SISConfig struct {
	DatabaseURL string // MariaDB DSN of the school information system for roster import
}

type WebConfig struct {
	Username      string // admin username for the web UI
	Password      string // admin password for the web UI
	SessionSecret string // HMAC secret for session cookies
}

type ThresholdsConfig struct {
	Models map[string]ModelThresholds `yaml:"models"`
}

type ModelThresholds struct {
	Distance    float64 `yaml:"distance"`
	MinDetScore float64 `yaml:"min_det_score"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envDuration reads an environment variable and parses it as a duration.
// Returns the default value if the env var is unset, empty, or invalid.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func Load() *Config {
	var thresholds ThresholdsConfig
	if err := yaml.Unmarshal(thresholdsYAML, &thresholds); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded thresholds.yaml: " + err.Error())
	}

	overlap := os.Getenv("ATTENDANCE_OVERLAP_MODE")
	if overlap != "queue" {
		overlap = "skip"
	}

	return &Config{
		Camera: CameraConfig{
			Device: os.Getenv("CAMERA_DEVICE"),
			Dir:    os.Getenv("CAMERA_DIR"),
		},
		Recognizer: RecognizerConfig{
			URL:     os.Getenv("RECOGNIZER_URL"),
			Model:   os.Getenv("RECOGNIZER_MODEL"),
			Timeout: envDuration("RECOGNIZER_TIMEOUT", 10*time.Second),
		},
		Attendance: AttendanceConfig{
			Cooldown:     envDuration("ATTENDANCE_COOLDOWN", 60*time.Second),
			TickInterval: envDuration("ATTENDANCE_TICK_INTERVAL", time.Second),
			OverlapMode:  overlap,
		},
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		SIS: SISConfig{
			DatabaseURL: os.Getenv("SIS_DATABASE_URL"),
		},
		Web: WebConfig{
			Username:      os.Getenv("WEB_USERNAME"),
			Password:      os.Getenv("WEB_PASSWORD"),
			SessionSecret: os.Getenv("WEB_SESSION_SECRET"),
		},
		Thresholds: thresholds,
	}
}

// GetModelThresholds returns thresholds for a specific model, with fallback defaults.
func (c *Config) GetModelThresholds(modelName string) ModelThresholds {
	if t, ok := c.Thresholds.Models[modelName]; ok {
		return t
	}
	return ModelThresholds{Distance: 0.5, MinDetScore: 0.55}
}
