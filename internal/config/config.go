// Package config loads process configuration from environment variables,
// with optional .env file support for local development.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings holds all process configuration for the API and the worker.
type Settings struct {
	// HTTPPort is the listen port for the API server.
	HTTPPort string
	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string
	// RedisAddr is the Redis host:port used for the job queue.
	RedisAddr string
	// QueueName is the Redis list jobs are pushed onto.
	QueueName string

	// StaticDir is the root directory for job output trees, served at /static.
	StaticDir string
	// FrameSampleRate is the interval in seconds between sampled frames.
	FrameSampleRate int
	// MaxVideoDuration is the longest video (seconds) accepted for processing.
	MaxVideoDuration int
	// MaxFrames caps how many frames are persisted per job.
	MaxFrames int

	// GCPProject and VertexRegion locate the Vertex AI endpoint.
	GCPProject   string
	VertexRegion string
	// TextModel handles identification and frame selection prompts.
	TextModel string
	// ImageModel handles segmentation and shot generation.
	ImageModel string

	// JobRetention is how long completed job directories are kept on disk.
	JobRetention time.Duration
}

// Load reads settings from the environment. A .env file in the working
// directory is applied first if present, without overriding real env vars.
func Load() (Settings, error) {
	_ = godotenv.Load()

	s := Settings{
		HTTPPort:         Env("HTTP_PORT", "8080"),
		RedisAddr:        Env("REDIS_ADDR", "localhost:6379"),
		QueueName:        Env("JOB_QUEUE_NAME", "prodshot:jobs"),
		StaticDir:        Env("STATIC_DIR", "./static"),
		FrameSampleRate:  IntEnv("FRAME_SAMPLE_RATE", 2),
		MaxVideoDuration: IntEnv("MAX_VIDEO_DURATION", 300),
		MaxFrames:        IntEnv("MAX_FRAMES", 15),
		VertexRegion:     Env("VERTEX_AI_REGION", "us-central1"),
		TextModel:        Env("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		ImageModel:       Env("GEMINI_IMAGE_MODEL", "gemini-2.5-flash"),
		JobRetention:     DurationEnv("JOB_RETENTION", 24*time.Hour),
	}

	var err error
	if s.DatabaseURL, err = MustEnv("DATABASE_URL"); err != nil {
		return Settings{}, err
	}
	if s.GCPProject, err = MustEnv("GCP_PROJECT"); err != nil {
		return Settings{}, err
	}

	if s.FrameSampleRate <= 0 {
		return Settings{}, fmt.Errorf("FRAME_SAMPLE_RATE must be positive, got %d", s.FrameSampleRate)
	}
	if s.MaxFrames <= 0 {
		return Settings{}, fmt.Errorf("MAX_FRAMES must be positive, got %d", s.MaxFrames)
	}

	abs, err := filepath.Abs(s.StaticDir)
	if err != nil {
		return Settings{}, fmt.Errorf("resolving STATIC_DIR: %w", err)
	}
	s.StaticDir = abs

	return s, nil
}

// EnsureDirectories creates the static root if it does not exist.
func (s Settings) EnsureDirectories() error {
	return os.MkdirAll(s.StaticDir, 0o755)
}

// Env reads a string env var with a default.
func Env(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

// MustEnv reads a required env var, returning an error when unset.
func MustEnv(k string) (string, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return "", fmt.Errorf("missing required environment variable: %s", k)
	}
	return v, nil
}

// IntEnv reads an env var as int. If empty or invalid, returns def.
func IntEnv(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// BoolEnv reads an env var as bool. If empty or invalid, returns def.
// strconv.ParseBool accepts: 1,t,T,TRUE,true,True,0,f,F,FALSE,false,False.
func BoolEnv(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// DurationEnv reads an env var as a time.Duration ("30m", "24h").
// If empty or invalid, returns def.
func DurationEnv(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
