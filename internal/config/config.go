// Package config resolves runtime configuration from a .env file,
// environment variables, and defaults.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration for the readback client.
type Config struct {
	Backend  BackendConfig
	Audio    AudioConfig
	Review   ReviewConfig
	DBPath   string
	LogDir   string
	LogLevel string
}

type BackendConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type AudioConfig struct {
	RecorderCommand string
	PlayerCommand   string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type ReviewConfig struct {
	// EnableAudioReview pauses after each take for play/discard/send
	// instead of submitting immediately on stop.
	EnableAudioReview bool
}

// Load resolves configuration. A .env file in the working directory is
// applied first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := filepath.Join(home, ".local", "share", "readback")

	cfg := Config{
		Backend: BackendConfig{
			BaseURL: envOrDefault("READBACK_API_BASE", "http://localhost:8000"),
			Token:   strings.TrimSpace(os.Getenv("READBACK_API_TOKEN")),
			Timeout: 60 * time.Second,
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("READBACK_FFMPEG_COMMAND", "ffmpeg"),
			PlayerCommand:   envOrDefault("READBACK_FFPLAY_COMMAND", "ffplay"),
			InputFormat:     envOrDefault("READBACK_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("READBACK_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("READBACK_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("READBACK_CHANNELS", 1),
		},
		Review: ReviewConfig{
			EnableAudioReview: envOrDefaultBool("READBACK_AUDIO_REVIEW", false),
		},
		DBPath:   envOrDefault("READBACK_DB_PATH", filepath.Join(dataDir, "readback.sqlite")),
		LogDir:   envOrDefault("READBACK_LOG_DIR", dataDir),
		LogLevel: envOrDefault("READBACK_LOG_LEVEL", "info"),
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envOrDefaultInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envOrDefaultBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
