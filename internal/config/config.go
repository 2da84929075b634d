package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port        int
	Environment string
	SentryDSN   string

	// Rendering
	TimeZone      string // IANA zone for automatic time of day
	OutputDir     string
	Workers       int
	MaxMinutes    int // longest single render
	FFmpegPath    string
	MP3Bitrate    string
	EncodeRetries int

	// Radio behavior
	RadioEnabled      bool
	StartingMode      string
	SessionMinutes    int
	CrossfadeDuration time.Duration // crossfade length between sessions
	BufferAhead       int           // sessions to pre-render
	DwellMin          int           // min seconds per mode
	DwellMax          int           // max seconds per mode
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port:        envInt("AMBI_PORT", 8080),
		Environment: envStr("ENVIRONMENT", "development"),
		SentryDSN:   envStr("SENTRY_DSN", ""),

		TimeZone:      envStr("AMBI_TIMEZONE", "UTC"),
		OutputDir:     envStr("AMBI_OUTPUT_DIR", filepath.Join(os.TempDir(), "ambisynth")),
		Workers:       max(1, envInt("AMBI_WORKERS", 1)),
		MaxMinutes:    envInt("AMBI_MAX_MINUTES", 180),
		FFmpegPath:    envStr("AMBI_FFMPEG_PATH", "ffmpeg"),
		MP3Bitrate:    envStr("AMBI_MP3_BITRATE", "128k"),
		EncodeRetries: envInt("AMBI_ENCODE_RETRIES", 2),

		RadioEnabled:      envBool("RADIO_ENABLED", true),
		StartingMode:      envStr("RADIO_MODE", "focus"),
		SessionMinutes:    envInt("RADIO_SESSION_MINUTES", 5),
		CrossfadeDuration: time.Duration(envInt("RADIO_CROSSFADE_DURATION", 8)) * time.Second,
		BufferAhead:       envInt("RADIO_BUFFER_AHEAD", 2),
		DwellMin:          envInt("RADIO_DWELL_MIN", 900),
		DwellMax:          envInt("RADIO_DWELL_MAX", 2700),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
