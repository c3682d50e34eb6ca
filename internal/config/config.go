package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the desktop TTS service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	// ModelCommand is the argv that launches the synthesis model worker.
	ModelCommand []string
	// Device selects where the model loads: auto, cpu, or cuda.
	Device           string
	ModelIdleTTL     time.Duration
	VRAMThreshold    float64
	ModelLoadTimeout time.Duration

	VoicesDir     string
	MaxVoices     int
	MaxChunkChars int

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("VOXDESK_BIND_ADDR", ":8100"),
		MetricsNamespace: envOrDefault("VOXDESK_METRICS_NAMESPACE", "voxdesk"),
		AllowAnyOrigin:   false,
		Device:           envOrDefault("VOXDESK_DEVICE", "auto"),
		VoicesDir:        envOrDefault("VOXDESK_VOICES_DIR", "voices"),
		DatabaseURL:      stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:  15 * time.Second,
		ModelIdleTTL:     5 * time.Minute,
		VRAMThreshold:    0.85,
		ModelLoadTimeout: 2 * time.Minute,
		MaxVoices:        10,
		MaxChunkChars:    300,
	}

	if raw := stringsTrimSpace("VOXDESK_MODEL_CMD"); raw != "" {
		cfg.ModelCommand = strings.Fields(raw)
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("VOXDESK_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ModelIdleTTL, err = durationFromEnv("VOXDESK_MODEL_IDLE_TTL", cfg.ModelIdleTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.ModelLoadTimeout, err = durationFromEnv("VOXDESK_MODEL_LOAD_TIMEOUT", cfg.ModelLoadTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.VRAMThreshold, err = floatFromEnv("VOXDESK_VRAM_THRESHOLD", cfg.VRAMThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxVoices, err = intFromEnv("VOXDESK_MAX_VOICES", cfg.MaxVoices)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxChunkChars, err = intFromEnv("VOXDESK_MAX_CHUNK_CHARS", cfg.MaxChunkChars)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("VOXDESK_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Device)) {
	case "auto", "cpu", "cuda":
		cfg.Device = strings.ToLower(strings.TrimSpace(cfg.Device))
	default:
		return Config{}, fmt.Errorf("VOXDESK_DEVICE must be auto, cpu, or cuda")
	}
	if cfg.ModelIdleTTL < 10*time.Second {
		return Config{}, fmt.Errorf("VOXDESK_MODEL_IDLE_TTL must be at least 10s")
	}
	if cfg.VRAMThreshold <= 0 || cfg.VRAMThreshold > 1 {
		return Config{}, fmt.Errorf("VOXDESK_VRAM_THRESHOLD must be in (0, 1]")
	}
	if cfg.MaxVoices <= 0 {
		return Config{}, fmt.Errorf("VOXDESK_MAX_VOICES must be positive")
	}
	if cfg.MaxChunkChars < 50 {
		return Config{}, fmt.Errorf("VOXDESK_MAX_CHUNK_CHARS must be at least 50")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
