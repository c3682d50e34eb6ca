package config

import (
	"testing"
	"time"
)

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"VOXDESK_BIND_ADDR",
		"VOXDESK_SHUTDOWN_TIMEOUT",
		"VOXDESK_METRICS_NAMESPACE",
		"VOXDESK_ALLOW_ANY_ORIGIN",
		"VOXDESK_MODEL_CMD",
		"VOXDESK_DEVICE",
		"VOXDESK_MODEL_IDLE_TTL",
		"VOXDESK_MODEL_LOAD_TIMEOUT",
		"VOXDESK_VRAM_THRESHOLD",
		"VOXDESK_VOICES_DIR",
		"VOXDESK_MAX_VOICES",
		"VOXDESK_MAX_CHUNK_CHARS",
		"DATABASE_URL",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8100" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8100")
	}
	if cfg.Device != "auto" {
		t.Fatalf("Device = %q, want auto", cfg.Device)
	}
	if cfg.ModelIdleTTL != 5*time.Minute {
		t.Fatalf("ModelIdleTTL = %v, want 5m", cfg.ModelIdleTTL)
	}
	if cfg.VRAMThreshold != 0.85 {
		t.Fatalf("VRAMThreshold = %v, want 0.85", cfg.VRAMThreshold)
	}
	if cfg.MaxVoices != 10 || cfg.MaxChunkChars != 300 {
		t.Fatalf("MaxVoices/MaxChunkChars = %d/%d, want 10/300", cfg.MaxVoices, cfg.MaxChunkChars)
	}
	if len(cfg.ModelCommand) != 0 {
		t.Fatalf("ModelCommand = %q, want empty default", cfg.ModelCommand)
	}
}

func TestLoadParsesModelCommand(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("VOXDESK_MODEL_CMD", "python3 -u scripts/model_worker.py")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []string{"python3", "-u", "scripts/model_worker.py"}
	if len(cfg.ModelCommand) != len(want) {
		t.Fatalf("ModelCommand = %q, want %q", cfg.ModelCommand, want)
	}
	for i := range want {
		if cfg.ModelCommand[i] != want[i] {
			t.Fatalf("ModelCommand[%d] = %q, want %q", i, cfg.ModelCommand[i], want[i])
		}
	}
}

func TestLoadRejectsBadDevice(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("VOXDESK_DEVICE", "tpu")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want rejection of unknown device")
	}
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("VOXDESK_VRAM_THRESHOLD", "1.5")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want rejection of threshold > 1")
	}
}

func TestLoadRejectsTinyIdleTTL(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("VOXDESK_MODEL_IDLE_TTL", "1s")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want rejection of sub-10s idle TTL")
	}
}

func TestLoadCustomValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("VOXDESK_MODEL_IDLE_TTL", "90s")
	t.Setenv("VOXDESK_MAX_VOICES", "3")
	t.Setenv("VOXDESK_DEVICE", "cuda")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ModelIdleTTL != 90*time.Second {
		t.Fatalf("ModelIdleTTL = %v, want 90s", cfg.ModelIdleTTL)
	}
	if cfg.MaxVoices != 3 {
		t.Fatalf("MaxVoices = %d, want 3", cfg.MaxVoices)
	}
	if cfg.Device != "cuda" {
		t.Fatalf("Device = %q, want cuda", cfg.Device)
	}
}
