// Package engine owns the lifecycle of the synthesis model: when it is
// loaded onto the device, when it is reused, and when it is evicted to
// free memory. At most one model instance exists at any time.
package engine

import (
	"context"
	"fmt"
	"time"
)

// Device identifiers. The device is fixed at manager construction.
const (
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
)

// GenerateOpts carries the voice-control parameters through to the model.
// The engine forwards them opaquely; range validation happens upstream.
type GenerateOpts struct {
	// Exaggeration controls expressiveness, 0.0-1.0.
	Exaggeration float64
	// CFGWeight controls adherence to the text, 0.0-1.0.
	CFGWeight float64
	// VoicePromptPath points at a reference clip for voice cloning.
	// Empty means the built-in default voice.
	VoicePromptPath string
}

// Model is a loaded synthesis model instance.
type Model interface {
	// Generate synthesizes one chunk of text and returns mono float32
	// samples at SampleRate.
	Generate(ctx context.Context, text string, opts GenerateOpts) ([]float32, error)
	SampleRate() int
	// Close releases the model and its device memory. Best effort.
	Close() error
}

// Loader produces a fresh model instance on the given device.
type Loader interface {
	Load(ctx context.Context, device string) (Model, error)
}

// LoadError reports a failed model load. The manager stays unloaded after
// one; the next Acquire retries naturally.
type LoadError struct {
	Device string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load synthesis model on %s: %v", e.Device, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Stats is a point-in-time snapshot of model residency and memory use.
type Stats struct {
	IsLoaded       bool      `json:"model_loaded"`
	Device         string    `json:"device"`
	HostRAMPercent float64   `json:"ram_usage_percent"`
	HasAccelerator bool      `json:"gpu_available"`
	VRAMUsedMB     uint64    `json:"vram_used_mb,omitempty"`
	VRAMTotalMB    uint64    `json:"vram_total_mb,omitempty"`
	VRAMPercent    float64   `json:"vram_usage_percent,omitempty"`
	LastUsed       time.Time `json:"last_used,omitempty"`
	IdleTTLSeconds float64   `json:"idle_ttl_seconds"`
}
