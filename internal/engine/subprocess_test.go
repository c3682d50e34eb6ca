package engine

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestSubprocessLoaderLoadTimeoutKillsHungWorker(t *testing.T) {
	// A worker that starts but never answers the handshake. Load must
	// give up at LoadTimeout instead of waiting for the process to exit.
	loader := &SubprocessLoader{
		Command:     []string{"sleep", "30"},
		LoadTimeout: 100 * time.Millisecond,
	}

	start := time.Now()
	_, err := loader.Load(context.Background(), DeviceCPU)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("Load() succeeded against a worker that never responds")
	}
	if elapsed > 5*time.Second {
		t.Fatalf("Load() took %s with a 100ms LoadTimeout", elapsed)
	}
}

func TestSubprocessLoaderCallerCancelUnblocksLoad(t *testing.T) {
	loader := &SubprocessLoader{
		Command:     []string{"sleep", "30"},
		LoadTimeout: time.Minute,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := loader.Load(ctx, DeviceCPU)
	if err == nil {
		t.Fatal("Load() succeeded after the caller cancelled")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Load() took %s after a 50ms cancel", elapsed)
	}
	if !strings.Contains(err.Error(), "context canceled") {
		t.Fatalf("Load() error = %v, want the cancellation surfaced", err)
	}
}

func TestSubprocessLoaderRejectsEmptyCommand(t *testing.T) {
	loader := &SubprocessLoader{}
	if _, err := loader.Load(context.Background(), DeviceCPU); err == nil {
		t.Fatal("Load() with no command configured did not fail")
	}
}
