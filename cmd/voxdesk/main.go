package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/voxdesk/voxdesk/internal/config"
	"github.com/voxdesk/voxdesk/internal/engine"
	"github.com/voxdesk/voxdesk/internal/history"
	"github.com/voxdesk/voxdesk/internal/httpapi"
	"github.com/voxdesk/voxdesk/internal/observability"
	"github.com/voxdesk/voxdesk/internal/synth"
	"github.com/voxdesk/voxdesk/internal/sysres"
	"github.com/voxdesk/voxdesk/internal/voices"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	sensor := sysres.NewHostSensor()

	device := cfg.Device
	if device == "auto" {
		if sensor.HasAccelerator() {
			device = engine.DeviceCUDA
		} else {
			device = engine.DeviceCPU
		}
	}
	log.Printf("synthesis device: %s", device)

	var loader engine.Loader
	if len(cfg.ModelCommand) > 0 {
		loader = &engine.SubprocessLoader{
			Command:     cfg.ModelCommand,
			LoadTimeout: cfg.ModelLoadTimeout,
		}
		log.Printf("model worker: %v", cfg.ModelCommand)
	} else {
		loader = &engine.MockLoader{}
		log.Printf("model worker: mock (VOXDESK_MODEL_CMD is not set)")
	}

	ctx := context.Background()
	hist, err := history.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("history store init failed: %v", err)
	}
	defer hist.Close()

	voiceStore, err := voices.NewStore(cfg.VoicesDir, cfg.MaxVoices, metrics)
	if err != nil {
		log.Fatalf("voice store init failed: %v", err)
	}

	mgr := engine.NewManager(engine.ManagerConfig{
		Device:        device,
		IdleTTL:       cfg.ModelIdleTTL,
		VRAMThreshold: cfg.VRAMThreshold,
	}, loader, sensor, metrics)
	defer mgr.Shutdown()

	svc := synth.NewService(mgr, voiceStore, hist, metrics, cfg.MaxChunkChars)

	api := httpapi.New(cfg, mgr, svc, voiceStore, hist, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
