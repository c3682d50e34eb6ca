package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/voxdesk/voxdesk/internal/observability"
	"github.com/voxdesk/voxdesk/internal/sysres"
)

// ErrShutDown is returned by Acquire after Shutdown.
var ErrShutDown = errors.New("engine: manager is shut down")

// ManagerConfig tunes the residency manager.
type ManagerConfig struct {
	// Device the model loads onto, DeviceCPU or DeviceCUDA.
	Device string
	// IdleTTL is how long the model may sit unused before eviction.
	IdleTTL time.Duration
	// VRAMThreshold is the accelerator memory fraction (0-1) above which
	// a loaded model is evicted before serving a new request.
	VRAMThreshold float64
	// CheckInterval is the idle-watcher tick. Defaults to 30s.
	CheckInterval time.Duration
}

// Manager caches a single loaded model instance behind one mutex. All
// residency decisions (load, reuse, evict) happen under the lock; the
// actual Generate calls do not.
type Manager struct {
	cfg     ManagerConfig
	loader  Loader
	sensor  sysres.Sensor
	metrics *observability.Metrics

	mu             sync.Mutex
	model          Model
	lastUsed       time.Time
	watcherStarted bool
	closed         bool

	stop chan struct{}
	done chan struct{}

	now func() time.Time
}

// NewManager wires a residency manager. metrics may be nil in tests.
func NewManager(cfg ManagerConfig, loader Loader, sensor sysres.Sensor, metrics *observability.Metrics) *Manager {
	if cfg.Device == "" {
		cfg.Device = DeviceCPU
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 5 * time.Minute
	}
	if cfg.VRAMThreshold <= 0 || cfg.VRAMThreshold > 1 {
		cfg.VRAMThreshold = 0.85
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	return &Manager{
		cfg:     cfg,
		loader:  loader,
		sensor:  sensor,
		metrics: metrics,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		now:     time.Now,
	}
}

// Acquire returns the loaded model, loading it first if absent. Callers
// arriving during a load block on the mutex and observe the loaded model
// instead of triggering a second load. On loader failure the manager
// stays unloaded and the error is a *LoadError.
func (m *Manager) Acquire(ctx context.Context) (Model, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrShutDown
	}

	// Free memory before a request touches the model if the accelerator
	// is under pressure from other processes.
	if m.model != nil && m.cfg.Device == DeviceCUDA {
		if used, total, ok := m.sensor.AcceleratorMemory(); ok && total > 0 {
			if float64(used)/float64(total) > m.cfg.VRAMThreshold {
				log.Printf("engine: accelerator memory at %.0f%%, evicting model", float64(used)/float64(total)*100)
				m.evictLocked("pressure")
			}
		}
	}

	if m.model == nil {
		start := m.now()
		model, err := m.loader.Load(ctx, m.cfg.Device)
		if err != nil {
			return nil, &LoadError{Device: m.cfg.Device, Err: err}
		}
		m.model = model
		elapsed := m.now().Sub(start)
		log.Printf("engine: model loaded on %s in %.1fs", m.cfg.Device, elapsed.Seconds())
		if m.metrics != nil {
			m.metrics.ModelLoads.Inc()
			m.metrics.ModelLoadSeconds.Observe(elapsed.Seconds())
			m.metrics.ModelLoaded.Set(1)
			m.metrics.Stages.Observe("model_load", elapsed)
		}
	}

	m.lastUsed = m.now()
	m.ensureWatcherLocked()
	return m.model, nil
}

// Stats returns a residency snapshot. The sensor is queried outside the
// lock so a slow probe never delays load or eviction decisions.
func (m *Manager) Stats() Stats {
	st := Stats{
		Device:         m.cfg.Device,
		HostRAMPercent: m.sensor.HostRAMPercent(),
		IdleTTLSeconds: m.cfg.IdleTTL.Seconds(),
	}
	if used, total, ok := m.sensor.AcceleratorMemory(); ok && total > 0 {
		st.HasAccelerator = true
		st.VRAMUsedMB = used
		st.VRAMTotalMB = total
		st.VRAMPercent = float64(used) / float64(total) * 100
	}

	m.mu.Lock()
	st.IsLoaded = m.model != nil
	st.LastUsed = m.lastUsed
	m.mu.Unlock()
	return st
}

// Shutdown evicts the model and stops the idle watcher. Idempotent.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.model != nil {
		m.evictLocked("shutdown")
	}
	watcherRunning := m.watcherStarted
	m.mu.Unlock()

	close(m.stop)
	if watcherRunning {
		<-m.done
	}
}

func (m *Manager) ensureWatcherLocked() {
	if m.watcherStarted {
		return
	}
	m.watcherStarted = true
	go m.watch()
}

// watch evicts the model once it has been idle past the TTL. It runs for
// the manager's lifetime so later reloads are covered too.
func (m *Manager) watch() {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.model != nil && !m.lastUsed.IsZero() && m.now().Sub(m.lastUsed) > m.cfg.IdleTTL {
				log.Printf("engine: model idle for %s, evicting", m.now().Sub(m.lastUsed).Round(time.Second))
				m.evictLocked("idle")
			}
			m.mu.Unlock()
		}
	}
}

// evictLocked drops the model reference and asks it to release device
// memory. Eviction never fails observably. Caller holds m.mu.
func (m *Manager) evictLocked(reason string) {
	if m.model == nil {
		return
	}
	if err := m.model.Close(); err != nil {
		log.Printf("engine: model close after %s eviction: %v", reason, err)
	}
	m.model = nil
	m.lastUsed = time.Time{}
	if m.metrics != nil {
		m.metrics.ModelLoaded.Set(0)
		m.metrics.ModelEvictions.WithLabelValues(reason).Inc()
	}
}
