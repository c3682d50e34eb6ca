package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	Generations       *prometheus.CounterVec
	GenerationSeconds prometheus.Histogram
	ChunksPerRequest  prometheus.Histogram
	ModelLoaded       prometheus.Gauge
	ModelLoads        prometheus.Counter
	ModelLoadSeconds  prometheus.Histogram
	ModelEvictions    *prometheus.CounterVec
	VoiceProfiles     prometheus.Gauge

	// Stages mirrors the latency histograms as an in-process window so
	// the API can report quantiles without a Prometheus scraper.
	Stages *StageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Stages: NewStageWindow(256),
		Generations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Speech generation requests by outcome.",
		}, []string{"outcome"}),
		GenerationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_seconds",
			Help:      "Wall-clock duration of a full generation request.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		}),
		ChunksPerRequest: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunks_per_request",
			Help:      "Number of text chunks a request was split into.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34},
		}),
		ModelLoaded: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_loaded",
			Help:      "Whether the synthesis model is currently resident (0 or 1).",
		}),
		ModelLoads: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_loads_total",
			Help:      "Successful model loads.",
		}),
		ModelLoadSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_load_seconds",
			Help:      "Duration of model loads.",
			Buckets:   []float64{1, 2, 5, 10, 20, 40, 80},
		}),
		ModelEvictions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_evictions_total",
			Help:      "Model evictions by reason.",
		}, []string{"reason"}),
		VoiceProfiles: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "voice_profiles",
			Help:      "Number of custom voice profiles in the catalog.",
		}),
	}
}

func (m *Metrics) ObserveGeneration(outcome string, d time.Duration, chunks int) {
	m.Generations.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		m.GenerationSeconds.Observe(d.Seconds())
		m.ChunksPerRequest.Observe(float64(chunks))
		m.Stages.Observe("request_total", d)
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
