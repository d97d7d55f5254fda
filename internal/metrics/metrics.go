// Package metrics exposes the service's Prometheus collectors on a private
// registry.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgallion1/bookchunk/internal/embed"
)

const namespace = "bookchunk"

// Metrics holds every collector the service updates.
type Metrics struct {
	registry *prometheus.Registry

	Jobs          *prometheus.CounterVec // by final status
	Chunks        prometheus.Counter
	EmbedBatches  *prometheus.CounterVec // by result: ok, error
	EmbedGaps     prometheus.Counter
	EmbedDuration prometheus.Histogram
	QueueDepth    prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Ingestion jobs by final status.",
		}, []string{"status"}),
		Chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Chunks produced across all books.",
		}),
		EmbedBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embed_batches_total",
			Help:      "Embedding calls by result.",
		}, []string{"result"}),
		EmbedGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embed_gaps_total",
			Help:      "Texts the embedding backend returned no vector for.",
		}),
		EmbedDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embed_batch_seconds",
			Help:      "Latency of one embedding call.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Jobs waiting for a worker.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Jobs, m.Chunks, m.EmbedBatches, m.EmbedGaps, m.EmbedDuration, m.QueueDepth,
	)
	return m
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Instrument wraps e so every call updates the embedding collectors.
func (m *Metrics) Instrument(e embed.Embedder) embed.Embedder {
	return &instrumented{next: e, m: m}
}

type instrumented struct {
	next embed.Embedder
	m    *Metrics
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := i.next.Embed(ctx, texts)
	i.m.EmbedDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		i.m.EmbedBatches.WithLabelValues("error").Inc()
		return nil, err
	}
	i.m.EmbedBatches.WithLabelValues("ok").Inc()
	i.m.EmbedGaps.Add(float64(embed.CountGaps(vecs)))
	return vecs, nil
}
