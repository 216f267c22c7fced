package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tables_retriever"

const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultEmpty = "empty"
)

// Metrics holds the query collectors and the registry they live in.
type Metrics struct {
	registry      *prometheus.Registry
	Queries       *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	SourceNodes   prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Number of queries answered, by result",
			},
			[]string{"result"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Time spent answering a query",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"cached"},
		),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Queries served from the cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Queries not found in the cache",
		}),
		SourceNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_nodes",
			Help:      "Source nodes per answer",
			Buckets:   prometheus.LinearBuckets(0, 1, 6),
		}),
	}
	m.registry.MustRegister(
		m.Queries,
		m.QueryDuration,
		m.CacheHits,
		m.CacheMisses,
		m.SourceNodes,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) ObserveQuery(result string, cached bool, elapsed time.Duration, sources int) {
	m.Queries.WithLabelValues(result).Inc()
	label := "false"
	if cached {
		label = "true"
	}
	m.QueryDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	if result == ResultOK {
		m.SourceNodes.Observe(float64(sources))
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
