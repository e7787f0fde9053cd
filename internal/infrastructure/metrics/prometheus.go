package metrics

import (
	"strconv"
	"time"

	"github.com/materialquote/backend/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "materialquote"

// Recorder exposes quote, upload and HTTP metrics to Prometheus.
// It satisfies usecase.Metrics.
type Recorder struct {
	uploads        *prometheus.CounterVec
	catalogEntries prometheus.Gauge
	quotes         *prometheus.CounterVec
	unmatched      prometheus.Counter
	quoteDuration  prometheus.Histogram
	inbound        *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// NewRecorder registers the metrics on the provided registerer.
// A nil registerer yields a recorder that drops every observation.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		return &Recorder{}
	}

	r := &Recorder{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_uploads_total",
			Help:      "Catalog uploads by result.",
		}, []string{"result"}),
		catalogEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_entries",
			Help:      "Entries in the active catalog.",
		}),
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Resolved quote requests by outcome.",
		}, []string{"outcome"}),
		unmatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unmatched_mentions_total",
			Help:      "Mentions that matched no catalog entry.",
		}),
		quoteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_duration_seconds",
			Help:      "Time spent resolving a quote request.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
		}),
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Inbound chat messages by media kind and result.",
		}, []string{"kind", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		r.uploads, r.catalogEntries, r.quotes, r.unmatched,
		r.quoteDuration, r.inbound, r.httpRequests, r.httpDuration,
	)
	return r
}

// ObserveCatalogUpload counts an upload; published uploads also set the entry gauge
func (r *Recorder) ObserveCatalogUpload(result string, entries int) {
	if r == nil || r.uploads == nil {
		return
	}
	r.uploads.WithLabelValues(normalizeLabel(result)).Inc()
	if result == "published" {
		r.catalogEntries.Set(float64(entries))
	}
}

// ObserveQuote records the outcome and latency of a resolution
func (r *Recorder) ObserveQuote(outcome domain.QuoteOutcome, unmatched int, elapsed time.Duration) {
	if r == nil || r.quotes == nil {
		return
	}
	r.quotes.WithLabelValues(normalizeLabel(string(outcome))).Inc()
	if unmatched > 0 {
		r.unmatched.Add(float64(unmatched))
	}
	r.quoteDuration.Observe(elapsed.Seconds())
}

// ObserveInbound counts a chat message by its media branch
func (r *Recorder) ObserveInbound(kind domain.MediaKind, ok bool) {
	if r == nil || r.inbound == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	r.inbound.WithLabelValues(normalizeLabel(string(kind)), result).Inc()
}

// ObserveHTTP records one served request
func (r *Recorder) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if r == nil || r.httpRequests == nil {
		return
	}
	route = normalizeLabel(route)
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
