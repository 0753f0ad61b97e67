package prometheusmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/placesgw/places-gateway/config"
	"github.com/placesgw/places-gateway/gwapi"
	"github.com/placesgw/places-gateway/metrics"
)

// Metrics defines the actual Prometheus metrics we will be using. Satisfies the
// metrics.MetricsEngine interface.
type Metrics struct {
	Registry *prometheus.Registry

	connCounter   prometheus.Gauge
	connError     *prometheus.CounterVec
	requests      *prometheus.CounterVec
	reqTimer      *prometheus.HistogramVec
	upstreamReqs  *prometheus.CounterVec
	upstreamTimer *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	batchSize     prometheus.Histogram
	panics        prometheus.Counter
}

// NewMetrics registers the gateway metrics on a fresh registry. Needs to be fed the
// prometheus config for the namespace and subsystem every series is prefixed with.
func NewMetrics(cfg config.PrometheusMetrics) *Metrics {
	// Buckets tuned for an upstream that usually answers within a second.
	timerBuckets := prometheus.LinearBuckets(0.05, 0.05, 20)
	timerBuckets = append(timerBuckets, []float64{1.5, 2.0, 3.0, 5.0, 10.0, 50.0}...)

	requestLabelNames := []string{"action", "browser", "cache", "status"}
	upstreamLabelNames := []string{"operation", "fallback", "error"}

	m := Metrics{}
	m.Registry = prometheus.NewRegistry()
	m.connCounter = newConnCounter(cfg)
	m.Registry.MustRegister(m.connCounter)
	m.connError = newCounter(cfg, "connection_errors_total",
		"Errors reported on the connections coming in.",
		[]string{"ErrorType"},
	)
	m.Registry.MustRegister(m.connError)
	m.requests = newCounter(cfg, "requests_total",
		"Total number of requests made to the gateway.",
		requestLabelNames,
	)
	m.Registry.MustRegister(m.requests)
	m.reqTimer = newHistogram(cfg, "request_time_seconds",
		"Seconds to resolve each gateway request.",
		requestLabelNames, timerBuckets,
	)
	m.Registry.MustRegister(m.reqTimer)
	m.upstreamReqs = newCounter(cfg, "upstream_requests_total",
		"Number of requests sent out to the places provider.",
		upstreamLabelNames,
	)
	m.Registry.MustRegister(m.upstreamReqs)
	m.upstreamTimer = newHistogram(cfg, "upstream_time_seconds",
		"Seconds to resolve each request to the places provider.",
		upstreamLabelNames, timerBuckets,
	)
	m.Registry.MustRegister(m.upstreamTimer)
	m.cacheLookups = newCounter(cfg, "cache_lookups_total",
		"Number of response cache lookups, split by hit or miss.",
		[]string{"action", "result"},
	)
	m.Registry.MustRegister(m.cacheLookups)
	m.batchSize = newPlainHistogram(cfg, "batch_size",
		"Number of place ids per batchDetails request.",
		prometheus.LinearBuckets(1, 5, 11),
	)
	m.Registry.MustRegister(m.batchSize)
	m.panics = newPlainCounter(cfg, "gateway_panics_total",
		"Panics recovered at the endpoint or batch-item boundary.",
	)
	m.Registry.MustRegister(m.panics)

	return &m
}

func newConnCounter(cfg config.PrometheusMetrics) prometheus.Gauge {
	opts := prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "active_connections",
		Help:      "Current number of active (open) connections.",
	}
	return prometheus.NewGauge(opts)
}

func newPlainCounter(cfg config.PrometheusMetrics, name string, help string) prometheus.Counter {
	opts := prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
	}
	return prometheus.NewCounter(opts)
}

func newCounter(cfg config.PrometheusMetrics, name string, help string, labels []string) *prometheus.CounterVec {
	opts := prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
	}
	return prometheus.NewCounterVec(opts, labels)
}

func newHistogram(cfg config.PrometheusMetrics, name string, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	opts := prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}
	return prometheus.NewHistogramVec(opts, labels)
}

func newPlainHistogram(cfg config.PrometheusMetrics, name string, help string, buckets []float64) prometheus.Histogram {
	opts := prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}
	return prometheus.NewHistogram(opts)
}

func (me *Metrics) RecordConnectionAccept(success bool) {
	if success {
		me.connCounter.Inc()
	} else {
		me.connError.WithLabelValues("accept_error").Inc()
	}
}

func (me *Metrics) RecordConnectionClose(success bool) {
	if success {
		me.connCounter.Dec()
	} else {
		me.connError.WithLabelValues("close_error").Inc()
	}
}

func (me *Metrics) RecordRequest(labels metrics.Labels) {
	me.requests.With(resolveLabels(labels)).Inc()
}

func (me *Metrics) RecordRequestTime(labels metrics.Labels, length time.Duration) {
	me.reqTimer.With(resolveLabels(labels)).Observe(float64(length) / float64(time.Second))
}

func (me *Metrics) RecordUpstreamRequest(labels metrics.UpstreamLabels) {
	me.upstreamReqs.With(resolveUpstreamLabels(labels)).Inc()
}

func (me *Metrics) RecordUpstreamTime(labels metrics.UpstreamLabels, length time.Duration) {
	me.upstreamTimer.With(resolveUpstreamLabels(labels)).Observe(float64(length) / float64(time.Second))
}

func (me *Metrics) RecordCacheLookup(action gwapi.ActionName, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	me.cacheLookups.WithLabelValues(string(action), result).Inc()
}

func (me *Metrics) RecordBatchSize(size int) {
	me.batchSize.Observe(float64(size))
}

func (me *Metrics) RecordPanic(action gwapi.ActionName) {
	me.panics.Inc()
}

func resolveLabels(labels metrics.Labels) prometheus.Labels {
	return prometheus.Labels{
		"action":  string(labels.Action),
		"browser": string(labels.Browser),
		"cache":   string(labels.CacheFlag),
		"status":  string(labels.RequestStatus),
	}
}

func resolveUpstreamLabels(labels metrics.UpstreamLabels) prometheus.Labels {
	return prometheus.Labels{
		"operation": labels.Operation,
		"fallback":  string(labels.Fallback),
		"error":     string(labels.Error),
	}
}
