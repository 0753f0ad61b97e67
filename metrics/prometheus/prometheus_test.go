package prometheusmetrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"

	"github.com/placesgw/places-gateway/config"
	"github.com/placesgw/places-gateway/gwapi"
	"github.com/placesgw/places-gateway/metrics"
)

func newTestMetricsEngine() *Metrics {
	return NewMetrics(config.PrometheusMetrics{
		Port:      8081,
		Namespace: "placesgw",
		Subsystem: "gateway",
	})
}

func assertCounterValue(t *testing.T, name string, metric *dto.Metric, expected int64) {
	t.Helper()
	assert.Equal(t, float64(expected), metric.GetCounter().GetValue(), name)
}

func assertGaugeValue(t *testing.T, name string, metric *dto.Metric, expected int64) {
	t.Helper()
	assert.Equal(t, float64(expected), metric.GetGauge().GetValue(), name)
}

func TestConnectionMetrics(t *testing.T) {
	proMetrics := newTestMetricsEngine()

	proMetrics.RecordConnectionAccept(true)
	proMetrics.RecordConnectionAccept(true)
	proMetrics.RecordConnectionClose(true)
	proMetrics.RecordConnectionAccept(false)
	proMetrics.RecordConnectionClose(false)

	metricConn := dto.Metric{}
	metricConnErrA := dto.Metric{}
	metricConnErrC := dto.Metric{}
	proMetrics.connCounter.Write(&metricConn)
	proMetrics.connError.WithLabelValues("accept_error").Write(&metricConnErrA)
	proMetrics.connError.WithLabelValues("close_error").Write(&metricConnErrC)

	assertGaugeValue(t, "connCounter", &metricConn, 1)
	assertCounterValue(t, "connError[accept_error]", &metricConnErrA, 1)
	assertCounterValue(t, "connError[close_error]", &metricConnErrC, 1)
}

func TestRequestMetrics(t *testing.T) {
	proMetrics := newTestMetricsEngine()

	okLabels := metrics.Labels{
		Action:        gwapi.ActionDetails,
		Browser:       metrics.BrowserOther,
		CacheFlag:     metrics.CacheHit,
		RequestStatus: metrics.RequestStatusOK,
	}
	badLabels := metrics.Labels{
		Action:        gwapi.ActionBatchDetails,
		Browser:       metrics.BrowserSafari,
		CacheFlag:     metrics.CacheSkip,
		RequestStatus: metrics.RequestStatusBadInput,
	}

	proMetrics.RecordRequest(okLabels)
	proMetrics.RecordRequest(okLabels)
	proMetrics.RecordRequest(badLabels)
	proMetrics.RecordRequestTime(okLabels, 250*time.Millisecond)

	metricOK := dto.Metric{}
	metricBad := dto.Metric{}
	proMetrics.requests.With(resolveLabels(okLabels)).Write(&metricOK)
	proMetrics.requests.With(resolveLabels(badLabels)).Write(&metricBad)

	assertCounterValue(t, "requests[ok]", &metricOK, 2)
	assertCounterValue(t, "requests[badinput]", &metricBad, 1)

	metricTimer := dto.Metric{}
	// HistogramVec.With() returns an observer interface with no Write() method. The
	// value behind it is still a Histogram, so the cast works; it may break if the
	// Prometheus team makes the observer its own thing.
	proMetrics.reqTimer.With(resolveLabels(okLabels)).(prometheus.Histogram).Write(&metricTimer)
	assert.Equal(t, uint64(1), metricTimer.GetHistogram().GetSampleCount())
}

func TestUpstreamMetrics(t *testing.T) {
	proMetrics := newTestMetricsEngine()

	labels := metrics.UpstreamLabels{
		Operation: "details",
		Fallback:  metrics.FallbackYes,
		Error:     metrics.UpstreamErrorNone,
	}
	proMetrics.RecordUpstreamRequest(labels)
	proMetrics.RecordUpstreamTime(labels, 100*time.Millisecond)

	metricReqs := dto.Metric{}
	proMetrics.upstreamReqs.With(resolveUpstreamLabels(labels)).Write(&metricReqs)
	assertCounterValue(t, "upstreamReqs", &metricReqs, 1)
}

func TestCacheLookupMetrics(t *testing.T) {
	proMetrics := newTestMetricsEngine()

	proMetrics.RecordCacheLookup(gwapi.ActionDetails, true)
	proMetrics.RecordCacheLookup(gwapi.ActionDetails, false)
	proMetrics.RecordCacheLookup(gwapi.ActionDetails, false)

	metricHit := dto.Metric{}
	metricMiss := dto.Metric{}
	proMetrics.cacheLookups.WithLabelValues("details", "hit").Write(&metricHit)
	proMetrics.cacheLookups.WithLabelValues("details", "miss").Write(&metricMiss)

	assertCounterValue(t, "cacheLookups[hit]", &metricHit, 1)
	assertCounterValue(t, "cacheLookups[miss]", &metricMiss, 2)
}

func TestPanicAndBatchMetrics(t *testing.T) {
	proMetrics := newTestMetricsEngine()

	proMetrics.RecordPanic(gwapi.ActionBatchDetails)
	proMetrics.RecordBatchSize(7)

	metricPanics := dto.Metric{}
	proMetrics.panics.Write(&metricPanics)
	assertCounterValue(t, "panics", &metricPanics, 1)

	metricBatch := dto.Metric{}
	proMetrics.batchSize.Write(&metricBatch)
	assert.Equal(t, uint64(1), metricBatch.GetHistogram().GetSampleCount())
}
