package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/placesgw/places-gateway/config"
	"github.com/placesgw/places-gateway/gwapi"
	"github.com/placesgw/places-gateway/metrics"
)

func TestDummyMetricsEngine(t *testing.T) {
	cfg := config.Configuration{}
	engine := NewMetricsEngine(&cfg)

	_, ok := engine.MetricsEngine.(*DummyMetricsEngine)
	assert.True(t, ok, "expected a DummyMetricsEngine when no backend is configured")
	assert.Nil(t, engine.GoMetrics)
	assert.Nil(t, engine.PrometheusMetrics)
}

func TestGoMetricsEngine(t *testing.T) {
	cfg := config.Configuration{}
	cfg.Metrics.Influxdb.Host = "localhost"
	cfg.Metrics.Influxdb.MetricSendInterval = 20
	engine := NewMetricsEngine(&cfg)

	_, ok := engine.MetricsEngine.(*metrics.Metrics)
	assert.True(t, ok, "expected the go-metrics engine when only influx is configured")
	assert.NotNil(t, engine.GoMetrics)
}

func TestPrometheusMetricsEngine(t *testing.T) {
	cfg := config.Configuration{}
	cfg.Metrics.Prometheus.Port = 8081
	engine := NewMetricsEngine(&cfg)

	assert.NotNil(t, engine.PrometheusMetrics)
	assert.Nil(t, engine.GoMetrics)
}

func TestMultiMetricsEngine(t *testing.T) {
	cfg := config.Configuration{}
	cfg.Metrics.Influxdb.Host = "localhost"
	cfg.Metrics.Influxdb.MetricSendInterval = 20
	cfg.Metrics.Prometheus.Port = 8081
	engine := NewMetricsEngine(&cfg)

	_, ok := engine.MetricsEngine.(*MultiMetricsEngine)
	assert.True(t, ok, "expected a MultiMetricsEngine when both backends are configured")
	assert.NotNil(t, engine.GoMetrics)
	assert.NotNil(t, engine.PrometheusMetrics)

	// The fan-out must reach the go-metrics registry.
	labels := metrics.Labels{
		Action:        gwapi.ActionDetails,
		Browser:       metrics.BrowserOther,
		CacheFlag:     metrics.CacheMiss,
		RequestStatus: metrics.RequestStatusOK,
	}
	engine.RecordRequest(labels)
	engine.RecordRequestTime(labels, 100*time.Millisecond)
	engine.RecordCacheLookup(gwapi.ActionDetails, false)
	engine.RecordBatchSize(5)

	assert.Equal(t, int64(1), engine.GoMetrics.RequestStatuses[gwapi.ActionDetails][metrics.RequestStatusOK].Count())
	assert.Equal(t, int64(1), engine.GoMetrics.CacheMissMeter[gwapi.ActionDetails].Count())
	assert.Equal(t, int64(1), engine.GoMetrics.BatchSizeHistogram.Count())
}
