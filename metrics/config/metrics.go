package config

import (
	"time"

	"github.com/golang/glog"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/vrischmann/go-metrics-influxdb"

	"github.com/placesgw/places-gateway/config"
	"github.com/placesgw/places-gateway/gwapi"
	"github.com/placesgw/places-gateway/metrics"
	prometheusmetrics "github.com/placesgw/places-gateway/metrics/prometheus"
)

// NewMetricsEngine reads the configuration and returns the appropriate metrics engine
// for this instance: the go-metrics registry (with an influx exporter when configured),
// the prometheus engine, both, or a no-op engine when nothing is configured.
func NewMetricsEngine(cfg *config.Configuration) *DetailedMetricsEngine {
	// Create a list of metrics engines to use.
	// Capacity of 2, as unlikely to have more than 2 metrics backends, and in the case
	// of 1 we won't use the list so it will be garbage collected.
	engineList := make(MultiMetricsEngine, 0, 2)
	returnEngine := DetailedMetricsEngine{}

	if cfg.Metrics.Influxdb.Host != "" {
		// Currently use go-metrics as the metrics piece for influx
		returnEngine.GoMetrics = metrics.NewMetrics(gometrics.NewPrefixedRegistry("placesgw."))
		engineList = append(engineList, returnEngine.GoMetrics)

		// Set up the Influx logger
		go influxdb.InfluxDB(
			returnEngine.GoMetrics.MetricsRegistry,                             // metrics registry
			time.Second*time.Duration(cfg.Metrics.Influxdb.MetricSendInterval), // interval
			cfg.Metrics.Influxdb.Host,                                          // the InfluxDB url
			cfg.Metrics.Influxdb.Database,                                      // your InfluxDB database
			cfg.Metrics.Influxdb.Username,                                      // your InfluxDB user
			cfg.Metrics.Influxdb.Password,                                      // your InfluxDB password
		)
	}
	if cfg.Metrics.Prometheus.Port != 0 {
		glog.Infof("Connecting prometheus metrics on port %d", cfg.Metrics.Prometheus.Port)
		returnEngine.PrometheusMetrics = prometheusmetrics.NewMetrics(cfg.Metrics.Prometheus)
		engineList = append(engineList, returnEngine.PrometheusMetrics)
	}

	// Now return the proper metrics engine
	if len(engineList) > 1 {
		returnEngine.MetricsEngine = &engineList
	} else if len(engineList) == 1 {
		returnEngine.MetricsEngine = engineList[0]
	} else {
		returnEngine.MetricsEngine = &DummyMetricsEngine{}
	}

	return &returnEngine
}

// DetailedMetricsEngine is a MultiMetricsEngine that preserves links to the underlying
// metrics engines, so the admin and prometheus servers can reach their internals.
type DetailedMetricsEngine struct {
	metrics.MetricsEngine
	GoMetrics         *metrics.Metrics
	PrometheusMetrics *prometheusmetrics.Metrics
}

// MultiMetricsEngine logs metrics to multiple metrics databases. It should work with
// one of them encountering an error.
type MultiMetricsEngine []metrics.MetricsEngine

func (me *MultiMetricsEngine) RecordConnectionAccept(success bool) {
	for _, engine := range *me {
		engine.RecordConnectionAccept(success)
	}
}

func (me *MultiMetricsEngine) RecordConnectionClose(success bool) {
	for _, engine := range *me {
		engine.RecordConnectionClose(success)
	}
}

func (me *MultiMetricsEngine) RecordRequest(labels metrics.Labels) {
	for _, engine := range *me {
		engine.RecordRequest(labels)
	}
}

func (me *MultiMetricsEngine) RecordRequestTime(labels metrics.Labels, length time.Duration) {
	for _, engine := range *me {
		engine.RecordRequestTime(labels, length)
	}
}

func (me *MultiMetricsEngine) RecordUpstreamRequest(labels metrics.UpstreamLabels) {
	for _, engine := range *me {
		engine.RecordUpstreamRequest(labels)
	}
}

func (me *MultiMetricsEngine) RecordUpstreamTime(labels metrics.UpstreamLabels, length time.Duration) {
	for _, engine := range *me {
		engine.RecordUpstreamTime(labels, length)
	}
}

func (me *MultiMetricsEngine) RecordCacheLookup(action gwapi.ActionName, hit bool) {
	for _, engine := range *me {
		engine.RecordCacheLookup(action, hit)
	}
}

func (me *MultiMetricsEngine) RecordBatchSize(size int) {
	for _, engine := range *me {
		engine.RecordBatchSize(size)
	}
}

func (me *MultiMetricsEngine) RecordPanic(action gwapi.ActionName) {
	for _, engine := range *me {
		engine.RecordPanic(action)
	}
}

// DummyMetricsEngine is a no-op metrics engine for when no metrics backend is configured.
type DummyMetricsEngine struct{}

func (me *DummyMetricsEngine) RecordConnectionAccept(success bool) {
}

func (me *DummyMetricsEngine) RecordConnectionClose(success bool) {
}

func (me *DummyMetricsEngine) RecordRequest(labels metrics.Labels) {
}

func (me *DummyMetricsEngine) RecordRequestTime(labels metrics.Labels, length time.Duration) {
}

func (me *DummyMetricsEngine) RecordUpstreamRequest(labels metrics.UpstreamLabels) {
}

func (me *DummyMetricsEngine) RecordUpstreamTime(labels metrics.UpstreamLabels, length time.Duration) {
}

func (me *DummyMetricsEngine) RecordCacheLookup(action gwapi.ActionName, hit bool) {
}

func (me *DummyMetricsEngine) RecordBatchSize(size int) {
}

func (me *DummyMetricsEngine) RecordPanic(action gwapi.ActionName) {
}
