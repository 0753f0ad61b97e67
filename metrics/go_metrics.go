package metrics

import (
	"fmt"
	"time"

	"github.com/rcrowley/go-metrics"

	"github.com/placesgw/places-gateway/gwapi"
)

// Metrics records gateway activity into a go-metrics registry. Satisfies the
// MetricsEngine interface.
type Metrics struct {
	MetricsRegistry            metrics.Registry
	ConnectionCounter          metrics.Counter
	ConnectionAcceptErrorMeter metrics.Meter
	ConnectionCloseErrorMeter  metrics.Meter
	RequestTimer               metrics.Timer
	SafariRequestMeter         metrics.Meter
	BatchSizeHistogram         metrics.Histogram
	PanicMeter                 metrics.Meter

	// By-action request meters, further split by return status.
	RequestStatuses map[gwapi.ActionName]map[RequestStatus]metrics.Meter
	CacheHitMeter   map[gwapi.ActionName]metrics.Meter
	CacheMissMeter  map[gwapi.ActionName]metrics.Meter

	UpstreamMetrics map[string]*UpstreamMetrics
}

// UpstreamMetrics houses the metrics for one outbound operation kind.
type UpstreamMetrics struct {
	RequestMeter  metrics.Meter
	ErrorMeter    map[UpstreamError]metrics.Meter
	FallbackMeter metrics.Meter
	RequestTimer  metrics.Timer
}

// NewBlankMetrics creates a Metrics object where every metric is a no-op. Useful for
// tests which need an engine but assert nothing about it, and as the base NewMetrics
// builds on so that no field is ever nil.
func NewBlankMetrics(registry metrics.Registry) *Metrics {
	blankMeter := &metrics.NilMeter{}
	newMetrics := &Metrics{
		MetricsRegistry:            registry,
		ConnectionCounter:          metrics.NilCounter{},
		ConnectionAcceptErrorMeter: blankMeter,
		ConnectionCloseErrorMeter:  blankMeter,
		RequestTimer:               &metrics.NilTimer{},
		SafariRequestMeter:         blankMeter,
		BatchSizeHistogram:         &metrics.NilHistogram{},
		PanicMeter:                 blankMeter,
		RequestStatuses:            make(map[gwapi.ActionName]map[RequestStatus]metrics.Meter),
		CacheHitMeter:              make(map[gwapi.ActionName]metrics.Meter),
		CacheMissMeter:             make(map[gwapi.ActionName]metrics.Meter),
		UpstreamMetrics:            make(map[string]*UpstreamMetrics),
	}

	for name := range gwapi.BuildActionMap() {
		action := gwapi.ActionName(name)
		newMetrics.RequestStatuses[action] = make(map[RequestStatus]metrics.Meter)
		for _, status := range RequestStatuses() {
			newMetrics.RequestStatuses[action][status] = blankMeter
		}
		newMetrics.CacheHitMeter[action] = blankMeter
		newMetrics.CacheMissMeter[action] = blankMeter
	}

	for _, op := range Operations() {
		um := &UpstreamMetrics{
			RequestMeter:  blankMeter,
			ErrorMeter:    make(map[UpstreamError]metrics.Meter),
			FallbackMeter: blankMeter,
			RequestTimer:  &metrics.NilTimer{},
		}
		for _, kind := range UpstreamErrors() {
			um.ErrorMeter[kind] = blankMeter
		}
		newMetrics.UpstreamMetrics[op] = um
	}

	return newMetrics
}

// NewMetrics creates a Metrics object with all the gateway metrics registered, so
// every series exists from startup instead of popping into existence on first use.
func NewMetrics(registry metrics.Registry) *Metrics {
	newMetrics := NewBlankMetrics(registry)
	newMetrics.ConnectionCounter = metrics.GetOrRegisterCounter("active_connections", registry)
	newMetrics.ConnectionAcceptErrorMeter = metrics.GetOrRegisterMeter("connection_accept_errors", registry)
	newMetrics.ConnectionCloseErrorMeter = metrics.GetOrRegisterMeter("connection_close_errors", registry)
	newMetrics.RequestTimer = metrics.GetOrRegisterTimer("request_time", registry)
	newMetrics.SafariRequestMeter = metrics.GetOrRegisterMeter("safari_requests", registry)
	newMetrics.BatchSizeHistogram = metrics.GetOrRegisterHistogram("batch_size", registry, metrics.NewExpDecaySample(1028, 0.015))
	newMetrics.PanicMeter = metrics.GetOrRegisterMeter("gateway_panics", registry)

	for action := range newMetrics.RequestStatuses {
		for _, status := range RequestStatuses() {
			newMetrics.RequestStatuses[action][status] = metrics.GetOrRegisterMeter(
				fmt.Sprintf("requests.%s.%s", action, status), registry)
		}
		newMetrics.CacheHitMeter[action] = metrics.GetOrRegisterMeter(fmt.Sprintf("cache.%s.hits", action), registry)
		newMetrics.CacheMissMeter[action] = metrics.GetOrRegisterMeter(fmt.Sprintf("cache.%s.misses", action), registry)
	}

	for _, op := range Operations() {
		um := newMetrics.UpstreamMetrics[op]
		um.RequestMeter = metrics.GetOrRegisterMeter(fmt.Sprintf("upstream.%s.requests", op), registry)
		um.FallbackMeter = metrics.GetOrRegisterMeter(fmt.Sprintf("upstream.%s.fallbacks", op), registry)
		um.RequestTimer = metrics.GetOrRegisterTimer(fmt.Sprintf("upstream.%s.request_time", op), registry)
		for _, kind := range UpstreamErrors() {
			if kind == UpstreamErrorNone {
				continue
			}
			um.ErrorMeter[kind] = metrics.GetOrRegisterMeter(fmt.Sprintf("upstream.%s.errors.%s", op, kind), registry)
		}
	}

	return newMetrics
}

func (me *Metrics) RecordConnectionAccept(success bool) {
	if success {
		me.ConnectionCounter.Inc(1)
	} else {
		me.ConnectionAcceptErrorMeter.Mark(1)
	}
}

func (me *Metrics) RecordConnectionClose(success bool) {
	if success {
		me.ConnectionCounter.Dec(1)
	} else {
		me.ConnectionCloseErrorMeter.Mark(1)
	}
}

func (me *Metrics) RecordRequest(labels Labels) {
	if actionMeters, ok := me.RequestStatuses[labels.Action]; ok {
		if meter, ok := actionMeters[labels.RequestStatus]; ok {
			meter.Mark(1)
		}
	}
	if labels.Browser == BrowserSafari {
		me.SafariRequestMeter.Mark(1)
	}
}

func (me *Metrics) RecordRequestTime(labels Labels, length time.Duration) {
	// Only record times for successfully resolved requests, so that failed or
	// short-circuited requests don't skew the dataset.
	if labels.RequestStatus == RequestStatusOK {
		me.RequestTimer.Update(length)
	}
}

func (me *Metrics) RecordUpstreamRequest(labels UpstreamLabels) {
	um, ok := me.UpstreamMetrics[labels.Operation]
	if !ok {
		return
	}
	um.RequestMeter.Mark(1)
	if labels.Fallback == FallbackYes {
		um.FallbackMeter.Mark(1)
	}
	if labels.Error != UpstreamErrorNone {
		if meter, ok := um.ErrorMeter[labels.Error]; ok {
			meter.Mark(1)
		}
	}
}

func (me *Metrics) RecordUpstreamTime(labels UpstreamLabels, length time.Duration) {
	if um, ok := me.UpstreamMetrics[labels.Operation]; ok {
		um.RequestTimer.Update(length)
	}
}

func (me *Metrics) RecordCacheLookup(action gwapi.ActionName, hit bool) {
	if hit {
		if meter, ok := me.CacheHitMeter[action]; ok {
			meter.Mark(1)
		}
	} else {
		if meter, ok := me.CacheMissMeter[action]; ok {
			meter.Mark(1)
		}
	}
}

func (me *Metrics) RecordBatchSize(size int) {
	me.BatchSizeHistogram.Update(int64(size))
}

func (me *Metrics) RecordPanic(action gwapi.ActionName) {
	me.PanicMeter.Mark(1)
}
