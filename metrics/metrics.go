package metrics

import (
	"time"

	"github.com/placesgw/places-gateway/gwapi"
)

// Labels defines the labels that can be attached to the per-request metrics.
type Labels struct {
	Action        gwapi.ActionName
	Browser       Browser
	CacheFlag     CacheFlag
	RequestStatus RequestStatus
}

// UpstreamLabels defines the labels that can be attached to the outbound provider-call
// metrics. One incoming batch request fans out to many upstream calls, so these fire
// at a higher rate than the request metrics; comparing counts between the two groups
// is generally not useful.
type UpstreamLabels struct {
	Operation string // places.Operation value; plain string to keep this package leaf-like
	Fallback  FallbackFlag
	Error     UpstreamError
}

// Browser type enumeration
type Browser string

// CacheFlag : whether the response payload came from the cache
type CacheFlag string

// RequestStatus : the request return status
type RequestStatus string

// FallbackFlag : whether the field-mask fallback retry fired for the call
type FallbackFlag string

// UpstreamError : errors which may have occurred during an outbound provider call
type UpstreamError string

// Browser flag; at this point we only care about identifying Safari
const (
	BrowserSafari Browser = "safari"
	BrowserOther  Browser = "other"
)

func BrowserTypes() []Browser {
	return []Browser{
		BrowserSafari,
		BrowserOther,
	}
}

// Cache flags. Skip covers the two search actions which never consult the cache.
const (
	CacheHit  CacheFlag = "hit"
	CacheMiss CacheFlag = "miss"
	CacheSkip CacheFlag = "skip"
)

func CacheFlags() []CacheFlag {
	return []CacheFlag{
		CacheHit,
		CacheMiss,
		CacheSkip,
	}
}

// Request/return status
const (
	RequestStatusOK           RequestStatus = "ok"
	RequestStatusBadInput     RequestStatus = "badinput"
	RequestStatusUnauthorized RequestStatus = "unauthorized"
	RequestStatusUpstreamErr  RequestStatus = "upstream_err"
	RequestStatusErr          RequestStatus = "err"
)

func RequestStatuses() []RequestStatus {
	return []RequestStatus{
		RequestStatusOK,
		RequestStatusBadInput,
		RequestStatusUnauthorized,
		RequestStatusUpstreamErr,
		RequestStatusErr,
	}
}

const (
	FallbackYes FallbackFlag = "yes"
	FallbackNo  FallbackFlag = "no"
)

func FallbackFlags() []FallbackFlag {
	return []FallbackFlag{
		FallbackYes,
		FallbackNo,
	}
}

// Upstream call outcomes
const (
	UpstreamErrorNone      UpstreamError = "none"
	UpstreamErrorFieldMask UpstreamError = "fieldmask"
	UpstreamErrorBadServer UpstreamError = "badserverresponse"
	UpstreamErrorTimeout   UpstreamError = "timeout"
	UpstreamErrorNetwork   UpstreamError = "networkerr"
	UpstreamErrorUnknown   UpstreamError = "unknown_error"
)

func UpstreamErrors() []UpstreamError {
	return []UpstreamError{
		UpstreamErrorNone,
		UpstreamErrorFieldMask,
		UpstreamErrorBadServer,
		UpstreamErrorTimeout,
		UpstreamErrorNetwork,
		UpstreamErrorUnknown,
	}
}

// Operations enumerates the outbound call kinds for metric pre-registration.
func Operations() []string {
	return []string{
		"searchText",
		"nearbySearch",
		"details",
		"autocomplete",
	}
}

// MetricsEngine is a generic interface to record gateway metrics into the desired
// backend. The request metrics fire once per incoming request, the upstream metrics
// once per outbound provider call, and the cache metrics once per cache lookup.
type MetricsEngine interface {
	RecordConnectionAccept(success bool)
	RecordConnectionClose(success bool)
	RecordRequest(labels Labels)
	RecordRequestTime(labels Labels, length time.Duration)
	RecordUpstreamRequest(labels UpstreamLabels)
	RecordUpstreamTime(labels UpstreamLabels, length time.Duration)
	RecordCacheLookup(action gwapi.ActionName, hit bool)
	RecordBatchSize(size int)
	RecordPanic(action gwapi.ActionName)
}
