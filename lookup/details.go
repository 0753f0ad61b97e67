package lookup

import (
	"context"
	"encoding/json"
	"time"

	"github.com/placesgw/places-gateway/cache"
	"github.com/placesgw/places-gateway/errortypes"
	"github.com/placesgw/places-gateway/gwapi"
	"github.com/placesgw/places-gateway/metrics"
	"github.com/placesgw/places-gateway/places"
)

// Fetcher resolves place detail lookups through the response cache, the provider
// client, and the field-mask fallback policy. One Fetcher is shared by the single
// details path and the batch coordinator.
type Fetcher struct {
	Client  *places.Client
	Cache   *cache.Cache
	TTL     time.Duration
	Metrics metrics.MetricsEngine
}

// DetailsResult is one place lookup outcome. Exactly one of the two shapes is
// populated: {PlaceID, Data, Cached} on success, {PlaceID, Error, Status, Body}
// on failure.
type DetailsResult struct {
	PlaceID string          `json:"placeId"`
	Data    json.RawMessage `json:"data,omitempty"`
	Cached  bool            `json:"cached"`
	Error   bool            `json:"error,omitempty"`
	Status  int             `json:"status,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`

	// Fallback marks a lookup whose answer came from the degraded retry. It feeds
	// analytics only and never appears in response envelopes.
	Fallback bool `json:"-"`
}

// Details resolves one place: cache first, then the provider with the fallback
// policy, writing a fresh success back into the cache. The action label only feeds
// metrics; details and batchDetails share everything else, including cache entries.
//
// The returned error is non-nil on any failure. When the provider responded at all,
// the result still carries the upstream status and body for passthrough; on a network
// fault or timeout the result is nil.
func (f *Fetcher) Details(ctx context.Context, action gwapi.ActionName, placeID string, fields []string) (*DetailsResult, error) {
	normalized := places.NormalizePlaceID(placeID)
	if len(fields) == 0 {
		fields = places.DefaultFieldMask()
	}
	key := CacheKey(places.OpDetails, normalized, fields)

	if payload, ok := f.Cache.Get(key); ok {
		f.Metrics.RecordCacheLookup(action, true)
		return &DetailsResult{PlaceID: normalized, Data: payload, Cached: true}, nil
	}
	f.Metrics.RecordCacheLookup(action, false)

	resp, fellBack, err := f.fetchWithFallback(ctx, normalized, fields)
	if err != nil {
		if resp == nil {
			return nil, err
		}
		return &DetailsResult{
			PlaceID:  normalized,
			Error:    true,
			Status:   resp.StatusCode,
			Body:     rawOrString(resp.Body),
			Fallback: fellBack,
		}, err
	}

	f.Cache.Put(key, json.RawMessage(resp.Body), f.TTL)
	return &DetailsResult{PlaceID: normalized, Data: json.RawMessage(resp.Body), Cached: false, Fallback: fellBack}, nil
}

// fetchWithFallback issues the details call, and on the provider's field-expansion
// rejection re-issues it exactly once with the default mask. A second failure of any
// kind surfaces verbatim; nothing ever retries twice. The retry is skipped when the
// caller's mask already is the default, since the same call can't succeed twice.
func (f *Fetcher) fetchWithFallback(ctx context.Context, placeID string, fields []string) (*places.ResponseData, bool, error) {
	resp, err := f.doDetails(ctx, placeID, fields, metrics.FallbackNo)
	if err == nil || !places.IsFieldMaskError(err) || places.IsDefaultFieldMask(fields) {
		return resp, false, err
	}
	resp, err = f.doDetails(ctx, placeID, places.DefaultFieldMask(), metrics.FallbackYes)
	return resp, true, err
}

func (f *Fetcher) doDetails(ctx context.Context, placeID string, fields []string, fallback metrics.FallbackFlag) (*places.ResponseData, error) {
	return f.callUpstream(ctx, places.OpDetails, fallback, func(ctx context.Context) (*places.ResponseData, error) {
		return f.Client.Details(ctx, &places.DetailsRequest{PlaceID: placeID, Fields: fields})
	})
}

func errorKind(err error) metrics.UpstreamError {
	switch err.(type) {
	case nil:
		return metrics.UpstreamErrorNone
	case *errortypes.FieldValidation:
		return metrics.UpstreamErrorFieldMask
	case *errortypes.BadServerResponse:
		return metrics.UpstreamErrorBadServer
	case *errortypes.Timeout:
		return metrics.UpstreamErrorTimeout
	default:
		return metrics.UpstreamErrorNetwork
	}
}
