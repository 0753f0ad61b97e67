package lookup

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/placesgw/places-gateway/gwapi"
	"github.com/placesgw/places-gateway/metrics"
	"github.com/placesgw/places-gateway/places"
)

// SearchText issues a text search. The pure searches skip the cache: their result
// sets shift with ranking and inventory too quickly for a shared TTL to hold.
func (f *Fetcher) SearchText(ctx context.Context, req *places.TextSearchRequest) (*places.ResponseData, error) {
	return f.callUpstream(ctx, places.OpSearchText, metrics.FallbackNo, func(ctx context.Context) (*places.ResponseData, error) {
		return f.Client.SearchText(ctx, req)
	})
}

// SearchNearby issues a nearby search, uncached like SearchText.
func (f *Fetcher) SearchNearby(ctx context.Context, req *places.NearbySearchRequest) (*places.ResponseData, error) {
	return f.callUpstream(ctx, places.OpNearbySearch, metrics.FallbackNo, func(ctx context.Context) (*places.ResponseData, error) {
		return f.Client.SearchNearby(ctx, req)
	})
}

// Autocomplete resolves suggestions through the cache: a hit returns the stored
// payload without touching the provider, a miss stores a success under the standard
// TTL. The key folds in every request knob that changes the provider's answer, so
// the same input in two languages never shares an entry.
func (f *Fetcher) Autocomplete(ctx context.Context, req *places.AutocompleteRequest) (*places.ResponseData, bool, error) {
	key := CacheKey(places.OpAutocomplete, req.Input, autocompleteKeyFields(req))

	if payload, ok := f.Cache.Get(key); ok {
		f.Metrics.RecordCacheLookup(gwapi.ActionAutocomplete, true)
		return &places.ResponseData{StatusCode: http.StatusOK, Body: payload}, true, nil
	}
	f.Metrics.RecordCacheLookup(gwapi.ActionAutocomplete, false)

	resp, err := f.callUpstream(ctx, places.OpAutocomplete, metrics.FallbackNo, func(ctx context.Context) (*places.ResponseData, error) {
		return f.Client.Autocomplete(ctx, req)
	})
	if err == nil && resp != nil {
		f.Cache.Put(key, json.RawMessage(resp.Body), f.TTL)
	}
	return resp, false, err
}

func autocompleteKeyFields(req *places.AutocompleteRequest) []string {
	parts := make([]string, 0, len(req.Types)+2)
	if req.LanguageCode != "" {
		parts = append(parts, "lang="+req.LanguageCode)
	}
	if req.RegionCode != "" {
		parts = append(parts, "region="+req.RegionCode)
	}
	for _, item := range req.Types {
		parts = append(parts, "type="+item)
	}
	return parts
}

// callUpstream wraps one provider call with the per-operation request and latency
// metrics. Every outbound call rides through here.
func (f *Fetcher) callUpstream(ctx context.Context, op places.Operation, fallback metrics.FallbackFlag, call func(context.Context) (*places.ResponseData, error)) (*places.ResponseData, error) {
	start := time.Now()
	resp, err := call(ctx)

	labels := metrics.UpstreamLabels{
		Operation: string(op),
		Fallback:  fallback,
		Error:     errorKind(err),
	}
	f.Metrics.RecordUpstreamRequest(labels)
	f.Metrics.RecordUpstreamTime(labels, time.Since(start))
	return resp, err
}
