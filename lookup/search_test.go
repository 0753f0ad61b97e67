package lookup

import (
	"context"
	"testing"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placesgw/places-gateway/metrics"
	"github.com/placesgw/places-gateway/places"
)

func TestAutocompleteCachedRoundTrip(t *testing.T) {
	script := &upstreamScript{}
	f, server := newTestFetcher(script)
	defer server.Close()

	req := &places.AutocompleteRequest{Input: "pizza in soho"}

	resp, cached, err := f.Autocomplete(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, cached)

	again, cached, err := f.Autocomplete(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, cached, "the second identical lookup must come from the cache")
	assert.Equal(t, string(resp.Body), string(again.Body))
	assert.Equal(t, int64(1), script.callCount(), "the cached lookup must not reach upstream")
}

func TestAutocompleteKeyDiscriminators(t *testing.T) {
	script := &upstreamScript{}
	f, server := newTestFetcher(script)
	defer server.Close()

	_, _, err := f.Autocomplete(context.Background(), &places.AutocompleteRequest{Input: "pizza", LanguageCode: "en"})
	require.NoError(t, err)
	_, cached, err := f.Autocomplete(context.Background(), &places.AutocompleteRequest{Input: "pizza", LanguageCode: "fr"})
	require.NoError(t, err)

	assert.False(t, cached, "a different languageCode must not share an entry")
	assert.Equal(t, int64(2), script.callCount())
}

func TestAutocompleteFailureNotCached(t *testing.T) {
	script := &upstreamScript{responses: map[string]scriptedResponse{
		"": {status: 500, body: `{"error":"boom"}`},
	}}
	f, server := newTestFetcher(script)
	defer server.Close()

	req := &places.AutocompleteRequest{Input: "pizza"}

	_, cached, err := f.Autocomplete(context.Background(), req)
	assert.Error(t, err)
	assert.False(t, cached)

	_, cached, err = f.Autocomplete(context.Background(), req)
	assert.Error(t, err)
	assert.False(t, cached, "a failed lookup must not seed the cache")
	assert.Equal(t, int64(2), script.callCount())
}

func TestSearchCallsRecordUpstreamMetrics(t *testing.T) {
	script := &upstreamScript{}
	f, server := newTestFetcher(script)
	defer server.Close()

	engine := metrics.NewMetrics(gometrics.NewRegistry())
	f.Metrics = engine

	_, err := f.SearchText(context.Background(), &places.TextSearchRequest{TextQuery: "coffee"})
	require.NoError(t, err)
	_, err = f.SearchNearby(context.Background(), &places.NearbySearchRequest{Latitude: 45.5, Longitude: -122.6})
	require.NoError(t, err)
	_, _, err = f.Autocomplete(context.Background(), &places.AutocompleteRequest{Input: "coffee"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), engine.UpstreamMetrics["searchText"].RequestMeter.Count())
	assert.Equal(t, int64(1), engine.UpstreamMetrics["nearbySearch"].RequestMeter.Count())
	assert.Equal(t, int64(1), engine.UpstreamMetrics["autocomplete"].RequestMeter.Count())
	assert.Equal(t, int64(1), engine.UpstreamMetrics["searchText"].RequestTimer.Count())
}
