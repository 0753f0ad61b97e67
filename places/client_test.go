package places

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xorcare/pointer"

	"github.com/placesgw/places-gateway/errortypes"
)

type recordedRequest struct {
	method string
	path   string
	query  url.Values
	header http.Header
	body   []byte
}

func newRecordingServer(t *testing.T, statusCode int, responseBody string) (*httptest.Server, *[]recordedRequest) {
	var seen []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := ioutil.ReadAll(r.Body)
		require.NoError(t, err)
		seen = append(seen, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.Query(),
			header: r.Header,
			body:   body,
		})
		w.WriteHeader(statusCode)
		w.Write([]byte(responseBody))
	}))
	return server, &seen
}

func TestSearchText(t *testing.T) {
	server, seen := newRecordingServer(t, 200, `{"places":[{"id":"ChIJabc"}]}`)
	defer server.Close()

	client := NewClient(server.Client(), server.URL, "provider-key")
	resp, err := client.SearchText(context.Background(), &TextSearchRequest{
		TextQuery:    "coffee in portland",
		RegionCode:   "us",
		LanguageCode: "en",
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.JSONEq(t, `{"places":[{"id":"ChIJabc"}]}`, string(resp.Body))

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, "POST", req.method)
	assert.Equal(t, "/v1/places:searchText", req.path)
	assert.Equal(t, "provider-key", req.header.Get("X-Goog-Api-Key"))
	assert.Equal(t, "application/json", req.header.Get("Content-Type"))
	assert.Equal(t, searchFieldMask(defaultFieldMask), req.header.Get("X-Goog-FieldMask"))
	assert.NotContains(t, req.query.Encode(), "provider-key", "the credential must never ride the query string")

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(req.body, &body))
	assert.Equal(t, "coffee in portland", body["textQuery"])
	assert.Equal(t, float64(10), body["pageSize"], "pageSize should default to 10")
	assert.Equal(t, "us", body["regionCode"])
	assert.Equal(t, "en", body["languageCode"])
	assert.NotContains(t, body, "includedType")
}

func TestSearchTextPageSizes(t *testing.T) {
	testCases := []struct {
		description string
		pageSize    *int
		expected    float64
	}{
		{
			description: "default when unset",
			pageSize:    nil,
			expected:    10,
		},
		{
			description: "explicit value wins over the default",
			pageSize:    pointer.Int(5),
			expected:    5,
		},
	}

	for _, test := range testCases {
		server, seen := newRecordingServer(t, 200, `{"places":[]}`)

		req := &TextSearchRequest{TextQuery: "coffee"}
		if test.pageSize != nil {
			req.PageSize = *test.pageSize
		}

		client := NewClient(server.Client(), server.URL, "provider-key")
		_, err := client.SearchText(context.Background(), req)
		require.NoError(t, err, test.description)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal((*seen)[0].body, &body))
		assert.Equal(t, test.expected, body["pageSize"], test.description)
		server.Close()
	}
}

func TestSearchNearby(t *testing.T) {
	server, seen := newRecordingServer(t, 200, `{"places":[]}`)
	defer server.Close()

	client := NewClient(server.Client(), server.URL, "provider-key")
	_, err := client.SearchNearby(context.Background(), &NearbySearchRequest{
		Latitude:     45.52,
		Longitude:    -122.68,
		IncludedType: "restaurant",
	})
	require.NoError(t, err)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, "POST", req.method)
	assert.Equal(t, "/v1/places:searchNearby", req.path)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(req.body, &body))
	circle := body["locationRestriction"].(map[string]interface{})["circle"].(map[string]interface{})
	center := circle["center"].(map[string]interface{})
	assert.Equal(t, 45.52, center["latitude"])
	assert.Equal(t, -122.68, center["longitude"])
	assert.Equal(t, float64(1000), circle["radius"], "radius should default to 1000")
	assert.Equal(t, float64(20), body["maxResultCount"], "maxResultCount should default to 20")
	assert.Equal(t, "restaurant", body["includedType"])
}

func TestDetails(t *testing.T) {
	server, seen := newRecordingServer(t, 200, `{"id":"ChIJabc","displayName":{"text":"Somewhere"}}`)
	defer server.Close()

	client := NewClient(server.Client(), server.URL, "provider-key")
	resp, err := client.Details(context.Background(), &DetailsRequest{
		PlaceID: "places/ChIJabc",
		Fields:  []string{"id", "displayName"},
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, "GET", req.method)
	assert.Equal(t, "/v1/places/ChIJabc", req.path, "the places/ prefix must be stripped from the URL")
	assert.Equal(t, "id,displayName", req.query.Get("fields"))
	assert.Equal(t, "id,displayName", req.header.Get("X-Goog-FieldMask"), "the mask rides both the query string and the header")
	assert.Equal(t, "provider-key", req.header.Get("X-Goog-Api-Key"))
}

func TestDetailsDefaultMask(t *testing.T) {
	server, seen := newRecordingServer(t, 200, `{}`)
	defer server.Close()

	client := NewClient(server.Client(), server.URL, "provider-key")
	_, err := client.Details(context.Background(), &DetailsRequest{PlaceID: "ChIJabc"})
	require.NoError(t, err)

	require.Len(t, *seen, 1)
	assert.Equal(t, "id,displayName,formattedAddress,location", (*seen)[0].query.Get("fields"))
}

func TestAutocomplete(t *testing.T) {
	server, seen := newRecordingServer(t, 200, `{"suggestions":[]}`)
	defer server.Close()

	client := NewClient(server.Client(), server.URL, "provider-key")
	_, err := client.Autocomplete(context.Background(), &AutocompleteRequest{
		Input:        "pizz",
		LanguageCode: "en",
		RegionCode:   "us",
		Types:        []string{"restaurant", "cafe"},
	})
	require.NoError(t, err)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, "GET", req.method)
	assert.Equal(t, "/v1/places:autocomplete", req.path)
	assert.Equal(t, "pizz", req.query.Get("input"))
	assert.Equal(t, "en", req.query.Get("languageCode"))
	assert.Equal(t, "us", req.query.Get("regionCode"))
	assert.Equal(t, "restaurant,cafe", req.query.Get("types"))
}

func TestNon2xxKeepsResponseForPassthrough(t *testing.T) {
	server, _ := newRecordingServer(t, 403, `{"error":{"message":"The provided API key is invalid."}}`)
	defer server.Close()

	client := NewClient(server.Client(), server.URL, "bad-key")
	resp, err := client.Details(context.Background(), &DetailsRequest{PlaceID: "ChIJabc"})
	require.Error(t, err)
	assert.IsType(t, &errortypes.BadServerResponse{}, err)
	require.NotNil(t, resp, "the upstream status and body must survive for passthrough")
	assert.Equal(t, 403, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "API key is invalid")
}

func TestFieldMaskRejectionIsTyped(t *testing.T) {
	server, _ := newRecordingServer(t, 400, `{"error":{"message":"Field 'bogus' is not valid for this request.","status":"INVALID_ARGUMENT"}}`)
	defer server.Close()

	client := NewClient(server.Client(), server.URL, "provider-key")
	resp, err := client.Details(context.Background(), &DetailsRequest{
		PlaceID: "ChIJabc",
		Fields:  []string{"bogus"},
	})
	require.Error(t, err)
	assert.True(t, IsFieldMaskError(err))
	assert.Equal(t, 400, resp.StatusCode)
}

func TestContextCancellation(t *testing.T) {
	server, _ := newRecordingServer(t, 200, `{}`)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.Client(), server.URL, "provider-key")
	resp, err := client.Details(ctx, &DetailsRequest{PlaceID: "ChIJabc"})
	require.Error(t, err)
	assert.IsType(t, &errortypes.Timeout{}, err)
	assert.Nil(t, resp)
}

func TestHasCredential(t *testing.T) {
	assert.True(t, NewClient(http.DefaultClient, "https://example.com", "key").HasCredential())
	assert.False(t, NewClient(http.DefaultClient, "https://example.com", "").HasCredential())
}
