package places

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/context/ctxhttp"

	"github.com/placesgw/places-gateway/errortypes"
)

// Operation discriminates the provider calls for cache keys, metrics labels and
// analytics records.
type Operation string

const (
	OpSearchText   Operation = "searchText"
	OpNearbySearch Operation = "nearbySearch"
	OpDetails      Operation = "details"
	OpAutocomplete Operation = "autocomplete"
)

// TextSearchRequest holds the caller-supplied inputs for a text search.
type TextSearchRequest struct {
	TextQuery    string
	RegionCode   string
	PageSize     int
	LanguageCode string
	IncludedType string
}

// NearbySearchRequest holds the caller-supplied inputs for a nearby search.
// Radius and MaxResultCount fall back to the provider-documented defaults when zero.
type NearbySearchRequest struct {
	Latitude       float64
	Longitude      float64
	Radius         float64
	IncludedType   string
	MaxResultCount int
}

// DetailsRequest asks for one place by its identifier. The identifier may arrive
// in raw or "places/"-prefixed form; the client normalizes before building the URL.
type DetailsRequest struct {
	PlaceID string
	Fields  []string
}

// AutocompleteRequest holds the caller-supplied inputs for an autocomplete lookup.
type AutocompleteRequest struct {
	Input        string
	LanguageCode string
	RegionCode   string
	Types        []string
}

// RequestData packages together the fields needed to make an http.Request.
//
// This exists so the gateway core can log and test outbound calls uniformly across
// all five operations.
type RequestData struct {
	Method  string
	Uri     string
	Body    []byte
	Headers http.Header
}

// ResponseData packages together information from the provider's http.Response.
// On a non-2xx it travels alongside the typed error so the dispatcher can mirror
// the upstream status and body back to the caller.
type ResponseData struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Client issues outbound calls to the places provider. It performs no retries;
// the fallback policy in package lookup owns the one degrade-and-retry.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient builds a provider client on the shared transport. baseURL carries no
// trailing slash (e.g. "https://places.googleapis.com").
func NewClient(httpClient *http.Client, baseURL string, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
	}
}

const (
	defaultPageSize       = 10
	defaultRadiusMeters   = 1000
	defaultMaxResultCount = 20
)

// SearchText runs a text search. The response payload is the provider's body verbatim.
func (c *Client) SearchText(ctx context.Context, req *TextSearchRequest) (*ResponseData, error) {
	body := map[string]interface{}{
		"textQuery": req.TextQuery,
		"pageSize":  orDefaultInt(req.PageSize, defaultPageSize),
	}
	if req.RegionCode != "" {
		body["regionCode"] = req.RegionCode
	}
	if req.LanguageCode != "" {
		body["languageCode"] = req.LanguageCode
	}
	if req.IncludedType != "" {
		body["includedType"] = req.IncludedType
	}
	return c.do(ctx, c.makeSearchRequest("/v1/places:searchText", body))
}

// SearchNearby runs a nearby search around a point, expressed to the provider as a
// circle location restriction.
func (c *Client) SearchNearby(ctx context.Context, req *NearbySearchRequest) (*ResponseData, error) {
	radius := req.Radius
	if radius <= 0 {
		radius = defaultRadiusMeters
	}
	body := map[string]interface{}{
		"locationRestriction": map[string]interface{}{
			"circle": map[string]interface{}{
				"center": map[string]interface{}{
					"latitude":  req.Latitude,
					"longitude": req.Longitude,
				},
				"radius": radius,
			},
		},
		"maxResultCount": orDefaultInt(req.MaxResultCount, defaultMaxResultCount),
	}
	if req.IncludedType != "" {
		body["includedType"] = req.IncludedType
	}
	return c.do(ctx, c.makeSearchRequest("/v1/places:searchNearby", body))
}

// Details fetches one place. The field mask rides both the query string and the
// X-Goog-FieldMask header.
func (c *Client) Details(ctx context.Context, req *DetailsRequest) (*ResponseData, error) {
	fields := req.Fields
	if len(fields) == 0 {
		fields = DefaultFieldMask()
	}
	mask := strings.Join(fields, ",")

	query := url.Values{}
	query.Set("fields", mask)

	headers := c.baseHeaders()
	headers.Set("X-Goog-FieldMask", mask)

	return c.do(ctx, &RequestData{
		Method:  http.MethodGet,
		Uri:     c.baseURL + "/v1/places/" + url.PathEscape(NormalizePlaceID(req.PlaceID)) + "?" + query.Encode(),
		Headers: headers,
	})
}

// Autocomplete runs a place autocomplete lookup on the input string.
func (c *Client) Autocomplete(ctx context.Context, req *AutocompleteRequest) (*ResponseData, error) {
	query := url.Values{}
	query.Set("input", req.Input)
	if req.LanguageCode != "" {
		query.Set("languageCode", req.LanguageCode)
	}
	if req.RegionCode != "" {
		query.Set("regionCode", req.RegionCode)
	}
	if len(req.Types) > 0 {
		query.Set("types", strings.Join(req.Types, ","))
	}

	return c.do(ctx, &RequestData{
		Method:  http.MethodGet,
		Uri:     c.baseURL + "/v1/places:autocomplete?" + query.Encode(),
		Headers: c.baseHeaders(),
	})
}

// HasCredential reports whether a provider key is configured at all. The dispatcher
// answers missing_google_api_key before routing when this is false.
func (c *Client) HasCredential() bool {
	return c.apiKey != ""
}

func (c *Client) makeSearchRequest(path string, body map[string]interface{}) *RequestData {
	// Search responses nest places under a "places" array, so the mask paths
	// get the array prefix. POSTs carry the mask only in the header.
	headers := c.baseHeaders()
	headers.Set("Content-Type", "application/json")
	headers.Set("X-Goog-FieldMask", searchFieldMask(defaultFieldMask))

	// Marshalling a map of scalars can't fail.
	encoded, _ := json.Marshal(body)

	return &RequestData{
		Method:  http.MethodPost,
		Uri:     c.baseURL + path,
		Body:    encoded,
		Headers: headers,
	}
}

// baseHeaders returns the headers every outbound call carries. The credential goes
// in a header, never a query parameter, so it can't leak into access logs.
func (c *Client) baseHeaders() http.Header {
	headers := http.Header{}
	headers.Set("X-Goog-Api-Key", c.apiKey)
	headers.Set("Accept", "application/json")
	return headers
}

// do issues the request, reads the body, and folds a non-2xx status into a typed
// error while keeping the response for passthrough. Network faults return a nil
// response; context expiry comes back as errortypes.Timeout.
func (c *Client) do(ctx context.Context, req *RequestData) (*ResponseData, error) {
	httpReq, err := http.NewRequest(req.Method, req.Uri, bytes.NewBuffer(req.Body))
	if err != nil {
		return nil, err
	}
	httpReq.Header = req.Headers

	httpResp, err := ctxhttp.Do(ctx, c.httpClient, httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &errortypes.Timeout{Message: "Provider call timed out: " + err.Error()}
		}
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := ioutil.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	response := &ResponseData{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return response, classifyError(httpResp.StatusCode, respBody)
	}
	return response, nil
}

func orDefaultInt(value int, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
