package endpoints

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"

	"github.com/placesgw/places-gateway/cache"
)

func TestStatusEndpointNoContent(t *testing.T) {
	handler := NewStatusEndpoint("")
	recorder := httptest.NewRecorder()
	handler(recorder, httptest.NewRequest("GET", "/status", nil), httprouter.Params{})

	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Empty(t, recorder.Body.String())
}

func TestStatusEndpointCustomResponse(t *testing.T) {
	handler := NewStatusEndpoint("ready")
	recorder := httptest.NewRecorder()
	handler(recorder, httptest.NewRequest("GET", "/status", nil), httprouter.Params{})

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "ready", recorder.Body.String())
}

func TestVersionEndpoint(t *testing.T) {
	testCases := []struct {
		description string
		revision    string
		expected    string
	}{
		{
			description: "revision set",
			revision:    "d6cd1e2bd19e03a81132a23b2025920577f84e37",
			expected:    `{"revision":"d6cd1e2bd19e03a81132a23b2025920577f84e37"}`,
		},
		{
			description: "revision not set",
			revision:    "",
			expected:    `{"revision":"not-set"}`,
		},
	}

	for _, test := range testCases {
		handler := NewVersionEndpoint(test.revision)
		recorder := httptest.NewRecorder()
		handler(recorder, httptest.NewRequest("GET", "/version", nil))

		assert.JSONEq(t, test.expected, recorder.Body.String(), test.description)
	}
}

func TestCacheStatusEndpoint(t *testing.T) {
	c := cache.New(cache.Config{MaxEntries: 3})
	c.Put("details|ChIJabc|id", json.RawMessage(`{"id":"ChIJabc"}`), time.Minute)
	c.Get("details|ChIJabc|id")
	c.Get("details|missing|id")

	handler := NewCacheStatusEndpoint(c, time.Hour)
	recorder := httptest.NewRecorder()
	handler(recorder, httptest.NewRequest("GET", "/cache/status", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))

	var status struct {
		Entries    int     `json:"entries"`
		MaxEntries int     `json:"maxEntries"`
		Hits       uint64  `json:"hits"`
		Misses     uint64  `json:"misses"`
		TTLSeconds float64 `json:"ttlSeconds"`
	}
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &status))
	assert.Equal(t, 1, status.Entries)
	assert.Equal(t, 3, status.MaxEntries)
	assert.Equal(t, uint64(1), status.Hits)
	assert.Equal(t, uint64(1), status.Misses)
	assert.Equal(t, float64(3600), status.TTLSeconds)
}
