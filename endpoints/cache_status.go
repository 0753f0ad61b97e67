package endpoints

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang/glog"

	"github.com/placesgw/places-gateway/cache"
)

type cacheStatus struct {
	cache.Stats
	TTLSeconds float64 `json:"ttlSeconds"`
}

// NewCacheStatusEndpoint serves a point-in-time snapshot of the lookup cache
// counters on the admin port.
func NewCacheStatusEndpoint(c *cache.Cache, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		status := cacheStatus{
			Stats:      c.Snapshot(),
			TTLSeconds: ttl.Seconds(),
		}

		out, err := json.Marshal(status)
		if err != nil {
			glog.Errorf("/cache/status error marshaling cache snapshot: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(out)
	}
}
