package router

import (
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/placesgw/places-gateway/cache"
	"github.com/placesgw/places-gateway/endpoints"
)

// Admin builds the handler for the admin port: pprof, the build revision, and the
// cache counters. Nothing here needs the gateway credential, which is why it lives
// on its own port.
func Admin(revision string, responseCache *cache.Cache, cacheTTL time.Duration) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/version", endpoints.NewVersionEndpoint(revision))
	mux.HandleFunc("/cache/status", endpoints.NewCacheStatusEndpoint(responseCache, cacheTTL))
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}
