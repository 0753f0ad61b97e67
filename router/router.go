package router

import (
	"encoding/json"
	"io/ioutil"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"

	analyticsConf "github.com/placesgw/places-gateway/analytics/config"
	"github.com/placesgw/places-gateway/cache"
	"github.com/placesgw/places-gateway/config"
	"github.com/placesgw/places-gateway/endpoints"
	"github.com/placesgw/places-gateway/endpoints/gateway"
	"github.com/placesgw/places-gateway/gwapi"
	"github.com/placesgw/places-gateway/lookup"
	metricsConf "github.com/placesgw/places-gateway/metrics/config"
	"github.com/placesgw/places-gateway/places"
)

// NewJsonDirectoryServer is used to serve .json files from a directory as a single blob. For example,
// given a directory containing the files "a.json" and "b.json", this returns a Handle which serves JSON like:
//
// {
//   "a": { ... content from the file a.json ... },
//   "b": { ... content from the file b.json ... }
// }
//
// This function stores the file contents in memory, and should not be used on large directories.
// If the root directory, or any of the files in it, cannot be read, then the program will exit.
func NewJsonDirectoryServer(schemaDirectory string, validator gwapi.ActionParamValidator) httprouter.Handle {
	// Slurp the files into memory first, since they're small and it minimizes request latency.
	files, err := ioutil.ReadDir(schemaDirectory)
	if err != nil {
		glog.Fatalf("Failed to read directory %s: %v", schemaDirectory, err)
	}

	actionMap := gwapi.BuildActionMap()

	data := make(map[string]json.RawMessage, len(files))
	for _, file := range files {
		action := strings.TrimSuffix(file.Name(), ".json")
		actionName, isValid := actionMap[action]
		if !isValid {
			glog.Fatalf("Schema exists for an unknown action: %s", action)
		}
		data[action] = json.RawMessage(validator.Schema(actionName))
	}

	response, err := json.Marshal(data)
	if err != nil {
		glog.Fatalf("Failed to marshal action param JSON-schema: %v", err)
	}

	return func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Header().Add("Content-Type", "application/json")
		w.Write(response)
	}
}

type NoCache struct {
	Handler http.Handler
}

func (m NoCache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Add("Pragma", "no-cache")
	w.Header().Add("Expires", "0")
	m.Handler.ServeHTTP(w, r)
}

type Router struct {
	*httprouter.Router
	MetricsEngine   *metricsConf.DetailedMetricsEngine
	ParamsValidator gwapi.ActionParamValidator
	Cache           *cache.Cache
	Shutdown        func()
}

func getTransport(cfg *config.Configuration) *http.Transport {
	transport := &http.Transport{
		MaxConnsPerHost: cfg.Client.MaxConnsPerHost,
		IdleConnTimeout: time.Duration(cfg.Client.IdleConnTimeout) * time.Second,
	}

	if cfg.Client.DialTimeout > 0 {
		transport.Dial = (&net.Dialer{
			Timeout:   time.Duration(cfg.Client.DialTimeout) * time.Millisecond,
			KeepAlive: time.Duration(cfg.Client.DialKeepAlive) * time.Second,
		}).Dial
	}

	if cfg.Client.TLSHandshakeTimeout > 0 {
		transport.TLSHandshakeTimeout = time.Duration(cfg.Client.TLSHandshakeTimeout) * time.Second
	}

	if cfg.Client.ResponseHeaderTimeout > 0 {
		transport.ResponseHeaderTimeout = time.Duration(cfg.Client.ResponseHeaderTimeout) * time.Second
	}

	if cfg.Client.MaxIdleConns > 0 {
		transport.MaxIdleConns = cfg.Client.MaxIdleConns
	}

	if cfg.Client.MaxIdleConnsPerHost > 0 {
		transport.MaxIdleConnsPerHost = cfg.Client.MaxIdleConnsPerHost
	}

	return transport
}

var (
	g_transport *http.Transport
	g_metrics   *metricsConf.DetailedMetricsEngine
)

func GetGlobalTransport() *http.Transport {
	return g_transport
}

func New(cfg *config.Configuration, revision string) (r *Router, err error) {
	const schemaDirectory = "static/action-params"

	r = &Router{
		Router: httprouter.New(),
	}

	g_transport = getTransport(cfg)
	generalHttpClient := &http.Client{
		Transport: g_transport,
	}

	r.MetricsEngine = metricsConf.NewMetricsEngine(cfg)
	g_metrics = r.MetricsEngine

	gatewayAnalytics := analyticsConf.NewGatewayAnalytics(&cfg.Analytics)

	paramsValidator, err := gwapi.NewActionParamsValidator(schemaDirectory)
	if err != nil {
		glog.Fatalf("Failed to create the action params validator. %v", err)
	}
	r.ParamsValidator = paramsValidator

	presets := places.FieldMaskPresets{}
	if cfg.Gateway.FieldMaskPresetsFile != "" {
		presets, err = places.LoadFieldMaskPresets(cfg.Gateway.FieldMaskPresetsFile)
		if err != nil {
			glog.Fatalf("Failed to load field mask presets from %s: %v", cfg.Gateway.FieldMaskPresetsFile, err)
		}
	}

	defaultParams := readDefaultParams(cfg.Gateway.DefaultParamsFile)

	r.Cache = cache.New(cache.Config{
		MaxEntries: cfg.Cache.MaxEntries,
		TTL:        cfg.Cache.TTL(),
	})

	fetcher := &lookup.Fetcher{
		Client:  places.NewClient(generalHttpClient, cfg.Google.BaseURL, cfg.Google.APIKey),
		Cache:   r.Cache,
		TTL:     cfg.Cache.TTL(),
		Metrics: r.MetricsEngine,
	}

	gatewayEndpoint, err := gateway.NewEndpoint(fetcher, r.Cache, cfg, paramsValidator, presets, defaultParams, r.MetricsEngine, gatewayAnalytics)
	if err != nil {
		glog.Fatalf("Failed to create the gateway endpoint handler. %v", err)
	}

	r.POST("/", gatewayEndpoint)
	r.GET("/", gatewayEndpoint)
	r.GET("/status", endpoints.NewStatusEndpoint(cfg.StatusResponse))
	r.GET("/version", supportHTTPHandler(endpoints.NewVersionEndpoint(revision)))
	r.GET("/gateway/params", NewJsonDirectoryServer(schemaDirectory, paramsValidator))

	r.registerOptions("/", "/status", "/version", "/gateway/params")

	r.Shutdown = func() {}

	return r, nil
}

// registerOptions answers preflight on every route the gateway serves. The CORS
// layer runs with passthrough on, so the routes reply 204 themselves.
func (r *Router) registerOptions(paths ...string) {
	for _, path := range paths {
		r.OPTIONS(path, noContent)
	}
}

// noContent answers preflight OPTIONS once the CORS layer has attached its headers.
func noContent(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.WriteHeader(http.StatusNoContent)
}

func supportHTTPHandler(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		handler(w, r)
	}
}

// SupportCORS attaches the gateway's CORS contract to every response: any origin may
// call, with the credential riding in the x-gateway-key header rather than a cookie.
// Preflight requests pass through to the router's OPTIONS route for the 204.
func SupportCORS(handler http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:     []string{"*"},
		AllowedMethods:     []string{"POST", "GET", "OPTIONS"},
		AllowedHeaders:     []string{"Content-Type", "x-gateway-key"},
		OptionsPassthrough: true,
	})
	return c.Handler(handler)
}

// readDefaultParams loads the configured defaults document which gets merge-patched
// under every request body. Empty filename disables the feature.
func readDefaultParams(filename string) []byte {
	if len(filename) == 0 {
		return nil
	}
	defaultParams, err := ioutil.ReadFile(filename)
	if err != nil {
		glog.Fatalf("error reading default params from file %s: %v", filename, err)
		return nil
	}
	if !json.Valid(defaultParams) {
		glog.Fatalf("default params file %s does not hold valid JSON", filename)
		return nil
	}
	return defaultParams
}

func GetPrometheusRegistry() *prometheus.Registry {
	if g_metrics == nil || g_metrics.PrometheusMetrics == nil {
		return nil
	}
	return g_metrics.PrometheusMetrics.Registry
}
