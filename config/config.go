package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/golang/glog"
	"github.com/spf13/viper"

	"github.com/placesgw/places-gateway/errortypes"
)

// Configuration is the gateway's whole config surface, loaded from pgw.yaml and the
// PGW_* environment.
type Configuration struct {
	ExternalURL string `mapstructure:"external_url"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	AdminPort   int    `mapstructure:"admin_port"`
	EnableGzip  bool   `mapstructure:"enable_gzip"`
	// StatusResponse overrides the default empty 204 on /status. Set it to something
	// stable if your load balancer insists on a body.
	StatusResponse string `mapstructure:"status_response"`
	// DefaultTimeoutMS bounds each outbound provider call. Zero disables the deadline,
	// in which case a hung upstream call hangs the enclosing request.
	DefaultTimeoutMS uint64 `mapstructure:"default_timeout_ms"`

	Gateway   Gateway    `mapstructure:"gateway"`
	Google    Google     `mapstructure:"google"`
	Cache     Cache      `mapstructure:"cache"`
	Client    HTTPClient `mapstructure:"client"`
	Metrics   Metrics    `mapstructure:"metrics"`
	Analytics Analytics  `mapstructure:"analytics"`
}

// Gateway configures the caller-facing side.
type Gateway struct {
	// SecretKey is the shared secret callers present in x-gateway-key. An empty value
	// fails closed: every proxying request is answered 401 until one is configured.
	SecretKey string `mapstructure:"secret_key"`
	// FieldMaskPresetsFile points at a yaml file mapping preset names to field lists.
	FieldMaskPresetsFile string `mapstructure:"field_mask_presets_file"`
	// DefaultParamsFile points at a JSON document merge-patched under every request
	// body, so a deployment can pin e.g. a languageCode without touching clients.
	DefaultParamsFile string `mapstructure:"default_params_file"`
}

// Google configures the provider side.
type Google struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// Cache sizes the in-memory response cache.
type Cache struct {
	MaxEntries int `mapstructure:"max_entries"`
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

// TTL returns the entry lifetime as a duration.
func (cfg *Cache) TTL() time.Duration {
	return time.Duration(cfg.TTLSeconds) * time.Second
}

// HTTPClient configures the transport all outbound provider calls share.
type HTTPClient struct {
	MaxConnsPerHost       int `mapstructure:"max_connections_per_host"`
	MaxIdleConns          int `mapstructure:"max_idle_connections"`
	MaxIdleConnsPerHost   int `mapstructure:"max_idle_connections_per_host"`
	IdleConnTimeout       int `mapstructure:"idle_connection_timeout_seconds"`
	DialTimeout           int `mapstructure:"dial_timeout_ms"`
	DialKeepAlive         int `mapstructure:"dial_keepalive_seconds"`
	TLSHandshakeTimeout   int `mapstructure:"tls_handshake_timeout_seconds"`
	ResponseHeaderTimeout int `mapstructure:"response_header_timeout_seconds"`
}

type Metrics struct {
	Influxdb   InfluxMetrics     `mapstructure:"influxdb"`
	Prometheus PrometheusMetrics `mapstructure:"prometheus"`
}

type InfluxMetrics struct {
	Host               string `mapstructure:"host"`
	Database           string `mapstructure:"database"`
	Username           string `mapstructure:"username"`
	Password           string `mapstructure:"password"`
	MetricSendInterval int    `mapstructure:"metric_send_interval"`
}

type PrometheusMetrics struct {
	Port      int    `mapstructure:"port"`
	Namespace string `mapstructure:"namespace"`
	Subsystem string `mapstructure:"subsystem"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

// Timeout returns the scrape handler timeout.
func (cfg *PrometheusMetrics) Timeout() time.Duration {
	return time.Duration(cfg.TimeoutMS) * time.Millisecond
}

type Analytics struct {
	File FileLogs `mapstructure:"file"`
}

// FileLogs configures the transactional file logger. Empty filename disables it.
type FileLogs struct {
	Filename string `mapstructure:"filename"`
}

func (cfg *Configuration) validate() error {
	var errs []error

	if cfg.Port <= 0 {
		errs = append(errs, fmt.Errorf("port must be positive, got %d", cfg.Port))
	}
	if cfg.AdminPort <= 0 {
		errs = append(errs, fmt.Errorf("admin_port must be positive, got %d", cfg.AdminPort))
	}
	if cfg.ExternalURL != "" && !govalidator.IsRequestURL(cfg.ExternalURL) {
		errs = append(errs, fmt.Errorf("invalid external_url: %s", cfg.ExternalURL))
	}
	if !govalidator.IsRequestURL(cfg.Google.BaseURL) {
		errs = append(errs, fmt.Errorf("invalid google.base_url: %s", cfg.Google.BaseURL))
	}
	if cfg.Cache.MaxEntries <= 0 {
		errs = append(errs, fmt.Errorf("cache.max_entries must be positive, got %d", cfg.Cache.MaxEntries))
	}
	if cfg.Cache.TTLSeconds <= 0 {
		errs = append(errs, fmt.Errorf("cache.ttl_seconds must be positive, got %d", cfg.Cache.TTLSeconds))
	}

	if len(errs) > 0 {
		return errortypes.NewAggregateErrors("validation errors", errs)
	}
	return nil
}

// New uses viper to get our server configurations.
func New(v *viper.Viper) (*Configuration, error) {
	var c Configuration
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("viper failed to unmarshal app config: %v", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	if c.Gateway.SecretKey == "" {
		glog.Warning("gateway.secret_key is not set. All proxying requests will be rejected as unauthorized until one is configured.")
	}
	if c.Google.APIKey == "" {
		glog.Warning("google.api_key is not set. All proxying requests will fail with missing_google_api_key.")
	}
	return &c, nil
}

// SetupViper registers the config file location, environment handling, and every
// default. A config file is optional; the defaults alone produce a bootable gateway
// (minus the two credentials).
func SetupViper(v *viper.Viper, filename string) {
	if filename != "" {
		v.SetConfigName(filename)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/config")
	}

	v.SetDefault("external_url", "http://localhost:8000")
	v.SetDefault("host", "")
	v.SetDefault("port", 8000)
	v.SetDefault("admin_port", 6060)
	v.SetDefault("enable_gzip", false)
	v.SetDefault("status_response", "")
	v.SetDefault("default_timeout_ms", 0)

	v.SetDefault("gateway.secret_key", "")
	v.SetDefault("gateway.field_mask_presets_file", "")
	v.SetDefault("gateway.default_params_file", "")

	v.SetDefault("google.api_key", "")
	v.SetDefault("google.base_url", "https://places.googleapis.com")

	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("cache.ttl_seconds", 3600)

	v.SetDefault("client.max_connections_per_host", 0)
	v.SetDefault("client.max_idle_connections", 400)
	v.SetDefault("client.max_idle_connections_per_host", 10)
	v.SetDefault("client.idle_connection_timeout_seconds", 60)
	v.SetDefault("client.dial_timeout_ms", 0)
	v.SetDefault("client.dial_keepalive_seconds", 0)
	v.SetDefault("client.tls_handshake_timeout_seconds", 0)
	v.SetDefault("client.response_header_timeout_seconds", 0)

	// no metrics configured by default (metrics{host|database|username|password})
	v.SetDefault("metrics.influxdb.host", "")
	v.SetDefault("metrics.influxdb.database", "")
	v.SetDefault("metrics.influxdb.username", "")
	v.SetDefault("metrics.influxdb.password", "")
	v.SetDefault("metrics.influxdb.metric_send_interval", 20)
	v.SetDefault("metrics.prometheus.port", 0)
	v.SetDefault("metrics.prometheus.namespace", "")
	v.SetDefault("metrics.prometheus.subsystem", "")
	v.SetDefault("metrics.prometheus.timeout_ms", 10000)

	v.SetDefault("analytics.file.filename", "")

	v.SetEnvPrefix("PGW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.ReadInConfig()
}
