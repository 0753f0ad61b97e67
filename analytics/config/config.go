package config

import (
	"github.com/golang/glog"

	"github.com/placesgw/places-gateway/analytics"
	"github.com/placesgw/places-gateway/analytics/filesystem"
	"github.com/placesgw/places-gateway/config"
)

// GatewayAnalytics fans every loggable object out to each enabled analytics module.
type GatewayAnalytics []analytics.Module

// NewGatewayAnalytics reads the analytics configuration and returns the composed
// module list. Modules that fail to initialize are skipped with a log line, never
// fatal: the gateway keeps serving without its analytics.
func NewGatewayAnalytics(cfg *config.Analytics) analytics.Module {
	modules := make(GatewayAnalytics, 0)
	if len(cfg.File.Filename) > 0 {
		if mod, err := filesystem.NewFileLogger(cfg.File.Filename); err == nil {
			modules = append(modules, mod)
		} else {
			glog.Errorf("Could not initialize FileLogger for file %v :%v", cfg.File.Filename, err)
		}
	}
	return &modules
}

func (ga *GatewayAnalytics) LogGatewayObject(g *analytics.GatewayObject) {
	for _, module := range *ga {
		module.LogGatewayObject(g)
	}
}

func (ga *GatewayAnalytics) LogBatchObject(b *analytics.BatchObject) {
	for _, module := range *ga {
		module.LogBatchObject(b)
	}
}
