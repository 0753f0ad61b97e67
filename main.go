package main

import (
	"flag"
	"math/rand"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/viper"

	"github.com/placesgw/places-gateway/config"
	"github.com/placesgw/places-gateway/router"
	"github.com/placesgw/places-gateway/server"
)

// Rev holds binary revision string
// Set manually at build time using:
//    go build -ldflags "-X main.Rev=`git rev-parse --short HEAD`"
var Rev string

func init() {
	rand.Seed(time.Now().UnixNano())
}

func main() {
	flag.Parse() // required for glog flags and testing package flags

	cfg, err := loadConfig()
	if err != nil {
		glog.Exitf("Configuration could not be loaded or did not pass validation: %v", err)
	}

	err = serve(Rev, cfg)
	if err != nil {
		glog.Exitf("places-gateway failed: %v", err)
	}
}

const configFileName = "pgw"

func loadConfig() (*config.Configuration, error) {
	v := viper.New()
	config.SetupViper(v, configFileName)
	return config.New(v)
}

func serve(revision string, cfg *config.Configuration) error {
	r, err := router.New(cfg, revision)
	if err != nil {
		return err
	}

	corsRouter := router.SupportCORS(r)
	server.Listen(cfg, router.NoCache{Handler: corsRouter}, router.Admin(revision, r.Cache, cfg.Cache.TTL()), r.MetricsEngine)

	r.Shutdown()
	return nil
}
