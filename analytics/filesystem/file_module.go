package filesystem

import (
	"bytes"

	"github.com/chasex/glog"

	"github.com/placesgw/places-gateway/analytics"
)

// FileLogger writes one JSON line per gateway transaction to a rotating file.
// Use the OS "logrotate" daemon with copytruncate if day-granularity rotation
// is not enough.
type FileLogger struct {
	Logger *glog.Logger
}

func (f *FileLogger) LogGatewayObject(g *analytics.GatewayObject) {
	var b bytes.Buffer
	b.WriteString(g.ToJson())
	f.Logger.Debug(b.String())
	f.Logger.Flush()
}

func (f *FileLogger) LogBatchObject(bo *analytics.BatchObject) {
	var b bytes.Buffer
	b.WriteString(bo.ToJson())
	f.Logger.Debug(b.String())
	f.Logger.Flush()
}

// NewFileLogger creates a new file logger appending to the given file.
func NewFileLogger(filename string) (analytics.Module, error) {
	options := glog.LogOptions{
		File:  filename,
		Flag:  glog.LstdFlags,
		Level: glog.Ldebug,
		Mode:  glog.R_Day,
	}
	if logger, err := glog.New(options); err == nil {
		return &FileLogger{
			logger,
		}, nil
	} else {
		return nil, err
	}
}
