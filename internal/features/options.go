package features

import (
	"io"
	"log/slog"
	"time"
)

// Imputation levels reported to a Recorder.
const (
	LevelClusterDate = "cluster_date"
	LevelCluster     = "cluster"
	LevelGlobal      = "global"
)

// Recorder receives counts from Transform calls. Implementations must be
// safe for concurrent use.
type Recorder interface {
	ObserveImputed(column, level string, n int)
	ObserveCapped(column, side string, n int)
	ObserveDomainRejection(column string)
	ObserveStage(stage string, d time.Duration)
	ObserveFit(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveImputed(string, string, int) {}
func (nopRecorder) ObserveCapped(string, string, int)  {}
func (nopRecorder) ObserveDomainRejection(string)      {}
func (nopRecorder) ObserveStage(string, time.Duration) {}
func (nopRecorder) ObserveFit(time.Duration)           {}

// Option configures a stage or pipeline.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	recorder Recorder
}

// WithLogger sets the logger. Stages log nothing by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
