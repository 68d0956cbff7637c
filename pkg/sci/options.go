package sci

import (
	"io"

	"github.com/sirupsen/logrus"
)

type options struct {
	logger      *logrus.Logger
	metrics     *Metrics
	txName      string
	rxName      string
	debugRegion io.ReaderAt
	debugSize   int64
}

// Option configures an instance.
type Option func(*options)

// WithLogger sets the logger used by the instance.
func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the collectors updated by the instance.
func WithMetrics(metrics *Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithChannels overrides the names of the transmit and receive channels.
func WithChannels(tx, rx string) Option {
	return func(o *options) {
		o.txName = tx
		o.rxName = rx
	}
}

// WithDebugRegion sets the memory region the firmware writes its debug log to.
func WithDebugRegion(region io.ReaderAt, size int64) Option {
	return func(o *options) {
		o.debugRegion = region
		o.debugSize = size
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger: logrus.StandardLogger(),
		txName: "tx",
		rxName: "rx",
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
