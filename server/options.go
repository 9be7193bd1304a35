package server

import (
	"time"

	"github.com/quotewire/quotewire-go/metrics"
	"github.com/quotewire/quotewire-go/qlog"
)

type options struct {
	logger qlog.Logger
	port   uint16

	pingTimeout        time.Duration
	sessionReadTimeout time.Duration
	sendQueueSize      int

	metrics *metrics.Server
}

func defaultOptions() options {
	return options{
		logger:             qlog.DefaultLogger(),
		port:               3000,
		pingTimeout:        5 * time.Second,
		sessionReadTimeout: 250 * time.Millisecond,
		sendQueueSize:      256,
	}
}

// Option configures the server core.
type Option func(*options)

// WithLogger sets the logger used by every server component.
func WithLogger(logger qlog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithPort sets the TCP port the subscription listener binds to.
func WithPort(port uint16) Option {
	return func(o *options) {
		o.port = port
	}
}

// WithPingTimeout sets how long a session survives without a keepalive.
func WithPingTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.pingTimeout = timeout
	}
}

// WithSessionReadTimeout bounds a single read on a session's datagram
// socket. The stop flag and the liveness deadline are checked once per
// read, so this also bounds how late they are observed.
func WithSessionReadTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.sessionReadTimeout = timeout
	}
}

// WithSendQueueSize sets the per-session quote queue capacity.
func WithSendQueueSize(size int) Option {
	return func(o *options) {
		o.sendQueueSize = size
	}
}

// WithMetrics enables Prometheus collection.
func WithMetrics(m *metrics.Server) Option {
	return func(o *options) {
		o.metrics = m
	}
}
