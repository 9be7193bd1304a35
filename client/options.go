package client

import (
	"time"

	"github.com/quotewire/quotewire-go/qlog"
	"github.com/quotewire/quotewire-go/wire"
)

type options struct {
	logger qlog.Logger

	pingInterval time.Duration
	readTimeout  time.Duration
	maxErrors    int

	quoteHandler       func(wire.Quote)
	serverErrorHandler func(string)

	// for testing only
	newPingTicker func(time.Duration) ticker
}

func defaultClientOptions() options {
	return options{
		logger:             qlog.DefaultLogger(),
		pingInterval:       time.Second,
		readTimeout:        2 * time.Second,
		maxErrors:          3,
		quoteHandler:       func(wire.Quote) {},
		serverErrorHandler: func(string) {},
		newPingTicker: func(interval time.Duration) ticker {
			return &timeTicker{ticker: time.NewTicker(interval)}
		},
	}
}

// Option configures the client core.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(logger qlog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithPingInterval sets the keepalive interval.
func WithPingInterval(interval time.Duration) Option {
	return func(o *options) {
		o.pingInterval = interval
	}
}

// WithReadTimeout bounds a single read on the quote socket; the stop
// signal is observed once per read.
func WithReadTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.readTimeout = timeout
	}
}

// WithMaxErrors sets both error budgets: cumulative receive errors in the
// main loop and consecutive send failures in the pinger.
func WithMaxErrors(n int) Option {
	return func(o *options) {
		o.maxErrors = n
	}
}

// WithQuoteHandler sets the callback invoked for every received quote.
func WithQuoteHandler(handler func(wire.Quote)) Option {
	return func(o *options) {
		o.quoteHandler = handler
	}
}

// WithServerErrorHandler sets the callback invoked for server error
// messages.
func WithServerErrorHandler(handler func(string)) Option {
	return func(o *options) {
		o.serverErrorHandler = handler
	}
}

func withPingTicker(newTicker func(time.Duration) ticker) Option {
	return func(o *options) {
		o.newPingTicker = newTicker
	}
}
