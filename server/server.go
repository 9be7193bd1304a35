// Package server implements the quote streaming server: a subscription
// listener on a loopback TCP port, a per-subscriber session registry
// fanning out quote snapshots over UDP and a core event loop tying them to
// the quote source.
package server

import (
	"context"
	"net"
	"net/netip"

	"github.com/quotewire/quotewire-go/qlog"
	"github.com/quotewire/quotewire-go/source"
)

// Core wires the quote source, the subscription listener and the session
// registry together and runs the single event loop multiplexing quote
// ticks and subscription events.
type Core struct {
	opts     options
	logger   qlog.Logger
	source   *source.Source
	listener *Listener
	registry *Registry
}

// New builds a server core around src.
func New(src *source.Source, opts ...Option) *Core {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	asOptions := func(o options) []Option {
		return []Option{
			WithLogger(o.logger),
			WithPort(o.port),
			WithPingTimeout(o.pingTimeout),
			WithSessionReadTimeout(o.sessionReadTimeout),
			WithSendQueueSize(o.sendQueueSize),
			WithMetrics(o.metrics),
		}
	}

	return &Core{
		opts:     o,
		logger:   o.logger,
		source:   src,
		listener: NewListener(o.port, o.logger),
		registry: NewRegistry(asOptions(o)...),
	}
}

// Registry exposes the session registry, mainly to tests and diagnostics.
func (c *Core) Registry() *Registry {
	return c.registry
}

// ListenerAddr is the bound control stream address, available once Run has
// started the listener.
func (c *Core) ListenerAddr() net.Addr {
	return c.listener.Addr()
}

// Run starts every component and blocks in the event loop until ctx is
// cancelled or an input channel closes. Components are stopped in order
// on the way out: registry, listener, source; a failing stop never
// prevents the remaining ones.
func (c *Core) Run(ctx context.Context) error {
	ticks, err := c.source.Start()
	if err != nil {
		return err
	}
	events, err := c.listener.Start()
	if err != nil {
		c.source.Stop()
		return err
	}
	if err := c.registry.Start(); err != nil {
		c.listener.Stop()
		c.source.Stop()
		return err
	}

	defer c.shutdown()

	c.logger.Infof("server loop started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Infof("server loop interrupted: %v", ctx.Err())
			return nil
		case _, ok := <-ticks:
			if !ok {
				c.logger.Warnf("quote tick channel closed")
				return nil
			}
			c.registry.FanOut(c.source.Snapshot())
		case ev, ok := <-events:
			if !ok {
				c.logger.Warnf("subscription event channel closed")
				return nil
			}
			c.handleEvent(ev)
		}
	}
}

func (c *Core) handleEvent(ev Event) {
	switch e := ev.(type) {
	case NewClientEvent:
		if err := c.registry.AddClient(e.Addr, e.Tickers); err != nil {
			c.logger.Warnf("unable to add client: %v", err)
			return
		}
		c.opts.metrics.SubscribeRequest()
		c.logger.Infof("client added: %s", e)
	case ClientGoneEvent:
		c.registry.RemoveAndStop([]netip.AddrPort{e.Addr})
		c.logger.Infof("client removed: %s", e.Addr)
	case ErrorEvent:
		c.logger.Warnf("subscription error: %v", e.Err)
	}
}

func (c *Core) shutdown() {
	c.registry.Shutdown()
	c.logger.Infof("session registry stopped")
	c.listener.Stop()
	c.source.Stop()
}
