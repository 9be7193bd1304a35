// Package client implements the quote streaming client: it subscribes over
// the control stream, receives quote datagrams over UDP and keeps its
// session alive with periodic keepalive pings.
package client

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"sync/atomic"

	"github.com/quotewire/quotewire-go/qlog"
	"github.com/quotewire/quotewire-go/wire"
)

const eventQueueSize = 64

// Core connects to a server, subscribes to tickers and runs the receive
// and keepalive loops until it is cancelled or its error budget is spent.
type Core struct {
	serverAddr string
	localPort  uint16
	tickers    []string

	opts   options
	logger qlog.Logger

	started atomic.Bool
}

// New builds a client core. serverAddr is the host:port of the server's
// control stream, localPort the UDP port quotes are received on.
func New(serverAddr string, localPort uint16, tickers []string, opts ...Option) *Core {
	o := defaultClientOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Core{
		serverAddr: serverAddr,
		localPort:  localPort,
		tickers:    tickers,
		opts:       o,
		logger:     o.logger,
	}
}

// Run subscribes and processes events until ctx is cancelled or the error
// budget is spent; a failed bind or subscribe returns before the loop
// starts. Shutdown joins the pinger
// first, then the listener. Run can only be called once.
func (c *Core) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: int(c.localPort)})
	if err != nil {
		return fmt.Errorf("bind quote socket: %w", err)
	}
	defer conn.Close()
	c.logger.Infof("listening for quotes on %s", conn.LocalAddr())

	// a zero localPort lets the kernel pick; advertise what was bound
	boundPort := uint16(conn.LocalAddr().(*net.UDPAddr).Port)
	if err := c.subscribe(boundPort); err != nil {
		return err
	}

	events := make(chan listenerEvent, eventQueueSize)
	listener := newQuotesListener(conn, events, c.opts)
	ping := newPinger(conn, c.opts)

	defer func() {
		ping.stop()
		listener.stop()
		c.logger.Infof("client shut down")
	}()

	pingStarted := false
	errCount := 0
	for {
		select {
		case <-ctx.Done():
			c.logger.Infof("client interrupted: %v", ctx.Err())
			return nil
		case ev := <-events:
			if ev.err != nil {
				errCount++
				c.logger.Warnf("receive error(%d): %v", errCount, ev.err)
				if errCount >= c.opts.maxErrors {
					return fmt.Errorf("%w: %d", ErrTooManyErrors, errCount)
				}
				continue
			}
			if !pingStarted {
				ping.start(ev.peer)
				pingStarted = true
			}
			if ev.msg.IsError() {
				c.logger.Warnf("server error: %s", ev.msg.Err)
				c.opts.serverErrorHandler(ev.msg.Err)
				continue
			}
			c.logger.Infof("%s", ev.msg.Quote)
			c.opts.quoteHandler(ev.msg.Quote)
		}
	}
}

// subscribe opens the control stream, writes the single subscribe line and
// closes the connection.
func (c *Core) subscribe(port uint16) error {
	conn, err := net.Dial("tcp", c.serverAddr)
	if err != nil {
		return fmt.Errorf("connect control stream: %w", err)
	}
	defer conn.Close()

	local := netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), port)
	msg := wire.NewSubscribeMessage(local, c.tickers)
	c.logger.Infof("requesting data for tickers (%s) on port %d", strings.Join(c.tickers, ","), port)

	if _, err := fmt.Fprintf(conn, "%s\n", msg); err != nil {
		return fmt.Errorf("write subscribe request: %w", err)
	}
	return nil
}
