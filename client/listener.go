package client

import (
	"errors"
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/quotewire/quotewire-go/qlog"
	"github.com/quotewire/quotewire-go/wire"
)

// listenerEvent is one received server message or one receive error.
type listenerEvent struct {
	msg  wire.ServerMessage
	peer netip.AddrPort
	err  error
}

// quotesListener receives quote datagrams on the client's UDP socket and
// forwards decoded server messages to the main loop. Read timeouts are
// silent and a closed socket ends the loop; every other failure surfaces as
// one error event and the loop continues, the main loop keeps the error
// budget.
type quotesListener struct {
	conn   *net.UDPConn
	opts   options
	logger qlog.Logger
	events chan<- listenerEvent
	quit   chan struct{}
	done   chan struct{}
}

func newQuotesListener(conn *net.UDPConn, events chan<- listenerEvent, o options) *quotesListener {
	l := &quotesListener{
		conn:   conn,
		opts:   o,
		logger: o.logger,
		events: events,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *quotesListener) run() {
	defer close(l.done)

	buf := make([]byte, 2048)
	parser := wire.NewDatagramParser()

	for {
		select {
		case <-l.quit:
			return
		default:
		}

		if err := l.conn.SetReadDeadline(time.Now().Add(l.opts.readTimeout)); err != nil {
			l.emit(listenerEvent{err: err})
			continue
		}
		n, peer, err := l.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.emit(listenerEvent{err: err})
			continue
		}

		datagrams, parseErr := parser.Parse(buf[:n])
		for _, d := range datagrams {
			msg, err := wire.DecodeServerMessage(d.Payload)
			if err != nil {
				l.emit(listenerEvent{err: err})
				continue
			}
			l.emit(listenerEvent{msg: msg, peer: peer})
		}
		if parseErr != nil {
			l.emit(listenerEvent{err: parseErr})
		}
	}
}

// emit drops events instead of blocking a closed-down main loop.
func (l *quotesListener) emit(ev listenerEvent) {
	select {
	case l.events <- ev:
	case <-l.quit:
	}
}

// stop terminates the worker and waits for it.
func (l *quotesListener) stop() {
	close(l.quit)
	<-l.done
}
