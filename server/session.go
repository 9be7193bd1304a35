package server

import (
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/quotewire/quotewire-go/metrics"
	"github.com/quotewire/quotewire-go/qlog"
	"github.com/quotewire/quotewire-go/wire"
)

const sessionReadBufferSize = 2048

// session owns the state and workers for one subscriber: a send worker
// draining the quote queue and a liveness worker watching for keepalive
// pings on the session's own datagram socket. The socket is shared by the
// two workers, concurrent send and receive on a UDP socket need no lock.
//
// State machine: running -> stopping -> stopped, entered by a liveness
// timeout, an external stop or (send worker only) a send failure. There
// are no transitions back.
type session struct {
	id      ulid.ULID
	addr    netip.AddrPort
	tickers []string
	conn    *net.UDPConn

	commands chan wire.Quote
	quit     chan struct{}
	events   chan<- sessionEvent

	pingTimeout time.Duration
	readTimeout time.Duration

	logger  qlog.Logger
	metrics *metrics.Server

	stopped  atomic.Bool
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// newSession binds a fresh loopback datagram socket and starts both
// workers. The subscriber gets one full ping timeout of grace before the
// first liveness check can fire.
func newSession(addr netip.AddrPort, tickers []string, events chan<- sessionEvent, o options) (*session, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return nil, fmt.Errorf("bind session socket: %w", err)
	}

	s := &session{
		id:          ulid.Make(),
		addr:        addr,
		tickers:     tickers,
		conn:        conn,
		commands:    make(chan wire.Quote, o.sendQueueSize),
		quit:        make(chan struct{}),
		events:      events,
		pingTimeout: o.pingTimeout,
		readTimeout: o.sessionReadTimeout,
		logger:      o.logger,
		metrics:     o.metrics,
	}

	if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set session read deadline: %w", err)
	}

	s.wg.Add(2)
	go s.sendLoop()
	go s.livenessLoop()

	s.logger.Infof("session %s: created for %s on %s", s.id, s.addr, conn.LocalAddr())
	return s, nil
}

// sendQuote enqueues one quote without blocking. It fails once the session
// is shutting down or the subscriber stopped draining its queue.
func (s *session) sendQuote(q wire.Quote) error {
	if s.stopped.Load() {
		return ErrSessionClosed
	}
	select {
	case s.commands <- q:
		s.metrics.QuoteSent()
		return nil
	default:
		return fmt.Errorf("%w: send queue full", ErrSessionClosed)
	}
}

// stop signals both workers and waits for them, then closes the socket.
// Idempotent; completes within roughly one read timeout.
func (s *session) stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		close(s.quit)
		s.wg.Wait()
		s.conn.Close()
		s.metrics.SessionClosed()
		s.logger.Infof("session %s: stopped", s.id)
	})
}

func (s *session) sendLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.quit:
			return
		case q := <-s.commands:
			msg, err := wire.EncodeServerMessage(wire.NewQuoteMessage(q))
			if err != nil {
				s.logger.Warnf("session %s: unable to encode quote: %v", s.id, err)
				continue
			}
			buf, err := wire.NewDatagram(msg).Encode()
			if err != nil {
				s.logger.Warnf("session %s: unable to frame quote: %v", s.id, err)
				continue
			}
			if _, err := s.conn.WriteToUDPAddrPort(buf, s.addr); err != nil {
				s.metrics.SessionError()
				s.emit(sessionEvent{addr: s.addr, err: err})
				return
			}
		}
	}
}

// livenessLoop receives keepalives with a bounded read timeout so both the
// quit signal and the liveness deadline are observed within one timeout.
// Non-ping payloads and parse errors neither reset liveness nor kill the
// session.
func (s *session) livenessLoop() {
	defer s.wg.Done()

	buf := make([]byte, sessionReadBufferSize)
	parser := wire.NewDatagramParser()
	lastPing := time.Now()

	for {
		var datagrams []wire.Datagram
		n, _, err := s.conn.ReadFromUDPAddrPort(buf)
		if err == nil {
			// keep whatever parsed before an error, drop the rest
			datagrams, _ = parser.Parse(buf[:n])
		}

		select {
		case <-s.quit:
			return
		default:
		}

		now := time.Now()
		if now.Sub(lastPing) >= s.pingTimeout {
			s.logger.Infof("session %s: ping timeout for %s", s.id, s.addr)
			s.emit(sessionEvent{addr: s.addr})
			return
		}

		for _, d := range datagrams {
			if wire.IsPing(d.Payload) {
				lastPing = now
				s.metrics.PingReceived()
				break
			}
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			s.logger.Warnf("session %s: unable to reset read deadline: %v", s.id, err)
		}
	}
}

// emit never blocks a worker; an event that cannot be queued is dropped
// with a warning.
func (s *session) emit(ev sessionEvent) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warnf("session %s: event queue full, dropping %v", s.id, ev)
	}
}

// localPort is the ephemeral UDP port quotes are sent from; subscribers
// ping it back.
func (s *session) localPort() int {
	return s.conn.LocalAddr().(*net.UDPAddr).Port
}
