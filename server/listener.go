package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/quotewire/quotewire-go/qlog"
	"github.com/quotewire/quotewire-go/wire"
)

const (
	listenerEventQueueSize = 64

	// a subscriber that connects but never finishes its line must not be
	// able to pin the accept pool forever
	subscribeReadTimeout = 5 * time.Second
)

// Listener accepts control stream connections and turns each one into a
// single event. A connection carries exactly one line and is closed right
// after it has been read; malformed input never terminates the listener.
type Listener struct {
	port   uint16
	logger qlog.Logger

	mu      sync.Mutex
	started bool
	ln      net.Listener
	events  chan Event
	done    chan struct{}
}

// NewListener returns a stopped listener for the given port.
func NewListener(port uint16, logger qlog.Logger) *Listener {
	return &Listener{port: port, logger: logger}
}

// Start binds the loopback TCP port and launches the accept loop. The
// returned channel closes when the listener stops.
func (l *Listener) Start() (<-chan Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return nil, ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp4", fmt.Sprintf("127.0.0.1:%d", l.port))
	if err != nil {
		return nil, fmt.Errorf("bind subscription listener: %w", err)
	}
	l.started = true
	l.ln = ln
	l.events = make(chan Event, listenerEventQueueSize)
	l.done = make(chan struct{})

	go l.acceptLoop()

	l.logger.Infof("subscription listener started on %s", ln.Addr())
	return l.events, nil
}

func (l *Listener) acceptLoop() {
	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		close(l.events)
		close(l.done)
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				l.logger.Errorf("subscription listener accept failed: %v", err)
			}
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.handleConn(conn)
		}()
	}
}

// handleConn reads one line, parses it and emits the resulting event.
func (l *Listener) handleConn(conn net.Conn) {
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(subscribeReadTimeout)); err != nil {
		l.logger.Warnf("unable to set control read deadline: %v", err)
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		l.emit(ErrorEvent{Err: fmt.Errorf("control stream read: %w", err)})
		return
	}

	msg, err := wire.ParseClientMessage(line)
	if err != nil {
		l.emit(ErrorEvent{Err: err})
		return
	}

	switch m := msg.(type) {
	case wire.SubscribeMessage:
		l.emit(NewClientEvent{Addr: m.Addr, Tickers: m.Tickers})
	case wire.UnsubscribeMessage:
		l.emit(ClientGoneEvent{Addr: m.Addr})
	default:
		l.emit(ErrorEvent{Err: fmt.Errorf("%w: unexpected %s on control stream", wire.ErrParseClientMessage, msg)})
	}
}

// emit must not pin a connection handler when the core is no longer
// draining events, e.g. during shutdown.
func (l *Listener) emit(ev Event) {
	select {
	case l.events <- ev:
	default:
		l.logger.Warnf("listener event queue full, dropping %s", ev)
	}
}

// Stop closes the listening socket and waits for in-flight connection
// handlers; the event channel closes afterwards. Idempotent.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.started {
		return
	}
	l.started = false

	if err := l.ln.Close(); err != nil {
		l.logger.Warnf("subscription listener close failed: %v", err)
	}
	<-l.done
	l.logger.Infof("subscription listener stopped")
}

// Addr is the bound listener address, available while started.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}
