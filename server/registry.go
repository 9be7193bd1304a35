package server

import (
	"net/netip"
	"sync"

	"github.com/quotewire/quotewire-go/metrics"
	"github.com/quotewire/quotewire-go/qlog"
	"github.com/quotewire/quotewire-go/source"
)

const sessionEventQueueSize = 1024

// Registry owns every live session, keyed by subscriber address. It fans
// quote snapshots out to the sessions and consumes their lifecycle events.
type Registry struct {
	opts    options
	logger  qlog.Logger
	metrics *metrics.Server

	mu       sync.RWMutex
	sessions map[netip.AddrPort]*session

	events chan sessionEvent

	startMu sync.Mutex
	started bool
	quit    chan struct{}
	done    chan struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry{
		opts:     o,
		logger:   o.logger,
		metrics:  o.metrics,
		sessions: make(map[netip.AddrPort]*session),
		events:   make(chan sessionEvent, sessionEventQueueSize),
	}
}

// Start launches the session event consumer.
func (r *Registry) Start() error {
	r.startMu.Lock()
	defer r.startMu.Unlock()
	if r.started {
		return ErrAlreadyStarted
	}
	r.started = true
	r.quit = make(chan struct{})
	r.done = make(chan struct{})

	go r.consumeEvents()
	return nil
}

func (r *Registry) consumeEvents() {
	defer close(r.done)

	for {
		select {
		case <-r.quit:
			return
		case ev := <-r.events:
			if ev.err != nil {
				// the send worker already exited; a later fan-out
				// failure removes the session
				r.logger.Warnf("error in session for %s: %v", ev.addr, ev.err)
				continue
			}
			r.RemoveAndStop([]netip.AddrPort{ev.addr})
		}
	}
}

// AddClient creates a session for addr. Each address can hold at most one
// session.
func (r *Registry) AddClient(addr netip.AddrPort, tickers []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[addr]; exists {
		return addressInUse(addr)
	}
	s, err := newSession(addr, tickers, r.events, r.opts)
	if err != nil {
		return err
	}
	r.sessions[addr] = s
	r.metrics.SessionOpened()
	return nil
}

// FanOut enqueues every quote of the snapshot matching a session's tickers,
// per session in subscription order. The snapshot is an immutable
// generation, so holding the session read lock is all that is needed for a
// consistent pass. Sessions whose enqueue fails are removed afterwards.
func (r *Registry) FanOut(snapshot source.Snapshot) {
	var failed []netip.AddrPort

	r.mu.RLock()
	for addr, s := range r.sessions {
		for _, ticker := range s.tickers {
			quote, ok := snapshot[ticker]
			if !ok {
				r.logger.Warnf("ticker not found: %s", ticker)
				continue
			}
			if err := s.sendQuote(quote); err != nil {
				r.logger.Warnf("session for %s unable to accept quote: %v", addr, err)
				failed = append(failed, addr)
				break
			}
		}
	}
	r.mu.RUnlock()

	r.RemoveAndStop(failed)
}

// RemoveAndStop removes the given sessions and stops them. Stopping joins
// the session workers and therefore never happens under the registry lock.
func (r *Registry) RemoveAndStop(addrs []netip.AddrPort) {
	if len(addrs) == 0 {
		return
	}

	removed := make([]*session, 0, len(addrs))
	r.mu.Lock()
	for _, addr := range addrs {
		if s, ok := r.sessions[addr]; ok {
			delete(r.sessions, addr)
			removed = append(removed, s)
		}
	}
	r.mu.Unlock()

	for _, s := range removed {
		s.stop()
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Shutdown stops every session and then the event consumer. Safe to call
// on a registry that was never started.
func (r *Registry) Shutdown() {
	r.mu.RLock()
	addrs := make([]netip.AddrPort, 0, len(r.sessions))
	for addr := range r.sessions {
		addrs = append(addrs, addr)
	}
	r.mu.RUnlock()

	r.RemoveAndStop(addrs)

	r.startMu.Lock()
	defer r.startMu.Unlock()
	if !r.started {
		return
	}
	r.started = false
	close(r.quit)
	<-r.done
}
