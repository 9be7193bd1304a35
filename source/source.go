// Package source maintains the shared ticker snapshot and announces each
// replacement with a tick.
package source

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quotewire/quotewire-go/qlog"
	"github.com/quotewire/quotewire-go/wire"
)

// ErrAlreadyStarted is returned when Start is called on a running source.
var ErrAlreadyStarted = errors.New("quote source is already started")

// Snapshot is one generation of quotes, keyed by ticker. A snapshot is
// never mutated after it has been installed.
type Snapshot map[string]wire.Quote

// Generate produces a fresh snapshot for the given tickers.
type Generate func(tickers []string) Snapshot

// Source periodically replaces its snapshot and emits a tick for each
// replacement. The snapshot a tick refers to is installed before the tick
// is observable.
type Source struct {
	tickers  []string
	interval time.Duration
	generate Generate
	logger   qlog.Logger

	snapshot atomic.Pointer[Snapshot]

	mu      sync.Mutex
	started bool
	quit    chan struct{}
	done    chan struct{}
}

// Option configures a Source.
type Option func(*Source)

// WithInterval sets the tick interval.
func WithInterval(interval time.Duration) Option {
	return func(s *Source) {
		s.interval = interval
	}
}

// WithLogger sets the logger.
func WithLogger(logger qlog.Logger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// WithGenerate replaces the synthetic quote generator.
func WithGenerate(generate Generate) Option {
	return func(s *Source) {
		s.generate = generate
	}
}

// New returns a stopped source for the given tickers.
func New(tickers []string, opts ...Option) *Source {
	s := &Source{
		tickers:  tickers,
		interval: time.Second,
		logger:   qlog.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.generate == nil {
		s.generate = newGenerator().generate
	}
	empty := Snapshot{}
	s.snapshot.Store(&empty)
	return s
}

// Start launches the tick loop and returns its tick channel. The channel is
// closed when the source stops.
func (s *Source) Start() (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil, ErrAlreadyStarted
	}
	s.started = true
	s.quit = make(chan struct{})
	s.done = make(chan struct{})

	ticks := make(chan struct{})
	go s.run(ticks)
	return ticks, nil
}

func (s *Source) run(ticks chan<- struct{}) {
	defer close(s.done)
	defer close(ticks)

	timer := time.NewTicker(s.interval)
	defer timer.Stop()

	for {
		snapshot := s.generate(s.tickers)
		s.snapshot.Store(&snapshot)

		select {
		case ticks <- struct{}{}:
		case <-s.quit:
			return
		}

		select {
		case <-timer.C:
		case <-s.quit:
			return
		}
	}
}

// Snapshot returns the current snapshot. The returned map is shared and
// must not be modified.
func (s *Source) Snapshot() Snapshot {
	return *s.snapshot.Load()
}

// Stop terminates the tick loop and waits for it to exit. Stopping a
// stopped source is a no-op.
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	close(s.quit)
	<-s.done
	s.logger.Infof("quote source stopped")
}
