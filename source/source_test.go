package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotewire/quotewire-go/wire"
)

func TestSourceInstallsSnapshotBeforeTick(t *testing.T) {
	s := New([]string{"AAPL", "MSFT"}, WithInterval(10*time.Millisecond))
	defer s.Stop()

	ticks, err := s.Start()
	require.NoError(t, err)

	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("no tick received")
	}

	snapshot := s.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Contains(t, snapshot, "AAPL")
	assert.Contains(t, snapshot, "MSFT")
}

func TestSourceGeneratedQuotes(t *testing.T) {
	s := New([]string{"AAPL"}, WithInterval(10*time.Millisecond))
	defer s.Stop()

	ticks, err := s.Start()
	require.NoError(t, err)
	<-ticks

	q := s.Snapshot()["AAPL"]
	assert.Equal(t, "AAPL", q.Ticker)
	assert.GreaterOrEqual(t, q.Price, 100.0)
	assert.LessOrEqual(t, q.Price, 150.0)
	assert.GreaterOrEqual(t, q.Volume, uint32(1000))
	assert.Less(t, q.Volume, uint32(2000))
	assert.NotZero(t, q.Timestamp)
}

func TestSourceReplacesSnapshotEachTick(t *testing.T) {
	gen := 0
	s := New([]string{"AAPL"},
		WithInterval(5*time.Millisecond),
		WithGenerate(func(tickers []string) Snapshot {
			gen++
			return Snapshot{"AAPL": wire.Quote{Ticker: "AAPL", Timestamp: uint64(gen)}}
		}),
	)
	defer s.Stop()

	ticks, err := s.Start()
	require.NoError(t, err)

	// each tick is emitted only after its snapshot is installed
	<-ticks
	first := s.Snapshot()["AAPL"].Timestamp
	assert.GreaterOrEqual(t, first, uint64(1))

	<-ticks
	second := s.Snapshot()["AAPL"].Timestamp
	assert.GreaterOrEqual(t, second, uint64(2))
	assert.GreaterOrEqual(t, second, first)
}

func TestSourceStartTwice(t *testing.T) {
	s := New([]string{"AAPL"}, WithInterval(10*time.Millisecond))
	defer s.Stop()

	_, err := s.Start()
	require.NoError(t, err)

	_, err = s.Start()
	require.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestSourceStopClosesTicks(t *testing.T) {
	s := New([]string{"AAPL"}, WithInterval(10*time.Millisecond))

	ticks, err := s.Start()
	require.NoError(t, err)

	s.Stop()
	// double stop is a no-op
	s.Stop()

	select {
	case _, ok := <-ticks:
		for ok {
			_, ok = <-ticks
		}
	case <-time.After(time.Second):
		t.Fatal("tick channel not closed")
	}
}
