package server

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotewire/quotewire-go/source"
	"github.com/quotewire/quotewire-go/wire"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	o := testOptions()
	r := NewRegistry(
		WithLogger(o.logger),
		WithPingTimeout(o.pingTimeout),
		WithSessionReadTimeout(o.sessionReadTimeout),
	)
	t.Cleanup(r.Shutdown)
	return r
}

func TestRegistryAddressUniqueness(t *testing.T) {
	r := testRegistry(t)
	_, addr := subscriberSocket(t)

	require.NoError(t, r.AddClient(addr, []string{"AAPL"}))

	err := r.AddClient(addr, []string{"MSFT"})
	require.ErrorIs(t, err, ErrAddressInUse)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryRemoveAllowsReAdd(t *testing.T) {
	r := testRegistry(t)
	_, addr := subscriberSocket(t)

	require.NoError(t, r.AddClient(addr, []string{"AAPL"}))
	r.RemoveAndStop([]netip.AddrPort{addr})
	assert.Equal(t, 0, r.Len())

	require.NoError(t, r.AddClient(addr, []string{"AAPL"}))
	assert.Equal(t, 1, r.Len())
}

func TestRegistryRemoveUnknownAddress(t *testing.T) {
	r := testRegistry(t)
	r.RemoveAndStop([]netip.AddrPort{netip.MustParseAddrPort("127.0.0.1:40002")})
	assert.Equal(t, 0, r.Len())
}

func TestRegistryFanOut(t *testing.T) {
	r := testRegistry(t)
	sub, addr := subscriberSocket(t)

	require.NoError(t, r.AddClient(addr, []string{"AAPL", "MISSING", "MSFT"}))

	snapshot := source.Snapshot{
		"AAPL": {Ticker: "AAPL", Price: 123.45, Volume: 1000, Timestamp: 1},
		"MSFT": {Ticker: "MSFT", Price: 250.75, Volume: 2000, Timestamp: 2},
		"GOOG": {Ticker: "GOOG", Price: 99.99, Volume: 3000, Timestamp: 3},
	}
	r.FanOut(snapshot)

	// exactly the subscribed-and-present tickers arrive, in subscription
	// order; the absent ticker is skipped without killing the session
	first, _ := readServerMessage(t, sub, time.Second)
	assert.Equal(t, snapshot["AAPL"], first.Quote)
	second, _ := readServerMessage(t, sub, time.Second)
	assert.Equal(t, snapshot["MSFT"], second.Quote)

	require.NoError(t, sub.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	buf := make([]byte, 2048)
	_, _, err := sub.ReadFromUDPAddrPort(buf)
	require.Error(t, err, "no extra datagram expected")

	assert.Equal(t, 1, r.Len())
}

func TestRegistryFanOutMultipleSessions(t *testing.T) {
	r := testRegistry(t)
	subA, addrA := subscriberSocket(t)
	subB, addrB := subscriberSocket(t)

	require.NoError(t, r.AddClient(addrA, []string{"AAPL"}))
	require.NoError(t, r.AddClient(addrB, []string{"MSFT"}))

	snapshot := source.Snapshot{
		"AAPL": {Ticker: "AAPL", Price: 123.45, Volume: 1000, Timestamp: 1},
		"MSFT": {Ticker: "MSFT", Price: 250.75, Volume: 2000, Timestamp: 2},
	}
	r.FanOut(snapshot)

	msgA, _ := readServerMessage(t, subA, time.Second)
	assert.Equal(t, "AAPL", msgA.Quote.Ticker)
	msgB, _ := readServerMessage(t, subB, time.Second)
	assert.Equal(t, "MSFT", msgB.Quote.Ticker)
}

func TestRegistryFanOutRemovesFailedSessions(t *testing.T) {
	o := testOptions()
	o.sendQueueSize = 1
	r := NewRegistry(
		WithLogger(o.logger),
		WithPingTimeout(o.pingTimeout),
		WithSessionReadTimeout(o.sessionReadTimeout),
		WithSendQueueSize(o.sendQueueSize),
	)
	t.Cleanup(r.Shutdown)

	_, addr := subscriberSocket(t)
	require.NoError(t, r.AddClient(addr, []string{"AAPL"}))

	// a stopped session rejects the enqueue, fan-out must remove it
	r.mu.RLock()
	s := r.sessions[addr]
	r.mu.RUnlock()
	s.stop()

	snapshot := source.Snapshot{
		"AAPL": {Ticker: "AAPL", Price: 123.45, Volume: 1000, Timestamp: 1},
	}
	r.FanOut(snapshot)

	assert.Equal(t, 0, r.Len())
}

func TestRegistryConsumerRemovesDisconnected(t *testing.T) {
	r := testRegistry(t)
	require.NoError(t, r.Start())

	_, addr := subscriberSocket(t)
	require.NoError(t, r.AddClient(addr, []string{"AAPL"}))
	require.Equal(t, 1, r.Len())

	// no pings: liveness fires and the consumer removes the session
	require.Eventually(t, func() bool {
		return r.Len() == 0
	}, 3*time.Second, 50*time.Millisecond)
}

func TestRegistryShutdownStopsAll(t *testing.T) {
	r := testRegistry(t)
	require.NoError(t, r.Start())

	for i := 0; i < 3; i++ {
		_, addr := subscriberSocket(t)
		require.NoError(t, r.AddClient(addr, []string{"AAPL"}))
	}
	require.Equal(t, 3, r.Len())

	r.Shutdown()
	assert.Equal(t, 0, r.Len())

	// shutting down twice is safe
	r.Shutdown()
}

func TestRegistryStartTwice(t *testing.T) {
	r := testRegistry(t)
	require.NoError(t, r.Start())
	require.ErrorIs(t, r.Start(), ErrAlreadyStarted)
}

func TestRegistryFanOutDeliversSnapshotQuote(t *testing.T) {
	// the subscriber receives exactly the quote held by the snapshot passed
	// to FanOut
	r := testRegistry(t)
	sub, addr := subscriberSocket(t)
	require.NoError(t, r.AddClient(addr, []string{"AAPL"}))

	snapshot := source.Snapshot{"AAPL": {Ticker: "AAPL", Price: 100.5, Volume: 1, Timestamp: 7}}
	r.FanOut(snapshot)

	msg, _ := readServerMessage(t, sub, time.Second)
	assert.Equal(t, wire.Quote{Ticker: "AAPL", Price: 100.5, Volume: 1, Timestamp: 7}, msg.Quote)
}
