package client

import (
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotewire/quotewire-go/wire"
)

type nopLogger struct{}

func (nopLogger) Infof(format string, v ...interface{})  {}
func (nopLogger) Warnf(format string, v ...interface{})  {}
func (nopLogger) Errorf(format string, v ...interface{}) {}

type fakeTicker struct {
	c chan time.Time
}

func newFakeTicker() *fakeTicker {
	return &fakeTicker{c: make(chan time.Time)}
}

func (f *fakeTicker) C() <-chan time.Time { return f.c }
func (f *fakeTicker) Stop()               {}

func udpSocket(t *testing.T) (*net.UDPConn, netip.AddrPort) {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, netip.MustParseAddrPort(conn.LocalAddr().String())
}

func readPing(t *testing.T, conn *net.UDPConn, timeout time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	buf := make([]byte, 64)
	n, _, err := conn.ReadFromUDPAddrPort(buf)
	require.NoError(t, err)

	datagrams, err := wire.NewDatagramParser().Parse(buf[:n])
	require.NoError(t, err)
	require.Len(t, datagrams, 1)
	assert.True(t, wire.IsPing(datagrams[0].Payload))
}

func testPingerOptions(ft *fakeTicker) options {
	o := defaultClientOptions()
	o.logger = nopLogger{}
	o.newPingTicker = func(time.Duration) ticker { return ft }
	return o
}

func TestPingerSendsAfterStart(t *testing.T) {
	conn, _ := udpSocket(t)
	target, targetAddr := udpSocket(t)

	ft := newFakeTicker()
	p := newPinger(conn, testPingerOptions(ft))
	defer p.stop()

	p.start(targetAddr)

	for i := 0; i < 3; i++ {
		ft.c <- time.Now()
		readPing(t, target, time.Second)
	}
}

func TestPingerIdleUntilStarted(t *testing.T) {
	conn, _ := udpSocket(t)
	target, _ := udpSocket(t)

	ft := newFakeTicker()
	p := newPinger(conn, testPingerOptions(ft))
	defer p.stop()

	// no start: nothing may arrive
	require.NoError(t, target.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	buf := make([]byte, 64)
	_, _, err := target.ReadFromUDPAddrPort(buf)
	require.Error(t, err)
}

func TestPingerSecondStartIgnored(t *testing.T) {
	conn, _ := udpSocket(t)
	first, firstAddr := udpSocket(t)
	second, secondAddr := udpSocket(t)

	ft := newFakeTicker()
	p := newPinger(conn, testPingerOptions(ft))
	defer p.stop()

	p.start(firstAddr)
	ft.c <- time.Now()
	readPing(t, first, time.Second)

	p.start(secondAddr)
	ft.c <- time.Now()
	readPing(t, first, time.Second)

	require.NoError(t, second.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	buf := make([]byte, 64)
	_, _, err := second.ReadFromUDPAddrPort(buf)
	require.Error(t, err, "second target must never be pinged")
}

func TestPingerStopBeforeStart(t *testing.T) {
	conn, _ := udpSocket(t)

	p := newPinger(conn, testPingerOptions(newFakeTicker()))

	done := make(chan struct{})
	go func() {
		p.stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stop did not complete")
	}
}
