package server

import (
	"fmt"
	"net/netip"
	"strings"
)

// Event is emitted by the subscription listener and consumed by the core
// event loop.
type Event interface {
	fmt.Stringer

	event()
}

// NewClientEvent announces a parsed subscription request.
type NewClientEvent struct {
	Addr    netip.AddrPort
	Tickers []string
}

func (e NewClientEvent) event() {}

func (e NewClientEvent) String() string {
	return fmt.Sprintf("NewClient(%s, [%s])", e.Addr, strings.Join(e.Tickers, ","))
}

// ClientGoneEvent announces an unsubscribe request.
type ClientGoneEvent struct {
	Addr netip.AddrPort
}

func (e ClientGoneEvent) event() {}

func (e ClientGoneEvent) String() string {
	return fmt.Sprintf("ClientGone(%s)", e.Addr)
}

// ErrorEvent carries a non-fatal listener error, e.g. a malformed request.
type ErrorEvent struct {
	Err error
}

func (e ErrorEvent) event() {}

func (e ErrorEvent) String() string {
	return fmt.Sprintf("Error(%v)", e.Err)
}

// sessionEvent flows from a session's workers back to the registry.
type sessionEvent struct {
	addr netip.AddrPort
	// err is nil for a liveness disconnect and non-nil for a send failure
	err error
}
