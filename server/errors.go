package server

import (
	"errors"
	"fmt"
	"net/netip"
)

// ErrAlreadyStarted is returned when Start is called on a running component.
var ErrAlreadyStarted = errors.New("component is already started")

// ErrAddressInUse is returned when a subscription arrives for an address
// that already has a session.
var ErrAddressInUse = errors.New("client address already exists")

// ErrSessionClosed is returned when a quote is enqueued to a session that
// is shutting down or whose queue is full.
var ErrSessionClosed = errors.New("session is closed")

func addressInUse(addr netip.AddrPort) error {
	return fmt.Errorf("%w: %s", ErrAddressInUse, addr)
}
