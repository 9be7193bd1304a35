package wire

import "errors"

// ErrParseDatagram is returned when a buffer does not start with a valid datagram header
var ErrParseDatagram = errors.New("unable to parse datagram")

// ErrParseQuote is returned when a quote payload is malformed
var ErrParseQuote = errors.New("unable to parse quote")

// ErrParseServerMessage is returned when a server message has an unknown type tag
var ErrParseServerMessage = errors.New("unable to parse server message")

// ErrParseClientMessage is returned when a control line is not a valid client message
var ErrParseClientMessage = errors.New("unable to parse client message")
