package client

import "errors"

// ErrAlreadyStarted is returned when Run is called on a running client.
var ErrAlreadyStarted = errors.New("client is already started")

// ErrTooManyErrors is returned when the receive loop exceeds its error
// budget.
var ErrTooManyErrors = errors.New("too many receive errors")
