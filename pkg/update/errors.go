package update

import "errors"

var errNotRecognized = errors.New(ReasonNotRecognized)

// ErrMalformedAck is returned when a consumer answers with something that is not an Ack.
var ErrMalformedAck = errors.New("malformed ack")

// ErrTimeout is returned when an attempt exceeds the delivery timeout.
var ErrTimeout = errors.New("delivery timed out")
