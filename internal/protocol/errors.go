package protocol

import "errors"

// ErrConnectionLost is returned by codec operations when the underlying
// connection fails mid-frame.
var ErrConnectionLost = errors.New("protocol: connection lost")

// ErrProtocol is returned when a peer sends a status byte or acknowledgement
// that does not match what the protocol expects at that step.
var ErrProtocol = errors.New("protocol: unexpected status")

// ErrBadWidth is returned when a peer proposes a length-field width outside
// [1, 8].
var ErrBadWidth = errors.New("protocol: length width out of range")

// ErrLangUnsupported is returned by a Runner when it has no launcher for the
// requested language tag.
var ErrLangUnsupported = errors.New("protocol: language not implemented")

// ErrJobTimeout is returned by a Runner when the job exceeded its wall-clock
// deadline.
var ErrJobTimeout = errors.New("protocol: job timeout")
