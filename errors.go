package mipot

import "errors"

// Sentinel errors returned by the driver. Wrap-aware: classify with
// errors.Is.
var (
	// ErrInvalidArgument reports a caller-supplied value outside the
	// protocol-defined range. Raised before any bytes hit the wire.
	ErrInvalidArgument = errors.New("mipot: invalid argument")

	// ErrTimeout reports that no complete frame arrived within the
	// deadline of the current exchange.
	ErrTimeout = errors.New("mipot: timeout")

	// ErrProtocol reports a syntactically valid frame that is
	// impossible in context, e.g. a command reply arriving where only
	// an indication may appear.
	ErrProtocol = errors.New("mipot: protocol violation")

	// ErrInvalidFrame reports an indication carrying an out-of-range
	// field.
	ErrInvalidFrame = errors.New("mipot: invalid frame")

	// ErrNoIndication reports that no indication was pending within
	// the given timeout.
	ErrNoIndication = errors.New("mipot: no indication pending")
)
