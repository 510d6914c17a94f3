package mipot

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Dispatcher policy.
const (
	// maxReplyAttempts bounds how many frames are examined before the
	// dispatcher gives up matching and returns the last one as-is.
	maxReplyAttempts = 8
	// indicationQueueSize bounds how many unsolicited frames are kept
	// while a command reply is pending.
	indicationQueueSize = 32
)

// Per-command reply timeouts, taken from the command reference.
const (
	replyTimeout   = 250 * time.Millisecond
	factoryTimeout = time.Second
	eepromTimeout  = time.Second
	keyTimeout     = 2 * time.Second

	// rebootDelay is how long the module needs to come back after a
	// soft reset.
	rebootDelay = 2 * time.Second
)

// Config holds the optional driver settings.
type Config struct {
	// Logger receives wire traces and dispatcher events. Nil disables
	// logging.
	Logger *zerolog.Logger
}

// Device drives one Mipot 32001353 module over its serial link and
// control lines. A Device is not safe for concurrent use; callers
// sharing one must serialize access themselves.
type Device struct {
	sess    session
	pending *indicationQueue
	log     zerolog.Logger
}

// New creates a driver for the module reachable through conn and gate.
// The serial port must already be configured for 115200 8N1 and the
// module reset (see Gate.Reset).
func New(conn Conn, gate Gate, cfg Config) *Device {
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	return &Device{
		sess:    session{conn: conn, gate: gate},
		pending: newIndicationQueue(indicationQueueSize),
		log:     log,
	}
}

// command runs one request/reply exchange: encode, wake, transmit,
// then collect frames until one matches the expected reply. wantLen is
// the expected reply length byte, or -1 when the reply is variable.
func (d *Device) command(opcode byte, payload []byte, wantLen int, timeout time.Duration) (Frame, error) {
	wire, err := encodeFrame(opcode, payload)
	if err != nil {
		return Frame{}, err
	}
	var reply Frame
	err = d.sess.exchange(wire, func() error {
		d.log.Trace().Hex("tx", wire).Msg("command")
		var ferr error
		reply, ferr = d.awaitReply(opcode, wantLen, timeout)
		return ferr
	})
	return reply, err
}

// awaitReply drives the retry loop for one command. Indications seen
// along the way are queued for GetIndication; replies with the wrong
// length are taken for stale data and skipped. A decode timeout aborts
// the whole operation.
//
// After maxReplyAttempts mismatches the last decoded frame is returned
// without error; the module's host protocol has no harder guarantee to
// offer, so callers decode the reply defensively.
func (d *Device) awaitReply(opcode byte, wantLen int, timeout time.Duration) (Frame, error) {
	var last Frame
	for attempt := 0; attempt < maxReplyAttempts; attempt++ {
		deadline := time.Now().Add(timeout)
		f, err := decodeFrame(d.sess.conn, deadline, expectReply(opcode))
		if err != nil {
			return Frame{}, err
		}
		d.log.Trace().Uint8("opcode", f.Opcode).Int("len", f.Len()).Msg("frame received")
		last = f
		if f.IsIndication() {
			if !d.pending.push(f) {
				d.log.Debug().Uint8("opcode", f.Opcode).Msg("indication queue full, frame dropped")
			}
			continue
		}
		if wantLen >= 0 && f.Len() != wantLen {
			d.log.Debug().
				Uint8("opcode", f.Opcode).
				Int("len", f.Len()).
				Int("want", wantLen).
				Msg("reply length mismatch, retrying")
			continue
		}
		return f, nil
	}
	return last, nil
}

// GetRawIndication returns the oldest buffered indication without
// touching the module, or, when none is buffered, wakes the module for
// one direct decode attempt. It returns ErrNoIndication when timeout
// passes without one, and ErrProtocol when a command reply shows up
// where only an indication can be expected.
func (d *Device) GetRawIndication(timeout time.Duration) (Frame, error) {
	if f, ok := d.pending.pop(); ok {
		return f, nil
	}
	var f Frame
	err := d.sess.exchange(nil, func() error {
		deadline := time.Now().Add(timeout)
		got, derr := decodeFrame(d.sess.conn, deadline, expectedReply{})
		if derr != nil {
			return derr
		}
		f = got
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return Frame{}, ErrNoIndication
		}
		return Frame{}, err
	}
	if !f.IsIndication() {
		return Frame{}, fmt.Errorf("%w: unexpected command reply 0x%02X", ErrProtocol, f.Opcode)
	}
	return f, nil
}

// GetIndication returns the next indication in its typed form. See
// GetRawIndication for the waiting behavior.
func (d *Device) GetIndication(timeout time.Duration) (Indication, error) {
	f, err := d.GetRawIndication(timeout)
	if err != nil {
		return nil, err
	}
	return DecodeIndication(f)
}
