package mipot

import (
	"fmt"
	"time"
)

// Conn is the byte stream to the module, typically a UART. Read may
// return fewer bytes than requested; a zero count means the deadline
// passed without data.
type Conn interface {
	Write(p []byte) error
	Read(p []byte, deadline time.Time) (int, error)
}

// Gate drives the module control lines. All calls block until the
// electrical effect has taken place.
type Gate interface {
	// Reset pulses the reset line and waits for the module to boot.
	Reset() error
	// Wake asserts the wake line so the module listens on the UART.
	Wake() error
	// Sleep releases the wake line.
	Sleep() error
}

// session owns the byte stream and the control lines for the lifetime
// of the device and wraps every exchange in a wake/sleep bracket.
type session struct {
	conn Conn
	gate Gate
}

// settleDelay is the pause between asserting NWAKE and the first UART
// byte; the command reference timing diagram asks for 1ms.
const settleDelay = time.Millisecond

// exchange wakes the module, writes frame (when non-nil) after the
// settle interval and runs fn. The module goes back to sleep on every
// exit path.
func (s *session) exchange(frame []byte, fn func() error) (err error) {
	if werr := s.gate.Wake(); werr != nil {
		return fmt.Errorf("wake: %w", werr)
	}
	defer func() {
		if serr := s.gate.Sleep(); serr != nil && err == nil {
			err = fmt.Errorf("sleep: %w", serr)
		}
	}()
	time.Sleep(settleDelay)
	if frame != nil {
		if werr := s.conn.Write(frame); werr != nil {
			return fmt.Errorf("write: %w", werr)
		}
	}
	return fn()
}
