// Package gpiod drives the LoRa 4 Click control lines through the
// Linux GPIO character device.
package gpiod

import (
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Wiring of the LoRa 4 Click in slot 1 of a Pi 3 click shield.
const (
	DefaultChip     = "gpiochip0"
	DefaultResetPin = 5 // NRST
	DefaultWakePin  = 8 // NWAKE
)

const (
	// resetPulse is how long NRST is held low. The datasheet gives no
	// minimum, 100ms is known good.
	resetPulse = 100 * time.Millisecond
	// bootDelay is how long the module needs after NRST is released.
	bootDelay = 2 * time.Second
)

// Lines owns the NRST and NWAKE lines, both active low. It implements
// mipot.Gate.
type Lines struct {
	reset *gpiocdev.Line
	wake  *gpiocdev.Line
}

// Request claims the control lines, leaving the module asleep.
func Request(chip string, resetPin, wakePin int) (*Lines, error) {
	reset, err := gpiocdev.RequestLine(chip, resetPin,
		gpiocdev.AsOutput(1), gpiocdev.WithConsumer("mipot-nrst"))
	if err != nil {
		return nil, err
	}
	wake, err := gpiocdev.RequestLine(chip, wakePin,
		gpiocdev.AsOutput(1), gpiocdev.WithConsumer("mipot-nwake"))
	if err != nil {
		reset.Close()
		return nil, err
	}
	return &Lines{reset: reset, wake: wake}, nil
}

// Reset pulses NRST and blocks until the module has booted.
func (l *Lines) Reset() error {
	if err := l.reset.SetValue(0); err != nil {
		return err
	}
	time.Sleep(resetPulse)
	if err := l.reset.SetValue(1); err != nil {
		return err
	}
	time.Sleep(bootDelay)
	return nil
}

// Wake pulls NWAKE low so the module listens on the UART.
func (l *Lines) Wake() error { return l.wake.SetValue(0) }

// Sleep releases NWAKE.
func (l *Lines) Sleep() error { return l.wake.SetValue(1) }

// Close releases both lines. The module is left in whatever state the
// lines had last.
func (l *Lines) Close() error {
	err := l.reset.Close()
	if cerr := l.wake.Close(); err == nil {
		err = cerr
	}
	return err
}
