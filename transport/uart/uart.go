// Package uart connects the mipot driver to a host serial device.
package uart

import (
	"time"

	"go.bug.st/serial"
)

// Port adapts a serial device to the mipot.Conn interface. The module
// always talks 115200 8N1 without flow control.
type Port struct {
	port serial.Port
}

// Open opens the serial device, e.g. /dev/serial0 on a Raspberry Pi.
func Open(device string) (*Port, error) {
	p, err := serial.Open(device, &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	return &Port{port: p}, nil
}

// Write sends b in full.
func (p *Port) Write(b []byte) error {
	for len(b) > 0 {
		n, err := p.port.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// Read fills b with whatever arrives before deadline. A zero count
// means the deadline passed without data.
func (p *Port) Read(b []byte, deadline time.Time) (int, error) {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0, nil
	}
	if err := p.port.SetReadTimeout(remaining); err != nil {
		return 0, err
	}
	return p.port.Read(b)
}

// Close releases the serial device.
func (p *Port) Close() error {
	return p.port.Close()
}
