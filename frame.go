package mipot

import (
	"fmt"
	"time"
)

// Frame is one complete protocol message with the checksum already
// verified and stripped. The wire length byte equals len(Payload); the
// module appends one checksum byte after the payload, chosen so the
// whole transmitted frame sums to zero mod 256.
type Frame struct {
	Opcode  byte
	Payload []byte
}

// Len returns the value of the wire length byte.
func (f Frame) Len() int { return len(f.Payload) }

// IsIndication reports whether the frame carries an indication opcode.
func (f Frame) IsIndication() bool { return isIndication(f.Opcode) }

// encodeFrame builds the wire form of a command:
// 0xAA | opcode | length | payload | checksum.
func encodeFrame(opcode byte, payload []byte) ([]byte, error) {
	if !isCommand(opcode) {
		return nil, fmt.Errorf("%w: opcode 0x%02X is not a command", ErrInvalidArgument, opcode)
	}
	if len(payload) > 0xFF {
		return nil, fmt.Errorf("%w: payload of %d bytes does not fit the length byte", ErrInvalidArgument, len(payload))
	}
	buf := make([]byte, 0, len(payload)+4)
	buf = append(buf, syncByte, opcode, byte(len(payload)))
	buf = append(buf, payload...)
	var sum byte
	for _, b := range buf {
		sum += b
	}
	buf = append(buf, (sum^0xFF)+1)
	return buf, nil
}

// expectedReply narrows which opcodes the decoder accepts as a frame
// header. With ok set, only the given opcode or an indication pass;
// otherwise any well-formed reply or indication does.
type expectedReply struct {
	opcode byte
	ok     bool
}

func expectReply(cmd byte) expectedReply {
	return expectedReply{opcode: cmd | replyBit, ok: true}
}

func (e expectedReply) accepts(b byte) bool {
	if isIndication(b) {
		return true
	}
	if e.ok {
		return b == e.opcode
	}
	return b&replyBit != 0 && isCommand(b&^byte(replyBit))
}

// Receive state machine. Checksum failures and implausible opcode
// candidates restart at seekSync under the unchanged deadline;
// only deadline expiry terminates without a frame.
type decodeState int

const (
	seekSync decodeState = iota
	seekOpcode
	readLength
	readPayload
	verifyChecksum
)

// decodeFrame reads conn until a checksum-valid frame with an
// acceptable opcode arrives or deadline passes (ErrTimeout). The
// deadline is fixed for the whole call, resynchronization included.
func decodeFrame(conn Conn, deadline time.Time, expect expectedReply) (Frame, error) {
	var (
		opcode byte
		length byte
		rest   []byte
	)
	state := seekSync
	for {
		switch state {
		case seekSync:
			b, err := readByte(conn, deadline)
			if err != nil {
				return Frame{}, err
			}
			if b == syncByte {
				state = seekOpcode
			}
		case seekOpcode:
			b, err := readByte(conn, deadline)
			if err != nil {
				return Frame{}, err
			}
			if b == syncByte {
				// Superfluous sync bytes, keep looking for the opcode.
				continue
			}
			if !expect.accepts(b) {
				// Garbage misread as a frame header. Start over rather
				// than trusting anything that follows.
				state = seekSync
				continue
			}
			opcode = b
			state = readLength
		case readLength:
			b, err := readByte(conn, deadline)
			if err != nil {
				return Frame{}, err
			}
			length = b
			state = readPayload
		case readPayload:
			// The module sends length payload bytes plus the checksum.
			rest = make([]byte, int(length)+1)
			if err := readFull(conn, rest, deadline); err != nil {
				return Frame{}, err
			}
			state = verifyChecksum
		case verifyChecksum:
			sum := byte(syncByte) + opcode + length
			for _, b := range rest {
				sum += b
			}
			if sum != 0 {
				state = seekSync
				continue
			}
			return Frame{Opcode: opcode, Payload: rest[:length]}, nil
		}
	}
}

func readByte(conn Conn, deadline time.Time) (byte, error) {
	var buf [1]byte
	if err := readFull(conn, buf[:], deadline); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// readFull reads exactly len(p) bytes. Partial reads are fine; an
// empty read means the deadline passed without data.
func readFull(conn Conn, p []byte, deadline time.Time) error {
	for got := 0; got < len(p); {
		if !time.Now().Before(deadline) {
			return ErrTimeout
		}
		n, err := conn.Read(p[got:], deadline)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if n == 0 {
			return ErrTimeout
		}
		got += n
	}
	return nil
}
