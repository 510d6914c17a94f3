package mipot

import (
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestEncodeFrameChecksum(t *testing.T) {
	c := qt.New(t)
	cases := []struct {
		opcode  byte
		payload []byte
	}{
		{CmdReset, nil},
		{CmdJoin, []byte{JoinOTAA}},
		{CmdEepromWrite, []byte{0x08, 0x01, 0x02, 0x03}},
		{CmdTxMsg, []byte{0x00, 0x01, 0xDE, 0xAD, 0xBE, 0xEF}},
	}
	for _, tc := range cases {
		wire, err := encodeFrame(tc.opcode, tc.payload)
		c.Assert(err, qt.IsNil)
		c.Assert(wire[0], qt.Equals, byte(syncByte))
		c.Assert(wire[1], qt.Equals, tc.opcode)
		c.Assert(int(wire[2]), qt.Equals, len(tc.payload))
		c.Assert(len(wire), qt.Equals, len(tc.payload)+4)
		var sum byte
		for _, b := range wire {
			sum += b
		}
		// The checksum makes the whole frame sum to zero mod 256.
		c.Assert(sum, qt.Equals, byte(0))
	}
}

func TestEncodeFrameRejectsNonCommands(t *testing.T) {
	c := qt.New(t)
	_, err := encodeFrame(IndJoin, nil)
	c.Assert(errors.Is(err, ErrInvalidArgument), qt.IsTrue)
	_, err = encodeFrame(0x00, nil)
	c.Assert(errors.Is(err, ErrInvalidArgument), qt.IsTrue)
}

func TestEncodeFrameRejectsOversizedPayload(t *testing.T) {
	c := qt.New(t)
	_, err := encodeFrame(CmdTxMsg, make([]byte, 256))
	c.Assert(errors.Is(err, ErrInvalidArgument), qt.IsTrue)
}

func decode(c *qt.C, rx []byte, expect expectedReply) (Frame, error) {
	c.Helper()
	conn := &fakeConn{rx: rx}
	return decodeFrame(conn, time.Now().Add(50*time.Millisecond), expect)
}

func TestDecodeFrameSkipsLeadingGarbage(t *testing.T) {
	c := qt.New(t)
	// Noise, then a join indication with status 0.
	rx := append([]byte{0x00, 0x41}, rawFrame(IndJoin, 0x00)...)
	f, err := decode(c, rx, expectedReply{})
	c.Assert(err, qt.IsNil)
	c.Assert(f.Opcode, qt.Equals, byte(IndJoin))
	c.Assert(f.Payload, qt.DeepEquals, []byte{0x00})
}

func TestDecodeFrameSkipsRepeatedSync(t *testing.T) {
	c := qt.New(t)
	rx := append([]byte{syncByte, syncByte}, rawFrame(IndJoin, 0x00)[1:]...)
	f, err := decode(c, rx, expectedReply{})
	c.Assert(err, qt.IsNil)
	c.Assert(f.Opcode, qt.Equals, byte(IndJoin))
}

func TestDecodeFrameResyncsAfterBadChecksum(t *testing.T) {
	c := qt.New(t)
	bad := rawFrame(IndJoin, 0x00)
	bad[len(bad)-1] ^= 0xFF
	rx := append(bad, rawFrame(IndJoin, 0x01)...)
	f, err := decode(c, rx, expectedReply{})
	c.Assert(err, qt.IsNil)
	c.Assert(f.Payload, qt.DeepEquals, []byte{0x01})
}

func TestDecodeFrameResyncsAfterBadOpcode(t *testing.T) {
	c := qt.New(t)
	// 0x13 can be neither a reply nor an indication, so everything up
	// to the next sync byte is noise.
	rx := append([]byte{syncByte, 0x13, 0x02, 0x55}, rawFrame(IndRxMsg,
		0x00, 0x00, 0x00, 0x05, 0x01, 0x00, 0x00, 0x00, 0xA6, 0xFF, 0x07)...)
	f, err := decode(c, rx, expectedReply{})
	c.Assert(err, qt.IsNil)
	c.Assert(f.Opcode, qt.Equals, byte(IndRxMsg))
	c.Assert(f.Len(), qt.Equals, 11)
}

func TestDecodeFrameOnlyAcceptsExpectedReply(t *testing.T) {
	c := qt.New(t)
	// A stray reply to a different command is noise, the matching
	// reply behind it must still be found.
	rx := append(rawFrame(CmdGetBattery|replyBit, 0x00), rawFrame(CmdJoin|replyBit, JoinOK)...)
	f, err := decode(c, rx, expectReply(CmdJoin))
	c.Assert(err, qt.IsNil)
	c.Assert(f.Opcode, qt.Equals, byte(CmdJoin|replyBit))
}

func TestDecodeFrameTimesOut(t *testing.T) {
	c := qt.New(t)
	_, err := decode(c, nil, expectedReply{})
	c.Assert(errors.Is(err, ErrTimeout), qt.IsTrue)

	// A truncated frame must not decode either.
	_, err = decode(c, []byte{syncByte, IndJoin, 0x01}, expectedReply{})
	c.Assert(errors.Is(err, ErrTimeout), qt.IsTrue)
}
