package mipot

import (
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

// fakeConn feeds a canned byte stream to the decoder and records every
// write.
type fakeConn struct {
	rx []byte
	tx [][]byte
}

func (c *fakeConn) Write(p []byte) error {
	c.tx = append(c.tx, append([]byte(nil), p...))
	return nil
}

func (c *fakeConn) Read(p []byte, _ time.Time) (int, error) {
	if len(c.rx) == 0 {
		return 0, nil
	}
	n := copy(p, c.rx)
	c.rx = c.rx[n:]
	return n, nil
}

type fakeGate struct {
	wakes  int
	sleeps int
	awake  bool
}

func (g *fakeGate) Reset() error { return nil }

func (g *fakeGate) Wake() error {
	g.wakes++
	g.awake = true
	return nil
}

func (g *fakeGate) Sleep() error {
	g.sleeps++
	g.awake = false
	return nil
}

// rawFrame builds a complete wire frame with a valid checksum.
func rawFrame(opcode byte, payload ...byte) []byte {
	buf := append([]byte{syncByte, opcode, byte(len(payload))}, payload...)
	var sum byte
	for _, b := range buf {
		sum += b
	}
	return append(buf, (sum^0xFF)+1)
}

func newTestDevice(rx ...[]byte) (*Device, *fakeConn, *fakeGate) {
	conn := &fakeConn{}
	for _, f := range rx {
		conn.rx = append(conn.rx, f...)
	}
	gate := &fakeGate{}
	return New(conn, gate, Config{}), conn, gate
}

func TestCommandQueuesInterleavedIndication(t *testing.T) {
	c := qt.New(t)
	dev, _, gate := newTestDevice(
		rawFrame(IndJoin, 0x00),
		rawFrame(CmdJoin|replyBit, JoinOK),
	)

	st, err := dev.Join(JoinOTAA)
	c.Assert(err, qt.IsNil)
	c.Assert(st, qt.Equals, byte(JoinOK))
	c.Assert(gate.wakes, qt.Equals, 1)
	c.Assert(gate.sleeps, qt.Equals, 1)

	// The indication seen before the reply must come out of the queue
	// without touching the module again.
	ind, err := dev.GetIndication(time.Millisecond)
	c.Assert(err, qt.IsNil)
	c.Assert(ind, qt.Equals, JoinEvent{Success: true})
	c.Assert(gate.wakes, qt.Equals, 1)
}

func TestCommandGivesUpAfterEightFrames(t *testing.T) {
	c := qt.New(t)
	frames := make([][]byte, maxReplyAttempts)
	for i := range frames {
		frames[i] = rawFrame(IndJoin, 0x00)
	}
	dev, _, gate := newTestDevice(frames...)

	// Eight indications and no reply: the last frame is handed back
	// as-is, so the caller sees its status byte.
	st, err := dev.Join(JoinOTAA)
	c.Assert(err, qt.IsNil)
	c.Assert(st, qt.Equals, byte(0x00))

	for i := 0; i < maxReplyAttempts; i++ {
		_, err := dev.GetIndication(time.Millisecond)
		c.Assert(err, qt.IsNil)
	}
	c.Assert(gate.wakes, qt.Equals, 1)
}

func TestCommandTimeoutReleasesBracket(t *testing.T) {
	c := qt.New(t)
	dev, _, gate := newTestDevice()

	_, err := dev.Join(JoinOTAA)
	c.Assert(errors.Is(err, ErrTimeout), qt.IsTrue)
	c.Assert(gate.wakes, qt.Equals, 1)
	c.Assert(gate.sleeps, qt.Equals, 1)
	c.Assert(gate.awake, qt.IsFalse)
}

func TestCommandSkipsWrongLengthReply(t *testing.T) {
	c := qt.New(t)
	dev, _, _ := newTestDevice(
		rawFrame(CmdJoin|replyBit),
		rawFrame(CmdJoin|replyBit, JoinBusy),
	)

	st, err := dev.Join(JoinOTAA)
	c.Assert(err, qt.IsNil)
	c.Assert(st, qt.Equals, byte(JoinBusy))
}

func TestGetRawIndicationDirectWait(t *testing.T) {
	c := qt.New(t)
	dev, _, gate := newTestDevice(rawFrame(IndTxUncon, 0x00, 0x05, 0x00))

	f, err := dev.GetRawIndication(50 * time.Millisecond)
	c.Assert(err, qt.IsNil)
	c.Assert(f.Opcode, qt.Equals, byte(IndTxUncon))
	c.Assert(f.Len(), qt.Equals, 3)
	c.Assert(gate.wakes, qt.Equals, 1)
	c.Assert(gate.sleeps, qt.Equals, 1)
}

func TestGetRawIndicationRejectsCommandReply(t *testing.T) {
	c := qt.New(t)
	dev, _, _ := newTestDevice(rawFrame(CmdGetBattery|replyBit, 0x00))

	_, err := dev.GetRawIndication(50 * time.Millisecond)
	c.Assert(errors.Is(err, ErrProtocol), qt.IsTrue)
}

func TestGetRawIndicationEmpty(t *testing.T) {
	c := qt.New(t)
	dev, _, gate := newTestDevice()

	_, err := dev.GetRawIndication(time.Millisecond)
	c.Assert(errors.Is(err, ErrNoIndication), qt.IsTrue)
	c.Assert(gate.awake, qt.IsFalse)
}
