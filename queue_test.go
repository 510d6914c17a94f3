package mipot

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestIndicationQueueOrder(t *testing.T) {
	c := qt.New(t)
	q := newIndicationQueue(4)
	c.Assert(q.empty(), qt.IsTrue)

	for i := byte(0); i < 3; i++ {
		c.Assert(q.push(Frame{Opcode: IndJoin, Payload: []byte{i}}), qt.IsTrue)
	}
	for i := byte(0); i < 3; i++ {
		f, ok := q.pop()
		c.Assert(ok, qt.IsTrue)
		c.Assert(f.Payload[0], qt.Equals, i)
	}
	_, ok := q.pop()
	c.Assert(ok, qt.IsFalse)
}

func TestIndicationQueueDropsWhenFull(t *testing.T) {
	c := qt.New(t)
	q := newIndicationQueue(indicationQueueSize)
	for i := 0; i < indicationQueueSize; i++ {
		c.Assert(q.push(Frame{Opcode: IndJoin, Payload: []byte{byte(i)}}), qt.IsTrue)
	}
	// The overflowing frame is dropped, the buffered ones survive.
	c.Assert(q.push(Frame{Opcode: IndJoin, Payload: []byte{0xFF}}), qt.IsFalse)

	for i := 0; i < indicationQueueSize; i++ {
		f, ok := q.pop()
		c.Assert(ok, qt.IsTrue)
		c.Assert(f.Payload[0], qt.Equals, byte(i))
	}
	c.Assert(q.empty(), qt.IsTrue)
}
