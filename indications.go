package mipot

import (
	"encoding/binary"
	"fmt"
)

// txPowerTable maps the module's transmit power index to dBm.
var txPowerTable = [...]int{20, 14, 11, 8, 5, 2}

// Indication is one unsolicited event from the module. The concrete
// types are JoinEvent, TxConfirmed, TxUnconfirmed and RxMessage.
type Indication interface {
	indication()
}

// JoinEvent reports the outcome of a network join.
type JoinEvent struct {
	Success bool
}

// TxConfirmed reports the outcome of a confirmed uplink.
type TxConfirmed struct {
	Success     bool
	DataRate    uint8
	PowerDBm    int
	AckReceived bool
	Retries     uint8
}

// TxUnconfirmed reports the outcome of an unconfirmed uplink.
type TxUnconfirmed struct {
	Success  bool
	DataRate uint8
	PowerDBm int
}

// MessageType classifies a received downlink.
type MessageType uint8

const (
	MessageUnconfirmed MessageType = iota
	MessageConfirmed
	MessageMulticast
	MessageProprietary
)

func (t MessageType) String() string {
	switch t {
	case MessageUnconfirmed:
		return "unconfirmed"
	case MessageConfirmed:
		return "confirmed"
	case MessageMulticast:
		return "multicast"
	case MessageProprietary:
		return "proprietary"
	}
	return fmt.Sprintf("MessageType(%d)", uint8(t))
}

// RxMessage carries a downlink received from the network. SNR and Port
// are read from the same wire byte; the module overlaps the two fields
// in this frame layout.
type RxMessage struct {
	Success      bool
	Type         MessageType
	Multicast    bool
	DataRate     uint8
	Slot         uint8
	FramePending bool
	Ack          bool
	RSSIDBm      int16
	SNR          uint8
	Port         uint8
	Data         []byte
}

func (JoinEvent) indication()     {}
func (TxConfirmed) indication()   {}
func (TxUnconfirmed) indication() {}
func (RxMessage) indication()     {}

// DecodeIndication turns a raw indication frame into its typed form.
// Unknown opcodes fail with ErrProtocol, out-of-range fields with
// ErrInvalidFrame.
func DecodeIndication(f Frame) (Indication, error) {
	switch f.Opcode {
	case IndJoin:
		return DecodeJoinEvent(f)
	case IndTxCon:
		return DecodeTxConfirmed(f)
	case IndTxUncon:
		return DecodeTxUnconfirmed(f)
	case IndRxMsg:
		return DecodeRxMessage(f)
	}
	return nil, fmt.Errorf("%w: unknown indication 0x%02X", ErrProtocol, f.Opcode)
}

// DecodeJoinEvent parses a join indication (opcode 0x41, one status
// byte: zero means the network accepted the device).
func DecodeJoinEvent(f Frame) (JoinEvent, error) {
	if f.Opcode != IndJoin {
		return JoinEvent{}, fmt.Errorf("%w: opcode 0x%02X is not a join indication", ErrInvalidFrame, f.Opcode)
	}
	if f.Len() != 1 {
		return JoinEvent{}, fmt.Errorf("%w: join indication with length %d", ErrInvalidFrame, f.Len())
	}
	return JoinEvent{Success: f.Payload[0] == 0}, nil
}

// DecodeTxConfirmed parses a confirmed-uplink result indication
// (opcode 0x47).
func DecodeTxConfirmed(f Frame) (TxConfirmed, error) {
	if f.Opcode != IndTxCon {
		return TxConfirmed{}, fmt.Errorf("%w: opcode 0x%02X is not a tx confirmed indication", ErrInvalidFrame, f.Opcode)
	}
	if f.Len() != 5 {
		return TxConfirmed{}, fmt.Errorf("%w: tx confirmed indication with length %d", ErrInvalidFrame, f.Len())
	}
	power, err := txPower(f.Payload[2])
	if err != nil {
		return TxConfirmed{}, err
	}
	return TxConfirmed{
		Success:     f.Payload[0] == 0,
		DataRate:    f.Payload[1],
		PowerDBm:    power,
		AckReceived: f.Payload[3] == 1,
		Retries:     f.Payload[4],
	}, nil
}

// DecodeTxUnconfirmed parses an unconfirmed-uplink result indication
// (opcode 0x48).
func DecodeTxUnconfirmed(f Frame) (TxUnconfirmed, error) {
	if f.Opcode != IndTxUncon {
		return TxUnconfirmed{}, fmt.Errorf("%w: opcode 0x%02X is not a tx unconfirmed indication", ErrInvalidFrame, f.Opcode)
	}
	if f.Len() != 3 {
		return TxUnconfirmed{}, fmt.Errorf("%w: tx unconfirmed indication with length %d", ErrInvalidFrame, f.Len())
	}
	power, err := txPower(f.Payload[2])
	if err != nil {
		return TxUnconfirmed{}, err
	}
	return TxUnconfirmed{
		Success:  f.Payload[0] == 0,
		DataRate: f.Payload[1],
		PowerDBm: power,
	}, nil
}

// DecodeRxMessage parses a received-downlink indication (opcode 0x49).
// Payload data is present only when the payload flag byte is set and
// the frame actually carries trailing bytes.
func DecodeRxMessage(f Frame) (RxMessage, error) {
	if f.Opcode != IndRxMsg {
		return RxMessage{}, fmt.Errorf("%w: opcode 0x%02X is not an rx message indication", ErrInvalidFrame, f.Opcode)
	}
	if f.Len() < 11 {
		return RxMessage{}, fmt.Errorf("%w: rx message indication with length %d", ErrInvalidFrame, f.Len())
	}
	p := f.Payload
	msg := RxMessage{
		Success:      p[0] == 0,
		Type:         MessageType(p[1]),
		Multicast:    p[2] == 1,
		DataRate:     p[3],
		Slot:         p[4],
		FramePending: p[5] == 1,
		Ack:          p[6] == 1,
		RSSIDBm:      int16(binary.LittleEndian.Uint16(p[8:10])),
		SNR:          p[10],
		Port:         p[10],
	}
	if len(p) > 11 && p[7] == 1 {
		msg.Data = append([]byte(nil), p[11:]...)
	}
	if msg.Type > MessageProprietary {
		return RxMessage{}, fmt.Errorf("%w: rx message type %d", ErrInvalidFrame, msg.Type)
	}
	if msg.DataRate > 7 {
		return RxMessage{}, fmt.Errorf("%w: rx data rate %d", ErrInvalidFrame, msg.DataRate)
	}
	if msg.Slot > 2 {
		return RxMessage{}, fmt.Errorf("%w: rx slot %d", ErrInvalidFrame, msg.Slot)
	}
	if msg.Port < 1 || msg.Port > 223 {
		return RxMessage{}, fmt.Errorf("%w: rx port %d", ErrInvalidFrame, msg.Port)
	}
	return msg, nil
}

func txPower(idx byte) (int, error) {
	if int(idx) >= len(txPowerTable) {
		return 0, fmt.Errorf("%w: tx power index %d", ErrInvalidFrame, idx)
	}
	return txPowerTable[idx], nil
}
