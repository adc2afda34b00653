package websocket

import "errors"

type Opcode uint8

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

// IsControl reports whether the opcode belongs to a control frame.
func (o Opcode) IsControl() bool {
	return o&0x8 != 0
}

func (o Opcode) String() string {
	switch o {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return "reserved"
	}
}

// Message is either a complete (possibly reassembled) data message or a single
// control frame.
type Message struct {
	Opcode  Opcode
	Payload []byte
}

const (
	finBit   = 0x80
	rsvBits  = 0x70
	opMask   = 0x0f
	maskBit  = 0x80
	lenMask  = 0x7f
	len16    = 126
	len64    = 127
	maxLen7  = 125
	maxLen16 = 0xffff

	legacyStart = 0x00
	legacyEnd   = 0xff
)

var (
	ErrMessageTooLarge        = errors.New("websocket message is too large")
	ErrBadLength              = errors.New("malformed websocket payload length")
	ErrReservedBits           = errors.New("reserved bits are set, while no extensions were negotiated")
	ErrReservedOpcode         = errors.New("reserved websocket opcode")
	ErrBadControlFrame        = errors.New("control frames must be final and at most 125 bytes long")
	ErrUnexpectedContinuation = errors.New("continuation frame without a message to continue")
	ErrInterleavedMessage     = errors.New("new data message started before the previous one was finished")
	ErrBadLegacyFrame         = errors.New("malformed legacy websocket frame")
)
