package websocket

import (
	"bytes"
	"encoding/binary"
)

// Buffer is a byte stream the decoder consumes from.
type Buffer interface {
	// Bytes returns all the buffered bytes without consuming them.
	Bytes() []byte
	Discard(n int)
}

// Decoder reconstructs messages from a byte stream split arbitrarily. A frame
// is interpreted only when it's buffered as a whole, so frames don't need to
// be aligned with reads.
type Decoder struct {
	legacy     bool
	maxSize    uint64
	opcode     Opcode
	fragmented bool
	message    []byte
}

// NewDecoder returns a decoder for either RFC 6455 or hixie-76 framing. Messages
// longer than maxSize result in ErrMessageTooLarge.
func NewDecoder(legacy bool, maxSize uint64) *Decoder {
	return &Decoder{
		legacy:  legacy,
		maxSize: maxSize,
	}
}

// Next returns the next complete message. If there's not enough bytes yet, ok is
// false and no error is returned. Any error is fatal for the connection.
func (d *Decoder) Next(src Buffer) (msg Message, ok bool, err error) {
	if d.legacy {
		return d.nextLegacy(src)
	}

	for {
		data := src.Bytes()
		if len(data) < 2 {
			return msg, false, nil
		}

		if data[0]&rsvBits != 0 {
			return msg, false, ErrReservedBits
		}

		fin := data[0]&finBit != 0
		opcode := Opcode(data[0] & opMask)
		masked := data[1]&maskBit != 0
		length := uint64(data[1] & lenMask)
		headLen := 2

		switch length {
		case len16:
			if len(data) < 4 {
				return msg, false, nil
			}

			length = uint64(binary.BigEndian.Uint16(data[2:4]))
			headLen = 4
		case len64:
			if len(data) < 10 {
				return msg, false, nil
			}

			length = binary.BigEndian.Uint64(data[2:10])
			if length>>63 != 0 {
				return msg, false, ErrBadLength
			}

			headLen = 10
		}

		if masked {
			headLen += 4
		}

		if opcode.IsControl() {
			if !fin || length > maxLen7 {
				return msg, false, ErrBadControlFrame
			}
		} else if length > d.maxSize-uint64(len(d.message)) {
			return msg, false, ErrMessageTooLarge
		}

		if len(data) < headLen || uint64(len(data)-headLen) < length {
			return msg, false, nil
		}

		total := headLen + int(length)
		payload := data[headLen:total]
		if masked {
			Mask(payload, data[headLen-4:headLen])
		}

		switch opcode {
		case OpClose, OpPing, OpPong:
			msg = Message{
				Opcode:  opcode,
				Payload: append([]byte(nil), payload...),
			}
			src.Discard(total)

			return msg, true, nil
		case OpContinuation:
			if !d.fragmented {
				return msg, false, ErrUnexpectedContinuation
			}
		case OpText, OpBinary:
			if d.fragmented {
				return msg, false, ErrInterleavedMessage
			}

			d.opcode = opcode
		default:
			return msg, false, ErrReservedOpcode
		}

		d.message = append(d.message, payload...)
		src.Discard(total)

		if !fin {
			d.fragmented = true
			continue
		}

		msg = Message{
			Opcode:  d.opcode,
			Payload: d.message,
		}
		if msg.Payload == nil {
			msg.Payload = []byte{}
		}

		d.message = nil
		d.fragmented = false

		return msg, true, nil
	}
}

func (d *Decoder) nextLegacy(src Buffer) (msg Message, ok bool, err error) {
	data := src.Bytes()
	if len(data) == 0 {
		return msg, false, nil
	}

	switch data[0] {
	case legacyStart:
		end := bytes.IndexByte(data[1:], legacyEnd)
		switch {
		case end == -1 && uint64(len(data)-1) > d.maxSize:
			return msg, false, ErrMessageTooLarge
		case end == -1:
			return msg, false, nil
		case uint64(end) > d.maxSize:
			return msg, false, ErrMessageTooLarge
		}

		msg = Message{
			Opcode:  OpText,
			Payload: append([]byte{}, data[1:1+end]...),
		}
		src.Discard(end + 2)

		return msg, true, nil
	case legacyEnd:
		if len(data) < 2 {
			return msg, false, nil
		}

		if data[1] != legacyStart {
			return msg, false, ErrBadLegacyFrame
		}

		src.Discard(2)

		return Message{Opcode: OpClose}, true, nil
	default:
		return msg, false, ErrBadLegacyFrame
	}
}

// Reset drops a partially assembled message.
func (d *Decoder) Reset() {
	d.message = nil
	d.fragmented = false
}
