package websocket

import "encoding/binary"

// AppendFrame appends a single final unmasked frame. Servers never mask their frames.
func AppendFrame(dst []byte, opcode Opcode, payload []byte) []byte {
	dst = append(dst, finBit|byte(opcode))

	switch length := len(payload); {
	case length <= maxLen7:
		dst = append(dst, byte(length))
	case length <= maxLen16:
		dst = append(dst, len16)
		dst = binary.BigEndian.AppendUint16(dst, uint16(length))
	default:
		dst = append(dst, len64)
		dst = binary.BigEndian.AppendUint64(dst, uint64(length))
	}

	return append(dst, payload...)
}

// AppendClose appends a close frame carrying the status code.
func AppendClose(dst []byte, code uint16) []byte {
	return AppendFrame(dst, OpClose, binary.BigEndian.AppendUint16(nil, code))
}

// AppendLegacy appends a text frame of the hixie-76 draft.
func AppendLegacy(dst []byte, payload []byte) []byte {
	dst = append(dst, legacyStart)
	dst = append(dst, payload...)

	return append(dst, legacyEnd)
}

// AppendLegacyClose appends the closing handshake of the hixie-76 draft.
func AppendLegacyClose(dst []byte) []byte {
	return append(dst, legacyEnd, legacyStart)
}
