// Package wire implements the length-prefixed binary framing that drives
// the session: a fixed 7-byte header followed by a type-specific payload,
// all multi-byte integers big-endian on the wire. ReadMessage uses the
// length prefix to reassemble a message that arrives split across several
// reads, so no caller relies on one recv delivering exactly one message.
package wire

import "github.com/rotisserie/eris"

// MessageType is the tag in MessageHeader.Type.
type MessageType uint8

const (
	TypeP2SInput MessageType = 1 + iota
	TypeS2PFrameEvents
	TypeS2PInitPlayer
	TypeSBPlayerJoined
	TypeSBPlayerLeft
)

// HeaderSize is the fixed on-wire size of MessageHeader.
const HeaderSize = 1 + 4 + 2

// Header is the fixed-size frame prefix: type(u8), frame(u32 BE),
// payload_size(u16 BE).
type Header struct {
	Type        MessageType
	Frame       uint32
	PayloadSize uint16
}

// Sentinel errors for the protocol-violation branch of the error
// taxonomy: unknown type, size mismatch, or a read that ended before a
// full frame arrived.
var (
	ErrUnknownType      = eris.New("wire: unknown message type")
	ErrPayloadSizeMismatch = eris.New("wire: payload size does not match message structure")
	ErrShortRead        = eris.New("wire: short read, incomplete frame")
)
