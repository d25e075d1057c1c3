package wire

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/rotisserie/eris"
	"github.com/tomster12/lockstep-netcode/internal/sim"
	"github.com/tomster12/lockstep-netcode/internal/vecmath"
)

// P2SInput is the payload of TypeP2SInput: one client's input for the
// frame carried in the header.
type P2SInput struct {
	ClientIndex uint32
	Input       sim.PlayerInput
}

const p2sInputSize = 4 + 1

// S2PFrameEvents is the payload of TypeS2PFrameEvents: the full per-slot
// input and event arrays for the frame the server just confirmed.
type S2PFrameEvents struct {
	Events sim.GameEvents
}

const s2pFrameEventsSize = sim.MaxClients * 2

// S2PInitPlayer is the payload of TypeS2PInitPlayer: the handshake
// response assigning a slot and carrying the current authoritative state.
type S2PInitPlayer struct {
	State       sim.GameState
	Events      sim.GameEvents
	ClientIndex uint32
}

const gameStateSize = sim.MaxClients * (4 + 4 + 1) // x, y, active per slot
const s2pInitPlayerSize = gameStateSize + s2pFrameEventsSize + 4

// PlayerIDPayload is the payload shared by TypeSBPlayerJoined and
// TypeSBPlayerLeft: just the slot index that changed.
type PlayerIDPayload struct {
	PlayerID uint32
}

const playerIDPayloadSize = 4

// EncodeHeader writes a 7-byte big-endian header.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = byte(h.Type)
	binary.BigEndian.PutUint32(buf[1:5], h.Frame)
	binary.BigEndian.PutUint16(buf[5:7], h.PayloadSize)
	return buf
}

// DecodeHeader parses a 7-byte big-endian header.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, eris.Wrap(ErrShortRead, "decode header")
	}
	return Header{
		Type:        MessageType(buf[0]),
		Frame:       binary.BigEndian.Uint32(buf[1:5]),
		PayloadSize: binary.BigEndian.Uint16(buf[5:7]),
	}, nil
}

func encodeInput(in sim.PlayerInput) byte {
	var b byte
	if in.Left {
		b |= 1 << 0
	}
	if in.Right {
		b |= 1 << 1
	}
	if in.Up {
		b |= 1 << 2
	}
	if in.Down {
		b |= 1 << 3
	}
	return b
}

func decodeInput(b byte) sim.PlayerInput {
	return sim.PlayerInput{
		Left:  b&(1<<0) != 0,
		Right: b&(1<<1) != 0,
		Up:    b&(1<<2) != 0,
		Down:  b&(1<<3) != 0,
	}
}

func encodeEvent(e sim.PlayerEvent) byte {
	return byte(e)
}

func decodeEvent(b byte) sim.PlayerEvent {
	return sim.PlayerEvent(b)
}

func appendGameEvents(buf []byte, events *sim.GameEvents) []byte {
	for i := 0; i < sim.MaxClients; i++ {
		buf = append(buf, encodeInput(events.Inputs[i]))
		buf = append(buf, encodeEvent(events.Events[i]))
	}
	return buf
}

func readGameEvents(buf []byte, out *sim.GameEvents) {
	for i := 0; i < sim.MaxClients; i++ {
		out.Inputs[i] = decodeInput(buf[i*2])
		out.Events[i] = decodeEvent(buf[i*2+1])
	}
}

func appendGameState(buf []byte, state *sim.GameState) []byte {
	for i := 0; i < sim.MaxClients; i++ {
		p := &state.Players[i]
		var xb, yb [4]byte
		binary.BigEndian.PutUint32(xb[:], math.Float32bits(p.Position.X))
		binary.BigEndian.PutUint32(yb[:], math.Float32bits(p.Position.Y))
		buf = append(buf, xb[:]...)
		buf = append(buf, yb[:]...)
		if p.Active {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	return buf
}

func readGameState(buf []byte, out *sim.GameState) {
	for i := 0; i < sim.MaxClients; i++ {
		off := i * 9
		x := math.Float32frombits(binary.BigEndian.Uint32(buf[off : off+4]))
		y := math.Float32frombits(binary.BigEndian.Uint32(buf[off+4 : off+8]))
		out.Players[i] = sim.PlayerData{
			Position: vecmath.Vector2{X: x, Y: y},
			Active:   buf[off+8] != 0,
		}
	}
}

// EncodeP2SInput serializes a full P2S_INPUT message (header + payload).
func EncodeP2SInput(frame uint32, msg P2SInput) []byte {
	header := EncodeHeader(Header{Type: TypeP2SInput, Frame: frame, PayloadSize: p2sInputSize})
	buf := make([]byte, 0, HeaderSize+p2sInputSize)
	buf = append(buf, header...)
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], msg.ClientIndex)
	buf = append(buf, idx[:]...)
	buf = append(buf, encodeInput(msg.Input))
	return buf
}

// DecodeP2SInput parses a P2S_INPUT payload (header already stripped).
func DecodeP2SInput(payload []byte) (P2SInput, error) {
	if len(payload) != p2sInputSize {
		return P2SInput{}, eris.Wrap(ErrPayloadSizeMismatch, "decode p2s input")
	}
	return P2SInput{
		ClientIndex: binary.BigEndian.Uint32(payload[0:4]),
		Input:       decodeInput(payload[4]),
	}, nil
}

// EncodeS2PFrameEvents serializes a full S2P_FRAME_EVENTS message.
func EncodeS2PFrameEvents(frame uint32, msg S2PFrameEvents) []byte {
	header := EncodeHeader(Header{Type: TypeS2PFrameEvents, Frame: frame, PayloadSize: s2pFrameEventsSize})
	buf := make([]byte, 0, HeaderSize+s2pFrameEventsSize)
	buf = append(buf, header...)
	buf = appendGameEvents(buf, &msg.Events)
	return buf
}

// DecodeS2PFrameEvents parses an S2P_FRAME_EVENTS payload.
func DecodeS2PFrameEvents(payload []byte) (S2PFrameEvents, error) {
	if len(payload) != s2pFrameEventsSize {
		return S2PFrameEvents{}, eris.Wrap(ErrPayloadSizeMismatch, "decode s2p frame events")
	}
	var msg S2PFrameEvents
	readGameEvents(payload, &msg.Events)
	return msg, nil
}

// EncodeS2PInitPlayer serializes a full S2P_INIT_PLAYER message.
func EncodeS2PInitPlayer(frame uint32, msg S2PInitPlayer) []byte {
	header := EncodeHeader(Header{Type: TypeS2PInitPlayer, Frame: frame, PayloadSize: s2pInitPlayerSize})
	buf := make([]byte, 0, HeaderSize+s2pInitPlayerSize)
	buf = append(buf, header...)
	buf = appendGameState(buf, &msg.State)
	buf = appendGameEvents(buf, &msg.Events)
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], msg.ClientIndex)
	buf = append(buf, idx[:]...)
	return buf
}

// DecodeS2PInitPlayer parses an S2P_INIT_PLAYER payload.
func DecodeS2PInitPlayer(payload []byte) (S2PInitPlayer, error) {
	if len(payload) != s2pInitPlayerSize {
		return S2PInitPlayer{}, eris.Wrap(ErrPayloadSizeMismatch, "decode s2p init player")
	}
	var msg S2PInitPlayer
	readGameState(payload[:gameStateSize], &msg.State)
	readGameEvents(payload[gameStateSize:gameStateSize+s2pFrameEventsSize], &msg.Events)
	msg.ClientIndex = binary.BigEndian.Uint32(payload[gameStateSize+s2pFrameEventsSize:])
	return msg, nil
}

func encodePlayerIDMessage(typ MessageType, frame uint32, playerID uint32) []byte {
	header := EncodeHeader(Header{Type: typ, Frame: frame, PayloadSize: playerIDPayloadSize})
	buf := make([]byte, 0, HeaderSize+playerIDPayloadSize)
	buf = append(buf, header...)
	var id [4]byte
	binary.BigEndian.PutUint32(id[:], playerID)
	return append(buf, id[:]...)
}

// EncodeSBPlayerJoined serializes a broadcast announcing a new player.
func EncodeSBPlayerJoined(frame uint32, playerID uint32) []byte {
	return encodePlayerIDMessage(TypeSBPlayerJoined, frame, playerID)
}

// EncodeSBPlayerLeft serializes a broadcast announcing a departed player.
func EncodeSBPlayerLeft(frame uint32, playerID uint32) []byte {
	return encodePlayerIDMessage(TypeSBPlayerLeft, frame, playerID)
}

// DecodePlayerIDPayload parses the shared payload of the join/left
// broadcasts.
func DecodePlayerIDPayload(payload []byte) (PlayerIDPayload, error) {
	if len(payload) != playerIDPayloadSize {
		return PlayerIDPayload{}, eris.Wrap(ErrPayloadSizeMismatch, "decode player id payload")
	}
	return PlayerIDPayload{PlayerID: binary.BigEndian.Uint32(payload)}, nil
}

// ReadMessage reads one complete frame (header + payload) from r. It
// makes two io.ReadFull calls: one for the fixed header, one for the
// payload whose length the header specifies, satisfying the "assemble
// across recv boundaries" guidance without assuming one read per message.
func ReadMessage(r io.Reader) (Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return Header{}, nil, eris.Wrap(err, "read header")
	}

	header, err := DecodeHeader(headerBuf)
	if err != nil {
		return Header{}, nil, err
	}

	if header.Type < TypeP2SInput || header.Type > TypeSBPlayerLeft {
		return Header{}, nil, eris.Wrapf(ErrUnknownType, "type=%d", header.Type)
	}

	payload := make([]byte, header.PayloadSize)
	if header.PayloadSize > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Header{}, nil, eris.Wrap(err, "read payload")
		}
	}

	return header, payload, nil
}
