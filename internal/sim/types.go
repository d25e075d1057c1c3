// Package sim holds the data model shared by server and client: the
// per-frame game state and events, the deterministic simulation step, and
// the frame ring buffer both sides index identically.
package sim

import "github.com/tomster12/lockstep-netcode/internal/vecmath"

// MaxClients bounds the number of simultaneously connected player slots.
// It sizes every per-slot array in GameEvents and GameState, so changing
// it changes the wire format.
const MaxClients = 16

// PlayerEvent is at most one per player per frame.
type PlayerEvent uint8

const (
	EventNone PlayerEvent = iota
	EventJoin
	EventLeave
)

// PlayerInput is the 4-bit direction-held state sampled once per tick.
// The bits are independent; a client can hold opposite directions at once.
type PlayerInput struct {
	Left, Right, Up, Down bool
}

// GameEvents is everything that can affect frame F: the per-slot inputs for
// F, and any join/leave transition that became effective on F.
type GameEvents struct {
	Inputs [MaxClients]PlayerInput
	Events [MaxClients]PlayerEvent
}

// Reset clears an events slot back to "no input, no event" so the slot can
// be reused for a later frame that wraps onto the same ring position.
func (e *GameEvents) Reset() {
	*e = GameEvents{}
}

// PlayerData is one player's simulated position. Active false means the
// position field is meaningless (the player has not joined, or has left).
type PlayerData struct {
	Position vecmath.Vector2
	Active   bool
}

// GameState is one frame's authoritative (or predicted) world: every
// player slot's data, indexed by slot.
type GameState struct {
	Players [MaxClients]PlayerData
}

// spawnOrigin is where a player appears on PLAYER_EVENT_JOIN, carried over
// from the original implementation's fixed spawn point.
var spawnOrigin = vecmath.Vector2{X: 400, Y: 400}

// moveStep is the fixed per-tick displacement applied per held direction.
const moveStep float32 = 1.0
