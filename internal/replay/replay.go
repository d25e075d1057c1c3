// Package replay implements the supplemented frame-indexed replay
// journal from SPEC_FULL.md §4.7: a bounded in-memory tap of the
// server's confirmed (GameState, GameEvents) stream, recorded with
// enough pose information (position plus a placeholder 3-D
// orientation) to support a future free-camera replay viewer. It is a
// pure consumer of data ServerSynchronizer already produces each tick
// and never feeds back into the simulation.
package replay

import (
	"sync"

	"github.com/tomster12/lockstep-netcode/internal/sim"
	"github.com/tomster12/lockstep-netcode/internal/vecmath"
)

// Pose is one player's recorded position and orientation for a single
// replayed frame. Rotation is always vecmath.Identity() in this 2-D
// simulation; the field exists so the replay Frame layout does not need
// to change when a 3-D game module is plugged in. Neither the wire format
// nor the journal schema carries poses.
type Pose struct {
	Position vecmath.Vector3
	Rotation vecmath.Quaternion
}

// Frame is one recorded tick: the confirmed frame number and every
// active player's pose.
type Frame struct {
	Number uint32
	Poses  [sim.MaxClients]Pose
	Active [sim.MaxClients]bool
}

// Journal is a fixed-capacity ring of recorded Frames, independent of
// sim.FrameRing's window invariant since replay has no rollback concept
// — once recorded, a frame's entry is never mutated.
type Journal struct {
	mu       sync.Mutex
	capacity int
	frames   []Frame
	dropped  uint64
}

// New creates a Journal retaining at most capacity frames, oldest first.
func New(capacity int) *Journal {
	if capacity <= 0 {
		capacity = 3600
	}
	return &Journal{capacity: capacity}
}

// Record appends one confirmed frame's state, converting each active
// player's 2-D position into the 3-D pose the replay format carries.
func (j *Journal) Record(frameNumber uint32, state *sim.GameState) {
	var f Frame
	f.Number = frameNumber
	for i, p := range state.Players {
		f.Active[i] = p.Active
		if !p.Active {
			continue
		}
		f.Poses[i] = Pose{
			Position: vecmath.Vector3{X: p.Position.X, Y: p.Position.Y, Z: 0},
			Rotation: vecmath.Identity(),
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.frames) >= j.capacity {
		j.frames = j.frames[1:]
		j.dropped++
	}
	j.frames = append(j.frames, f)
}

// Frames returns a copy of every frame currently retained, oldest first.
func (j *Journal) Frames() []Frame {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Frame, len(j.frames))
	copy(out, j.frames)
	return out
}

// Dropped reports how many frames have been evicted to stay within
// capacity since construction.
func (j *Journal) Dropped() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dropped
}
