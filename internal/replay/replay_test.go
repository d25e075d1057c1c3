package replay

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tomster12/lockstep-netcode/internal/sim"
	"github.com/tomster12/lockstep-netcode/internal/vecmath"
)

func TestRecordCapturesActivePlayerPose(t *testing.T) {
	j := New(4)

	var state sim.GameState
	state.Players[0] = sim.PlayerData{Active: true, Position: vecmath.Vector2{X: 12, Y: 34}}
	j.Record(1, &state)

	frames := j.Frames()
	require.Len(t, frames, 1)
	require.True(t, frames[0].Active[0])
	require.Equal(t, float32(12), frames[0].Poses[0].Position.X)
	require.Equal(t, float32(34), frames[0].Poses[0].Position.Y)
	require.Equal(t, vecmath.Identity(), frames[0].Poses[0].Rotation)
	require.False(t, frames[0].Active[1])
}

func TestRecordEvictsOldestWhenFull(t *testing.T) {
	j := New(2)

	var state sim.GameState
	j.Record(1, &state)
	j.Record(2, &state)
	j.Record(3, &state)

	frames := j.Frames()
	require.Len(t, frames, 2)
	require.Equal(t, uint32(2), frames[0].Number)
	require.Equal(t, uint32(3), frames[1].Number)
	require.Equal(t, uint64(1), j.Dropped())
}
