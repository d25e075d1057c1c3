package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepJoinSpawnsAtFixedOrigin(t *testing.T) {
	var current, next GameState
	var events GameEvents
	events.Events[0] = EventJoin

	Step(&current, &events, &next)

	require.True(t, next.Players[0].Active)
	assert.Equal(t, float32(400), next.Players[0].Position.X)
	assert.Equal(t, float32(400), next.Players[0].Position.Y)
}

func TestStepLeaveClearsActive(t *testing.T) {
	var current GameState
	current.Players[2].Active = true
	current.Players[2].Position.X = 12

	var events GameEvents
	events.Events[2] = EventLeave

	var next GameState
	Step(&current, &events, &next)

	assert.False(t, next.Players[2].Active)
}

func TestStepMovementAppliesOneUnitPerHeldDirection(t *testing.T) {
	var current GameState
	current.Players[0].Active = true
	current.Players[0].Position.X = 400
	current.Players[0].Position.Y = 400

	var events GameEvents
	events.Inputs[0] = PlayerInput{Right: true, Down: true}

	var next GameState
	Step(&current, &events, &next)

	assert.Equal(t, float32(401), next.Players[0].Position.X)
	assert.Equal(t, float32(401), next.Players[0].Position.Y)
}

func TestStepInactivePlayerUnaffectedByInput(t *testing.T) {
	var current GameState
	var events GameEvents
	events.Inputs[0] = PlayerInput{Right: true}

	var next GameState
	Step(&current, &events, &next)

	assert.False(t, next.Players[0].Active)
	assert.Equal(t, float32(0), next.Players[0].Position.X)
}

func TestStepDeterministic(t *testing.T) {
	var current GameState
	current.Players[1].Active = true
	current.Players[1].Position = current.Players[1].Position

	var events GameEvents
	events.Inputs[1] = PlayerInput{Left: true, Up: true}

	var nextA, nextB GameState
	Step(&current, &events, &nextA)
	Step(&current, &events, &nextB)

	assert.Equal(t, nextA, nextB)
}

func TestFrameRingWrapsAtCapacity(t *testing.T) {
	var ring FrameRing
	ring.Init(0)

	ring.StateAt(5).Players[0].Active = true
	assert.True(t, ring.StateAt(uint32(5+MaxFrames)).Players[0].Active, "ring.StateAt(F) and ring.StateAt(F+BUF) must alias the same slot")
}

func TestFrameRingInitZeroesSlots(t *testing.T) {
	var ring FrameRing
	ring.StateAt(3).Players[0].Active = true
	ring.Init(0)
	assert.False(t, ring.StateAt(3).Players[0].Active)
}
