package client

import (
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tomster12/lockstep-netcode/internal/sim"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })

	e := New(slog.New(slog.NewTextHandler(io.Discard, nil)), nil, a, func() sim.PlayerInput { return sim.PlayerInput{} }, nil)
	e.ring.Init(0)
	e.clientIndex = 0
	e.initialised.Store(true)
	return e
}

func TestPredictOneFrameAdvancesClientFrame(t *testing.T) {
	e := testEngine(t)
	e.sample = func() sim.PlayerInput { return sim.PlayerInput{Right: true} }

	_, frame, input, overflow := e.predictOneFrame()
	require.False(t, overflow)
	require.Equal(t, uint32(0), frame)
	require.True(t, input.Right)
	require.Equal(t, uint32(1), e.clientFrame)

	state := e.ring.StateAt(1)
	require.Equal(t, float32(0), state.Players[0].Position.X) // not active: no join yet, movement ignored
}

func TestPredictOneFrameReportsWindowOverflow(t *testing.T) {
	e := testEngine(t)
	e.clientFrame = sim.MaxFrames // == syncFrame(0) + MaxFrames

	_, _, _, overflow := e.predictOneFrame()
	require.True(t, overflow)
}

func TestOnAuthoritativeFrameAdvancesSyncAndServerFrame(t *testing.T) {
	e := testEngine(t)
	e.ring.StateAt(0).Players[0] = sim.PlayerData{Active: true}
	e.clientFrame = 3

	events := sim.GameEvents{}
	events.Inputs[0] = sim.PlayerInput{Right: true}
	e.onAuthoritativeFrame(1, events)

	require.Equal(t, uint32(1), e.syncFrame)
	require.Equal(t, uint32(1), e.serverFrame)
	require.Equal(t, uint32(3), e.clientFrame)
	require.True(t, e.ring.StateAt(1).Players[0].Active)
}

func TestOnAuthoritativeFrameDropsOutOfOrder(t *testing.T) {
	e := testEngine(t)
	e.serverFrame = 5

	e.onAuthoritativeFrame(9, sim.GameEvents{})

	require.Equal(t, uint32(5), e.serverFrame)
}

func TestOnAuthoritativeFrameZeroResetsOnServerRestart(t *testing.T) {
	e := testEngine(t)
	e.serverFrame = 40
	e.syncFrame = 38
	e.clientFrame = 45

	e.onAuthoritativeFrame(0, sim.GameEvents{})

	require.Equal(t, uint32(0), e.syncFrame)
	require.Equal(t, uint32(0), e.serverFrame)
	require.Equal(t, uint32(0), e.clientFrame)
}
