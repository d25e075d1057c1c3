package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tomster12/lockstep-netcode/internal/sim"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pipeConn(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	return a, b
}

func TestSynchronizerJoinAssignsSequentialSlots(t *testing.T) {
	s := NewSynchronizer(discardLogger(), nil, false, 0, 0, nil)

	a, _ := pipeConn(t)
	idx0, frame0, _, _, ok0 := s.Join(a)
	require.True(t, ok0)
	require.Equal(t, uint32(0), idx0)
	require.Equal(t, uint32(0), frame0)

	b, _ := pipeConn(t)
	idx1, _, _, _, ok1 := s.Join(b)
	require.True(t, ok1)
	require.Equal(t, uint32(1), idx1)
}

func TestSynchronizerRejectsJoinWhenFull(t *testing.T) {
	s := NewSynchronizer(discardLogger(), nil, false, 0, 0, nil)

	for i := 0; i < sim.MaxClients; i++ {
		conn, _ := pipeConn(t)
		_, _, _, _, ok := s.Join(conn)
		require.True(t, ok)
	}

	overflow, _ := pipeConn(t)
	_, _, _, _, ok := s.Join(overflow)
	require.False(t, ok)
}

func TestSynchronizerAdvancesOnlyWhenAllSlotsReport(t *testing.T) {
	var broadcasts int
	s := NewSynchronizer(discardLogger(), nil, false, 0, 0, func(slot uint32, msg []byte) error {
		broadcasts++
		return nil
	})

	a, _ := pipeConn(t)
	idxA, _, _, _, _ := s.Join(a)
	b, _ := pipeConn(t)
	idxB, _, _, _, _ := s.Join(b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	require.NoError(t, s.Submit(idxA, 0, sim.PlayerInput{Right: true}))

	require.Never(t, func() bool {
		return s.ServerFrame() >= 1
	}, 100*time.Millisecond, 10*time.Millisecond)

	require.NoError(t, s.Submit(idxB, 0, sim.PlayerInput{}))

	require.Eventually(t, func() bool {
		return s.ServerFrame() >= 1
	}, time.Second, 10*time.Millisecond)
}

func TestSynchronizerSubmitRejectsOutOfWindow(t *testing.T) {
	s := NewSynchronizer(discardLogger(), nil, false, 0, 0, nil)

	conn, _ := pipeConn(t)
	idx, _, _, _, _ := s.Join(conn)

	err := s.Submit(idx, sim.MaxFrames+10, sim.PlayerInput{})
	require.ErrorIs(t, err, ErrOutOfWindow)
}

func TestSynchronizerMaxClientsCapsAllocationBelowWireLimit(t *testing.T) {
	s := NewSynchronizer(discardLogger(), nil, false, 2, 0, nil)

	a, _ := pipeConn(t)
	_, _, _, _, okA := s.Join(a)
	require.True(t, okA)

	b, _ := pipeConn(t)
	_, _, _, _, okB := s.Join(b)
	require.True(t, okB)

	c, _ := pipeConn(t)
	_, _, _, _, okC := s.Join(c)
	require.False(t, okC, "a third client must be rejected once MaxClients (2) is reached, even though sim.MaxClients allows more")
}

func TestSynchronizerLeaveFreesSlotForReuse(t *testing.T) {
	s := NewSynchronizer(discardLogger(), nil, false, 0, 0, nil)

	conn, _ := pipeConn(t)
	idx, _, _, _, _ := s.Join(conn)
	s.Leave(idx)

	other, _ := pipeConn(t)
	idx2, _, _, _, ok := s.Join(other)
	require.True(t, ok)
	require.Equal(t, idx, idx2)
}
