package server

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisconnectWithGraceWindowSuspendsRatherThanFrees(t *testing.T) {
	s := NewSynchronizer(discardLogger(), nil, false, 0, 4, nil)

	conn, _ := pipeConn(t)
	idx, _, _, _, _ := s.Join(conn)

	s.Disconnect(idx, "client-a")

	// A same-key reconnection within the window resumes the same slot
	// rather than allocating a new one.
	resumeConn, _ := pipeConn(t)
	idx2, _, _, _, ok := s.Rejoin("client-a", resumeConn)
	require.True(t, ok)
	require.Equal(t, idx, idx2)
}

func TestRejoinFailsAfterWindowExpires(t *testing.T) {
	s := NewSynchronizer(discardLogger(), nil, false, 0, 1, nil)

	conn, _ := pipeConn(t)
	idx, _, _, _, _ := s.Join(conn)
	s.Disconnect(idx, "client-a")

	s.expireGraceWindows(s.ServerFrame() + 2)

	resumeConn, _ := pipeConn(t)
	_, _, _, _, ok := s.Rejoin("client-a", resumeConn)
	require.False(t, ok)
}

func TestDisconnectWithNoGraceWindowFreesImmediately(t *testing.T) {
	s := NewSynchronizer(discardLogger(), nil, false, 0, 0, nil)

	conn, _ := pipeConn(t)
	idx, _, _, _, _ := s.Join(conn)
	s.Disconnect(idx, "client-a")

	other, _ := pipeConn(t)
	idx2, _, _, _, ok := s.Join(other)
	require.True(t, ok)
	require.Equal(t, idx, idx2)
}
