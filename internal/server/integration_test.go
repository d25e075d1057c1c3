package server

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/tomster12/lockstep-netcode/internal/config"
	"github.com/tomster12/lockstep-netcode/internal/journal"
	"github.com/tomster12/lockstep-netcode/internal/telemetry"
	"github.com/tomster12/lockstep-netcode/internal/wire"
)

// TestServerAcceptsRealTCPConnectionAndSendsInitPlayer binds a real TCP
// loopback listener and drives one real socket through ConnectionActor,
// rather than the net.Pipe()-based unit tests elsewhere in this package.
// It exercises the actual WireCodec framing on the wire, not just the
// Synchronizer's in-process Join path.
func TestServerAcceptsRealTCPConnectionAndSendsInitPlayer(t *testing.T) {
	cfg := config.DefaultServerConfig()
	cfg.Port = 0 // OS-assigned; we discover the real address below

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewServerMetrics(reg)
	srv := New(discardLogger(), cfg, metrics, journal.NoopSink{})

	lc := net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Server.Run rebinds its own listener from cfg.ListenAddr(); since we
	// want a fixed, known port, pin cfg.Port to the one just freed above.
	_, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	cfg.Port = port
	srv.cfg = cfg

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	var conn net.Conn
	require.Eventually(t, func() bool {
		c, dialErr := net.Dial("tcp", addr)
		if dialErr != nil {
			return false
		}
		conn = c
		return true
	}, 2*time.Second, 10*time.Millisecond)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	header, payload, err := wire.ReadMessage(conn)
	require.NoError(t, err)
	require.Equal(t, wire.TypeS2PInitPlayer, header.Type)

	msg, err := wire.DecodeS2PInitPlayer(payload)
	require.NoError(t, err)
	require.Equal(t, uint32(0), msg.ClientIndex)

	cancel()
	<-done
}
