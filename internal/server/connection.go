package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/tomster12/lockstep-netcode/internal/telemetry"
	"github.com/tomster12/lockstep-netcode/internal/wire"
)

// connState is one ConnectionActor's position in the state machine from
// SPEC_FULL.md §4.3: ACCEPTED -> JOINED -> DISCONNECTING -> TERMINATED.
type connState int

const (
	stateAccepted connState = iota
	stateJoined
	stateDisconnecting
	stateTerminated
)

// ConnectionActor drives one client socket's handshake and input ingress
// loop. It is started as a supervised service (see internal/supervise)
// per accepted connection and runs until the socket closes or ctx is
// cancelled.
type ConnectionActor struct {
	log     *slog.Logger
	metrics *telemetry.ServerMetrics
	sync    *Synchronizer
	conn    net.Conn

	slot  uint32
	state connState

	onJoin  func(slot uint32, conn net.Conn)
	onLeave func(slot uint32)
}

// NewConnectionActor wraps conn; call Run to drive it through the state
// machine. onJoin and onLeave let the owning Server track which socket
// currently occupies a slot for outbound broadcasts; either may be nil.
func NewConnectionActor(log *slog.Logger, metrics *telemetry.ServerMetrics, sync *Synchronizer, conn net.Conn, onJoin func(uint32, net.Conn), onLeave func(uint32)) *ConnectionActor {
	return &ConnectionActor{log: log, metrics: metrics, sync: sync, conn: conn, state: stateAccepted, onJoin: onJoin, onLeave: onLeave}
}

// Run executes the full ACCEPTED -> ... -> TERMINATED lifecycle. It
// returns nil on an orderly teardown (peer disconnect, cancellation);
// the caller (the accept loop's supervision tree) does not restart a
// terminated connection actor.
func (a *ConnectionActor) Run(ctx context.Context) error {
	defer a.conn.Close()

	if !a.join() {
		a.state = stateTerminated
		return nil
	}
	a.state = stateJoined

	go func() {
		<-ctx.Done()
		a.conn.Close()
	}()

	a.recvLoop()

	a.state = stateDisconnecting
	a.sync.Disconnect(a.slot, a.remoteKey())
	if a.onLeave != nil {
		a.onLeave(a.slot)
	}
	a.state = stateTerminated
	return nil
}

func (a *ConnectionActor) remoteKey() string {
	return a.conn.RemoteAddr().String()
}

// join performs the ACCEPTED -> JOINED transition: either resume a slot
// suspended within its reconnection grace window (SPEC_FULL.md §4.8), or
// allocate a fresh one. Either way it sends S2P_INIT_PLAYER. Returns
// false if no slot was free and none could be resumed, in which case the
// caller closes the socket without sending anything.
func (a *ConnectionActor) join() bool {
	idx, frame, state, events, ok := a.sync.Rejoin(a.remoteKey(), a.conn)
	if !ok {
		idx, frame, state, events, ok = a.sync.Join(a.conn)
	}
	if !ok {
		a.log.Info("connection rejected: no free slot")
		return false
	}
	a.slot = idx

	msg := wire.EncodeS2PInitPlayer(frame, wire.S2PInitPlayer{
		State:       state,
		Events:      events,
		ClientIndex: idx,
	})
	if _, err := a.conn.Write(msg); err != nil {
		a.log.Warn("failed to send init player", "slot", idx, "err", err)
		a.sync.Leave(idx)
		return false
	}

	if a.onJoin != nil {
		a.onJoin(idx, a.conn)
	}

	a.log.Info("client joined", "slot", idx, "frame", frame)
	return true
}

// recvLoop implements the JOINED state's input-ingress loop: every
// P2S_INPUT is validated against this actor's own slot and handed to the
// synchronizer. It returns on the first read error of any kind, whether
// the peer disconnected or the connection failed; no read is retried.
func (a *ConnectionActor) recvLoop() {
	for {
		header, payload, err := wire.ReadMessage(a.conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				a.log.Info("client disconnected", "slot", a.slot)
			} else {
				a.log.Warn("connection read failed", "slot", a.slot, "err", err)
				if a.metrics != nil {
					a.metrics.ProtocolErrors.WithLabelValues("read").Inc()
				}
			}
			return
		}

		if header.Type != wire.TypeP2SInput {
			a.log.Warn("unexpected message type from client", "slot", a.slot, "type", header.Type)
			if a.metrics != nil {
				a.metrics.ProtocolErrors.WithLabelValues("unexpected_type").Inc()
			}
			continue
		}

		msg, err := wire.DecodeP2SInput(payload)
		if err != nil {
			a.log.Warn("malformed p2s input", "slot", a.slot, "err", err)
			if a.metrics != nil {
				a.metrics.ProtocolErrors.WithLabelValues("decode").Inc()
			}
			continue
		}

		if msg.ClientIndex != a.slot {
			a.log.Warn("input slot mismatch", "expected", a.slot, "got", msg.ClientIndex)
			if a.metrics != nil {
				a.metrics.ProtocolErrors.WithLabelValues("slot_mismatch").Inc()
			}
			continue
		}

		if err := a.sync.Submit(a.slot, header.Frame, msg.Input); err != nil {
			a.log.Info("dropping out-of-window input", "slot", a.slot, "frame", header.Frame, "err", err)
			continue
		}
	}
}
