package server

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/tomster12/lockstep-netcode/internal/replay"
	"github.com/tomster12/lockstep-netcode/internal/sim"
	"github.com/tomster12/lockstep-netcode/internal/telemetry"
	"github.com/tomster12/lockstep-netcode/internal/wire"
)

// ErrOutOfWindow is returned by Submit when a client reports a frame
// outside [server_frame, server_frame+BUF), the window invariant from
// SPEC_FULL.md §3. The caller logs and drops rather than closing the
// connection.
var ErrOutOfWindow = eris.New("frame outside synchronizer window")

// Broadcaster sends one framed message to a single connected slot.
type Broadcaster func(slot uint32, frame []byte) error

// Synchronizer owns the authoritative FrameRing and is the single writer
// of server_frame. ConnectionActor goroutines call Join, Submit and
// Leave; exactly one goroutine runs Run, the simulation loop.
type Synchronizer struct {
	log     *slog.Logger
	metrics *telemetry.ServerMetrics

	slots slotTable

	stateMu     sync.Mutex
	cond        *sync.Cond
	ring        sim.FrameRing
	serverFrame uint32
	shutdown    bool

	announcePlayerEvents bool
	broadcast            Broadcaster

	graceFrames uint32
	reconnect   *reconnectTable

	replay *replay.Journal
}

// AttachReplay wires a replay journal to tap every confirmed frame as it
// is produced. It is optional; a Synchronizer with no journal attached
// runs identically, just without the recording side effect.
func (s *Synchronizer) AttachReplay(j *replay.Journal) {
	s.replay = j
}

// NewSynchronizer constructs a Synchronizer starting at frame 0.
// broadcast is invoked once per connected slot each time a frame is
// confirmed, and again for join/leave broadcasts if announcePlayerEvents
// is set (SPEC_FULL.md §11 resolves the spec's open question on
// SB_PLAYER_JOINED/LEFT by carrying both paths behind this flag).
// maxClients bounds how many of the sim.MaxClients slots are ever handed
// out (ServerConfig.MaxClients); 0 falls back to the full sim.MaxClients.
// graceFrames is SPEC_FULL.md §4.8's reconnection grace window; 0
// reproduces spec.md's exact immediate-free behavior.
func NewSynchronizer(log *slog.Logger, metrics *telemetry.ServerMetrics, announcePlayerEvents bool, maxClients int, graceFrames uint32, broadcast Broadcaster) *Synchronizer {
	s := &Synchronizer{
		log:                  log,
		metrics:              metrics,
		announcePlayerEvents: announcePlayerEvents,
		broadcast:            broadcast,
		graceFrames:          graceFrames,
		reconnect:            newReconnectTable(),
	}
	s.slots.setCapacity(maxClients)
	s.ring.Init(0)
	s.cond = sync.NewCond(&s.stateMu)
	return s
}

// ServerFrame returns the current authoritative frame number.
func (s *Synchronizer) ServerFrame() uint32 {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.serverFrame
}

// PeakClients returns the highest number of simultaneously connected
// slots observed since construction, for the session journal's
// end-of-game summary (SPEC_FULL.md §4.7/§9).
func (s *Synchronizer) PeakClients() int {
	return s.slots.peak()
}

// Join allocates a free ClientSlot for conn, records a Join event on the
// current server frame, and returns the assigned index and the current
// authoritative state/events for S2P_INIT_PLAYER. ok is false if every
// slot was already taken, in which case the caller must close conn and
// transition straight to TERMINATED.
func (s *Synchronizer) Join(conn net.Conn) (index uint32, frame uint32, state sim.GameState, events sim.GameEvents, ok bool) {
	idx, allocated := s.slots.allocate(conn)
	if !allocated {
		return 0, 0, sim.GameState{}, sim.GameEvents{}, false
	}

	s.stateMu.Lock()
	frame = s.serverFrame
	s.ring.EventsAt(frame).Events[idx] = sim.EventJoin
	state = *s.ring.StateAt(frame)
	events = *s.ring.EventsAt(frame)
	s.stateMu.Unlock()

	if s.metrics != nil {
		s.metrics.ConnectedClients.Inc()
	}
	if s.announcePlayerEvents {
		s.broadcastPlayerEvent(wire.EncodeSBPlayerJoined(frame, idx))
	}
	return idx, frame, state, events, true
}

// Leave records a Leave event for slot on the current server frame and
// frees the slot so it stops accepting input immediately, ahead of the
// frame in which the departure takes simulated effect. This is the
// immediate, spec.md §4.3-exact teardown; Disconnect is the entry point
// that additionally honors the reconnection grace window.
func (s *Synchronizer) Leave(slot uint32) {
	s.slots.release(slot)

	s.stateMu.Lock()
	frame := s.serverFrame
	s.ring.EventsAt(frame).Events[slot] = sim.EventLeave
	s.stateMu.Unlock()

	if s.metrics != nil {
		s.metrics.ConnectedClients.Dec()
	}
	if s.announcePlayerEvents {
		s.broadcastPlayerEvent(wire.EncodeSBPlayerLeft(frame, slot))
	}
	s.cond.Signal()
}

// Disconnect is what ConnectionActor calls on teardown. With
// graceFrames == 0 it behaves exactly like Leave. With graceFrames > 0,
// the slot is suspended rather than freed: it stops counting toward
// can_simulate() immediately, but no Leave event is emitted yet, and
// Rejoin(remoteKey, ...) can resume it within the window.
func (s *Synchronizer) Disconnect(slot uint32, remoteKey string) {
	if s.graceFrames == 0 {
		s.Leave(slot)
		return
	}

	s.slots.release(slot)
	deadline := s.ServerFrame() + s.graceFrames
	s.reconnect.suspend(remoteKey, slot, deadline)
	s.cond.Signal()
}

// Rejoin resumes a slot suspended by Disconnect if remoteKey's grace
// window has not yet expired. ok is false if there is no matching
// pending slot, in which case the caller should fall back to Join.
func (s *Synchronizer) Rejoin(remoteKey string, conn net.Conn) (index uint32, frame uint32, state sim.GameState, events sim.GameEvents, ok bool) {
	idx, found := s.reconnect.resume(remoteKey, s.ServerFrame())
	if !found {
		return 0, 0, sim.GameState{}, sim.GameEvents{}, false
	}

	s.slots.resume(idx, conn)

	s.stateMu.Lock()
	frame = s.serverFrame
	state = *s.ring.StateAt(frame)
	events = *s.ring.EventsAt(frame)
	s.stateMu.Unlock()

	// ConnectedClients was never decremented at Disconnect time for a
	// suspended slot, so resuming it must not double-count the gauge.
	s.log.Info("client resumed session", "slot", idx, "frame", frame)
	return idx, frame, state, events, true
}

// Submit records input for slot at frame F, validating the window
// invariant server_frame <= F < server_frame+BUF. Returns ErrOutOfWindow
// if F is out of range; the caller logs and drops per spec rather than
// tearing down the connection.
func (s *Synchronizer) Submit(slot uint32, frame uint32, input sim.PlayerInput) error {
	s.stateMu.Lock()
	base := s.serverFrame
	if frame < base || frame >= base+sim.MaxFrames {
		s.stateMu.Unlock()
		return ErrOutOfWindow
	}
	s.ring.EventsAt(frame).Inputs[slot] = input
	s.stateMu.Unlock()

	if s.slots.recordInput(slot, frame, base) {
		s.cond.Signal()
	}
	return nil
}

// Run is the single simulation loop thread: wait for can_simulate(),
// advance one frame, broadcast, repeat, until ctx is cancelled.
func (s *Synchronizer) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.stateMu.Lock()
		s.shutdown = true
		s.stateMu.Unlock()
		s.cond.Broadcast()
	}()

	for {
		s.stateMu.Lock()
		for !s.shutdown && !s.slots.canSimulate(s.serverFrame) {
			s.cond.Wait()
		}
		if s.shutdown {
			s.stateMu.Unlock()
			return ctx.Err()
		}

		f := s.serverFrame
		current := s.ring.StateAt(f)
		events := s.ring.EventsAt(f)
		next := s.ring.StateAt(f + 1)
		sim.Step(current, events, next)
		s.serverFrame = f + 1
		eventsCopy := *events
		nextState := *next
		s.ring.EventsAt(f + 1).Reset()
		s.stateMu.Unlock()

		if s.metrics != nil {
			s.metrics.ServerFrame.Inc()
		}
		if s.replay != nil {
			s.replay.Record(f+1, &nextState)
		}
		s.broadcastFrameEvents(f, &eventsCopy)
		s.expireGraceWindows(f + 1)
	}
}

// expireGraceWindows finalizes any slot whose reconnection grace window
// (SPEC_FULL.md §4.8) elapsed without a Rejoin, emitting the deferred
// Leave event now rather than at disconnect time.
func (s *Synchronizer) expireGraceWindows(frame uint32) {
	if s.graceFrames == 0 {
		return
	}
	for _, slot := range s.reconnect.expired(frame) {
		s.stateMu.Lock()
		s.ring.EventsAt(frame).Events[slot] = sim.EventLeave
		s.stateMu.Unlock()

		if s.metrics != nil {
			s.metrics.ConnectedClients.Dec()
		}
		if s.announcePlayerEvents {
			s.broadcastPlayerEvent(wire.EncodeSBPlayerLeft(frame, slot))
		}
	}
}

func (s *Synchronizer) broadcastFrameEvents(frame uint32, events *sim.GameEvents) {
	if s.broadcast == nil {
		return
	}
	msg := wire.EncodeS2PFrameEvents(frame, wire.S2PFrameEvents{Events: *events})

	s.slots.forEachConnected(func(slot *ClientSlot) {
		if err := s.broadcast(slot.Index, msg); err != nil {
			s.log.Warn("broadcast failed", "slot", slot.Index, "frame", frame, "err", err)
			if s.metrics != nil {
				s.metrics.BroadcastFailures.Inc()
			}
		}
	})
}

func (s *Synchronizer) broadcastPlayerEvent(msg []byte) {
	if s.broadcast == nil {
		return
	}
	s.slots.forEachConnected(func(slot *ClientSlot) {
		if err := s.broadcast(slot.Index, msg); err != nil {
			s.log.Warn("player-event broadcast failed", "slot", slot.Index, "err", err)
		}
	})
}
