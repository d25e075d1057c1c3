// Package client implements ClientEngine: the prediction, reconciliation
// and rollback/resim loop described in SPEC_FULL.md §4.5, talking to the
// server over the same wire.Codec the server package decodes.
package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tomster12/lockstep-netcode/internal/sim"
	"github.com/tomster12/lockstep-netcode/internal/telemetry"
	"github.com/tomster12/lockstep-netcode/internal/wire"
)

// InputSampler returns the locally-held directions for the upcoming
// tick. Presentation/input-capture is an external collaborator per
// SPEC_FULL.md §1; the engine only calls this function.
type InputSampler func() sim.PlayerInput

// RenderFunc is called once per tick with the freshly predicted state.
type RenderFunc func(state sim.GameState)

// Engine owns the client-side FrameRing and the sync/server/client frame
// triad. One goroutine runs Run (the steady tick loop); one goroutine
// runs the receiver loop started internally from Run.
type Engine struct {
	log     *slog.Logger
	metrics *telemetry.ClientMetrics
	conn    net.Conn
	sample  InputSampler
	render  RenderFunc

	stateMu     sync.Mutex
	ring        sim.FrameRing
	syncFrame   uint32
	serverFrame uint32
	clientFrame uint32
	clientIndex uint32

	initialised atomic.Bool
	connected   atomic.Bool
}

// New constructs an Engine bound to conn. Call Run to drive the
// handshake, then the steady tick loop and receiver concurrently.
func New(log *slog.Logger, metrics *telemetry.ClientMetrics, conn net.Conn, sample InputSampler, render RenderFunc) *Engine {
	e := &Engine{log: log, metrics: metrics, conn: conn, sample: sample, render: render}
	e.connected.Store(true)
	return e
}

// ClientIndex returns the slot assigned during handshake. Valid only
// after WaitInitialised returns.
func (e *Engine) ClientIndex() uint32 {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.clientIndex
}

// WaitInitialised blocks until the handshake's S2P_INIT_PLAYER has been
// processed, or ctx is cancelled.
func (e *Engine) WaitInitialised(ctx context.Context) error {
	for !e.initialised.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
	return nil
}

// handshake blocks on the first message from the server, which must be
// S2P_INIT_PLAYER, and initialises sync_frame = server_frame =
// client_frame = F0.
func (e *Engine) handshake() error {
	header, payload, err := wire.ReadMessage(e.conn)
	if err != nil {
		return eris.Wrap(err, "handshake read")
	}
	if header.Type != wire.TypeS2PInitPlayer {
		return eris.Wrapf(wire.ErrUnknownType, "handshake expected init player, got %d", header.Type)
	}
	msg, err := wire.DecodeS2PInitPlayer(payload)
	if err != nil {
		return eris.Wrap(err, "handshake decode")
	}

	e.stateMu.Lock()
	e.ring.Init(header.Frame)
	*e.ring.StateAt(header.Frame) = msg.State
	*e.ring.EventsAt(header.Frame) = msg.Events
	e.syncFrame = header.Frame
	e.serverFrame = header.Frame
	e.clientFrame = header.Frame
	e.clientIndex = msg.ClientIndex
	e.stateMu.Unlock()

	e.initialised.Store(true)
	e.log.Info("handshake complete", "client_index", msg.ClientIndex, "frame", header.Frame)
	return nil
}

// Run performs the handshake, then runs the receive loop and the steady
// tick loop concurrently until ctx is cancelled or the connection fails.
func (e *Engine) Run(ctx context.Context, tickRate int) error {
	if err := e.handshake(); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		e.conn.Close()
	}()

	errCh := make(chan error, 2)
	go func() { errCh <- e.receiveLoop() }()
	go func() { errCh <- e.tickLoop(ctx, tickRate) }()

	select {
	case <-ctx.Done():
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// tickLoop is the main thread: sample input, predict one frame, send it,
// render. It backs off when the window invariant would be violated by
// predicting further.
func (e *Engine) tickLoop(ctx context.Context, tickRate int) error {
	if tickRate <= 0 {
		tickRate = 60
	}
	interval := time.Second / time.Duration(tickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if !e.connected.Load() {
			return nil
		}

		state, frame, input, overflow := e.predictOneFrame()
		if overflow {
			if e.metrics != nil {
				e.metrics.WindowOverflows.Inc()
			}
			e.log.Warn("window overflow, backing off")
			time.Sleep(interval)
			continue
		}

		msg := wire.EncodeP2SInput(frame, wire.P2SInput{ClientIndex: e.clientIndexUnsafe(), Input: input})
		if _, err := e.conn.Write(msg); err != nil {
			return eris.Wrap(err, "send input")
		}

		if e.render != nil {
			e.render(state)
		}
	}
}

func (e *Engine) clientIndexUnsafe() uint32 {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.clientIndex
}

// predictOneFrame implements the steady tick's locked section: sample
// input, step the simulation forward one frame, advance client_frame.
// overflow is true if client_frame has caught up to the ring's capacity
// ahead of sync_frame and the caller must back off instead of predicting.
func (e *Engine) predictOneFrame() (state sim.GameState, submittedFrame uint32, input sim.PlayerInput, overflow bool) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if e.clientFrame >= e.syncFrame+sim.MaxFrames {
		return sim.GameState{}, 0, sim.PlayerInput{}, true
	}

	input = e.sample()
	events := e.ring.EventsAt(e.clientFrame)
	events.Inputs[e.clientIndex] = input

	current := e.ring.StateAt(e.clientFrame)
	next := e.ring.StateAt(e.clientFrame + 1)
	sim.Step(current, events, next)

	submittedFrame = e.clientFrame
	state = *next
	e.clientFrame++
	return state, submittedFrame, input, false
}

// receiveLoop implements the reconciliation path: on each authoritative
// S2P_FRAME_EVENTS, reconcile from sync_frame to server_frame with
// confirmed events, then resim from server_frame to client_frame using
// the locally predicted inputs already sitting in the ring.
func (e *Engine) receiveLoop() error {
	for {
		header, payload, err := wire.ReadMessage(e.conn)
		if err != nil {
			e.connected.Store(false)
			if errors.Is(err, io.EOF) {
				e.log.Info("server closed connection")
				return nil
			}
			return eris.Wrap(err, "receive loop")
		}

		switch header.Type {
		case wire.TypeS2PFrameEvents:
			msg, err := wire.DecodeS2PFrameEvents(payload)
			if err != nil {
				e.log.Warn("malformed frame events", "err", err)
				continue
			}
			e.onAuthoritativeFrame(header.Frame, msg.Events)

		case wire.TypeSBPlayerJoined, wire.TypeSBPlayerLeft:
			// Informational only: the authoritative Join/Leave event is
			// always carried in S2P_FRAME_EVENTS too, so no ring mutation
			// happens here. See SPEC_FULL.md §11.

		default:
			e.log.Warn("unexpected message type on client", "type", header.Type)
		}
	}
}

func (e *Engine) onAuthoritativeFrame(frame uint32, events sim.GameEvents) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if frame != e.serverFrame+1 {
		if frame == 0 {
			e.ring.Init(0)
			e.syncFrame, e.serverFrame, e.clientFrame = 0, 0, 0
			return
		}
		if e.metrics != nil {
			e.metrics.OutOfOrderFrames.Inc()
		}
		e.log.Info("dropping out-of-order authoritative frame", "got", frame, "expected", e.serverFrame+1)
		return
	}

	*e.ring.EventsAt(frame) = events
	e.serverFrame = frame

	resimmed := 0
	for i := e.syncFrame; i < e.serverFrame; i++ {
		sim.Step(e.ring.StateAt(i), e.ring.EventsAt(i), e.ring.StateAt(i+1))
		resimmed++
	}
	e.syncFrame = e.serverFrame

	for i := e.serverFrame; i < e.clientFrame; i++ {
		sim.Step(e.ring.StateAt(i), e.ring.EventsAt(i), e.ring.StateAt(i+1))
		resimmed++
	}

	if e.metrics != nil {
		e.metrics.RollbackDepth.Observe(float64(resimmed))
	}
}
