package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/tomster12/lockstep-netcode/internal/config"
	"github.com/tomster12/lockstep-netcode/internal/journal"
	"github.com/tomster12/lockstep-netcode/internal/replay"
	"github.com/tomster12/lockstep-netcode/internal/supervise"
	"github.com/tomster12/lockstep-netcode/internal/telemetry"
)

// Server is the process-level wiring for the authoritative side: an
// accept loop, a Synchronizer simulation thread, and one ConnectionActor
// per accepted socket, all run under one supervision tree so a panic or
// error in any single connection never takes the simulation loop down
// with it.
type Server struct {
	log     *slog.Logger
	cfg     config.ServerConfig
	metrics *telemetry.ServerMetrics
	journal journal.Sink

	sync   *Synchronizer
	replay *replay.Journal

	connMu  sync.Mutex
	conns   map[uint32]net.Conn
	connSeq atomic.Uint64

	// admission bounds the number of connections being serviced
	// concurrently (ACCEPTED through TERMINATED) to ServerConfig.ListenBacklog,
	// the application-level stand-in for a kernel listen() backlog: the
	// net package does not expose a portable way to set the latter past
	// accept time, so this instead caps concurrent in-flight connections,
	// applying backpressure to the accept loop once the bound is reached.
	admission chan struct{}
}

// New wires a Server from its dependencies. journal may be
// journal.NoopSink{} when no session store is configured. The returned
// Server always carries a replay journal (internal/replay) so the
// confirmed frame stream is available for a future replay viewer even
// when no durable journal.Sink is configured.
func New(log *slog.Logger, cfg config.ServerConfig, metrics *telemetry.ServerMetrics, sink journal.Sink) *Server {
	backlog := cfg.ListenBacklog
	if backlog <= 0 {
		backlog = config.DefaultServerListenBacklog
	}

	s := &Server{
		log:       log,
		cfg:       cfg,
		metrics:   metrics,
		journal:   sink,
		replay:    replay.New(cfg.ReplayCapacity),
		conns:     make(map[uint32]net.Conn),
		admission: make(chan struct{}, backlog),
	}
	s.sync = NewSynchronizer(log, metrics, cfg.AnnouncePlayerEvents, cfg.MaxClients, uint32(cfg.ReconnectGraceFrames), s.sendTo)
	s.sync.AttachReplay(s.replay)
	return s
}

// Replay exposes the server's in-memory replay journal, e.g. for an
// operator inspection endpoint or a future replay-export command.
func (s *Server) Replay() *replay.Journal {
	return s.replay
}

// sendTo writes msg to the connection currently occupying slot, if any.
// Called by the Synchronizer's broadcast path while it holds the slot
// table's lock (clients_lock); a slot that has already disconnected is silently skipped rather than
// treated as an error, since its ConnectionActor will tear the
// synchronizer's bookkeeping down on its own.
func (s *Server) sendTo(slot uint32, msg []byte) error {
	s.connMu.Lock()
	conn, ok := s.conns[slot]
	s.connMu.Unlock()
	if !ok {
		return nil
	}
	_, err := conn.Write(msg)
	return err
}

// Run starts the accept loop and the simulation loop under a supervision
// tree, and blocks until ctx is cancelled and every supervised service
// has unwound.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.ListenAddr()
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	tree := supervise.New("lockstep-server")
	tree.Add("simulator", s.sync.Run)
	tree.Add("accept-loop", func(ctx context.Context) error {
		return s.acceptLoop(ctx, ln, tree)
	})

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log.Info("server listening", "addr", addr)
	runErr := tree.Run(ctx)
	s.recordGameSummary()
	return runErr
}

// recordGameSummary emits one end-of-process session summary to the
// journal sink. Called once, after every supervised service has unwound,
// so StartFrame/EndFrame bracket the whole process lifetime.
func (s *Server) recordGameSummary() {
	summary := journal.Summary{
		StartFrame:  0,
		EndFrame:    s.sync.ServerFrame(),
		PeakClients: s.sync.PeakClients(),
	}
	if err := s.journal.RecordGameSummary(context.Background(), summary); err != nil {
		s.log.Warn("journal record game summary failed", "err", err)
	}
}

// acceptLoop accepts connections and registers each one as its own
// supervised service on tree, so a panic or repeated error in one
// ConnectionActor is contained and restarted by suture independently of
// every other connection and of the simulator service. Admission is
// bounded by s.admission (ServerConfig.ListenBacklog): once that many
// connections are being serviced concurrently, the loop blocks accepting
// further sockets until one finishes.
func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, tree *supervise.Tree) error {
	for {
		select {
		case s.admission <- struct{}{}:
		case <-ctx.Done():
			return nil
		}

		conn, err := ln.Accept()
		if err != nil {
			<-s.admission
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("accept failed", "err", err)
			continue
		}

		actor := NewConnectionActor(s.log, s.metrics, s.sync, conn, s.registerConn, s.unregisterConn)
		name := fmt.Sprintf("conn-%d", s.connSeq.Add(1))
		tree.Add(name, func(ctx context.Context) error {
			defer func() { <-s.admission }()
			return s.runConnection(ctx, actor)
		})
	}
}

func (s *Server) registerConn(slot uint32, conn net.Conn) {
	s.connMu.Lock()
	s.conns[slot] = conn
	s.connMu.Unlock()

	if err := s.journal.RecordJoin(context.Background(), slot, s.sync.ServerFrame()); err != nil {
		s.log.Warn("journal record join failed", "slot", slot, "err", err)
	}
}

func (s *Server) unregisterConn(slot uint32) {
	s.connMu.Lock()
	delete(s.conns, slot)
	s.connMu.Unlock()

	if err := s.journal.RecordLeave(context.Background(), slot, s.sync.ServerFrame()); err != nil {
		s.log.Warn("journal record leave failed", "slot", slot, "err", err)
	}
}

// runConnection runs one ConnectionActor to completion as a supervised
// service. ConnectionActor.Run only ever returns nil (an orderly
// ACCEPTED -> ... -> TERMINATED teardown), so suture never restarts a
// finished connection; a panic recovered by suture is the only path that
// would restart this service, isolated from every other connection's.
func (s *Server) runConnection(ctx context.Context, actor *ConnectionActor) error {
	err := actor.Run(ctx)
	if err != nil {
		s.log.Warn("connection actor exited with error", "err", err)
	}
	return err
}
