// Package journal persists session lifecycle events (player joined,
// player left, game summary) to an append-only store. It is a pure
// consumer of data the core already produces each tick — see SPEC_FULL.md
// §4.7 — and never sits on the simulation's critical path: a write
// failure is logged and dropped by the caller, never propagated back
// into ServerSynchronizer or ClientEngine.
package journal

import "context"

// Sink is the narrow interface the server process (server.Server) writes
// through. NoopSink satisfies it with no-ops so the journal is optional.
type Sink interface {
	RecordJoin(ctx context.Context, slot uint32, frame uint32) error
	RecordLeave(ctx context.Context, slot uint32, frame uint32) error
	RecordGameSummary(ctx context.Context, summary Summary) error
	Close(ctx context.Context) error
}

// Summary is the record written when a session ends.
type Summary struct {
	StartFrame  uint32
	EndFrame    uint32
	PeakClients int
}

// NoopSink is used when no DSN is configured.
type NoopSink struct{}

func (NoopSink) RecordJoin(context.Context, uint32, uint32) error         { return nil }
func (NoopSink) RecordLeave(context.Context, uint32, uint32) error        { return nil }
func (NoopSink) RecordGameSummary(context.Context, Summary) error         { return nil }
func (NoopSink) Close(context.Context) error                              { return nil }

var _ Sink = NoopSink{}
