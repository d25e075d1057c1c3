// Package supervise wraps goroutine lifecycles in a suture supervision
// tree: the simulation loop, accept loop, and every per-connection actor
// on the server run as suture.Service instances under one Supervisor. The
// client does not use this package; client.Engine starts its tick and
// receive loops as plain goroutines. This is the
// Go-native shape of the redesign spec.md calls for in its design notes:
// a cancellation token passed to every task, with the parent blocking
// until every task has unwound — suture adds automatic, backoff-limited
// restart of a service that errors out instead of requiring each caller
// to hand-roll that policy.
package supervise

import (
	"context"

	"github.com/thejerf/suture/v4"
)

// Func adapts a plain context-aware function into a suture.Service.
type Func func(ctx context.Context) error

func (f Func) Serve(ctx context.Context) error {
	return f(ctx)
}

// namedFunc additionally implements fmt.Stringer so suture's event hook
// logs a readable service name instead of a generated one.
type namedFunc struct {
	name string
	fn   Func
}

func (n namedFunc) Serve(ctx context.Context) error {
	return n.fn(ctx)
}

func (n namedFunc) String() string {
	return n.name
}

// Tree is one supervisor and the services registered under it.
type Tree struct {
	sup *suture.Supervisor
}

// New creates an empty supervision tree named name, used in log output
// and panics recovered from a misbehaving service.
func New(name string) *Tree {
	return &Tree{sup: suture.New(name, suture.Spec{})}
}

// Add registers fn as a supervised service. fn must return promptly once
// its context is cancelled; suture restarts a service that returns a
// non-nil error other than context.Canceled, with exponential backoff.
func (t *Tree) Add(name string, fn Func) {
	t.sup.Add(namedFunc{name: name, fn: fn})
}

// Run blocks until ctx is cancelled and every supervised service has
// unwound, matching spec.md's teardown ordering: cancellation signalled,
// then join.
func (t *Tree) Run(ctx context.Context) error {
	return t.sup.Serve(ctx)
}
