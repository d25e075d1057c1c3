package supervise

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTreeRunsServiceUntilCancelled(t *testing.T) {
	tr := New("test")

	started := make(chan struct{})
	tr.Add("worker", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("service never started")
	}

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("tree did not unwind after cancellation")
	}
}

func TestTreeRestartsFailingService(t *testing.T) {
	tr := New("test")

	attempts := make(chan struct{}, 3)
	tr.Add("flaky", func(ctx context.Context) error {
		select {
		case attempts <- struct{}{}:
		default:
		}
		if len(attempts) < 2 {
			return errors.New("transient failure")
		}
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Run(ctx)

	require.Eventually(t, func() bool {
		return len(attempts) >= 2
	}, time.Second, 10*time.Millisecond)
}
