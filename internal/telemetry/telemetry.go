// Package telemetry exposes the server and client's Prometheus metrics,
// mirroring the registered-vector-of-gauges-and-counters shape used
// elsewhere in the ecosystem for service health.
package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerMetrics is the server-side metric surface: connected clients,
// frame-advance rate, and protocol error counts by kind.
type ServerMetrics struct {
	ConnectedClients prometheus.Gauge
	ServerFrame       prometheus.Counter
	ProtocolErrors    *prometheus.CounterVec
	BroadcastFailures prometheus.Counter
}

// NewServerMetrics registers the server's metric vectors against reg and
// returns them. Passing prometheus.DefaultRegisterer wires them into the
// process-wide /metrics endpoint; tests pass a fresh prometheus.NewRegistry()
// so repeated construction doesn't panic on duplicate registration.
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	factory := promauto.With(reg)
	return &ServerMetrics{
		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "lockstep",
			Subsystem: "server",
			Name:      "connected_clients",
			Help:      "Number of client slots currently connected.",
		}),
		ServerFrame: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lockstep",
			Subsystem: "server",
			Name:      "frames_advanced_total",
			Help:      "Total number of frames the simulation thread has advanced.",
		}),
		ProtocolErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lockstep",
			Subsystem: "server",
			Name:      "protocol_errors_total",
			Help:      "Protocol violations observed, by kind.",
		}, []string{"kind"}),
		BroadcastFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lockstep",
			Subsystem: "server",
			Name:      "broadcast_failures_total",
			Help:      "Per-slot send failures during a frame-events broadcast.",
		}),
	}
}

// ClientMetrics is the client-side metric surface: rollback depth and
// window-overflow backoffs.
type ClientMetrics struct {
	RollbackDepth    prometheus.Histogram
	WindowOverflows  prometheus.Counter
	OutOfOrderFrames prometheus.Counter
}

// NewClientMetrics registers the client's metric vectors against reg and
// returns them. See NewServerMetrics for the registerer convention.
func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	factory := promauto.With(reg)
	return &ClientMetrics{
		RollbackDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lockstep",
			Subsystem: "client",
			Name:      "rollback_resim_frames",
			Help:      "Number of frames re-simulated per authoritative frame, across the sync-to-server and server-to-client passes.",
			Buckets:   prometheus.LinearBuckets(0, 4, 8),
		}),
		WindowOverflows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lockstep",
			Subsystem: "client",
			Name:      "window_overflows_total",
			Help:      "Times the client refused to predict further because it hit the ring window.",
		}),
		OutOfOrderFrames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lockstep",
			Subsystem: "client",
			Name:      "out_of_order_frames_total",
			Help:      "Authoritative frames dropped because they were not server_frame+1.",
		}),
	}
}

// Serve starts the metrics HTTP endpoint on addr and blocks until ctx is
// cancelled. An empty addr disables the endpoint entirely.
func Serve(ctx context.Context, addr string) error {
	if addr == "" {
		<-ctx.Done()
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return server.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
