package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/leaanthony/clir"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/tomster12/lockstep-netcode/internal/config"
	"github.com/tomster12/lockstep-netcode/internal/journal"
	"github.com/tomster12/lockstep-netcode/internal/server"
	"github.com/tomster12/lockstep-netcode/internal/telemetry"
)

func main() {
	var configPath string
	var portOverride int
	var metricsAddr string
	var announceEvents bool

	cli := clir.NewCli("lockstep-server", "Authoritative server for the lockstep netcode core", "v0.1.0")
	cli.StringFlag("config", "Path to a YAML server config file", &configPath)
	cli.IntFlag("port", "Override the listen port", &portOverride)
	cli.StringFlag("metrics-addr", "Address to serve /metrics on (empty disables)", &metricsAddr)
	cli.BoolFlag("announce-player-events", "Additionally broadcast SB_PLAYER_JOINED/LEFT", &announceEvents)

	cli.Action(func() error {
		return run(configPath, portOverride, metricsAddr, announceEvents)
	})

	if err := cli.Run(); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(1)
	}
}

func run(configPath string, portOverride int, metricsAddr string, announceEvents bool) error {
	cfg, err := config.LoadServerConfig(configPath)
	if err != nil {
		return eris.Wrap(err, "load config")
	}
	if portOverride != 0 {
		cfg.Port = portOverride
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if announceEvents {
		cfg.AnnouncePlayerEvents = true
	}

	log := newLogger(cfg.LogLevel)
	metrics := telemetry.NewServerMetrics(prometheus.DefaultRegisterer)

	var sink journal.Sink = journal.NoopSink{}
	if cfg.JournalDSN != "" {
		pg, err := journal.NewPostgresSink(context.Background(), cfg.JournalDSN)
		if err != nil {
			return eris.Wrap(err, "connect journal")
		}
		defer pg.Close(context.Background())
		sink = pg
	}

	srv := server.New(log, cfg, metrics, sink)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return srv.Run(gctx) })
	if cfg.MetricsAddr != "" {
		group.Go(func() error { return telemetry.Serve(gctx, cfg.MetricsAddr) })
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
