package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/leaanthony/clir"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/tomster12/lockstep-netcode/internal/client"
	"github.com/tomster12/lockstep-netcode/internal/config"
	"github.com/tomster12/lockstep-netcode/internal/sim"
	"github.com/tomster12/lockstep-netcode/internal/telemetry"
)

func main() {
	var configPath string
	var serverAddr string

	cli := clir.NewCli("lockstep-client", "Client engine for the lockstep netcode core", "v0.1.0")
	cli.StringFlag("config", "Path to a YAML client config file", &configPath)
	cli.StringFlag("server", "Override the server address", &serverAddr)

	cli.Action(func() error {
		return run(configPath, serverAddr)
	})

	if err := cli.Run(); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(1)
	}
}

func run(configPath string, serverAddr string) error {
	cfg, err := config.LoadClientConfig(configPath)
	if err != nil {
		return eris.Wrap(err, "load config")
	}
	if serverAddr != "" {
		cfg.ServerAddr = serverAddr
	}
	if cfg.ServerAddr == "" {
		cfg.ServerAddr = "127.0.0.1:32000"
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		lvl = slog.LevelInfo
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

	metrics := telemetry.NewClientMetrics(prometheus.DefaultRegisterer)

	conn, err := net.Dial("tcp", cfg.ServerAddr)
	if err != nil {
		return eris.Wrapf(err, "dial server %q", cfg.ServerAddr)
	}
	defer conn.Close()

	var held sim.PlayerInput
	engine := client.New(log, metrics, conn, func() sim.PlayerInput { return held }, func(state sim.GameState) {})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return engine.Run(ctx, cfg.TickRate)
}
