// Package config loads the YAML-backed configuration layered under the
// compile-time defaults named in the spec: port, client/frame capacity,
// tick rate, listen backlog. Precedence is flag > YAML > built-in default;
// callers apply CLI flag overrides after Load returns.
package config

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Defaults mirror the spec's compile-time constants.
const (
	DefaultPort                 = 32000
	DefaultMaxClients           = 8
	DefaultServerListenBacklog  = 128
	DefaultSimulationTickRate   = 60
	DefaultReconnectGraceFrames = 0
	DefaultReplayCapacity       = 3600
)

// ServerConfig is the server binary's full configuration surface.
type ServerConfig struct {
	Port                 int    `yaml:"port"`
	MaxClients           int    `yaml:"max_clients"`
	ListenBacklog        int    `yaml:"listen_backlog"`
	ReconnectGraceFrames int    `yaml:"reconnect_grace_frames"`
	AnnouncePlayerEvents bool   `yaml:"announce_player_events"`
	MetricsAddr          string `yaml:"metrics_addr"`
	JournalDSN           string `yaml:"journal_dsn"`
	ReplayCapacity       int    `yaml:"replay_capacity"`
	LogLevel             string `yaml:"log_level"`
}

// ListenAddr returns the server's listen address in host:port form.
func (c ServerConfig) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// DefaultServerConfig returns the configuration implied by the spec's
// compile-time constants, before any YAML file or flag is applied.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:                 DefaultPort,
		MaxClients:           DefaultMaxClients,
		ListenBacklog:        DefaultServerListenBacklog,
		ReconnectGraceFrames: DefaultReconnectGraceFrames,
		AnnouncePlayerEvents: false,
		ReplayCapacity:       DefaultReplayCapacity,
		LogLevel:             "info",
	}
}

// ClientConfig is the client binary's full configuration surface.
type ClientConfig struct {
	ServerAddr string `yaml:"server_addr"`
	TickRate   int    `yaml:"tick_rate"`
	JournalDSN string `yaml:"journal_dsn"`
	LogLevel   string `yaml:"log_level"`
}

// DefaultClientConfig returns the configuration implied by the spec's
// compile-time constants, before any YAML file or flag is applied.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		TickRate: DefaultSimulationTickRate,
		LogLevel: "info",
	}
}

// LoadServerConfig reads path and overlays it onto DefaultServerConfig. A
// missing file is not an error: the defaults stand alone, matching a
// binary that takes no arguments beyond what the spec names.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, eris.Wrapf(err, "read server config %q", path)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, eris.Wrapf(err, "parse server config %q", path)
	}

	return cfg, nil
}

// LoadClientConfig reads path and overlays it onto DefaultClientConfig.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, eris.Wrapf(err, "read client config %q", path)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, eris.Wrapf(err, "parse client config %q", path)
	}

	return cfg, nil
}
