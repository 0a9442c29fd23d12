package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MatchServer holds all configuration for one match server process.
type MatchServer struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// External services. The keys match the environment variable names an
	// orchestrator exports, so the same names work in the file and the env.
	AuthServer string `yaml:"AUTH_SERVER"`
	DeckServer string `yaml:"DECK_SERVER"`
	CardServer string `yaml:"CARD_SERVER"`

	// Behavior
	LogLevel            string `yaml:"log_level"`
	BroadcastIntervalMS int    `yaml:"broadcast_interval_ms"`
	HTTPTimeoutSeconds  int    `yaml:"http_timeout_seconds"`
	ScriptsDir          string `yaml:"scripts_dir"`
}

// BroadcastInterval returns the state broadcast period.
func (c MatchServer) BroadcastInterval() time.Duration {
	return time.Duration(c.BroadcastIntervalMS) * time.Millisecond
}

// HTTPTimeout returns the per-request timeout for the service clients.
func (c MatchServer) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// Addr returns the listen address in host:port form.
func (c MatchServer) Addr() string {
	return fmt.Sprintf("%s:%d", c.BindAddress, c.Port)
}

// DefaultMatchServer returns MatchServer config with sensible defaults.
func DefaultMatchServer() MatchServer {
	return MatchServer{
		BindAddress:         "127.0.0.1",
		Port:                8000,
		AuthServer:          "http://127.0.0.1:8080",
		DeckServer:          "http://127.0.0.1:8081",
		CardServer:          "http://127.0.0.1:8082",
		LogLevel:            "info",
		BroadcastIntervalMS: 1000,
		HTTPTimeoutSeconds:  10,
		ScriptsDir:          "scripts",
	}
}

// LoadMatchServer loads match server config from a YAML file.
// If the file doesn't exist, returns defaults. The AUTH_SERVER, DECK_SERVER
// and CARD_SERVER environment variables override the file in any case, so an
// orchestrator can point a spawned server without rewriting its config.
func LoadMatchServer(path string) (MatchServer, error) {
	cfg := DefaultMatchServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *MatchServer) applyEnv() {
	if v := os.Getenv("AUTH_SERVER"); v != "" {
		c.AuthServer = v
	}
	if v := os.Getenv("DECK_SERVER"); v != "" {
		c.DeckServer = v
	}
	if v := os.Getenv("CARD_SERVER"); v != "" {
		c.CardServer = v
	}
}
