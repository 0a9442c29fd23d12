package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/arcanfell/matchserver/internal/config"
	"github.com/arcanfell/matchserver/internal/matchserver"
)

// ConfigPath is the config file looked up in the working directory the
// orchestrator spawns the server in.
const ConfigPath = "config"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	code, err := run(ctx)
	if err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
	os.Exit(int(code))
}

func run(ctx context.Context) (matchserver.ExitCode, error) {
	cfgPath := ConfigPath
	if p := os.Getenv("MATCHSERVER_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadMatchServer(cfgPath)
	if err != nil {
		return 0, fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	slog.Info("match server starting",
		"bind", cfg.BindAddress,
		"port", cfg.Port,
		"auth_server", cfg.AuthServer,
		"deck_server", cfg.DeckServer,
		"card_server", cfg.CardServer)

	pending := matchserver.NewPendingServer(cfg)
	if err := pending.Listen(); err != nil {
		return 0, fmt.Errorf("starting listener: %w", err)
	}

	inst, err := pending.AwaitInit(ctx)
	if err != nil {
		return 0, fmt.Errorf("awaiting match init: %w", err)
	}

	status := inst.Serve(ctx)
	slog.Info("match server stopped", "code", int(status.Code), "reason", status.Reason)
	return status.Code, nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
