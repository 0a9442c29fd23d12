package matchserver

import (
	"context"
	"log/slog"
	"time"

	"github.com/arcanfell/matchserver/internal/protocol"
)

const defaultBroadcastInterval = time.Second

// runBroadcast ticks the state snapshot out to every session. When the match
// stops being ongoing the pump shuts the instance down with the match-ended
// exit code.
func (s *ServerInstance) runBroadcast(ctx context.Context) {
	interval := s.cfg.BroadcastInterval()
	if interval <= 0 {
		interval = defaultBroadcastInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
		}

		payload, err := s.game.State.Snapshot()
		if err != nil {
			slog.Error("failed to snapshot game state", "error", err)
			continue
		}

		pkt, err := protocol.NewPacket(protocol.TypeGameState, payload)
		if err != nil {
			slog.Error("failed to frame game state", "error", err)
			continue
		}
		s.registry.Broadcast(pkt)

		if !s.game.State.Ongoing() {
			s.Close(ExitMatchEnded, "match concluded")
			return
		}
	}
}
