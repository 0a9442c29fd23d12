package matchserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"unicode"
	"unicode/utf8"

	"github.com/arcanfell/matchserver/internal/game"
	"github.com/arcanfell/matchserver/internal/model"
	"github.com/arcanfell/matchserver/internal/protocol"
	"github.com/arcanfell/matchserver/internal/services"
)

// Handler dispatches every packet of the running match: the two-stage
// handshake on fresh connections and the per-session command loop after it.
type Handler struct {
	game     *game.Instance
	services *services.Clients
	registry *Registry

	// shutdown stops the whole server; the broadcast pump and the card
	// failure path use it.
	shutdown func(ExitCode, string)
}

// NewHandler wires the dispatcher.
func NewHandler(g *game.Instance, svc *services.Clients, registry *Registry, shutdown func(ExitCode, string)) *Handler {
	return &Handler{
		game:     g,
		services: svc,
		registry: registry,
		shutdown: shutdown,
	}
}

// HandleConnection runs the handshake for one fresh connection. The
// connection stays anonymous until a valid Connect or Reconnect promotes it;
// everything else closes it.
func (h *Handler) HandleConnection(ctx context.Context, conn net.Conn) {
	tc := NewTemporaryClient(conn)
	slog.Debug("new connection", "handshake", tc.ID(), "remote", tc.Addr())

	pkt, err := tc.ReadPacket()
	if err != nil {
		h.rejectHandshake(tc, err)
		return
	}

	if !pkt.VerifyChecksum() {
		tc.Send(protocol.NewControlPacket(protocol.TypeInvalidChecksum))
		tc.Close()
		return
	}

	switch pkt.Header.Type {
	case protocol.TypeConnect:
		h.handleConnect(ctx, tc, pkt)
	case protocol.TypeReconnect:
		h.handleReconnect(ctx, tc, pkt)
	case protocol.TypeDisconnect:
		tc.Close()
	default:
		slog.Warn("handshake with wrong packet type",
			"handshake", tc.ID(),
			"type", pkt.Header.Type.String())
		tc.Send(protocol.NewControlPacket(protocol.TypeInvalidHeader))
		tc.Close()
	}
}

// failConnect answers a handshake that cannot be promoted. The reason rides
// in the payload so the client can tell a bad token from a missing roster
// entry.
func failConnect(tc *TemporaryClient, reason string) {
	pkt, err := protocol.NewPacket(protocol.TypeFailedToConnectPlayer, []byte(reason))
	if err != nil {
		pkt = protocol.NewControlPacket(protocol.TypeFailedToConnectPlayer)
	}
	tc.Send(pkt)
	tc.Close()
}

func (h *Handler) rejectHandshake(tc *TemporaryClient, err error) {
	switch {
	case errors.Is(err, protocol.ErrInvalidHeader):
		tc.Send(protocol.NewControlPacket(protocol.TypeInvalidHeader))
	case errors.Is(err, protocol.ErrInvalidPacket):
		tc.Send(protocol.NewControlPacket(protocol.TypeInvalidPacketPayload))
	default:
		slog.Debug("handshake read failed", "handshake", tc.ID(), "error", err)
	}
	tc.Close()
}

// handleConnect authenticates a preregistered player and promotes the
// connection into a registered session.
func (h *Handler) handleConnect(ctx context.Context, tc *TemporaryClient, pkt protocol.Packet) {
	var req model.ConnectionRequest
	if err := model.DecodeCBOR(pkt.Payload, &req); err != nil {
		slog.Warn("undecodable connect payload", "handshake", tc.ID(), "error", err)
		tc.Send(protocol.NewControlPacket(protocol.TypeInvalidPlayerData))
		tc.Close()
		return
	}

	profile, err := h.services.Auth.PlayerAccount(ctx, req.AuthToken)
	if err != nil {
		slog.Warn("connect authentication failed", "player", req.PlayerID, "error", err)
		failConnect(tc, "unauthorized")
		return
	}
	if profile.ID != req.PlayerID {
		slog.Warn("connect with foreign token", "claimed", req.PlayerID, "token_owner", profile.ID)
		tc.Send(protocol.NewControlPacket(protocol.TypeInvalidPlayerData))
		tc.Close()
		return
	}
	if profile.IsBanned {
		slog.Warn("connect from banned player", "player", req.PlayerID)
		failConnect(tc, "banned")
		return
	}

	player, ok := h.game.Player(req.PlayerID)
	if !ok {
		slog.Warn("connect from player outside the match", "player", req.PlayerID)
		failConnect(tc, "not in match")
		return
	}

	if _, err := h.services.Deck.Deck(ctx, req.CurrentDeckID, req.AuthToken); err != nil {
		slog.Warn("connect deck validation failed", "player", req.PlayerID, "deck", req.CurrentDeckID, "error", err)
		if errors.Is(err, services.ErrDeckNotFound) {
			failConnect(tc, "deck not found")
		} else {
			failConnect(tc, "invalid deck")
		}
		return
	}

	client := NewClient(player, tc.Conn())
	if err := h.registry.Register(client); err != nil {
		slog.Warn("duplicate connect", "player", req.PlayerID)
		tc.Send(protocol.NewControlPacket(protocol.TypeAlreadyConnected))
		tc.Close()
		return
	}

	slog.Info("player connected", "player", req.PlayerID, "remote", tc.Addr())
	client.SendPacket(protocol.NewControlPacket(protocol.TypeConnect))
	go h.readLoop(ctx, client, tc.Conn())
}

// handleReconnect re-binds a dropped player's session to a fresh transport.
// Identity is the player id claim checked against the verified token owner.
func (h *Handler) handleReconnect(ctx context.Context, tc *TemporaryClient, pkt protocol.Packet) {
	var req model.ReconnectionRequest
	if err := model.DecodeCBOR(pkt.Payload, &req); err != nil {
		slog.Warn("undecodable reconnect payload", "handshake", tc.ID(), "error", err)
		tc.Send(protocol.NewControlPacket(protocol.TypeInvalidPlayerData))
		tc.Close()
		return
	}

	auth, err := h.services.Auth.Verify(ctx, req.AuthToken)
	if err != nil {
		slog.Warn("reconnect verification failed", "player", req.PlayerID, "error", err)
		if errors.Is(err, services.ErrPlayerBanned) {
			failConnect(tc, "banned")
		} else {
			failConnect(tc, "unauthorized")
		}
		return
	}
	if auth.PlayerID != req.PlayerID {
		slog.Warn("reconnect with foreign token", "claimed", req.PlayerID, "token_owner", auth.PlayerID)
		tc.Send(protocol.NewControlPacket(protocol.TypeInvalidPlayerData))
		tc.Close()
		return
	}

	client, ok := h.registry.Client(req.PlayerID)
	if !ok {
		slog.Warn("reconnect without a session", "player", req.PlayerID)
		failConnect(tc, "not in match")
		return
	}
	if client.Connected() {
		slog.Warn("reconnect over a live session", "player", req.PlayerID)
		tc.Send(protocol.NewControlPacket(protocol.TypeAlreadyConnected))
		tc.Close()
		return
	}

	client.Reconnect(tc.Conn())
	client.SendPacket(protocol.NewControlPacket(protocol.TypeReconnect))
	go h.readLoop(ctx, client, tc.Conn())
}

// readLoop consumes packets from one transport until it dies. Each session
// may go through many transports; each transport gets exactly one loop.
func (h *Handler) readLoop(ctx context.Context, client *Client, conn net.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Framing errors mean the byte stream is out of sync with the peer;
		// there is no way to find the next packet boundary, so answer and
		// drop the transport. The session stays reconnectable.
		pkt, err := readPacket(conn)
		if err != nil {
			switch {
			case errors.Is(err, protocol.ErrInvalidHeader):
				client.SendPacket(protocol.NewControlPacket(protocol.TypeInvalidHeader))
				client.dropTransport(conn, "unframeable stream")
			case errors.Is(err, protocol.ErrInvalidPacket):
				client.SendPacket(protocol.NewControlPacket(protocol.TypeInvalidPacketPayload))
				client.dropTransport(conn, "unframeable stream")
			default:
				client.dropTransport(conn, "read failed")
			}
			return
		}

		if !pkt.VerifyChecksum() {
			client.SendPacket(protocol.NewControlPacket(protocol.TypeInvalidChecksum))
			client.dropTransport(conn, "checksum mismatch")
			return
		}

		if done := h.dispatch(ctx, client, pkt); done {
			return
		}
	}
}

// dispatch routes one authenticated packet. Returns true when the loop
// should stop.
func (h *Handler) dispatch(ctx context.Context, client *Client, pkt protocol.Packet) bool {
	switch pkt.Header.Type {
	case protocol.TypePing:
		client.SendPacket(protocol.NewControlPacket(protocol.TypePing))

	case protocol.TypeDisconnect:
		client.SendPacket(protocol.NewControlPacket(protocol.TypeDisconnect))
		client.Disconnect("client request")
		return true

	case protocol.TypePlayCard:
		h.handlePlayCard(ctx, client, pkt)

	case protocol.TypeAttackPlayer:
		// Recognized but not resolved yet; direct attacks go through card
		// effects for now.
		slog.Debug("attack player ignored", "player", client.PlayerID())

	case protocol.TypeConnect, protocol.TypeReconnect:
		client.SendPacket(protocol.NewControlPacket(protocol.TypeAlreadyConnected))

	default:
		slog.Warn("unexpected packet in session",
			"player", client.PlayerID(),
			"type", pkt.Header.Type.String())
		client.SendPacket(protocol.NewControlPacket(protocol.TypeInvalidHeader))
	}
	return false
}

func (h *Handler) handlePlayCard(ctx context.Context, client *Client, pkt protocol.Packet) {
	var req model.PlayCardRequest
	if err := model.DecodeCBOR(pkt.Payload, &req); err != nil {
		slog.Warn("undecodable play card payload", "player", client.PlayerID(), "error", err)
		client.SendPacket(protocol.NewControlPacket(protocol.TypeInvalidPacketPayload))
		return
	}

	if err := h.game.PlayCard(ctx, client.PlayerID(), req); err != nil {
		if errors.Is(err, game.ErrCardDetails) {
			// Without the card record the match cannot continue; hand the
			// decision to the orchestrator through the exit code.
			slog.Error("card request failed mid-match", "card", req.CardID, "error", err)
			h.shutdown(ExitCardRequestFailed, err.Error())
			return
		}

		slog.Info("play card rejected", "player", client.PlayerID(), "card", req.CardID, "error", err)
		echo, perr := protocol.NewPacket(protocol.TypePlayCard, []byte(upperFirst(err.Error())))
		if perr == nil {
			client.SendPacket(echo)
		}
		return
	}

	h.game.State.AdvanceTurn()
	client.SendPacket(protocol.NewControlPacket(protocol.TypePlayCard))
}

// upperFirst capitalizes the first rune for client-facing error text.
func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
