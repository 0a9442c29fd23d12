package matchserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/arcanfell/matchserver/internal/config"
	"github.com/arcanfell/matchserver/internal/game"
	"github.com/arcanfell/matchserver/internal/model"
	"github.com/arcanfell/matchserver/internal/protocol"
	"github.com/arcanfell/matchserver/internal/services"
)

// PendingServer is phase one of the server lifecycle: it listens but only
// accepts InitServer. The orchestrator that spawned the process sends the
// roster, the preload runs, and the pending server becomes a ServerInstance.
type PendingServer struct {
	cfg      config.MatchServer
	services *services.Clients

	mu       sync.Mutex
	listener net.Listener
}

// NewPendingServer builds phase one against the configured collaborators.
func NewPendingServer(cfg config.MatchServer) *PendingServer {
	return &PendingServer{
		cfg:      cfg,
		services: services.New(cfg.AuthServer, cfg.DeckServer, cfg.CardServer, cfg.HTTPTimeout()),
	}
}

// Listen opens the TCP listener. Separate from AwaitInit so tests and the
// orchestrator can learn the bound address before the roster arrives.
func (p *PendingServer) Listen() error {
	ln, err := net.Listen("tcp", p.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", p.cfg.Addr(), err)
	}

	p.mu.Lock()
	p.listener = ln
	p.mu.Unlock()

	slog.Info("match server pending", "address", ln.Addr())
	return nil
}

// Addr returns the bound listen address, nil before Listen.
func (p *PendingServer) Addr() net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

// AwaitInit accepts connections until one delivers a valid InitServer packet
// whose roster preloads successfully. A failed attempt answers with an Error
// packet and the server stays in phase one for the next try. The listener is
// handed over to the returned instance.
func (p *PendingServer) AwaitInit(ctx context.Context) (*ServerInstance, error) {
	p.mu.Lock()
	ln := p.listener
	p.mu.Unlock()
	if ln == nil {
		return nil, errors.New("await init before listen")
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil, ctx.Err()
			}
			slog.Error("failed to accept init connection", "error", err)
			continue
		}

		inst, ok := p.tryInit(ctx, conn)
		if !ok {
			continue
		}
		return inst, nil
	}
}

// tryInit consumes one candidate init connection.
func (p *PendingServer) tryInit(ctx context.Context, conn net.Conn) (*ServerInstance, bool) {
	tc := NewTemporaryClient(conn)
	defer tc.Close()

	pkt, err := tc.ReadPacket()
	if err != nil {
		slog.Warn("unreadable init packet", "handshake", tc.ID(), "error", err)
		tc.Send(protocol.NewControlPacket(protocol.TypeInvalidHeader))
		return nil, false
	}
	if pkt.Header.Type != protocol.TypeInitServer {
		slog.Warn("pending server got a non-init packet",
			"handshake", tc.ID(),
			"type", pkt.Header.Type.String())
		tc.Send(protocol.NewControlPacket(protocol.TypeInvalidHeader))
		return nil, false
	}
	if !pkt.VerifyChecksum() {
		tc.Send(protocol.NewControlPacket(protocol.TypeInvalidChecksum))
		return nil, false
	}

	var req model.InitServerRequest
	if err := model.DecodeCBOR(pkt.Payload, &req); err != nil {
		slog.Warn("undecodable init payload", "handshake", tc.ID(), "error", err)
		sendInitError(tc, "undecodable init payload")
		return nil, false
	}

	inst, err := p.initialize(ctx, req)
	if err != nil {
		slog.Error("match initialization failed", "match", req.MatchID, "error", err)
		sendInitError(tc, err.Error())
		return nil, false
	}

	tc.Send(protocol.NewControlPacket(protocol.TypeInitServer))
	slog.Info("match initialized",
		"match", req.MatchID,
		"match_type", req.MatchType,
		"players", len(req.Players))
	return inst, true
}

// sendInitError answers a failed init attempt with an Error packet carrying
// the reason text. The server stays in phase one.
func sendInitError(tc *TemporaryClient, reason string) {
	pkt, err := protocol.NewPacket(protocol.TypeError, []byte(reason))
	if err != nil {
		pkt = protocol.NewControlPacket(protocol.TypeError)
	}
	tc.Send(pkt)
}

func (p *PendingServer) initialize(ctx context.Context, req model.InitServerRequest) (*ServerInstance, error) {
	g, err := game.NewInstance(ctx, req.Players, p.services, p.cfg.ScriptsDir)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	ln := p.listener
	p.mu.Unlock()

	inst := &ServerInstance{
		cfg:      p.cfg,
		matchID:  req.MatchID,
		game:     g,
		registry: NewRegistry(),
		listener: ln,
		done:     make(chan struct{}),
	}
	inst.handler = NewHandler(g, p.services, inst.registry, inst.Close)
	return inst, nil
}

// ServerInstance is phase two: the running match. It accepts player
// connections, pumps state broadcasts, and records how it ended.
type ServerInstance struct {
	cfg     config.MatchServer
	matchID string

	game     *game.Instance
	registry *Registry
	handler  *Handler

	listener net.Listener

	exitMu    sync.Mutex
	exit      ExitStatus
	done      chan struct{}
	closeOnce sync.Once
}

// Game exposes the match state, mainly for tests and the broadcast pump.
func (s *ServerInstance) Game() *game.Instance {
	return s.game
}

// Registry exposes the session registry.
func (s *ServerInstance) Registry() *Registry {
	return s.registry
}

// Addr returns the listen address inherited from the pending phase.
func (s *ServerInstance) Addr() net.Addr {
	return s.listener.Addr()
}

// Done closes when the instance has shut down.
func (s *ServerInstance) Done() <-chan struct{} {
	return s.done
}

// ExitStatus reports how the match ended. Meaningful once Done is closed.
func (s *ServerInstance) ExitStatus() ExitStatus {
	s.exitMu.Lock()
	defer s.exitMu.Unlock()
	return s.exit
}

// Close stops the instance once, recording the exit status the process will
// report to the orchestrator.
func (s *ServerInstance) Close(code ExitCode, reason string) {
	s.closeOnce.Do(func() {
		s.exitMu.Lock()
		s.exit = ExitStatus{Code: code, Reason: reason}
		s.exitMu.Unlock()

		slog.Info("match server closing", "match", s.matchID, "code", int(code), "reason", reason)
		s.game.State.EndMatch()
		s.listener.Close()
		s.registry.CloseAll()
		s.game.Scripts.Close()
		close(s.done)
	})
}

// Serve runs the accept loop and the broadcast pump until the match ends or
// the context is canceled. Returns the recorded exit status.
func (s *ServerInstance) Serve(ctx context.Context) ExitStatus {
	go func() {
		select {
		case <-ctx.Done():
			s.Close(ExitMatchEnded, "context canceled")
		case <-s.done:
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.runBroadcast(gctx)
		return nil
	})
	g.Go(func() error {
		s.acceptLoop(gctx)
		return nil
	})
	g.Wait()

	<-s.done
	return s.ExitStatus()
}

func (s *ServerInstance) acceptLoop(ctx context.Context) {
	slog.Info("match server running", "match", s.matchID, "address", s.listener.Addr())

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("failed to accept connection", "error", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handler.HandleConnection(ctx, conn)
		}()
	}
}
