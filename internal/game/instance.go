package game

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/arcanfell/matchserver/internal/model"
	"github.com/arcanfell/matchserver/internal/script"
	"github.com/arcanfell/matchserver/internal/services"
)

// Instance composes everything one match needs: the state, the script host,
// the card catalog cache, and the preregistered roster.
type Instance struct {
	State   *State
	Scripts *script.Manager

	cardsMu   sync.RWMutex
	fullCards map[string]*model.Card

	playersMu        sync.RWMutex
	connectedPlayers map[string]*model.Player

	cardClient *services.CardClient
}

// NewInstance preloads the match: scripts are loaded and indexed, every
// roster player's profile and deck are fetched, and every referenced card is
// resolved through the catalog's batch endpoint. The first roster entry
// plays red, the second blue.
func NewInstance(ctx context.Context, roster []model.PreloadPlayer, clients *services.Clients, scriptsDir string) (*Instance, error) {
	if len(roster) != 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRosterSize, len(roster))
	}

	scripts := script.NewManager(scriptsDir)
	if err := scripts.LoadScripts(); err != nil {
		return nil, fmt.Errorf("loading scripts: %w", err)
	}
	if err := scripts.SetGlobals(); err != nil {
		return nil, fmt.Errorf("indexing script globals: %w", err)
	}

	inst := &Instance{
		Scripts:          scripts,
		fullCards:        make(map[string]*model.Card),
		connectedPlayers: make(map[string]*model.Player),
		cardClient:       clients.Card,
	}

	views := make(map[string]*model.PlayerView, len(roster))
	for _, entry := range roster {
		profile, err := clients.Auth.PreloadProfile(ctx, entry.ID)
		if err != nil {
			return nil, fmt.Errorf("preloading player %s: %w", entry.ID, err)
		}

		deck, err := clients.Deck.Deck(ctx, entry.DeckID, "")
		if err != nil {
			return nil, fmt.Errorf("preloading deck %s: %w", entry.DeckID, err)
		}

		cards, err := clients.Card.SelectedCards(ctx, deck.Cards)
		if err != nil {
			return nil, fmt.Errorf("preloading cards for deck %s: %w", entry.DeckID, err)
		}
		for i := range cards {
			inst.fullCards[cards[i].ID] = &cards[i]
		}

		deckView := deck.CreateView(inst.fullCards, profile.ID)
		views[profile.ID] = model.NewPlayerView(profile.ID, deck.Size())
		inst.connectedPlayers[profile.ID] = &model.Player{
			ID:            profile.ID,
			Level:         profile.Level,
			Username:      profile.Username,
			CurrentDeckID: deck.ID,
			CurrentDeck:   deck,
			DeckView:      deckView,
		}

		slog.Info("preloaded player",
			"player", profile.ID,
			"username", profile.Username,
			"deck", deck.ID,
			"deck_size", deck.Size())
	}

	inst.State = NewState(roster[0].ID, roster[1].ID, views)
	return inst, nil
}

// CardByID looks up a cached full card record.
func (g *Instance) CardByID(id string) (*model.Card, bool) {
	g.cardsMu.RLock()
	defer g.cardsMu.RUnlock()
	card, ok := g.fullCards[id]
	return card, ok
}

// AddCard caches a full card record for the match lifetime.
func (g *Instance) AddCard(card *model.Card) {
	g.cardsMu.Lock()
	defer g.cardsMu.Unlock()
	g.fullCards[card.ID] = card
}

// Player returns a preregistered roster entry.
func (g *Instance) Player(id string) (*model.Player, bool) {
	g.playersMu.RLock()
	defer g.playersMu.RUnlock()
	player, ok := g.connectedPlayers[id]
	return player, ok
}

// PlayCard resolves one card played from the actor's hand. sessionPlayerID
// identifies the session issuing the request; it must match the actor.
// Every gate failure returns a typed error for the dispatcher to echo.
// Effects already applied when a later trigger fails are not rolled back.
func (g *Instance) PlayCard(ctx context.Context, sessionPlayerID string, req model.PlayCardRequest) error {
	actorView, ok := g.State.ViewOf(req.PlayerID)
	if !ok {
		slog.Debug("play card for unknown player", "actor", req.PlayerID, "session", sessionPlayerID)
		return ErrPlayerNotFound
	}

	if sessionPlayerID != actorView.ID {
		return fmt.Errorf("%w: session %s, actor %s", ErrPlayerIDMismatch, sessionPlayerID, req.PlayerID)
	}

	if turn := g.State.TurnPlayerID(); turn != req.PlayerID {
		return fmt.Errorf("%w: turn belongs to %s", ErrNotPlayerTurn, turn)
	}

	cardView := actorView.HandCard(req.CardID)
	if cardView == nil {
		return ErrCardNotInHand
	}

	fullCard, err := g.resolveCard(ctx, cardView.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCardDetails, err)
	}

	for _, actionName := range fullCard.OnPlay {
		scriptCtx := g.buildContext("on_play", actionName, req, *cardView)

		actions, err := g.Scripts.CallFunction(actionName, scriptCtx)
		if err != nil {
			return err
		}

		g.State.ApplyActions(req.PlayerID, actions, g)
	}

	return nil
}

// resolveCard serves from the match cache, falling back to a single catalog
// fetch on miss.
func (g *Instance) resolveCard(ctx context.Context, cardID string) (*model.Card, error) {
	if card, ok := g.CardByID(cardID); ok {
		return card, nil
	}

	slog.Debug("card cache miss", "card", cardID)
	card, err := g.cardClient.Card(ctx, cardID)
	if err != nil {
		return nil, err
	}
	g.AddCard(&card)
	return &card, nil
}

// buildContext snapshots the state for one script invocation. Scripts see
// clones; the only way back into the state is the returned action list.
func (g *Instance) buildContext(event, actionName string, req model.PlayCardRequest, actorView model.CardView) *script.Context {
	red, _ := g.State.ViewOf(g.State.RedPlayerID())
	blue, _ := g.State.ViewOf(g.State.BluePlayerID())

	ctx := &script.Context{
		Event:      event,
		ActionName: actionName,
		ActorID:    req.PlayerID,
		ActorView:  actorView,
		TargetID:   req.TargetID,
		GameState: script.StateView{
			Turn:       g.State.Rounds(),
			RedPlayer:  red,
			BluePlayer: blue,
		},
	}

	if req.TargetID != "" {
		if target := red.HandCard(req.TargetID); target != nil {
			ctx.TargetView = target
		} else if target := blue.HandCard(req.TargetID); target != nil {
			ctx.TargetView = target
		}
	}

	return ctx
}
