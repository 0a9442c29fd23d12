package game

import (
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/arcanfell/matchserver/internal/model"
)

// CardResolver looks up full card records from the match catalog. Summon
// resolution needs it to derive fresh card views; the resolver must not
// block (cache lookups only, no HTTP under the state lock).
type CardResolver interface {
	CardByID(id string) (*model.Card, bool)
}

// State is the authoritative, mutable match state. All access goes through
// the embedded reader/writer lock: the broadcast pump and script contexts
// read, ApplyActions writes.
type State struct {
	mu sync.RWMutex

	rounds       uint32
	redFirst     bool
	redPlayerID  string
	bluePlayerID string
	ongoing      bool
	playerViews  map[string]*model.PlayerView
}

// NewState builds the initial state. The red player opens the match.
func NewState(redPlayerID, bluePlayerID string, views map[string]*model.PlayerView) *State {
	return &State{
		redFirst:     true,
		redPlayerID:  redPlayerID,
		bluePlayerID: bluePlayerID,
		ongoing:      true,
		playerViews:  views,
	}
}

// TurnPlayerID names the player who may act this round.
func (s *State) TurnPlayerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.turnPlayer()
}

// turnPlayer is the single turn-ownership formula: red plays the even rounds
// when it went first, the odd rounds otherwise. Caller holds the lock.
func (s *State) turnPlayer() string {
	if (s.rounds%2 == 0) == s.redFirst {
		return s.redPlayerID
	}
	return s.bluePlayerID
}

// Rounds returns the current round counter.
func (s *State) Rounds() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rounds
}

// AdvanceTurn hands the round to the other player.
func (s *State) AdvanceTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds++
}

// Ongoing reports whether the match is still running.
func (s *State) Ongoing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ongoing
}

// EndMatch clears the ongoing latch; every per-match task observes it and
// exits at its next suspension point.
func (s *State) EndMatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ongoing = false
}

// RedPlayerID returns the id of the red side.
func (s *State) RedPlayerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.redPlayerID
}

// BluePlayerID returns the id of the blue side.
func (s *State) BluePlayerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bluePlayerID
}

// ViewOf deep-copies a player's private view, for script contexts and
// read-only gates.
func (s *State) ViewOf(playerID string) (model.PlayerView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view, ok := s.playerViews[playerID]
	if !ok {
		return model.PlayerView{}, false
	}
	return view.Clone(), true
}

// ApplyActions mutates the state with an ordered action list emitted by a
// script, atomically under the write lock. Application is best-effort: a
// failing action logs and the rest continue; nothing rolls back. actorID
// names the player whose play produced the list (Summon targets its side).
func (s *State) ApplyActions(actorID string, actions []model.GameAction, catalog CardResolver) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, action := range actions {
		switch action.Type {
		case model.ActionDealDamage:
			s.applyDamage(action.Target, action.Amount)
		case model.ActionHeal:
			s.applyHeal(action.Target, action.Amount)
		case model.ActionSummon:
			s.applySummon(actorID, action.ID, action.Position, catalog)
		default:
			slog.Warn("skipping unknown game action", "type", string(action.Type))
		}
	}
}

// Health arithmetic runs in int64: amount is the full u32 range, so int32
// math would wrap on large values.

func (s *State) applyDamage(target string, amount uint32) {
	if view, ok := s.playerViews[target]; ok {
		view.Health = int32(max(0, int64(view.Health)-int64(amount)))
		if view.Health == 0 {
			slog.Info("player defeated", "player", target)
			s.ongoing = false
		}
		return
	}

	if card := s.findCard(target); card != nil {
		card.Health = int32(max(0, int64(card.Health)-int64(amount)))
		return
	}

	slog.Warn("damage target not found", "target", target)
}

func (s *State) applyHeal(target string, amount uint32) {
	if view, ok := s.playerViews[target]; ok {
		view.Health = int32(min(model.PlayerMaxHealth, int64(view.Health)+int64(amount)))
		return
	}

	// Cards have no defined heal cap beyond the representable range.
	if card := s.findCard(target); card != nil {
		card.Health = int32(min(math.MaxInt32, int64(card.Health)+int64(amount)))
		return
	}

	slog.Warn("heal target not found", "target", target)
}

func (s *State) applySummon(actorID, cardID, position string, catalog CardResolver) {
	view, ok := s.playerViews[actorID]
	if !ok {
		slog.Warn("summon without a player view", "actor", actorID)
		return
	}

	kind, index, ok := parsePosition(position)
	if !ok {
		slog.Warn("summon into unparseable position", "position", position)
		return
	}

	switch kind {
	case "hand":
		if index >= model.HandSlots {
			slog.Warn("summon beyond hand capacity", "position", position)
			return
		}
		if view.CurrentHand[index] != nil {
			slog.Warn("summon into occupied hand slot", "player", actorID, "position", position)
			return
		}
		card, found := catalog.CardByID(cardID)
		if !found {
			slog.Warn("summoned card missing from catalog", "card", cardID)
			return
		}
		summoned := model.NewCardView(card, actorID)
		summoned.InHand = true
		summoned.Position = position
		view.CurrentHand[index] = &summoned
		view.DeckSize = max(0, view.DeckSize-1)

	case "creature":
		placeRef(view.Board.Creatures[:], index, cardID, actorID, position)
	case "artifact":
		placeRef(view.Board.Artifacts[:], index, cardID, actorID, position)
	case "enchantment":
		placeRef(view.Board.Enchantments[:], index, cardID, actorID, position)
	default:
		slog.Warn("summon into unknown zone", "position", position)
	}
}

func placeRef(slots []*model.CardRef, index int, cardID, actorID, position string) {
	if index >= len(slots) {
		slog.Warn("summon beyond board capacity", "position", position)
		return
	}
	if slots[index] != nil {
		slog.Warn("summon into occupied board slot", "player", actorID, "position", position)
		return
	}
	slots[index] = &model.CardRef{ID: cardID, Amount: 1}
}

// parsePosition splits "zone:index" into its parts.
func parsePosition(position string) (string, int, bool) {
	parts := strings.SplitN(position, ":", 2)
	if len(parts) != 2 {
		return "", 0, false
	}
	index, err := strconv.Atoi(parts[1])
	if err != nil || index < 0 {
		return "", 0, false
	}
	return parts[0], index, true
}

// snapshot is the broadcast payload. Clients treat it as opaque bytes, so
// its layout is the server's to evolve; hands stay hidden.
type snapshot struct {
	Rounds     uint32                 `cbor:"rounds"`
	TurnPlayer string                 `cbor:"turn_player"`
	Ongoing    bool                   `cbor:"ongoing"`
	Red        model.PublicPlayerView `cbor:"red"`
	Blue       model.PublicPlayerView `cbor:"blue"`
}

// Snapshot serializes the public game state for the broadcast pump.
func (s *State) Snapshot() ([]byte, error) {
	s.mu.RLock()
	snap := snapshot{
		Rounds:     s.rounds,
		TurnPlayer: s.turnPlayer(),
		Ongoing:    s.ongoing,
	}
	if red, ok := s.playerViews[s.redPlayerID]; ok {
		snap.Red = red.Public()
	}
	if blue, ok := s.playerViews[s.bluePlayerID]; ok {
		snap.Blue = blue.Public()
	}
	s.mu.RUnlock()

	return model.EncodeCBOR(snap)
}

// findCard scans every hand for a card view with the given id.
// Caller holds the write lock.
func (s *State) findCard(cardID string) *model.CardView {
	for _, view := range s.playerViews {
		if card := view.HandCard(cardID); card != nil {
			return card
		}
	}
	return nil
}
