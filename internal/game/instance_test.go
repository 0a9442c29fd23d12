package game

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanfell/matchserver/internal/model"
	"github.com/arcanfell/matchserver/internal/script"
	"github.com/arcanfell/matchserver/internal/services"
)

// newBackend serves all three collaborator roles from one httptest server.
func newBackend(t *testing.T, catalog map[string]model.Card, decks map[string]model.Deck) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/player/preload/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/player/preload/")
		json.NewEncoder(w).Encode(services.PlayerProfile{ID: id, Level: 5, Username: "user-" + id})
	})

	mux.HandleFunc("/api/deck/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/deck/")
		deck, ok := decks[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(deck)
	})

	mux.HandleFunc("/api/card/selected", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CardIDs []string `json:"cardIds"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := services.SelectedCardsResponse{}
		for _, id := range req.CardIDs {
			card, ok := catalog[id]
			if !ok {
				resp.CardsNotFound = append(resp.CardsNotFound, id)
				continue
			}
			resp.Cards = append(resp.Cards, card)
		}
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/api/card/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/card/")
		card, ok := catalog[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(card)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func matchScripts(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "effects"), 0o755))
	effectsLua := `
function strike(ctx)
    return {
        { type = "DealDamage", target = ctx.target_id, amount = ctx.actor_view.attack },
    }
end

function broken(ctx)
    error("broken effect")
end
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "effects", "effects.lua"), []byte(effectsLua), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "effects.txt"), []byte("strike\nbroken\n"), 0o644))
	return dir
}

func matchCatalog() map[string]model.Card {
	return map[string]model.Card{
		"c42": {ID: "c42", Name: "Striker", Attack: 3, Health: 2, OnPlay: []string{"effects:strike"}},
		"c77": {ID: "c77", Name: "Wall", Attack: 0, Health: 5},
		"c13": {ID: "c13", Name: "Cursed", Attack: 1, Health: 1, OnPlay: []string{"effects:broken"}},
	}
}

func matchDecks() map[string]model.Deck {
	return map[string]model.Deck{
		"d1": {ID: "d1", PlayerID: "p1", Name: "aggro", Cards: []model.CardRef{
			{ID: "c42", Amount: 2},
			{ID: "c13", Amount: 1},
		}},
		"d2": {ID: "d2", PlayerID: "p2", Name: "wall", Cards: []model.CardRef{
			{ID: "c77", Amount: 3},
		}},
	}
}

func newTestInstance(t *testing.T) *Instance {
	t.Helper()
	srv := newBackend(t, matchCatalog(), matchDecks())
	clients := services.New(srv.URL, srv.URL, srv.URL, 0)

	roster := []model.PreloadPlayer{
		{ID: "p1", DeckID: "d1"},
		{ID: "p2", DeckID: "d2"},
	}
	inst, err := NewInstance(context.Background(), roster, clients, matchScripts(t))
	require.NoError(t, err)
	t.Cleanup(inst.Scripts.Close)
	return inst
}

// putInHand seeds the actor's hand through the summon path, the only write
// entry point the state exposes.
func putInHand(t *testing.T, inst *Instance, playerID, cardID string, slot int) {
	t.Helper()
	inst.State.ApplyActions(playerID, []model.GameAction{
		{Type: model.ActionSummon, ID: cardID, Position: "hand:" + strconv.Itoa(slot)},
	}, inst)

	view, ok := inst.State.ViewOf(playerID)
	require.True(t, ok)
	require.NotNil(t, view.HandCard(cardID), "seeding the hand must succeed")
}

func TestNewInstancePreloadsRoster(t *testing.T) {
	inst := newTestInstance(t)

	assert.Equal(t, "p1", inst.State.RedPlayerID())
	assert.Equal(t, "p2", inst.State.BluePlayerID())

	red, ok := inst.State.ViewOf("p1")
	require.True(t, ok)
	assert.Equal(t, 3, red.DeckSize, "two strikers and a cursed")

	blue, ok := inst.State.ViewOf("p2")
	require.True(t, ok)
	assert.Equal(t, 3, blue.DeckSize)

	player, ok := inst.Player("p1")
	require.True(t, ok)
	assert.Equal(t, "user-p1", player.Username)
	assert.Equal(t, "d1", player.CurrentDeckID)

	_, ok = inst.CardByID("c42")
	assert.True(t, ok, "deck cards land in the catalog cache")
}

func TestNewInstanceRejectsWrongRosterSize(t *testing.T) {
	srv := newBackend(t, matchCatalog(), matchDecks())
	clients := services.New(srv.URL, srv.URL, srv.URL, 0)

	_, err := NewInstance(context.Background(), []model.PreloadPlayer{{ID: "p1", DeckID: "d1"}}, clients, matchScripts(t))
	assert.ErrorIs(t, err, ErrInvalidRosterSize)
}

func TestNewInstanceFailsOnMissingDeck(t *testing.T) {
	srv := newBackend(t, matchCatalog(), matchDecks())
	clients := services.New(srv.URL, srv.URL, srv.URL, 0)

	roster := []model.PreloadPlayer{
		{ID: "p1", DeckID: "missing"},
		{ID: "p2", DeckID: "d2"},
	}
	_, err := NewInstance(context.Background(), roster, clients, matchScripts(t))
	assert.ErrorIs(t, err, services.ErrDeckNotFound)
}

func TestPlayCardAppliesEffects(t *testing.T) {
	inst := newTestInstance(t)
	putInHand(t, inst, "p1", "c42", 0)

	err := inst.PlayCard(context.Background(), "p1", model.PlayCardRequest{
		PlayerID: "p1",
		CardID:   "c42",
		TargetID: "p2",
	})
	require.NoError(t, err)

	blue, _ := inst.State.ViewOf("p2")
	assert.Equal(t, int32(27), blue.Health, "strike deals the striker's attack")
}

func TestPlayCardUnknownPlayer(t *testing.T) {
	inst := newTestInstance(t)

	err := inst.PlayCard(context.Background(), "ghost", model.PlayCardRequest{PlayerID: "ghost", CardID: "c42"})
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestPlayCardSessionMismatch(t *testing.T) {
	inst := newTestInstance(t)
	putInHand(t, inst, "p1", "c42", 0)

	err := inst.PlayCard(context.Background(), "p2", model.PlayCardRequest{
		PlayerID: "p1",
		CardID:   "c42",
	})
	assert.ErrorIs(t, err, ErrPlayerIDMismatch)
}

func TestPlayCardOutOfTurn(t *testing.T) {
	inst := newTestInstance(t)
	putInHand(t, inst, "p2", "c77", 0)

	err := inst.PlayCard(context.Background(), "p2", model.PlayCardRequest{
		PlayerID: "p2",
		CardID:   "c77",
	})
	assert.ErrorIs(t, err, ErrNotPlayerTurn)
}

func TestPlayCardNotInHand(t *testing.T) {
	inst := newTestInstance(t)

	err := inst.PlayCard(context.Background(), "p1", model.PlayCardRequest{
		PlayerID: "p1",
		CardID:   "c42",
	})
	assert.ErrorIs(t, err, ErrCardNotInHand)
}

func TestPlayCardScriptFailureSurfaces(t *testing.T) {
	inst := newTestInstance(t)
	putInHand(t, inst, "p1", "c13", 0)

	err := inst.PlayCard(context.Background(), "p1", model.PlayCardRequest{
		PlayerID: "p1",
		CardID:   "c13",
	})
	assert.ErrorIs(t, err, script.ErrFunctionNotCallable)
}

func TestPlayCardWithoutTriggersIsQuiet(t *testing.T) {
	inst := newTestInstance(t)
	putInHand(t, inst, "p1", "c77", 0)
	// c77 is not in p1's deck, so the summon resolves it from the shared
	// catalog cache populated by p2's preload.

	err := inst.PlayCard(context.Background(), "p1", model.PlayCardRequest{
		PlayerID: "p1",
		CardID:   "c77",
	})
	require.NoError(t, err)

	blue, _ := inst.State.ViewOf("p2")
	assert.Equal(t, int32(model.PlayerMaxHealth), blue.Health)
}

func TestResolveCardFetchesOnCacheMiss(t *testing.T) {
	catalog := matchCatalog()
	catalog["c55"] = model.Card{ID: "c55", Name: "Latecomer", Attack: 2, Health: 2}

	srv := newBackend(t, catalog, matchDecks())
	clients := services.New(srv.URL, srv.URL, srv.URL, 0)
	roster := []model.PreloadPlayer{
		{ID: "p1", DeckID: "d1"},
		{ID: "p2", DeckID: "d2"},
	}
	inst, err := NewInstance(context.Background(), roster, clients, matchScripts(t))
	require.NoError(t, err)
	t.Cleanup(inst.Scripts.Close)

	_, ok := inst.CardByID("c55")
	require.False(t, ok, "c55 is in no deck, so the preload must not cache it")

	card, err := inst.resolveCard(context.Background(), "c55")
	require.NoError(t, err)
	assert.Equal(t, "Latecomer", card.Name)

	_, ok = inst.CardByID("c55")
	assert.True(t, ok, "a miss populates the cache")

	_, err = inst.resolveCard(context.Background(), "nope")
	assert.ErrorIs(t, err, services.ErrCardNotFound)
}
