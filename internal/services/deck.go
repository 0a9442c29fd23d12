package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/arcanfell/matchserver/internal/model"
)

// DeckClient talks to the deck server.
type DeckClient struct {
	baseURL string
	hc      *http.Client
}

// Deck fetches one deck by id on behalf of the token's owner.
func (c *DeckClient) Deck(ctx context.Context, deckID, token string) (model.Deck, error) {
	var deck model.Deck

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/deck/"+deckID, nil)
	if err != nil {
		return deck, fmt.Errorf("building deck request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return deck, fmt.Errorf("fetching deck %s: %w", deckID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(&deck); err != nil {
			return deck, fmt.Errorf("%w: %v", ErrDeckInvalidFormat, err)
		}
		return deck, nil
	case http.StatusNotFound:
		return deck, fmt.Errorf("%w: %s", ErrDeckNotFound, deckID)
	case http.StatusUnauthorized:
		return deck, ErrUnauthorized
	default:
		return deck, fmt.Errorf("unexpected deck status for %s: %s", deckID, resp.Status)
	}
}
