package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/arcanfell/matchserver/internal/model"
)

// CardClient talks to the card catalog. The catalog requires no auth.
type CardClient struct {
	baseURL string
	hc      *http.Client
}

// SelectedCardsResponse is the batch lookup result. Any entry in the two
// failure lists fails the whole batch.
type SelectedCardsResponse struct {
	Cards           []model.Card `json:"cards"`
	InvalidCardGUID []string     `json:"invalidCardGuid"`
	CardsNotFound   []string     `json:"cardsNotFound"`
}

// Card fetches one full card record by id.
func (c *CardClient) Card(ctx context.Context, cardID string) (model.Card, error) {
	var card model.Card

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/card/"+cardID, nil)
	if err != nil {
		return card, fmt.Errorf("building card request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return card, fmt.Errorf("fetching card %s: %w", cardID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
			return card, fmt.Errorf("decoding card %s: %w", cardID, err)
		}
		return card, nil
	case http.StatusNotFound:
		return card, fmt.Errorf("%w: %s", ErrCardNotFound, cardID)
	default:
		return card, fmt.Errorf("unexpected card status for %s: %s", cardID, resp.Status)
	}
}

// SelectedCards resolves the full records for every referenced card id in
// one round trip.
func (c *CardClient) SelectedCards(ctx context.Context, refs []model.CardRef) ([]model.Card, error) {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}

	body, err := json.Marshal(map[string][]string{"cardIds": ids})
	if err != nil {
		return nil, fmt.Errorf("encoding card selection: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/card/selected", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building card selection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching selected cards: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected card selection status: %s", resp.Status)
	}

	var selected SelectedCardsResponse
	if err := json.NewDecoder(resp.Body).Decode(&selected); err != nil {
		return nil, fmt.Errorf("decoding card selection: %w", err)
	}

	if len(selected.CardsNotFound) > 0 || len(selected.InvalidCardGUID) > 0 {
		slog.Error("card selection incomplete",
			"not_found", selected.CardsNotFound,
			"invalid_guid", selected.InvalidCardGUID)
		return nil, fmt.Errorf("%w: %d not found, %d invalid",
			ErrMissingCardData, len(selected.CardsNotFound), len(selected.InvalidCardGUID))
	}

	return selected.Cards, nil
}
