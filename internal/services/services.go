// Package services holds the HTTP clients for the external collaborators of
// a match: the auth server, the deck server, and the card catalog. All three
// share one http.Client per process; calls are single-attempt with the
// configured timeout, failures propagate upward as typed errors.
package services

import (
	"errors"
	"net/http"
	"time"
)

// Typed failure kinds surfaced to the dispatcher, which translates them into
// wire packets.
var (
	ErrUnauthorized      = errors.New("player token was not authorized")
	ErrPlayerBanned      = errors.New("player is banned")
	ErrDeckNotFound      = errors.New("deck was not found")
	ErrDeckInvalidFormat = errors.New("deck format invalid")
	ErrCardNotFound      = errors.New("card was not found")
	ErrMissingCardData   = errors.New("card selection returned missing or invalid cards")
)

const defaultTimeout = 10 * time.Second

// Clients bundles the three external service clients.
type Clients struct {
	Auth *AuthClient
	Deck *DeckClient
	Card *CardClient
}

// New builds the client set against the configured base URLs.
// A non-positive timeout falls back to 10 seconds.
func New(authServer, deckServer, cardServer string, timeout time.Duration) *Clients {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hc := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        8,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	return &Clients{
		Auth: &AuthClient{baseURL: authServer, hc: hc},
		Deck: &DeckClient{baseURL: deckServer, hc: hc},
		Card: &CardClient{baseURL: cardServer, hc: hc},
	}
}
