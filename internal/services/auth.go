package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// AuthClient talks to the authentication server.
type AuthClient struct {
	baseURL string
	hc      *http.Client
}

// PlayerProfile is the account record behind a bearer token.
type PlayerProfile struct {
	ID       string `json:"id"`
	Level    uint32 `json:"level"`
	Username string `json:"username"`
	IsBanned bool   `json:"isBanned"`
}

// AuthenticatedPlayer is the result of a token verification.
type AuthenticatedPlayer struct {
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
	IsBanned bool   `json:"isBanned"`
}

// PlayerAccount fetches the profile owned by the bearer token.
func (c *AuthClient) PlayerAccount(ctx context.Context, token string) (PlayerProfile, error) {
	var profile PlayerProfile

	resp, err := c.get(ctx, c.baseURL+"/api/player/account", token)
	if err != nil {
		return profile, fmt.Errorf("fetching player account: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
			return profile, fmt.Errorf("decoding player account: %w", err)
		}
		return profile, nil
	case http.StatusUnauthorized:
		return profile, ErrUnauthorized
	default:
		return profile, fmt.Errorf("unexpected player account status: %s", resp.Status)
	}
}

// Verify checks the bearer token and returns the authenticated identity.
// A banned player fails with ErrPlayerBanned.
func (c *AuthClient) Verify(ctx context.Context, token string) (AuthenticatedPlayer, error) {
	var player AuthenticatedPlayer

	resp, err := c.get(ctx, c.baseURL+"/api/auth/verify", token)
	if err != nil {
		return player, fmt.Errorf("verifying token: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(&player); err != nil {
			return player, fmt.Errorf("decoding verification response: %w", err)
		}
		if player.IsBanned {
			return player, fmt.Errorf("%w: %s", ErrPlayerBanned, player.Username)
		}
		return player, nil
	case http.StatusUnauthorized:
		return player, ErrUnauthorized
	default:
		return player, fmt.Errorf("unexpected verification status: %s", resp.Status)
	}
}

// PreloadProfile fetches a profile by id. Used during server initialization,
// before any player has presented a token; the endpoint requires no auth.
func (c *AuthClient) PreloadProfile(ctx context.Context, playerID string) (PlayerProfile, error) {
	var profile PlayerProfile

	resp, err := c.get(ctx, c.baseURL+"/api/player/preload/"+playerID, "")
	if err != nil {
		return profile, fmt.Errorf("preloading profile %s: %w", playerID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return profile, fmt.Errorf("unexpected preload status for %s: %s", playerID, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return profile, fmt.Errorf("decoding preloaded profile %s: %w", playerID, err)
	}
	return profile, nil
}

func (c *AuthClient) get(ctx context.Context, url, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.hc.Do(req)
}
