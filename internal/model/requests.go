package model

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Client request payloads. All of them travel as CBOR-encoded packet bodies.

// ConnectionRequest authenticates a preregistered player joining the match.
type ConnectionRequest struct {
	PlayerID      string `cbor:"player_id"`
	AuthToken     string `cbor:"auth_token"`
	CurrentDeckID string `cbor:"current_deck_id"`
}

// ReconnectionRequest re-binds a dropped player to its live session.
type ReconnectionRequest struct {
	PlayerID  string `cbor:"player_id"`
	AuthToken string `cbor:"auth_token"`
}

// PlayCardRequest asks the server to resolve one card from the actor's hand.
type PlayCardRequest struct {
	PlayerID       string `cbor:"player_id"`
	CardID         string `cbor:"card_id"`
	TargetID       string `cbor:"target_id,omitempty"`
	TargetPosition string `cbor:"target_position,omitempty"`
}

// InitServerRequest carries the match roster that moves the server from the
// pending phase into a running instance.
type InitServerRequest struct {
	MatchID   string          `cbor:"match_id"`
	MatchType string          `cbor:"match_type"`
	Players   []PreloadPlayer `cbor:"players"`
}

// DecodeCBOR unmarshals a packet payload into out.
func DecodeCBOR(payload []byte, out any) error {
	if err := cbor.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decoding cbor payload: %w", err)
	}
	return nil
}

// EncodeCBOR marshals a request or snapshot into a packet payload.
func EncodeCBOR(in any) ([]byte, error) {
	data, err := cbor.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encoding cbor payload: %w", err)
	}
	return data, nil
}
