package model

import (
	"errors"
	"fmt"
)

// ActionType tags a GameAction variant.
type ActionType string

const (
	ActionDealDamage ActionType = "DealDamage"
	ActionHeal       ActionType = "Heal"
	ActionSummon     ActionType = "Summon"
)

// ErrUnknownAction rejects action lists carrying an unrecognized tag.
var ErrUnknownAction = errors.New("unknown game action")

// GameAction is one atomic state mutation emitted by a card script.
// The variant is selected by Type; unused fields stay zero.
//
//	DealDamage: Target, Amount
//	Heal:       Target, Amount
//	Summon:     ID, Position
type GameAction struct {
	Type ActionType `cbor:"type"`

	Target string `cbor:"target,omitempty"`
	Amount uint32 `cbor:"amount,omitempty"`

	ID       string `cbor:"id,omitempty"`
	Position string `cbor:"position,omitempty"`
}

// Validate checks the tag and the variant's required fields.
func (a GameAction) Validate() error {
	switch a.Type {
	case ActionDealDamage, ActionHeal:
		if a.Target == "" {
			return fmt.Errorf("%s action without target", a.Type)
		}
	case ActionSummon:
		if a.ID == "" || a.Position == "" {
			return fmt.Errorf("Summon action without id or position")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, string(a.Type))
	}
	return nil
}
