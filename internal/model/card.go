package model

// CardRef points into a deck list: a card id plus how many copies.
type CardRef struct {
	ID     string `json:"id" cbor:"id"`
	Amount uint32 `json:"amount" cbor:"amount"`
}

// Card is the full static record for a card as served by the card catalog.
// The nine trigger slots hold ordered lists of qualified script names
// ("<namespace>:<function>", namespace one of core/cards/effects/triggers).
type Card struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PlayCost    int32  `json:"play_cost"`
	Attack      int32  `json:"attack"`
	Health      int32  `json:"health"`
	Rarity      int16  `json:"rarity"`

	OnPlay []string `json:"on_play"`
	OnDraw []string `json:"on_draw"`

	OnAttack []string `json:"on_attack"`
	OnHit    []string `json:"on_hit"`

	OnTurnStart []string `json:"on_turn_start"`
	OnTurnEnd   []string `json:"on_turn_end"`

	OnDeath      []string `json:"on_death"`
	OnAllyDeath  []string `json:"on_ally_death"`
	OnEnemyDeath []string `json:"on_enemy_death"`
}

// CardView is the match-scoped instance of a card. One static Card may back
// many CardViews.
type CardView struct {
	ID       string `json:"id" cbor:"id"`
	Name     string `json:"name" cbor:"name"`
	Attack   int32  `json:"attack" cbor:"attack"`
	Health   int32  `json:"health" cbor:"health"`
	PlayCost int32  `json:"play_cost" cbor:"play_cost"`

	OwnerID  string   `json:"owner_id" cbor:"owner_id"`
	Effects  []string `json:"effects" cbor:"effects"`
	Position string   `json:"position,omitempty" cbor:"position,omitempty"`

	InDeck      bool `json:"in_deck" cbor:"in_deck"`
	InHand      bool `json:"in_hand" cbor:"in_hand"`
	InBoard     bool `json:"in_board" cbor:"in_board"`
	InGraveyard bool `json:"in_graveyard" cbor:"in_graveyard"`
	IsExhausted bool `json:"is_exhausted" cbor:"is_exhausted"`
}

// NewCardView derives a fresh runtime instance from a catalog record.
func NewCardView(card *Card, ownerID string) CardView {
	return CardView{
		ID:       card.ID,
		Name:     card.Name,
		Attack:   card.Attack,
		Health:   card.Health,
		PlayCost: card.PlayCost,
		OwnerID:  ownerID,
		Effects:  []string{},
	}
}
