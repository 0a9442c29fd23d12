package model

// Board slot capacities.
const (
	CreatureSlots    = 6
	ArtifactSlots    = 3
	EnchantmentSlots = 3
	HandSlots        = 10

	PlayerMaxHealth = 30
)

// BoardView is the fixed-size battlefield of one player. A nil slot is empty.
type BoardView struct {
	Creatures    [CreatureSlots]*CardRef    `json:"creatures" cbor:"creatures"`
	Artifacts    [ArtifactSlots]*CardRef    `json:"artifacts" cbor:"artifacts"`
	Enchantments [EnchantmentSlots]*CardRef `json:"enchantments" cbor:"enchantments"`
}

// GraveyardView holds the unbounded discard piles in the same categories.
type GraveyardView struct {
	Creatures    []CardRef `json:"creatures" cbor:"creatures"`
	Artifacts    []CardRef `json:"artifacts" cbor:"artifacts"`
	Enchantments []CardRef `json:"enchantments" cbor:"enchantments"`
}

// PlayerView is the private, match-scoped view of one player: what the
// owning client is allowed to see, including the hand.
type PlayerView struct {
	ID     string `json:"id" cbor:"id"`
	Health int32  `json:"health" cbor:"health"`
	Mana   uint32 `json:"mana" cbor:"mana"`

	DeckSize    int                  `json:"deck_size" cbor:"deck_size"`
	CurrentHand [HandSlots]*CardView `json:"current_hand" cbor:"current_hand"`

	Board         BoardView     `json:"board" cbor:"board"`
	GraveyardSize int           `json:"graveyard_size" cbor:"graveyard_size"`
	Graveyard     GraveyardView `json:"graveyard" cbor:"graveyard"`
}

// NewPlayerView builds the initial view for a player entering the match.
func NewPlayerView(id string, deckSize int) *PlayerView {
	return &PlayerView{
		ID:       id,
		Health:   PlayerMaxHealth,
		Mana:     1,
		DeckSize: deckSize,
	}
}

// HandSize counts the occupied hand slots.
func (v *PlayerView) HandSize() int {
	n := 0
	for _, c := range v.CurrentHand {
		if c != nil {
			n++
		}
	}
	return n
}

// HandCard returns the card view in the hand with the given card id.
func (v *PlayerView) HandCard(cardID string) *CardView {
	for _, c := range v.CurrentHand {
		if c != nil && c.ID == cardID {
			return c
		}
	}
	return nil
}

// Public strips the hand for the opponent-facing view.
func (v *PlayerView) Public() PublicPlayerView {
	return PublicPlayerView{
		ID:            v.ID,
		Health:        v.Health,
		Mana:          v.Mana,
		HandSize:      v.HandSize(),
		DeckSize:      v.DeckSize,
		Board:         v.Board,
		GraveyardSize: v.GraveyardSize,
	}
}

// Clone deep-copies the view so scripts can inspect a snapshot without
// holding any game-state lock.
func (v *PlayerView) Clone() PlayerView {
	out := *v
	for i, c := range v.CurrentHand {
		if c != nil {
			copied := *c
			copied.Effects = append([]string(nil), c.Effects...)
			out.CurrentHand[i] = &copied
		}
	}
	out.Board = v.Board.clone()
	out.Graveyard = GraveyardView{
		Creatures:    append([]CardRef(nil), v.Graveyard.Creatures...),
		Artifacts:    append([]CardRef(nil), v.Graveyard.Artifacts...),
		Enchantments: append([]CardRef(nil), v.Graveyard.Enchantments...),
	}
	return out
}

func (b BoardView) clone() BoardView {
	out := b
	for i, ref := range b.Creatures {
		if ref != nil {
			copied := *ref
			out.Creatures[i] = &copied
		}
	}
	for i, ref := range b.Artifacts {
		if ref != nil {
			copied := *ref
			out.Artifacts[i] = &copied
		}
	}
	for i, ref := range b.Enchantments {
		if ref != nil {
			copied := *ref
			out.Enchantments[i] = &copied
		}
	}
	return out
}

// PublicPlayerView is the opponent-facing view: same as PlayerView minus the
// hand contents.
type PublicPlayerView struct {
	ID     string `json:"id" cbor:"id"`
	Health int32  `json:"health" cbor:"health"`
	Mana   uint32 `json:"mana" cbor:"mana"`

	HandSize int `json:"hand_size" cbor:"hand_size"`
	DeckSize int `json:"deck_size" cbor:"deck_size"`

	Board         BoardView `json:"board" cbor:"board"`
	GraveyardSize int       `json:"graveyard_size" cbor:"graveyard_size"`
}
