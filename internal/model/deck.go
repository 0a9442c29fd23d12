package model

// Deck is a player's card list as served by the deck service.
type Deck struct {
	ID       string    `json:"id"`
	PlayerID string    `json:"playerId"`
	Name     string    `json:"name"`
	Cards    []CardRef `json:"cards"`
}

// Size returns the total number of cards counting copies.
func (d *Deck) Size() int {
	total := 0
	for _, ref := range d.Cards {
		total += int(ref.Amount)
	}
	return total
}

// CreateView expands the deck into one CardView per copy, resolving each
// reference through the catalog. Refs whose card is missing from the catalog
// are skipped.
func (d *Deck) CreateView(catalog map[string]*Card, ownerID string) []CardView {
	views := make([]CardView, 0, d.Size())
	for _, ref := range d.Cards {
		card, ok := catalog[ref.ID]
		if !ok {
			continue
		}
		for i := uint32(0); i < ref.Amount; i++ {
			view := NewCardView(card, ownerID)
			view.InDeck = true
			views = append(views, view)
		}
	}
	return views
}
