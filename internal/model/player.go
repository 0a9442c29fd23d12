package model

// Player is a fully authenticated, preregistered match participant.
// Reconnection swaps the transport only; the Player record never changes
// for the lifetime of the match.
type Player struct {
	ID            string
	Level         uint32
	Username      string
	CurrentDeckID string
	CurrentDeck   Deck
	DeckView      []CardView
}

// PreloadPlayer names one roster entry of the InitServer request.
type PreloadPlayer struct {
	ID     string `cbor:"id"`
	DeckID string `cbor:"deck_id"`
}
