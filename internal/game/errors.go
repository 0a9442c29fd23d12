package game

import "errors"

// Game logic failures. These are surfaced back to the requesting client as a
// PlayCard echo carrying the error text; they never terminate the session.
var (
	ErrPlayerNotFound    = errors.New("player not found")
	ErrPlayerIDMismatch  = errors.New("player id does not match")
	ErrNotPlayerTurn     = errors.New("not player's turn")
	ErrCardNotInHand     = errors.New("card played is not in hand")
	ErrCardDetails       = errors.New("unable to get card details")
	ErrInvalidRosterSize = errors.New("a match requires exactly two players")
)
