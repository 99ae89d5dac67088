package server

import (
	"errors"
	"net/http"
)

// Expected game-rule failures are sentinel errors so handlers can map them to
// status codes with errors.Is. Anything not in this table is treated as an
// infrastructure failure and surfaces as a 500.
var (
	ErrNotFound          = errors.New("not found")
	ErrUserExists        = errors.New("username is taken")
	ErrGameFull          = errors.New("game is full")
	ErrAlreadyJoined     = errors.New("player already joined this game")
	ErrNotSeated         = errors.New("player is not in this game")
	ErrGameNotActive     = errors.New("game is not in progress")
	ErrGameNotWaiting    = errors.New("game has already started")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrAlreadyDrawn      = errors.New("already drawn a card this turn")
	ErrBadPlacement      = errors.New("card cannot be played at that position")
	ErrNotEnoughPlayers  = errors.New("not enough players to start")
	ErrInsufficientCards = errors.New("not enough cards left to deal")
	ErrCardNotHeld       = errors.New("card is not in your hand")

	// ErrConservation means a deal or reshuffle changed the total card count of
	// a game. It is never user-triggerable; if it surfaces, the dealing engine
	// has a bug and the transaction has been rolled back.
	ErrConservation = errors.New("card conservation violated")
)

var errStatus = []struct {
	err    error
	status int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrUserExists, http.StatusConflict},
	{ErrGameFull, http.StatusConflict},
	{ErrAlreadyJoined, http.StatusConflict},
	{ErrNotSeated, http.StatusForbidden},
	{ErrGameNotActive, http.StatusConflict},
	{ErrGameNotWaiting, http.StatusConflict},
	{ErrNotYourTurn, http.StatusConflict},
	{ErrAlreadyDrawn, http.StatusConflict},
	{ErrBadPlacement, http.StatusBadRequest},
	{ErrNotEnoughPlayers, http.StatusConflict},
	{ErrInsufficientCards, http.StatusConflict},
	{ErrCardNotHeld, http.StatusBadRequest},
}

// statusFor maps an expected store error to its HTTP status; unexpected errors
// (including ErrConservation) map to 500.
func statusFor(err error) int {
	for _, entry := range errStatus {
		if errors.Is(err, entry.err) {
			return entry.status
		}
	}
	return http.StatusInternalServerError
}
