package server

import (
	"context"

	"github.com/cardtable/sequence/internal/game"
)

// User is an account row. PasswordHash is only populated by credential lookups.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Gravatar     string `json:"gravatar"`
	PasswordHash string `json:"-"`
}

// GameDescription is the lobby-level summary of a game.
type GameDescription struct {
	ID          string `json:"id"`
	Variant     string `json:"variant"`
	Status      string `json:"status"`
	Players     int    `json:"players"`
	PlayerCount int    `json:"playerCount"`
	Joined      bool   `json:"joined,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

// CardView is a card as exposed to its holder.
type CardView struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// SeatView is the public slice of one player's state: everything except hand
// contents.
type SeatView struct {
	UserID            string       `json:"userId"`
	Username          string       `json:"username"`
	Gravatar          string       `json:"gravatar"`
	Seat              int          `json:"seat"`
	Color             string       `json:"color"`
	IsCurrent         bool         `json:"isCurrent"`
	LastDrawTurn      int          `json:"lastDrawTurn"`
	HandCount         int          `json:"handCount"`
	PersonalPileTop   *CardView    `json:"personalPileTop"`
	PersonalPileCount int          `json:"personalPileCount"`
	BuildPiles        [4][]string  `json:"buildPiles"`
}

// PlayerView is the per-player denormalized game state: public data for every
// seat plus the viewer's own hand. Other hands are never included.
type PlayerView struct {
	Game        GameDescription `json:"game"`
	Turn        int             `json:"turn"`
	CurrentSeat int             `json:"currentSeat"`
	WinnerID    *string         `json:"winnerId"`
	Board       game.Chips      `json:"board"`
	Players     []SeatView      `json:"players"`
	Hand        []CardView      `json:"hand"`
}

// PlayRequest describes a proposed play. Position is required for the sequence
// variant; BuildPile and FromPersonal drive the stack variant.
type PlayRequest struct {
	CardID       string         `json:"cardId"`
	Position     *game.Position `json:"position,omitempty"`
	BuildPile    int            `json:"buildPile,omitempty"`
	FromPersonal bool           `json:"fromPersonal,omitempty"`
}

// PlayResult reports what a successful play did.
type PlayResult struct {
	Won         bool            `json:"won"`
	Removed     bool            `json:"removed"`
	SweptPile   int             `json:"sweptPile,omitempty"`
	WinningRun  []game.Position `json:"winningRun,omitempty"`
	DrewCard    *CardView       `json:"drewCard,omitempty"`
	Turn        int             `json:"turn"`
	CurrentSeat int             `json:"currentSeat"`
}

// Store is the persistence boundary. All game mutations run inside a single
// transaction; turn and capacity checks are re-verified inside that same
// transaction, never as a separate prior read.
type Store interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (User, error)
	UserByUsername(ctx context.Context, username string) (User, error)
	CreateSession(ctx context.Context, userID string) (string, error)
	DeleteSession(ctx context.Context, sessionID string) error
	UserFromSession(ctx context.Context, sessionID string) (User, error)

	CreateGame(ctx context.Context, userID string, variant game.Variant, playerCount int) (GameDescription, error)
	JoinGame(ctx context.Context, gameID, userID string) (GameDescription, error)
	StartGame(ctx context.Context, gameID, userID string) error
	CancelGame(ctx context.Context, gameID, userID string) error
	ListAvailable(ctx context.Context, userID string, limit, offset int) ([]GameDescription, error)
	GetState(ctx context.Context, gameID, userID string) (PlayerView, error)
	SeatedUserIDs(ctx context.Context, gameID string) ([]string, error)
	DrawCard(ctx context.Context, gameID, userID string) (CardView, error)
	PlayCard(ctx context.Context, gameID, userID string, req PlayRequest) (PlayResult, error)
}
