package game

import "fmt"

// Variant selects which of the two games a row in the games table plays.
type Variant string

const (
	// VariantSequence is the board game: chips on a 10x10 board, win by
	// completing a run of five.
	VariantSequence Variant = "sequence"
	// VariantStack is the simplified card game: empty your personal pile onto
	// your ascending build piles.
	VariantStack Variant = "stack"
)

func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantSequence, VariantStack:
		return Variant(s), nil
	}
	return "", fmt.Errorf("unknown game variant %q", s)
}

// Rules carries the per-variant deal and capacity constants.
type Rules struct {
	DeckSize         int
	HandSize         int
	PersonalPileSize int
	MinPlayers       int
	MaxPlayers       int
}

func (v Variant) Rules() Rules {
	switch v {
	case VariantStack:
		return Rules{
			DeckSize:         162,
			HandSize:         7,
			PersonalPileSize: 20,
			MinPlayers:       2,
			MaxPlayers:       4,
		}
	default:
		return Rules{
			DeckSize:         104,
			HandSize:         7,
			PersonalPileSize: 0,
			MinPlayers:       2,
			MaxPlayers:       4,
		}
	}
}
