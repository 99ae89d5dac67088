package game

import "fmt"

// PileKind identifies the bucket a dealt card occupies. The undealt pool is not
// a pile: pool cards have no holder at all.
type PileKind int

const (
	// Hand is the player's private hand.
	Hand PileKind = iota
	// Personal is the player's face-up play pile; only the top card is public.
	Personal
	// DiscardBottom collects spent cards and is reclaimed into the pool on
	// reshuffle.
	DiscardBottom
	// Build is one of the player's four ascending directional build piles,
	// numbered 1 through 4.
	Build
)

// Pile is a tagged pile reference. Slot is meaningful only for Build piles.
type Pile struct {
	Kind PileKind
	Slot int
}

func HandPile() Pile          { return Pile{Kind: Hand} }
func PersonalPile() Pile      { return Pile{Kind: Personal} }
func DiscardBottomPile() Pile { return Pile{Kind: DiscardBottom} }

func BuildPile(slot int) (Pile, error) {
	if slot < 1 || slot > 4 {
		return Pile{}, fmt.Errorf("build pile slot %d out of range", slot)
	}
	return Pile{Kind: Build, Slot: slot}, nil
}

// Code is the integer stored in game_cards.pile. The encoding matches the
// historical wire values so existing rows stay readable, but callers only ever
// see the tagged type.
func (p Pile) Code() int {
	switch p.Kind {
	case Hand:
		return 0
	case Personal:
		return -1
	case DiscardBottom:
		return -2
	case Build:
		return p.Slot
	}
	panic(fmt.Sprintf("unknown pile kind %d", p.Kind))
}

func PileFromCode(code int) (Pile, error) {
	switch {
	case code == 0:
		return HandPile(), nil
	case code == -1:
		return PersonalPile(), nil
	case code == -2:
		return DiscardBottomPile(), nil
	case code >= 1 && code <= 4:
		return Pile{Kind: Build, Slot: code}, nil
	}
	return Pile{}, fmt.Errorf("unknown pile code %d", code)
}

func (p Pile) String() string {
	switch p.Kind {
	case Hand:
		return "hand"
	case Personal:
		return "personal"
	case DiscardBottom:
		return "discard"
	case Build:
		return fmt.Sprintf("build-%d", p.Slot)
	}
	return fmt.Sprintf("pile(%d)", int(p.Kind))
}
