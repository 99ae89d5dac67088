package game

import (
	"fmt"
	"strings"
)

type Suit string

const (
	Hearts   Suit = "hearts"
	Diamonds Suit = "diamonds"
	Clubs    Suit = "clubs"
	Spades   Suit = "spades"
)

var Suits = []Suit{Hearts, Diamonds, Clubs, Spades}

type Rank string

const (
	Ace   Rank = "A"
	Jack  Rank = "J"
	Queen Rank = "Q"
	King  Rank = "K"
)

var Ranks = []Rank{Ace, "2", "3", "4", "5", "6", "7", "8", "9", "10", Jack, Queen, King}

// Card is a suited playing card. Immutable once created.
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

// Code is the stable string form stored in the cards table, e.g. "hearts:10".
func (c Card) Code() string {
	return string(c.Suit) + ":" + string(c.Rank)
}

func (c Card) String() string {
	return string(c.Rank) + " of " + string(c.Suit)
}

func ParseCard(code string) (Card, error) {
	suit, rank, ok := strings.Cut(code, ":")
	if !ok {
		return Card{}, fmt.Errorf("malformed card code %q", code)
	}
	c := Card{Suit: Suit(suit), Rank: Rank(rank)}
	if !validSuit(c.Suit) || !validRank(c.Rank) {
		return Card{}, fmt.Errorf("unknown card %q", code)
	}
	return c, nil
}

func validSuit(s Suit) bool {
	for _, known := range Suits {
		if s == known {
			return true
		}
	}
	return false
}

func validRank(r Rank) bool {
	for _, known := range Ranks {
		if r == known {
			return true
		}
	}
	return false
}

// The canonical special-card mapping: the two black Jacks (clubs, diamonds are
// drawn with two eyes on a standard deck face) place a chip on any open cell;
// the two one-eyed Jacks (hearts, spades) remove an opponent's chip.

// TwoEyed reports whether c is a wild-placement Jack.
func (c Card) TwoEyed() bool {
	return c.Rank == Jack && (c.Suit == Clubs || c.Suit == Diamonds)
}

// OneEyed reports whether c is a chip-removal Jack.
func (c Card) OneEyed() bool {
	return c.Rank == Jack && (c.Suit == Hearts || c.Suit == Spades)
}
