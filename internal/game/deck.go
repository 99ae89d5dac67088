package game

import (
	"math/rand"
	"strconv"
)

// SequenceDeck returns the 104-card deck for the board game: two full 52-card
// suited decks, Jacks included. Order is deterministic; shuffle separately.
func SequenceDeck() []Card {
	cards := make([]Card, 0, 104)
	for copies := 0; copies < 2; copies++ {
		for _, suit := range Suits {
			for _, rank := range Ranks {
				cards = append(cards, Card{Suit: suit, Rank: rank})
			}
		}
	}
	return cards
}

// WildRank is the rank of a wild card in the stack variant's deck.
const WildRank = 0

// StackDeck returns the 162-card rank-only deck for the stack variant: twelve
// copies of each rank 1 through 12 plus eighteen wild cards.
func StackDeck() []int {
	ranks := make([]int, 0, 162)
	for rank := 1; rank <= 12; rank++ {
		for copies := 0; copies < 12; copies++ {
			ranks = append(ranks, rank)
		}
	}
	for i := 0; i < 18; i++ {
		ranks = append(ranks, WildRank)
	}
	return ranks
}

// StackCode is the stored string form of a stack-variant card value.
func StackCode(rank int) string {
	return strconv.Itoa(rank)
}

func ParseStackCode(code string) (int, error) {
	return strconv.Atoi(code)
}

// ShuffledOrder returns a permutation of 0..n-1 by Fisher-Yates. Used to assign
// positions to a game's cards so dealing can claim rows in linear time with no
// bias.
func ShuffledOrder(n int, rng *rand.Rand) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rng.Shuffle(n, func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return order
}
