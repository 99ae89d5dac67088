package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStackPlayable(t *testing.T) {
	assert.True(t, StackPlayable(0, 1), "empty pile takes a 1")
	assert.False(t, StackPlayable(0, 2))
	assert.True(t, StackPlayable(4, 5))
	assert.False(t, StackPlayable(4, 4))
	assert.True(t, StackPlayable(11, 12))
	assert.False(t, StackPlayable(12, 1), "completed pile takes nothing")
}

func TestStackWildMatchesAnyHeight(t *testing.T) {
	for height := 0; height < BuildTop; height++ {
		assert.True(t, StackPlayable(height, WildRank), "height %d", height)
	}
	assert.False(t, StackPlayable(BuildTop, WildRank))
}

func TestVariantRules(t *testing.T) {
	seq := VariantSequence.Rules()
	assert.Equal(t, 104, seq.DeckSize)
	assert.Equal(t, 7, seq.HandSize)
	assert.Equal(t, 0, seq.PersonalPileSize)

	stack := VariantStack.Rules()
	assert.Equal(t, 162, stack.DeckSize)
	assert.Equal(t, 7, stack.HandSize)
	assert.Equal(t, 20, stack.PersonalPileSize)

	// Every player can be dealt a full hand and personal pile.
	assert.LessOrEqual(t,
		stack.MaxPlayers*(stack.HandSize+stack.PersonalPileSize), stack.DeckSize)
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("sequence")
	assert.NoError(t, err)
	assert.Equal(t, VariantSequence, v)

	_, err = ParseVariant("poker")
	assert.Error(t, err)
}
