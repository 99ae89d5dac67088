package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutHasFourCenterCorners(t *testing.T) {
	var corners []Position
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			pos := Position{X: x, Y: y}
			if IsCorner(pos) {
				corners = append(corners, pos)
				assert.Nil(t, CellAt(pos))
			} else {
				assert.NotNil(t, CellAt(pos))
			}
		}
	}
	assert.ElementsMatch(t, []Position{
		{X: 4, Y: 4}, {X: 5, Y: 4}, {X: 4, Y: 5}, {X: 5, Y: 5},
	}, corners)
}

func TestLayoutCellsAreValidCards(t *testing.T) {
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			card := CellAt(Position{X: x, Y: y})
			if card == nil {
				continue
			}
			require.True(t, validSuit(card.Suit), "cell (%d,%d)", x, y)
			require.True(t, validRank(card.Rank), "cell (%d,%d)", x, y)
		}
	}
}

func TestSeatColors(t *testing.T) {
	assert.Equal(t, Color("red"), SeatColor(1))
	assert.Equal(t, Color("yellow"), SeatColor(4))
	assert.Equal(t, NoColor, SeatColor(0))
	assert.Equal(t, NoColor, SeatColor(5))
}

func TestChipsJSONRoundTrip(t *testing.T) {
	grid := NewChips(10)
	grid.Set(Position{X: 2, Y: 3}, "red")
	grid.Set(Position{X: 9, Y: 0}, "blue")

	data, err := json.Marshal(grid)
	require.NoError(t, err)

	var back Chips
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, grid, back)
	assert.Equal(t, Color("red"), back.At(Position{X: 2, Y: 3}))
}
