package game

import (
	"fmt"
	"strings"
)

// Position is a cell on the board. X is the column, Y the row.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Position) In(size int) bool {
	return p.X >= 0 && p.X < size && p.Y >= 0 && p.Y < size
}

// Config holds the board geometry. The scan and validation logic read these
// rather than literals so the constants can change in one place.
type Config struct {
	BoardSize      int
	SequenceLength int
}

func DefaultConfig() Config {
	return Config{BoardSize: 10, SequenceLength: 5}
}

// layoutRows is the printed card at each cell, row by row. "--" marks the four
// free-space cells in the center of the board.
var layoutRows = [10]string{
	"h2  h3  h4  h5  h6  h7  h8  h9  h10 hJ",
	"d6  d5  d4  d3  d2  hQ  hK  hA  c2  c3",
	"d7  sA  sK  sQ  sJ  s10 s9  cA  c4  c5",
	"d8  s2  dK  dQ  dJ  d10 s8  cK  c6  c7",
	"d9  s3  dA  hA  --  --  s7  cQ  c8  c9",
	"d10 s4  hK  hQ  --  --  s6  cJ  c9  c10",
	"dJ  s5  hJ  h10 h9  sA  s5  c10 cJ  cQ",
	"dQ  s6  h8  h7  h6  h5  s4  c9  cK  cK",
	"dK  s7  h5  h4  h3  h2  s3  c8  cA  cA",
	"dA  s8  s9  s10 sJ  sQ  s2  c7  c6  c5",
}

// Layout is the fixed board: Layout[y][x] is the card printed at that cell, or
// nil for a corner free space. Built once at startup.
var Layout = parseLayout()

func parseLayout() [10][10]*Card {
	suits := map[byte]Suit{'h': Hearts, 'd': Diamonds, 'c': Clubs, 's': Spades}

	var layout [10][10]*Card
	for y, row := range layoutRows {
		cells := strings.Fields(row)
		if len(cells) != 10 {
			panic(fmt.Sprintf("board row %d has %d cells", y, len(cells)))
		}
		for x, cell := range cells {
			if cell == "--" {
				continue
			}
			suit, ok := suits[cell[0]]
			if !ok {
				panic(fmt.Sprintf("board cell %q at (%d,%d)", cell, x, y))
			}
			card := Card{Suit: suit, Rank: Rank(cell[1:])}
			if !validRank(card.Rank) {
				panic(fmt.Sprintf("board cell %q at (%d,%d)", cell, x, y))
			}
			layout[y][x] = &card
		}
	}
	return layout
}

// CellAt returns the printed card at pos, or nil for a corner.
func CellAt(pos Position) *Card {
	return Layout[pos.Y][pos.X]
}

// IsCorner reports whether pos is one of the four free-space cells.
func IsCorner(pos Position) bool {
	return Layout[pos.Y][pos.X] == nil
}

// Color is a player's chip color, assigned by seat.
type Color string

const NoColor Color = ""

var SeatColors = []Color{"red", "blue", "green", "yellow"}

func SeatColor(seat int) Color {
	if seat < 1 || seat > len(SeatColors) {
		return NoColor
	}
	return SeatColors[seat-1]
}

// Chips is the chip occupancy grid, indexed [y][x]. The empty string means no
// chip. Serialized as-is into games.board_state.
type Chips [][]Color

func NewChips(size int) Chips {
	grid := make(Chips, size)
	for y := range grid {
		grid[y] = make([]Color, size)
	}
	return grid
}

func (c Chips) At(pos Position) Color {
	return c[pos.Y][pos.X]
}

func (c Chips) Set(pos Position, color Color) {
	c[pos.Y][pos.X] = color
}
