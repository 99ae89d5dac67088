package game

// scanDirections are the four axes checked for sequences: horizontal, vertical
// and the two diagonals. Runs are counted from every starting cell, so a single
// direction per axis suffices.
var scanDirections = [4][2]int{
	{1, 0},
	{0, 1},
	{1, 1},
	{1, -1},
}

// CheckWin reports whether color owns a contiguous run of cfg.SequenceLength
// cells along any axis. Corner free spaces count for every color. Pure function
// of the grid; overlapping sequences each count on their own.
func CheckWin(chips Chips, color Color, cfg Config) bool {
	return WinningRun(chips, color, cfg) != nil
}

// WinningRun returns the positions of the first completed sequence found for
// color, or nil if there is none.
func WinningRun(chips Chips, color Color, cfg Config) []Position {
	for y := 0; y < cfg.BoardSize; y++ {
		for x := 0; x < cfg.BoardSize; x++ {
			for _, dir := range scanDirections {
				if run := runFrom(chips, color, Position{X: x, Y: y}, dir, cfg); run != nil {
					return run
				}
			}
		}
	}
	return nil
}

func runFrom(chips Chips, color Color, start Position, dir [2]int, cfg Config) []Position {
	run := make([]Position, 0, cfg.SequenceLength)
	pos := start
	for i := 0; i < cfg.SequenceLength; i++ {
		if !pos.In(cfg.BoardSize) {
			return nil
		}
		if !IsCorner(pos) && chips.At(pos) != color {
			return nil
		}
		run = append(run, pos)
		pos.X += dir[0]
		pos.Y += dir[1]
	}
	return run
}
