package game

// ValidatePlacement reports whether color may play card at pos. It never
// mutates the grid; callers apply the move (place a chip, or remove the
// opponent's chip when card is one-eyed) after a true result.
//
// A placement is legal iff one of:
//   - pos is a corner free space (always a valid target);
//   - card is a two-eyed Jack and the cell is empty;
//   - card is a one-eyed Jack and the cell holds an opponent's chip;
//   - the cell's printed card matches card exactly and the cell is empty.
func ValidatePlacement(chips Chips, color Color, card Card, pos Position, cfg Config) bool {
	if !pos.In(cfg.BoardSize) {
		return false
	}
	if IsCorner(pos) {
		return true
	}

	occupant := chips.At(pos)

	if card.OneEyed() {
		return occupant != NoColor && occupant != color
	}
	if occupant != NoColor {
		return false
	}
	if card.TwoEyed() {
		return true
	}
	return *CellAt(pos) == card
}
