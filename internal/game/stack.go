package game

// BuildTop is the rank that completes a build pile in the stack variant. A
// completed pile is swept into the discard-bottom pile.
const BuildTop = 12

// StackPlayable reports whether a card of the given rank may be played onto a
// build pile whose current height is height (0 for an empty pile). Build piles
// ascend 1 through 12; a wild card stands in for whatever rank is required.
func StackPlayable(height, rank int) bool {
	if height >= BuildTop {
		return false
	}
	return rank == WildRank || rank == height+1
}
