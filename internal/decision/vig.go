package decision

// RemoveVig strips the bookmaker overround from a two-way market by
// equal-margin normalization: the overround is assumed to be split evenly
// across both sides, so half of it is subtracted from each raw implied
// probability.
func RemoveVig(rawA, rawB float64) (fairA, fairB float64) {
	over := rawA + rawB - 1.0
	if over <= 0 {
		return rawA, rawB
	}
	fairA = rawA - over/2
	fairB = rawB - over/2
	if fairA < 0 {
		fairA = 0
	}
	if fairB < 0 {
		fairB = 0
	}
	return fairA, fairB
}
