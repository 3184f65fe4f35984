package crowd

// DefaultMatchFraction is the share of a cluster's members that must have a
// counterpart closer than the distance threshold for two clusters to match.
const DefaultMatchFraction = 0.7

// Similar reports whether clusters a and b plausibly show the same crowd:
// equal cardinality and at least 70% of a's points with a nearest point in b
// closer than distanceThreshold. The test is nearest-neighbour based, not a
// bijection, and is not symmetric in general.
func Similar(a, b []Point, distanceThreshold float64) bool {
	return SimilarWithFraction(a, b, distanceThreshold, DefaultMatchFraction)
}

// SimilarWithFraction is Similar with a configurable match fraction.
func SimilarWithFraction(a, b []Point, distanceThreshold, fraction float64) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	matched := closeCount(a, b, distanceThreshold)
	return float64(matched) >= float64(len(a))*fraction
}

// SimilarityScore returns the fraction of a's points whose nearest point in
// b is closer than distanceThreshold, or 0 when the cardinalities differ.
func SimilarityScore(a, b []Point, distanceThreshold float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	return float64(closeCount(a, b, distanceThreshold)) / float64(len(a))
}

func closeCount(a, b []Point, distanceThreshold float64) int {
	count := 0
	for _, d := range nearestDistances(a, b) {
		if d < distanceThreshold {
			count++
		}
	}
	return count
}
