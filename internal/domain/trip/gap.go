package trip

// GapClass classifies the odometer gap between a trip and its predecessor.
type GapClass string

const (
	GapNegative     GapClass = "negative"
	GapPerfect      GapClass = "perfect"
	GapAcceptable   GapClass = "acceptable"
	GapModerate     GapClass = "moderate"
	GapLarge        GapClass = "large"
	GapFirstTrip    GapClass = "first_trip"
	GapNotEvaluated GapClass = "not_evaluated"
)

const (
	AcceptableGapKm = 10.0
	ModerateGapKm   = 50.0
)

func ClassifyGap(gap float64) GapClass {
	switch {
	case gap < 0:
		return GapNegative
	case gap == 0:
		return GapPerfect
	case gap <= AcceptableGapKm:
		return GapAcceptable
	case gap <= ModerateGapKm:
		return GapModerate
	default:
		return GapLarge
	}
}

// NeedsReview reports whether the class should be surfaced to a human.
func (g GapClass) NeedsReview() bool {
	return g == GapModerate || g == GapLarge
}
