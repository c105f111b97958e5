package analysis

import "math"

// CalculateLegitimacyScore is a heuristic score from indicator counts. It
// starts at 5, gains half a point per positive indicator up to 3, loses half
// a point per red flag and 2 per critical flag, then clamps to [1, 10].
func CalculateLegitimacyScore(positive, redFlags, critical int) int {
	positive = max(positive, 0)
	redFlags = max(redFlags, 0)
	critical = max(critical, 0)

	score := 5.0
	score += math.Min(float64(positive)*0.5, 3)
	score -= float64(redFlags) * 0.5
	score -= float64(critical) * 2
	return clampScore(score)
}
