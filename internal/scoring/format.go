package scoring

import (
	"fmt"
	"strconv"
)

// FormatScore renders a stored score the way the workout's scheme reads.
func FormatScore(scheme Scheme, score int) string {
	info, ok := schemes[scheme]
	if !ok {
		return strconv.Itoa(score)
	}

	switch info.shape {
	case shapeTime:
		return FormatDuration(score)
	case shapePassFail:
		if score == 1 {
			return "Pass"
		}
		return "Fail"
	default:
		return fmt.Sprintf("%d %s", score, info.unit)
	}
}

// FormatDuration renders seconds as M:SS.
func FormatDuration(seconds int) string {
	sign := ""
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	return fmt.Sprintf("%s%d:%02d", sign, seconds/60, seconds%60)
}

// Better reports whether a beats b under the scheme's direction.
func Better(scheme Scheme, a, b int) bool {
	if scheme.BetterIs() == LowerIsBetter {
		return a < b
	}
	return a > b
}

// Best returns the winning score among scores. It reports false for an empty slice.
func Best(scheme Scheme, scores []int) (int, bool) {
	if len(scores) == 0 {
		return 0, false
	}
	best := scores[0]
	for _, s := range scores[1:] {
		if Better(scheme, s, best) {
			best = s
		}
	}
	return best, true
}
