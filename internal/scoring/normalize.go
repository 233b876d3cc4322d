package scoring

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	maxNotesLength = 2000

	// MaxScore bounds every stored score and every product or sum that
	// produces one.
	MaxScore = math.MaxInt32
)

// Set is one numbered sub-result. SetNumber is 1-indexed and follows
// submission order.
type Set struct {
	SetNumber int `json:"setNumber"`
	Score     int `json:"score"`
}

type NormalizedResult struct {
	Scale Scale  `json:"scale"`
	Notes string `json:"notes,omitempty"`
	Sets  []Set  `json:"sets"`

	// Capped and RepsAtCap only apply to time-with-cap and are stored next to
	// the score, never folded into it.
	Capped    bool `json:"capped,omitempty"`
	RepsAtCap *int `json:"repsAtCap,omitempty"`
}

// ValidateResultInput checks raw submitted data against a workout's scheme and
// round count and returns the normalized result. roundsToScore <= 0 means 1.
// A missing scale defaults to rx.
func ValidateResultInput(scheme Scheme, roundsToScore int, raw Input) (*NormalizedResult, error) {
	if !scheme.Valid() {
		return nil, invalidValue("scheme", fmt.Sprintf("Unknown scoring scheme %q", scheme))
	}
	if roundsToScore <= 0 {
		roundsToScore = 1
	}

	entries, err := raw.entries(scheme)
	if err != nil {
		return nil, err
	}
	if len(entries) != roundsToScore {
		return nil, &ValidationError{
			Kind:    MissingRounds,
			Field:   fieldScores,
			Message: fmt.Sprintf("Expected %d %s, got %d", roundsToScore, plural(roundsToScore, "score", "scores"), len(entries)),
		}
	}

	result := &NormalizedResult{Sets: make([]Set, 0, len(entries))}
	for i, entry := range entries {
		score, err := NormalizeScore(scheme, entry)
		if err != nil {
			return nil, withField(err, fmt.Sprintf("scores[%d]", i))
		}
		result.Sets = append(result.Sets, Set{SetNumber: i + 1, Score: score})
	}

	if scheme == SchemeTimeWithCap {
		if result.Capped, err = parseFlag(raw.Get(fieldCapped)); err != nil {
			return nil, withField(err, fieldCapped)
		}
		if raw.Has(fieldRepsAtCap) {
			reps, err := nonNegative(raw.Get(fieldRepsAtCap))
			if err != nil {
				return nil, withField(err, fieldRepsAtCap)
			}
			result.RepsAtCap = &reps
		}
	}

	result.Scale = ScaleRx
	if raw.Has(fieldScale) {
		if result.Scale, err = ParseScale(raw.Get(fieldScale)); err != nil {
			return nil, err
		}
	}

	result.Notes = raw.Get(fieldNotes)
	if len(result.Notes) > maxNotesLength {
		return nil, invalidValue(fieldNotes, fmt.Sprintf("Notes must be at most %d characters", maxNotesLength))
	}

	return result, nil
}

// NormalizeScore turns one round's raw entry into its stored integer score.
func NormalizeScore(scheme Scheme, entry RawEntry) (int, error) {
	info, ok := schemes[scheme]
	if !ok {
		return 0, invalidValue("scheme", fmt.Sprintf("Unknown scoring scheme %q", scheme))
	}

	switch info.shape {
	case shapeTime:
		_, hasMin := entry[fieldMinutes]
		_, hasSec := entry[fieldSeconds]
		if !hasMin && !hasSec {
			return 0, schemeMismatch("", "Time scores need minutes and seconds")
		}
		minutes, err := nonNegative(entry[fieldMinutes])
		if err != nil {
			return 0, withField(err, fieldMinutes)
		}
		seconds, err := nonNegative(entry[fieldSeconds])
		if err != nil {
			return 0, withField(err, fieldSeconds)
		}
		if minutes > (MaxScore-seconds)/60 {
			return 0, withField(tooLarge(), fieldMinutes)
		}
		return minutes*60 + seconds, nil

	case shapePassFail:
		v, ok := entry[fieldScore]
		if !ok {
			return 0, schemeMismatch("", "Pass/fail scores need a single pass or fail value")
		}
		switch strings.TrimSpace(v) {
		case "1":
			return 1, nil
		case "0":
			return 0, nil
		}
		return 0, &ValidationError{Kind: InvalidValue, Message: "Must be pass (1) or fail (0)"}

	case shapeRoundsReps:
		if _, ok := entry[fieldRounds]; !ok {
			return 0, schemeMismatch("", "Rounds + reps scores need rounds and reps per round")
		}
		rounds, err := positive(entry[fieldRounds])
		if err != nil {
			return 0, withField(err, fieldRounds)
		}
		reps, err := positive(entry[fieldRepsPerRound])
		if err != nil {
			return 0, withField(err, fieldRepsPerRound)
		}
		if rounds > MaxScore/reps {
			return 0, withField(tooLarge(), fieldRounds)
		}
		return rounds * reps, nil

	default:
		v, ok := entry[fieldScore]
		if !ok {
			return 0, schemeMismatch("", fmt.Sprintf("%s scores need a single number", info.label))
		}
		return nonNegative(v)
	}
}

func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &ValidationError{Kind: InvalidValue, Message: "Required"}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ValidationError{Kind: InvalidValue, Message: "Must be a whole number"}
	}
	return n, nil
}

func nonNegative(s string) (int, error) {
	n, err := parseInt(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, &ValidationError{Kind: InvalidValue, Message: "Must not be negative"}
	}
	if n > MaxScore {
		return 0, tooLarge()
	}
	return n, nil
}

func positive(s string) (int, error) {
	n, err := parseInt(s)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, &ValidationError{Kind: InvalidValue, Message: "Must be at least 1"}
	}
	if n > MaxScore {
		return 0, tooLarge()
	}
	return n, nil
}

func parseFlag(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "0", "false", "off":
		return false, nil
	case "1", "true", "on":
		return true, nil
	}
	return false, &ValidationError{Kind: InvalidValue, Message: "Must be true or false"}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func tooLarge() error {
	return &ValidationError{Kind: InvalidValue, Message: fmt.Sprintf("Must be at most %d", MaxScore)}
}
