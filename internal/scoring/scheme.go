// Package scoring maps a workout's scoring scheme to the shape of a valid
// result, normalizes raw input into integer scores and formats them back for
// display.
package scoring

import "fmt"

type Scheme string

const (
	SchemeTime        Scheme = "time"
	SchemeTimeWithCap Scheme = "time-with-cap"
	SchemePassFail    Scheme = "pass-fail"
	SchemeRoundsReps  Scheme = "rounds-reps"
	SchemeReps        Scheme = "reps"
	SchemeEMOM        Scheme = "emom"
	SchemeLoad        Scheme = "load"
	SchemeCalories    Scheme = "calories"
	SchemeMeters      Scheme = "meters"
	SchemeFeet        Scheme = "feet"
	SchemePoints      Scheme = "points"
)

// Direction says which end of the integer range wins for a scheme.
type Direction int

const (
	HigherIsBetter Direction = iota
	LowerIsBetter
)

func (d Direction) String() string {
	if d == LowerIsBetter {
		return "min"
	}
	return "max"
}

type shape int

const (
	shapeSingle shape = iota
	shapeTime
	shapePassFail
	shapeRoundsReps
)

type schemeInfo struct {
	label  string
	unit   string
	better Direction
	shape  shape
}

var schemes = map[Scheme]schemeInfo{
	SchemeTime:        {label: "Time", better: LowerIsBetter, shape: shapeTime},
	SchemeTimeWithCap: {label: "Time (capped)", better: LowerIsBetter, shape: shapeTime},
	SchemePassFail:    {label: "Pass/Fail", better: HigherIsBetter, shape: shapePassFail},
	SchemeRoundsReps:  {label: "Rounds + Reps", unit: "reps", better: HigherIsBetter, shape: shapeRoundsReps},
	SchemeReps:        {label: "Repetitions", unit: "reps", better: HigherIsBetter},
	SchemeEMOM:        {label: "EMOM Rounds", unit: "rounds", better: HigherIsBetter},
	SchemeLoad:        {label: "Load (lbs)", unit: "lbs", better: HigherIsBetter},
	SchemeCalories:    {label: "Calories", unit: "cal", better: HigherIsBetter},
	SchemeMeters:      {label: "Meters", unit: "m", better: HigherIsBetter},
	SchemeFeet:        {label: "Feet", unit: "ft", better: HigherIsBetter},
	SchemePoints:      {label: "Points", unit: "pts", better: HigherIsBetter},
}

// Schemes lists every supported scheme in display order.
var Schemes = []Scheme{
	SchemeTime,
	SchemeTimeWithCap,
	SchemePassFail,
	SchemeRoundsReps,
	SchemeReps,
	SchemeEMOM,
	SchemeLoad,
	SchemeCalories,
	SchemeMeters,
	SchemeFeet,
	SchemePoints,
}

func ParseScheme(s string) (Scheme, error) {
	scheme := Scheme(s)
	if !scheme.Valid() {
		return "", invalidValue("scheme", fmt.Sprintf("Unknown scoring scheme %q", s))
	}
	return scheme, nil
}

func (s Scheme) Valid() bool {
	_, ok := schemes[s]
	return ok
}

// IsTimed reports whether scores for s are elapsed seconds.
func (s Scheme) IsTimed() bool {
	return schemes[s].shape == shapeTime
}

func (s Scheme) Label() string {
	if info, ok := schemes[s]; ok {
		return info.label
	}
	return string(s)
}

func (s Scheme) Unit() string {
	return schemes[s].unit
}

func (s Scheme) BetterIs() Direction {
	return schemes[s].better
}

// ValidSecondary reports whether s may be used as a workout's secondary scheme.
func (s Scheme) ValidSecondary() bool {
	return s.Valid() && s != SchemeTimeWithCap
}

type TiebreakScheme string

const (
	TiebreakTime TiebreakScheme = "time"
	TiebreakReps TiebreakScheme = "reps"
)

func ParseTiebreakScheme(s string) (TiebreakScheme, error) {
	switch TiebreakScheme(s) {
	case TiebreakTime, TiebreakReps:
		return TiebreakScheme(s), nil
	}
	return "", invalidValue("tiebreakScheme", fmt.Sprintf("Unknown tiebreak scheme %q", s))
}

type Scale string

const (
	ScaleRx     Scale = "rx"
	ScaleScaled Scale = "scaled"
	ScaleRxPlus Scale = "rx+"
)

func ParseScale(s string) (Scale, error) {
	switch Scale(s) {
	case ScaleRx, ScaleScaled, ScaleRxPlus:
		return Scale(s), nil
	}
	return "", invalidValue("scale", "Scale must be one of rx, scaled or rx+")
}
