package models

import (
	"time"

	"spicywod/internal/scoring"
)

type User struct {
	ID                   string     `json:"id" db:"id"`
	Email                string     `json:"email" db:"email"`
	HashedPassword       string     `json:"-" db:"hashed_password"`
	PasswordSalt         string     `json:"-" db:"password_salt"`
	PasswordResetToken   *string    `json:"-" db:"password_reset_token"`
	PasswordResetExpires *time.Time `json:"-" db:"password_reset_expires"`
	JoinedAt             time.Time  `json:"joined_at" db:"joined_at"`
}

type MovementCategory string

const (
	CategoryStrength       MovementCategory = "strength"
	CategoryGymnastic      MovementCategory = "gymnastic"
	CategoryMonostructural MovementCategory = "monostructural"
)

func (c MovementCategory) Valid() bool {
	switch c {
	case CategoryStrength, CategoryGymnastic, CategoryMonostructural:
		return true
	}
	return false
}

type Movement struct {
	ID       string           `json:"id" db:"id" yaml:"id"`
	Name     string           `json:"name" db:"name" yaml:"name"`
	Category MovementCategory `json:"category" db:"type" yaml:"category"`
}

type Workout struct {
	ID              string                  `json:"id" db:"id"`
	UserID          string                  `json:"user_id,omitempty" db:"user_id"`
	Name            string                  `json:"name" db:"name"`
	Description     string                  `json:"description" db:"description"`
	Scheme          scoring.Scheme          `json:"scheme" db:"scheme"`
	RepsPerRound    *int                    `json:"reps_per_round,omitempty" db:"reps_per_round"`
	RoundsToScore   *int                    `json:"rounds_to_score,omitempty" db:"rounds_to_score"`
	TimeCap         *int                    `json:"time_cap,omitempty" db:"time_cap"`
	TiebreakScheme  *scoring.TiebreakScheme `json:"tiebreak_scheme,omitempty" db:"tiebreak_scheme"`
	SecondaryScheme *scoring.Scheme         `json:"secondary_scheme,omitempty" db:"secondary_scheme"`
	CreatedAt       time.Time               `json:"created_at" db:"created_at"`
	Movements       []Movement              `json:"movements"`
}

// Rounds is the number of sets a result for this workout must carry.
func (w *Workout) Rounds() int {
	if w.RoundsToScore == nil || *w.RoundsToScore < 1 {
		return 1
	}
	return *w.RoundsToScore
}

type Set struct {
	ID        string `json:"id" db:"id"`
	ResultID  string `json:"result_id" db:"result_id"`
	SetNumber int    `json:"set_number" db:"set_number"`
	Score     int    `json:"score" db:"score"`
}

type Result struct {
	ID        string        `json:"id" db:"id"`
	UserID    string        `json:"user_id" db:"user_id"`
	WorkoutID string        `json:"workout_id" db:"workout_id"`
	Date      time.Time     `json:"date" db:"date"`
	Scale     scoring.Scale `json:"scale" db:"scale"`
	Notes     string        `json:"notes,omitempty" db:"notes"`
	Capped    bool          `json:"capped,omitempty" db:"capped"`
	RepsAtCap *int          `json:"reps_at_cap,omitempty" db:"reps_at_cap"`
	Sets      []Set         `json:"sets"`
}

// Session is the record kept in the key/value store. Times are unix seconds.
type Session struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	CreatedAt int64  `json:"createdAt"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Expired reports whether now is past the session's expiry.
func (s *Session) Expired(now time.Time) bool {
	return now.Unix() > s.ExpiresAt
}
