package database

import (
	"database/sql"
	"fmt"
	"time"

	"spicywod/internal/models"
	"spicywod/internal/scoring"

	"github.com/google/uuid"
)

// CreateResult stores a validated result and its sets in one transaction. The
// set count must match the workout's rounds.
func CreateResult(db *sql.DB, userID string, workout *models.Workout, nr *scoring.NormalizedResult, date time.Time) (*models.Result, error) {
	if len(nr.Sets) != workout.Rounds() {
		return nil, &scoring.ValidationError{
			Kind:    scoring.MissingRounds,
			Field:   "scores",
			Message: fmt.Sprintf("Expected %d scores, got %d", workout.Rounds(), len(nr.Sets)),
		}
	}

	if date.IsZero() {
		date = time.Now()
	}

	result := &models.Result{
		ID:        uuid.NewString(),
		UserID:    userID,
		WorkoutID: workout.ID,
		Date:      date.UTC(),
		Scale:     nr.Scale,
		Notes:     nr.Notes,
		Capped:    nr.Capped,
		RepsAtCap: nr.RepsAtCap,
		Sets:      make([]models.Set, 0, len(nr.Sets)),
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO results (id, user_id, workout_id, date, type, scale, notes, capped, reps_at_cap)
		VALUES (?, ?, ?, ?, 'wod', ?, ?, ?, ?)
	`
	_, err = tx.Exec(query,
		result.ID,
		result.UserID,
		result.WorkoutID,
		result.Date,
		result.Scale,
		nullableString(result.Notes),
		result.Capped,
		nullableInt(result.RepsAtCap),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create result: %w", err)
	}

	for _, s := range nr.Sets {
		set := models.Set{
			ID:        uuid.NewString(),
			ResultID:  result.ID,
			SetNumber: s.SetNumber,
			Score:     s.Score,
		}
		_, err := tx.Exec(
			"INSERT INTO result_sets (id, result_id, set_number, score) VALUES (?, ?, ?, ?)",
			set.ID, set.ResultID, set.SetNumber, set.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create result set: %w", err)
		}
		result.Sets = append(result.Sets, set)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}

// GetResultsForWorkout returns the user's results for a workout, newest first,
// each with its sets in set order.
func GetResultsForWorkout(db *sql.DB, userID, workoutID string) ([]models.Result, error) {
	query := `
		SELECT r.id, r.user_id, r.workout_id, r.date, r.scale, r.notes, COALESCE(r.capped, FALSE), r.reps_at_cap,
		       s.id, s.set_number, s.score
		FROM results r
		LEFT JOIN result_sets s ON s.result_id = r.id
		WHERE r.user_id = ? AND r.workout_id = ? AND r.type = 'wod'
		ORDER BY r.date DESC, r.id, s.set_number
	`

	rows, err := db.Query(query, userID, workoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	results := []models.Result{}
	index := map[string]int{}
	for rows.Next() {
		var r models.Result
		var notes, setID sql.NullString
		var repsAtCap, setNumber, score sql.NullInt64

		err := rows.Scan(
			&r.ID,
			&r.UserID,
			&r.WorkoutID,
			&r.Date,
			&r.Scale,
			&notes,
			&r.Capped,
			&repsAtCap,
			&setID,
			&setNumber,
			&score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}

		i, seen := index[r.ID]
		if !seen {
			r.Notes = notes.String
			r.RepsAtCap = intPtr(repsAtCap)
			r.Sets = []models.Set{}
			results = append(results, r)
			i = len(results) - 1
			index[r.ID] = i
		}

		if setID.Valid {
			results[i].Sets = append(results[i].Sets, models.Set{
				ID:        setID.String,
				ResultID:  r.ID,
				SetNumber: int(setNumber.Int64),
				Score:     int(score.Int64),
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return results, nil
}

// DeleteResult removes a result owned by userID. Someone else's result is
// reported as not found.
func DeleteResult(db *sql.DB, userID, resultID string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM results WHERE id = ? AND user_id = ?", resultID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check result deletion: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("result %w", ErrNotFound)
	}

	// Cascades only fire with foreign keys enabled on the connection.
	if _, err := tx.Exec("DELETE FROM result_sets WHERE result_id = ?", resultID); err != nil {
		return fmt.Errorf("failed to delete result sets: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
