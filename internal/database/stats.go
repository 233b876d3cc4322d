package database

import (
	"database/sql"
	"fmt"
	"time"
)

type UserStats struct {
	WorkoutsCreated   int        `json:"workouts_created"`
	ResultsLogged     int        `json:"results_logged"`
	WorkoutsAttempted int        `json:"workouts_attempted"`
	RxResults         int        `json:"rx_results"`
	LastResultAt      *time.Time `json:"last_result_at,omitempty"`
}

type RecentResult struct {
	ID          string    `json:"id"`
	WorkoutID   string    `json:"workout_id"`
	WorkoutName string    `json:"workout_name"`
	Scheme      string    `json:"scheme"`
	Scale       string    `json:"scale"`
	Date        time.Time `json:"date"`
}

func GetUserStats(db *sql.DB, userID string) (*UserStats, error) {
	stats := &UserStats{}

	err := db.QueryRow("SELECT COUNT(*) FROM workouts WHERE user_id = ?", userID).Scan(&stats.WorkoutsCreated)
	if err != nil {
		return nil, fmt.Errorf("failed to get workout count: %w", err)
	}

	err = db.QueryRow("SELECT COUNT(*), COUNT(DISTINCT workout_id) FROM results WHERE user_id = ?", userID).
		Scan(&stats.ResultsLogged, &stats.WorkoutsAttempted)
	if err != nil {
		return nil, fmt.Errorf("failed to get result count: %w", err)
	}

	err = db.QueryRow("SELECT COUNT(*) FROM results WHERE user_id = ? AND scale IN ('rx', 'rx+')", userID).Scan(&stats.RxResults)
	if err != nil {
		return nil, fmt.Errorf("failed to get rx result count: %w", err)
	}

	var last sql.NullTime
	err = db.QueryRow("SELECT date FROM results WHERE user_id = ? ORDER BY date DESC LIMIT 1", userID).Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get last result date: %w", err)
	}
	if last.Valid {
		stats.LastResultAt = &last.Time
	}

	return stats, nil
}

func GetRecentResults(db *sql.DB, userID string, limit int) ([]RecentResult, error) {
	query := `
		SELECT r.id, r.workout_id, w.name, w.scheme, r.scale, r.date
		FROM results r
		JOIN workouts w ON w.id = r.workout_id
		WHERE r.user_id = ?
		ORDER BY r.date DESC
		LIMIT ?
	`

	rows, err := db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent results: %w", err)
	}
	defer rows.Close()

	results := []RecentResult{}
	for rows.Next() {
		var r RecentResult
		if err := rows.Scan(&r.ID, &r.WorkoutID, &r.WorkoutName, &r.Scheme, &r.Scale, &r.Date); err != nil {
			return nil, fmt.Errorf("failed to scan recent result: %w", err)
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recent results: %w", err)
	}

	return results, nil
}
