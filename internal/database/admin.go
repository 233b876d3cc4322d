package database

import (
	"database/sql"
	"fmt"
	"time"
)

type AdminStats struct {
	TotalUsers     int `json:"total_users"`
	TotalWorkouts  int `json:"total_workouts"`
	TotalResults   int `json:"total_results"`
	ActiveAthletes int `json:"active_athletes"`
}

type UserWithStats struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	JoinedAt    time.Time    `json:"joined_at"`
	ResultCount int          `json:"result_count"`
	LastResult  sql.NullTime `json:"-"`
}

func createSystemSettingsTable(db *sql.DB) error {
	query := `CREATE TABLE IF NOT EXISTS system_settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`

	if _, err := db.Exec(query); err != nil {
		return err
	}

	insertQuery := `INSERT OR IGNORE INTO system_settings (key, value) VALUES ('registration_enabled', 'true')`
	if _, err := db.Exec(insertQuery); err != nil {
		return err
	}

	return nil
}

func GetAdminStats(db *sql.DB) (*AdminStats, error) {
	stats := &AdminStats{}

	err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&stats.TotalUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to get user count: %w", err)
	}

	err = db.QueryRow("SELECT COUNT(*) FROM workouts").Scan(&stats.TotalWorkouts)
	if err != nil {
		return nil, fmt.Errorf("failed to get workout count: %w", err)
	}

	err = db.QueryRow("SELECT COUNT(*) FROM results").Scan(&stats.TotalResults)
	if err != nil {
		return nil, fmt.Errorf("failed to get result count: %w", err)
	}

	// Athletes who logged anything in the last 30 days
	err = db.QueryRow(`
		SELECT COUNT(DISTINCT user_id)
		FROM results
		WHERE date > ?
	`, time.Now().UTC().AddDate(0, 0, -30)).Scan(&stats.ActiveAthletes)
	if err != nil {
		return nil, fmt.Errorf("failed to get active athlete count: %w", err)
	}

	return stats, nil
}

func GetAllUsersWithStats(db *sql.DB) ([]UserWithStats, error) {
	query := `
		SELECT u.id, u.email, u.joined_at, COUNT(r.id), MAX(r.date)
		FROM users u
		LEFT JOIN results r ON u.id = r.user_id
		GROUP BY u.id, u.email, u.joined_at
		ORDER BY u.joined_at ASC
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users with stats: %w", err)
	}
	defer rows.Close()

	var users []UserWithStats
	for rows.Next() {
		var u UserWithStats
		var lastResult sql.NullString
		if err := rows.Scan(&u.ID, &u.Email, &u.JoinedAt, &u.ResultCount, &lastResult); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		// MAX() loses the column's declared type, so the driver hands back text.
		if lastResult.Valid {
			if t, err := parseSQLiteTime(lastResult.String); err == nil {
				u.LastResult = sql.NullTime{Time: t, Valid: true}
			}
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

func IsRegistrationEnabled(db *sql.DB) (bool, error) {
	var value string
	err := db.QueryRow("SELECT value FROM system_settings WHERE key = 'registration_enabled'").Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return true, nil
		}
		return false, fmt.Errorf("failed to query registration setting: %w", err)
	}
	return value == "true", nil
}

func SetRegistrationEnabled(db *sql.DB, enabled bool) error {
	value := "false"
	if enabled {
		value = "true"
	}

	query := `
		INSERT INTO system_settings (key, value) VALUES ('registration_enabled', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := db.Exec(query, value); err != nil {
		return fmt.Errorf("failed to update registration setting: %w", err)
	}
	return nil
}

func parseSQLiteTime(s string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
	} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
