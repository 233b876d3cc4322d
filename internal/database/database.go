package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// ErrNotFound is wrapped by every lookup that matches no row.
var ErrNotFound = errors.New("not found")

func Initialize(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func Migrate(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			hashed_password TEXT NOT NULL,
			password_salt TEXT NOT NULL,
			password_reset_token TEXT,
			password_reset_expires DATETIME,
			joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS movements (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL CHECK (type IN ('strength', 'gymnastic', 'monostructural'))
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_movements_name ON movements(name COLLATE NOCASE)`,
		`CREATE TABLE IF NOT EXISTS workouts (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			name TEXT NOT NULL,
			description TEXT NOT NULL,
			scheme TEXT NOT NULL,
			reps_per_round INTEGER,
			rounds_to_score INTEGER DEFAULT 1,
			tiebreak_scheme TEXT,
			secondary_scheme TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE SET NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_workouts_name ON workouts(name COLLATE NOCASE)`,
		`CREATE INDEX IF NOT EXISTS idx_workouts_scheme ON workouts(scheme)`,
		`CREATE TABLE IF NOT EXISTS workout_movements (
			id TEXT PRIMARY KEY,
			workout_id TEXT NOT NULL,
			movement_id TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (workout_id) REFERENCES workouts(id) ON DELETE CASCADE,
			FOREIGN KEY (movement_id) REFERENCES movements(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workout_movements_workout_id ON workout_movements(workout_id)`,
		`CREATE INDEX IF NOT EXISTS idx_workout_movements_movement_id ON workout_movements(movement_id)`,
		`CREATE TABLE IF NOT EXISTS results (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			workout_id TEXT NOT NULL,
			date DATETIME NOT NULL,
			type TEXT NOT NULL DEFAULT 'wod',
			scale TEXT NOT NULL CHECK (scale IN ('rx', 'scaled', 'rx+')),
			notes TEXT,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY (workout_id) REFERENCES workouts(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_user_workout ON results(user_id, workout_id)`,
		`CREATE TABLE IF NOT EXISTS result_sets (
			id TEXT PRIMARY KEY,
			result_id TEXT NOT NULL,
			set_number INTEGER NOT NULL,
			score INTEGER NOT NULL,
			FOREIGN KEY (result_id) REFERENCES results(id) ON DELETE CASCADE,
			UNIQUE(result_id, set_number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_result_sets_result_id ON result_sets(result_id)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	// Columns added after the first release.
	if err := addColumnIfMissing(db, "workouts", "time_cap", "INTEGER"); err != nil {
		return fmt.Errorf("failed to add time_cap column to workouts: %w", err)
	}
	if err := addColumnIfMissing(db, "results", "capped", "BOOLEAN DEFAULT FALSE"); err != nil {
		return fmt.Errorf("failed to add capped column to results: %w", err)
	}
	if err := addColumnIfMissing(db, "results", "reps_at_cap", "INTEGER"); err != nil {
		return fmt.Errorf("failed to add reps_at_cap column to results: %w", err)
	}

	if err := createSystemSettingsTable(db); err != nil {
		return fmt.Errorf("failed to create system_settings table: %w", err)
	}

	return nil
}

func addColumnIfMissing(db *sql.DB, table, column, definition string) error {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return err
	}

	found := false
	for rows.Next() {
		var cid int
		var name, dataType string
		var notNull, dfltValue, pk interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dfltValue, &pk); err != nil {
			rows.Close()
			return err
		}
		if name == column {
			found = true
			break
		}
	}
	rows.Close()

	if found {
		return nil
	}

	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
