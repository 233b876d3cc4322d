package database

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"spicywod/internal/models"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed movements.yaml
var defaultCatalog []byte

// ErrInvalidMovement is returned for a movement with an empty name or unknown category.
var ErrInvalidMovement = errors.New("invalid movement")

func CreateMovement(db *sql.DB, name string, category models.MovementCategory) (*models.Movement, error) {
	name = strings.TrimSpace(name)
	if name == "" || !category.Valid() {
		return nil, ErrInvalidMovement
	}

	movement := &models.Movement{
		ID:       uuid.NewString(),
		Name:     name,
		Category: category,
	}

	_, err := db.Exec("INSERT INTO movements (id, name, type) VALUES (?, ?, ?)", movement.ID, movement.Name, movement.Category)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("movement %q already exists", name)
		}
		return nil, fmt.Errorf("failed to create movement: %w", err)
	}

	return movement, nil
}

func GetMovements(db *sql.DB) ([]models.Movement, error) {
	rows, err := db.Query("SELECT id, name, type FROM movements ORDER BY name COLLATE NOCASE")
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	movements := []models.Movement{}
	for rows.Next() {
		var m models.Movement
		if err := rows.Scan(&m.ID, &m.Name, &m.Category); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		movements = append(movements, m)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating movements: %w", err)
	}

	return movements, nil
}

// GetMovementByName matches the name case-insensitively and returns the
// workouts that feature the movement.
func GetMovementByName(db *sql.DB, name string) (*models.Movement, []models.Workout, error) {
	movement := &models.Movement{}
	err := db.QueryRow("SELECT id, name, type FROM movements WHERE LOWER(name) = LOWER(?)", strings.TrimSpace(name)).
		Scan(&movement.ID, &movement.Name, &movement.Category)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, fmt.Errorf("movement %w", ErrNotFound)
		}
		return nil, nil, fmt.Errorf("failed to query movement: %w", err)
	}

	query := `
		SELECT ` + workoutColumns + `
		FROM workouts w
		JOIN workout_movements wm ON wm.workout_id = w.id
		WHERE wm.movement_id = ?
		GROUP BY w.id
		ORDER BY w.name COLLATE NOCASE
	`
	workouts, err := queryWorkouts(db, query, movement.ID)
	if err != nil {
		return nil, nil, err
	}

	return movement, workouts, nil
}

// LoadMovementCatalog reads a YAML list of movements from path, or the
// built-in catalog when path is empty.
func LoadMovementCatalog(path string) ([]models.Movement, error) {
	data := defaultCatalog
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read movement catalog: %w", err)
		}
	}

	var movements []models.Movement
	if err := yaml.Unmarshal(data, &movements); err != nil {
		return nil, fmt.Errorf("failed to parse movement catalog: %w", err)
	}

	for i, m := range movements {
		if strings.TrimSpace(m.Name) == "" || !m.Category.Valid() {
			return nil, fmt.Errorf("catalog entry %d: %w", i+1, ErrInvalidMovement)
		}
	}

	return movements, nil
}

// SeedMovements inserts the movements whose names are not taken yet and
// reports how many were added.
func SeedMovements(db *sql.DB, movements []models.Movement) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	added := 0
	for _, m := range movements {
		id := m.ID
		if id == "" {
			id = uuid.NewString()
		}
		result, err := tx.Exec("INSERT OR IGNORE INTO movements (id, name, type) VALUES (?, ?, ?)",
			id, strings.TrimSpace(m.Name), m.Category)
		if err != nil {
			return 0, fmt.Errorf("failed to seed movement %q: %w", m.Name, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to check seeded movement: %w", err)
		}
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return added, nil
}
