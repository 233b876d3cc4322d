package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"spicywod/internal/models"
	"spicywod/internal/scoring"

	"github.com/google/uuid"
)

// ErrDuplicateWorkoutName is returned when another workout already uses the name, ignoring case.
var ErrDuplicateWorkoutName = errors.New("a workout with this name already exists")

// MissingMovementsError lists movement ids that do not exist.
type MissingMovementsError struct {
	IDs []string
}

func (e *MissingMovementsError) Error() string {
	return "unknown movements: " + strings.Join(e.IDs, ", ")
}

// WorkoutInput holds the editable fields of a workout. Movement order is kept.
type WorkoutInput struct {
	Name            string
	Description     string
	Scheme          scoring.Scheme
	RepsPerRound    *int
	RoundsToScore   *int
	TimeCap         *int
	TiebreakScheme  *scoring.TiebreakScheme
	SecondaryScheme *scoring.Scheme
	MovementIDs     []string
}

type WorkoutFilter struct {
	Name   string
	Scheme string
	// Movements are ids or names; a workout must feature all of them.
	Movements []string
}

const workoutColumns = `w.id, w.user_id, w.name, w.description, w.scheme, w.reps_per_round,
	w.rounds_to_score, w.time_cap, w.tiebreak_scheme, w.secondary_scheme, w.created_at`

func CreateWorkout(db *sql.DB, userID string, in WorkoutInput) (*models.Workout, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	movementIDs, err := verifyMovements(tx, in.MovementIDs)
	if err != nil {
		return nil, err
	}

	workoutID := uuid.NewString()
	query := `
		INSERT INTO workouts (id, user_id, name, description, scheme, reps_per_round, rounds_to_score,
			time_cap, tiebreak_scheme, secondary_scheme, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`
	_, err = tx.Exec(query,
		workoutID,
		userID,
		strings.TrimSpace(in.Name),
		strings.TrimSpace(in.Description),
		in.Scheme,
		nullableInt(in.RepsPerRound),
		roundsOrDefault(in.RoundsToScore),
		nullableInt(in.TimeCap),
		nullableTiebreak(in.TiebreakScheme),
		nullableScheme(in.SecondaryScheme),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateWorkoutName
		}
		return nil, fmt.Errorf("failed to create workout: %w", err)
	}

	if err := insertWorkoutMovements(tx, workoutID, movementIDs); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return GetWorkoutByIDOrName(db, workoutID)
}

// UpdateWorkout rewrites a workout owned by userID and replaces its movement
// list. Workouts owned by someone else are reported as not found.
func UpdateWorkout(db *sql.DB, userID, workoutID string, in WorkoutInput) (*models.Workout, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	movementIDs, err := verifyMovements(tx, in.MovementIDs)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE workouts
		SET name = ?, description = ?, scheme = ?, reps_per_round = ?, rounds_to_score = ?,
			time_cap = ?, tiebreak_scheme = ?, secondary_scheme = ?
		WHERE id = ? AND user_id = ?
	`
	result, err := tx.Exec(query,
		strings.TrimSpace(in.Name),
		strings.TrimSpace(in.Description),
		in.Scheme,
		nullableInt(in.RepsPerRound),
		roundsOrDefault(in.RoundsToScore),
		nullableInt(in.TimeCap),
		nullableTiebreak(in.TiebreakScheme),
		nullableScheme(in.SecondaryScheme),
		workoutID,
		userID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateWorkoutName
		}
		return nil, fmt.Errorf("failed to update workout: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check workout update: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("workout %w", ErrNotFound)
	}

	if _, err := tx.Exec("DELETE FROM workout_movements WHERE workout_id = ?", workoutID); err != nil {
		return nil, fmt.Errorf("failed to clear workout movements: %w", err)
	}

	if err := insertWorkoutMovements(tx, workoutID, movementIDs); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return GetWorkoutByIDOrName(db, workoutID)
}

// GetWorkoutByIDOrName looks a workout up by id or, failing that, by name
// ignoring case.
func GetWorkoutByIDOrName(db *sql.DB, idOrName string) (*models.Workout, error) {
	query := `
		SELECT ` + workoutColumns + `
		FROM workouts w
		WHERE w.id = ? OR LOWER(w.name) = LOWER(?)
		ORDER BY w.id = ? DESC
		LIMIT 1
	`
	idOrName = strings.TrimSpace(idOrName)
	workouts, err := queryWorkouts(db, query, idOrName, idOrName, idOrName)
	if err != nil {
		return nil, err
	}
	if len(workouts) == 0 {
		return nil, fmt.Errorf("workout %w", ErrNotFound)
	}

	return &workouts[0], nil
}

func ListWorkouts(db *sql.DB, filter WorkoutFilter) ([]models.Workout, error) {
	var conditions []string
	var args []interface{}

	if name := strings.TrimSpace(filter.Name); name != "" {
		conditions = append(conditions, "LOWER(w.name) LIKE ?")
		args = append(args, "%"+strings.ToLower(name)+"%")
	}

	if scheme := strings.TrimSpace(filter.Scheme); scheme != "" && scheme != "all" {
		conditions = append(conditions, "w.scheme = ?")
		args = append(args, scheme)
	}

	if terms := dedupe(filter.Movements); len(terms) > 0 {
		movementIDs, ok, err := resolveMovementIDs(db, terms)
		if err != nil {
			return nil, err
		}
		if !ok {
			return []models.Workout{}, nil
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(movementIDs)), ", ")
		conditions = append(conditions, `w.id IN (
			SELECT workout_id
			FROM workout_movements
			WHERE movement_id IN (`+placeholders+`)
			GROUP BY workout_id
			HAVING COUNT(DISTINCT movement_id) = ?
		)`)
		for _, id := range movementIDs {
			args = append(args, id)
		}
		args = append(args, len(movementIDs))
	}

	query := "SELECT " + workoutColumns + " FROM workouts w"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY w.name COLLATE NOCASE"

	return queryWorkouts(db, query, args...)
}

// resolveMovementIDs maps each filter term, an id or a case-insensitive name,
// to a distinct movement id. ok is false when some term matches no movement.
func resolveMovementIDs(db *sql.DB, terms []string) ([]string, bool, error) {
	ids := make([]string, 0, len(terms))
	for _, term := range terms {
		var id string
		err := db.QueryRow(
			"SELECT id FROM movements WHERE id = ? OR LOWER(name) = LOWER(?) ORDER BY id = ? DESC LIMIT 1",
			term, term, term,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to resolve movement %q: %w", term, err)
		}
		ids = append(ids, id)
	}
	return dedupe(ids), true, nil
}

// queryWorkouts scans every row before loading movements so that no two
// statements hold a connection at the same time.
func queryWorkouts(db *sql.DB, query string, args ...interface{}) ([]models.Workout, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workouts: %w", err)
	}

	workouts := []models.Workout{}
	for rows.Next() {
		w, err := scanWorkout(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		workouts = append(workouts, *w)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating workouts: %w", err)
	}
	rows.Close()

	if err := attachMovements(db, workouts); err != nil {
		return nil, err
	}

	return workouts, nil
}

func scanWorkout(rows *sql.Rows) (*models.Workout, error) {
	var w models.Workout
	var userID, tiebreak, secondary sql.NullString
	var repsPerRound, roundsToScore, timeCap sql.NullInt64

	err := rows.Scan(
		&w.ID,
		&userID,
		&w.Name,
		&w.Description,
		&w.Scheme,
		&repsPerRound,
		&roundsToScore,
		&timeCap,
		&tiebreak,
		&secondary,
		&w.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan workout: %w", err)
	}

	w.UserID = userID.String
	w.RepsPerRound = intPtr(repsPerRound)
	w.RoundsToScore = intPtr(roundsToScore)
	w.TimeCap = intPtr(timeCap)
	if tiebreak.Valid {
		t := scoring.TiebreakScheme(tiebreak.String)
		w.TiebreakScheme = &t
	}
	if secondary.Valid {
		s := scoring.Scheme(secondary.String)
		w.SecondaryScheme = &s
	}
	w.Movements = []models.Movement{}

	return &w, nil
}

func attachMovements(db *sql.DB, workouts []models.Workout) error {
	if len(workouts) == 0 {
		return nil
	}

	index := make(map[string]int, len(workouts))
	args := make([]interface{}, 0, len(workouts))
	for i, w := range workouts {
		index[w.ID] = i
		args = append(args, w.ID)
	}

	query := `
		SELECT wm.workout_id, m.id, m.name, m.type
		FROM workout_movements wm
		JOIN movements m ON m.id = wm.movement_id
		WHERE wm.workout_id IN (` + strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ") + `)
		ORDER BY wm.workout_id, wm.position
	`

	rows, err := db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("failed to query workout movements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var workoutID string
		var m models.Movement
		if err := rows.Scan(&workoutID, &m.ID, &m.Name, &m.Category); err != nil {
			return fmt.Errorf("failed to scan workout movement: %w", err)
		}
		if i, ok := index[workoutID]; ok {
			workouts[i].Movements = append(workouts[i].Movements, m)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating workout movements: %w", err)
	}

	return nil
}

// verifyMovements checks every id exists and returns them without duplicates,
// in their original order.
func verifyMovements(tx *sql.Tx, ids []string) ([]string, error) {
	ids = dedupe(ids)

	var missing []string
	for _, id := range ids {
		var exists bool
		if err := tx.QueryRow("SELECT EXISTS(SELECT 1 FROM movements WHERE id = ?)", id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to verify movement: %w", err)
		}
		if !exists {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		return nil, &MissingMovementsError{IDs: missing}
	}

	return ids, nil
}

func insertWorkoutMovements(tx *sql.Tx, workoutID string, movementIDs []string) error {
	for position, movementID := range movementIDs {
		_, err := tx.Exec(
			"INSERT INTO workout_movements (id, workout_id, movement_id, position) VALUES (?, ?, ?, ?)",
			uuid.NewString(), workoutID, movementID, position,
		)
		if err != nil {
			return fmt.Errorf("failed to link movement to workout: %w", err)
		}
	}
	return nil
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func roundsOrDefault(rounds *int) int {
	if rounds == nil || *rounds < 1 {
		return 1
	}
	return *rounds
}

func nullableTiebreak(t *scoring.TiebreakScheme) interface{} {
	if t == nil {
		return nil
	}
	return string(*t)
}

func nullableScheme(s *scoring.Scheme) interface{} {
	if s == nil {
		return nil
	}
	return string(*s)
}
