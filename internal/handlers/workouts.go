package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"spicywod/internal/database"
	"spicywod/internal/logger"
	"spicywod/internal/models"
	"spicywod/internal/scoring"

	"github.com/gin-gonic/gin"
)

const (
	maxWorkoutNameLength        = 100
	maxWorkoutDescriptionLength = 5000
)

// workoutView adds display metadata for the workout's scheme.
type workoutView struct {
	models.Workout
	SchemeLabel string `json:"scheme_label"`
	Unit        string `json:"unit,omitempty"`
	BetterIs    string `json:"better_is"`
}

func newWorkoutView(w models.Workout) workoutView {
	return workoutView{
		Workout:     w,
		SchemeLabel: w.Scheme.Label(),
		Unit:        w.Scheme.Unit(),
		BetterIs:    w.Scheme.BetterIs().String(),
	}
}

func newWorkoutViews(workouts []models.Workout) []workoutView {
	views := make([]workoutView, 0, len(workouts))
	for _, w := range workouts {
		views = append(views, newWorkoutView(w))
	}
	return views
}

func handleWorkouts(c *gin.Context) {
	db := c.MustGet("db").(*sql.DB)

	filter := database.WorkoutFilter{
		Name:      c.Query("name"),
		Scheme:    c.Query("scheme"),
		Movements: listValue(c.QueryArray("movements")),
	}

	if filter.Scheme != "" && filter.Scheme != "all" {
		if _, err := scoring.ParseScheme(filter.Scheme); err != nil {
			respondError(c, err)
			return
		}
	}

	workouts, err := database.ListWorkouts(db, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"workouts": newWorkoutViews(workouts),
		"schemes":  scoring.Schemes,
	})
}

func handleCreateWorkout(c *gin.Context) {
	db := c.MustGet("db").(*sql.DB)
	userID := currentUserID(c)

	in, ok := readInput(c)
	if !ok {
		return
	}

	workoutInput, fields := parseWorkoutInput(in)
	if len(fields) > 0 {
		respondValidation(c, fields)
		return
	}

	workout, err := database.CreateWorkout(db, userID, workoutInput)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Info("Workout created", "user_id", userID, "workout_id", workout.ID, "scheme", string(workout.Scheme))
	c.Header("Location", "/workouts/"+strings.ToLower(workout.Name))
	c.JSON(http.StatusCreated, gin.H{"workout": newWorkoutView(*workout)})
}

func handleWorkoutDetail(c *gin.Context) {
	db := c.MustGet("db").(*sql.DB)
	userID := currentUserID(c)

	workout, err := database.GetWorkoutByIDOrName(db, c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}

	results, err := database.GetResultsForWorkout(db, userID, workout.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"workout": newWorkoutView(*workout),
		"results": newResultViews(workout, results),
		"best":    bestScore(workout, results),
	})
}

func handleUpdateWorkout(c *gin.Context) {
	db := c.MustGet("db").(*sql.DB)
	userID := currentUserID(c)

	existing, err := database.GetWorkoutByIDOrName(db, c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	if existing.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the workout's creator can edit it"})
		return
	}

	in, ok := readInput(c)
	if !ok {
		return
	}

	workoutInput, fields := parseWorkoutInput(in)
	if len(fields) > 0 {
		respondValidation(c, fields)
		return
	}

	workout, err := database.UpdateWorkout(db, userID, existing.ID, workoutInput)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Info("Workout updated", "user_id", userID, "workout_id", workout.ID)
	c.JSON(http.StatusOK, gin.H{"workout": newWorkoutView(*workout)})
}

// parseWorkoutInput validates a workout form. Field names follow the
// workout editor: name, description, scheme, repsPerRound, roundsToScore,
// timeCap, tiebreakScheme, secondaryScheme and movements.
func parseWorkoutInput(in scoring.Input) (database.WorkoutInput, fieldErrors) {
	fields := fieldErrors{}
	w := database.WorkoutInput{
		Name:        in.Get("name"),
		Description: in.Get("description"),
		MovementIDs: listValue(in["movements"]),
	}

	switch {
	case w.Name == "":
		fields["name"] = "Workout name is required"
	case len(w.Name) > maxWorkoutNameLength:
		fields["name"] = "Workout name must be at most 100 characters"
	}

	switch {
	case w.Description == "":
		fields["description"] = "Description is required"
	case len(w.Description) > maxWorkoutDescriptionLength:
		fields["description"] = "Description must be at most 5000 characters"
	}

	if raw := in.Get("scheme"); raw == "" {
		fields["scheme"] = "Scoring scheme is required"
	} else if scheme, err := scoring.ParseScheme(raw); err != nil {
		fields["scheme"] = validationMessage(err)
	} else {
		w.Scheme = scheme
	}

	w.RepsPerRound = optionalInt(in, "repsPerRound", 1, "Reps per round must be a positive whole number", fields)
	w.RoundsToScore = optionalInt(in, "roundsToScore", 1, "Rounds to score must be a positive whole number", fields)
	w.TimeCap = optionalInt(in, "timeCap", 1, "Time cap must be a positive number of seconds", fields)

	if raw := in.Get("tiebreakScheme"); raw != "" {
		if t, err := scoring.ParseTiebreakScheme(raw); err != nil {
			fields["tiebreakScheme"] = validationMessage(err)
		} else {
			w.TiebreakScheme = &t
		}
	}

	if raw := in.Get("secondaryScheme"); raw != "" {
		secondary := scoring.Scheme(raw)
		if !secondary.ValidSecondary() {
			fields["secondaryScheme"] = "Secondary scheme must be a scoring scheme other than time-with-cap"
		} else {
			w.SecondaryScheme = &secondary
		}
	}

	return w, fields
}

func validationMessage(err error) string {
	var validationErr *scoring.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Message
	}
	return err.Error()
}
