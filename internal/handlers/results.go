package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"spicywod/internal/database"
	"spicywod/internal/logger"
	"spicywod/internal/metrics"
	"spicywod/internal/models"
	"spicywod/internal/scoring"

	"github.com/gin-gonic/gin"
)

type setView struct {
	SetNumber int    `json:"set_number"`
	Score     int    `json:"score"`
	Display   string `json:"display"`
}

type resultView struct {
	ID        string        `json:"id"`
	Date      time.Time     `json:"date"`
	Scale     scoring.Scale `json:"scale"`
	Notes     string        `json:"notes,omitempty"`
	Capped    bool          `json:"capped,omitempty"`
	RepsAtCap *int          `json:"reps_at_cap,omitempty"`
	Sets      []setView     `json:"sets"`
}

type bestView struct {
	Score    int    `json:"score"`
	Display  string `json:"display"`
	BetterIs string `json:"better_is"`
}

func newResultView(workout *models.Workout, r models.Result) resultView {
	view := resultView{
		ID:        r.ID,
		Date:      r.Date,
		Scale:     r.Scale,
		Notes:     r.Notes,
		Capped:    r.Capped,
		RepsAtCap: r.RepsAtCap,
		Sets:      make([]setView, 0, len(r.Sets)),
	}
	for _, s := range r.Sets {
		view.Sets = append(view.Sets, setView{
			SetNumber: s.SetNumber,
			Score:     s.Score,
			Display:   scoring.FormatScore(workout.Scheme, s.Score),
		})
	}
	return view
}

func newResultViews(workout *models.Workout, results []models.Result) []resultView {
	views := make([]resultView, 0, len(results))
	for _, r := range results {
		views = append(views, newResultView(workout, r))
	}
	return views
}

// bestScore picks the best single set across all results, or nil when there
// is nothing to rank.
func bestScore(workout *models.Workout, results []models.Result) *bestView {
	var scores []int
	for _, r := range results {
		for _, s := range r.Sets {
			scores = append(scores, s.Score)
		}
	}

	best, ok := scoring.Best(workout.Scheme, scores)
	if !ok {
		return nil
	}
	return &bestView{
		Score:    best,
		Display:  scoring.FormatScore(workout.Scheme, best),
		BetterIs: workout.Scheme.BetterIs().String(),
	}
}

func handleLogResult(c *gin.Context) {
	db := c.MustGet("db").(*sql.DB)
	userID := currentUserID(c)

	workout, err := database.GetWorkoutByIDOrName(db, c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}

	in, ok := readInput(c)
	if !ok {
		return
	}

	if workout.Scheme == scoring.SchemeRoundsReps && workout.RepsPerRound != nil {
		in.SetDefault("repsPerRound", strconv.Itoa(*workout.RepsPerRound))
	}

	date, err := parseResultDate(in.Get("date"))
	if err != nil {
		respondValidation(c, fieldErrors{"date": "Date must be YYYY-MM-DD or an RFC 3339 timestamp"})
		return
	}

	normalized, err := scoring.ValidateResultInput(workout.Scheme, workout.Rounds(), in)
	if err != nil {
		var validationErr *scoring.ValidationError
		if errors.As(err, &validationErr) {
			metrics.RecordValidationFailure(string(workout.Scheme), validationErr.Kind.String())
		}
		respondError(c, err)
		return
	}

	result, err := database.CreateResult(db, userID, workout, normalized, date)
	if err != nil {
		respondError(c, err)
		return
	}

	metrics.RecordResultLogged(string(workout.Scheme))
	logger.Info("Result logged",
		"user_id", userID,
		"workout_id", workout.ID,
		"scheme", string(workout.Scheme),
		"sets", len(result.Sets))

	c.JSON(http.StatusCreated, gin.H{"result": newResultView(workout, *result)})
}

func handleDeleteResult(c *gin.Context) {
	db := c.MustGet("db").(*sql.DB)
	userID := currentUserID(c)

	resultID := c.Param("id")
	if resultID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Result ID is required"})
		return
	}

	if err := database.DeleteResult(db, userID, resultID); err != nil {
		respondError(c, err)
		return
	}

	logger.Info("Result deleted", "user_id", userID, "result_id", resultID)
	c.JSON(http.StatusOK, gin.H{"message": "Result deleted"})
}

func parseResultDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
