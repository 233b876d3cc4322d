package handlers

import (
	"database/sql"
	"net/http"

	"spicywod/internal/database"

	"github.com/gin-gonic/gin"
)

func handleMovements(c *gin.Context) {
	db := c.MustGet("db").(*sql.DB)

	movements, err := database.GetMovements(db)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"movements": movements})
}

func handleMovementDetail(c *gin.Context) {
	db := c.MustGet("db").(*sql.DB)

	movement, workouts, err := database.GetMovementByName(db, c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"movement": movement,
		"workouts": newWorkoutViews(workouts),
	})
}
