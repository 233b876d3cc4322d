package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"spicywod/internal/auth"
	"spicywod/internal/database"
	"spicywod/internal/logger"
	"spicywod/internal/middleware"
	"spicywod/internal/models"

	"github.com/gin-gonic/gin"
)

func handleChangePassword(c *gin.Context) {
	db := c.MustGet("db").(*sql.DB)
	userID := currentUserID(c)
	emailAddr := c.MustGet(middleware.EmailKey).(string)

	in, ok := readInput(c)
	if !ok {
		return
	}
	currentPassword := in.Get("current_password")
	newPassword := in.Get("new_password")
	confirmPassword := in.Get("confirm_password")

	if currentPassword == "" || newPassword == "" || confirmPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "All password fields are required"})
		return
	}

	if newPassword != confirmPassword {
		respondValidation(c, fieldErrors{"confirm_password": "New passwords do not match"})
		return
	}

	if err := auth.ValidatePassword(newPassword); err != nil {
		respondValidation(c, fieldErrors{"new_password": err.Error()})
		return
	}

	if _, err := database.AuthenticateUser(db, emailAddr, currentPassword); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondValidation(c, fieldErrors{"current_password": "Current password is incorrect"})
			return
		}
		respondError(c, err)
		return
	}

	if err := database.UpdatePassword(db, userID, newPassword); err != nil {
		respondError(c, err)
		return
	}

	sessions := c.MustGet("sessions").(*auth.SessionManager)
	current := c.MustGet(middleware.SessionKey).(*models.Session)
	revoked, err := sessions.DestroyUserSessions(c.Request.Context(), userID, current.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Info("Password changed", "user_id", userID, "revoked_sessions", revoked)
	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}
