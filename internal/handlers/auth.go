package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"regexp"

	"spicywod/internal/auth"
	"spicywod/internal/database"
	"spicywod/internal/email"
	"spicywod/internal/logger"
	"spicywod/internal/metrics"
	"spicywod/internal/middleware"
	"spicywod/internal/models"

	"github.com/gin-gonic/gin"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func handleSignup(c *gin.Context) {
	db := c.MustGet("db").(*sql.DB)

	registrationEnabled, err := database.IsRegistrationEnabled(db)
	if err != nil {
		respondError(c, err)
		return
	}
	if !registrationEnabled {
		c.JSON(http.StatusForbidden, gin.H{"error": "Registration has been disabled by an administrator"})
		return
	}

	in, ok := readInput(c)
	if !ok {
		return
	}
	emailAddr := in.Get("email")
	password := in.Get("password")

	fields := fieldErrors{}
	if !emailRegex.MatchString(emailAddr) {
		fields["email"] = "Please enter a valid email address"
	}
	if err := auth.ValidatePassword(password); err != nil {
		fields["password"] = err.Error()
	}
	if len(fields) > 0 {
		metrics.RecordAuthAttempt("signup", "invalid")
		respondValidation(c, fields)
		return
	}

	user, err := database.CreateUser(db, emailAddr, password)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			metrics.RecordAuthAttempt("signup", auth.UserExists.String())
		}
		respondError(c, err)
		return
	}

	metrics.RecordAuthAttempt("signup", "success")
	logger.Info("User signed up", "user_id", user.ID, "email", user.Email)

	if notifier, ok := c.MustGet("email_service").(email.Notifier); ok {
		email.SendWelcomeAsync(notifier, user)
	}

	c.Header("Location", "/login")
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func handleLogin(c *gin.Context) {
	db := c.MustGet("db").(*sql.DB)
	sessions := c.MustGet("sessions").(*auth.SessionManager)

	in, ok := readInput(c)
	if !ok {
		return
	}
	emailAddr := in.Get("email")
	password := in.Get("password")

	fields := fieldErrors{}
	if !emailRegex.MatchString(emailAddr) {
		fields["email"] = "Invalid email address"
	}
	if password == "" {
		fields["password"] = "Password is required"
	}
	if len(fields) > 0 {
		respondValidation(c, fields)
		return
	}

	user, err := database.AuthenticateUser(db, emailAddr, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			metrics.RecordAuthAttempt("login", auth.InvalidCredentials.String())
			logger.Warn("Failed login attempt", "email", emailAddr, "client_ip", c.ClientIP())
		}
		respondError(c, err)
		return
	}

	sessionID, session, err := sessions.CreateSession(c.Request.Context(), user.ID, user.Email)
	if err != nil {
		respondError(c, err)
		return
	}

	metrics.RecordAuthAttempt("login", "success")
	metrics.RecordSessionCreated()
	logger.Info("User logged in", "user_id", user.ID, "session_id", sessionID)

	c.Writer.Header().Add("Set-Cookie", sessions.SessionCookie(sessionID))
	c.JSON(http.StatusOK, gin.H{
		"user":      user,
		"expiresAt": session.ExpiresAt,
	})
}

func handleLogout(c *gin.Context) {
	sessions := c.MustGet("sessions").(*auth.SessionManager)

	if value, ok := c.Get(middleware.SessionKey); ok {
		session := value.(*models.Session)
		if err := sessions.DestroySession(c.Request.Context(), session.ID); err != nil {
			respondError(c, err)
			return
		}
		logger.Info("User logged out", "user_id", session.UserID, "session_id", session.ID)
	}

	c.Writer.Header().Add("Set-Cookie", auth.ClearSessionCookie())
	c.Header("Location", "/login")
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func handleMe(c *gin.Context) {
	db := c.MustGet("db").(*sql.DB)
	userID := currentUserID(c)

	user, err := database.GetUserByID(db, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrUnauthenticated.Message})
			return
		}
		respondError(c, err)
		return
	}

	stats, err := database.GetUserStats(db, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	recent, err := database.GetRecentResults(db, userID, 5)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":           user,
		"session":        c.MustGet(middleware.SessionKey),
		"stats":          stats,
		"recent_results": recent,
	})
}
