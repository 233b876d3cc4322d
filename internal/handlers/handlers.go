package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"spicywod/internal/auth"
	"spicywod/internal/config"
	"spicywod/internal/database"
	"spicywod/internal/email"
	"spicywod/internal/logger"
	"spicywod/internal/middleware"
	"spicywod/internal/scoring"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services are the dependencies shared by every handler.
type Services struct {
	DB       *sql.DB
	Sessions *auth.SessionManager
	Email    email.Notifier
	Config   *config.Config
}

func SetupRoutes(r *gin.Engine, svc Services) {
	blocker := middleware.NewBlocker(svc.Config)

	r.Use(middleware.LogRequests())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders(svc.Config))
	r.Use(middleware.CORS(svc.Config.AllowedOrigins))
	r.Use(blocker.IPBlocker())
	r.Use(blocker.Track404AndBlock())
	r.Use(middleware.RateLimit(svc.Config))
	r.Use(middleware.AddDBContext(svc.DB))
	r.Use(addServicesContext(svc))
	r.Use(middleware.TrimSpaces())

	r.GET("/healthz", handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authLimit := middleware.AuthRateLimit(svc.Config)
	guestOnly := middleware.RedirectIfAuthenticated(svc.Sessions, "/me")
	r.POST("/signup", authLimit, guestOnly, handleSignup)
	r.POST("/login", authLimit, guestOnly, handleLogin)
	r.POST("/logout", middleware.AuthOptional(svc.Sessions), handleLogout)

	protected := r.Group("/")
	protected.Use(middleware.AuthRequired(svc.Sessions))
	{
		protected.GET("/me", handleMe)
		protected.POST("/account/password", handleChangePassword)

		protected.GET("/movements", handleMovements)
		protected.GET("/movements/:name", handleMovementDetail)

		protected.GET("/workouts", handleWorkouts)
		protected.POST("/workouts", handleCreateWorkout)
		protected.GET("/workouts/:name", handleWorkoutDetail)
		protected.POST("/workouts/:name", handleUpdateWorkout)
		protected.POST("/workouts/:name/results", handleLogResult)
		protected.POST("/workouts/:name/results/:id/delete", handleDeleteResult)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
}

func addServicesContext(svc Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("sessions", svc.Sessions)
		c.Set("email_service", svc.Email)
		c.Next()
	}
}

func handleHealth(c *gin.Context) {
	db := c.MustGet("db").(*sql.DB)
	if err := db.PingContext(c.Request.Context()); err != nil {
		logger.Error("Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fieldErrors maps a request field to a message that can be shown next to it.
type fieldErrors map[string]string

func respondValidation(c *gin.Context, fields fieldErrors) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": fields})
}

// respondError turns a domain error into its HTTP response. Anything
// unrecognized is logged and reported as a generic 500.
func respondError(c *gin.Context, err error) {
	var validationErr *scoring.ValidationError
	var passwordErr *auth.PasswordError
	var authErr *auth.AuthError
	var missingErr *database.MissingMovementsError

	switch {
	case errors.As(err, &validationErr):
		field := validationErr.Field
		if field == "" {
			field = "form"
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Validation failed",
			"kind":   validationErr.Kind.String(),
			"fields": fieldErrors{field: validationErr.Message},
		})
	case errors.As(err, &passwordErr):
		respondValidation(c, fieldErrors{"password": passwordErr.Message})
	case errors.As(err, &missingErr):
		respondValidation(c, fieldErrors{"movements": missingErr.Error()})
	case errors.Is(err, database.ErrDuplicateWorkoutName):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "fields": fieldErrors{"name": err.Error()}})
	case errors.As(err, &authErr):
		status := http.StatusUnauthorized
		if authErr.Kind == auth.UserExists {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": authErr.Message})
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		logger.Error("Request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func currentUserID(c *gin.Context) string {
	return c.MustGet(middleware.UserIDKey).(string)
}
