package middleware

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"spicywod/internal/auth"
	"spicywod/internal/config"
	"spicywod/internal/logger"
	"spicywod/internal/metrics"
	"spicywod/internal/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Context keys set by the auth middleware.
const (
	SessionKey = "session"
	UserIDKey  = "user_id"
	EmailKey   = "email"
)

type rateLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet hands out one token bucket per client IP and forgets clients
// idle for longer than ttl.
type limiterSet struct {
	mu      sync.Mutex
	clients map[string]*rateLimiter
	every   time.Duration
	burst   int
	ttl     time.Duration
}

func newLimiterSet(every time.Duration, burst int, ttl time.Duration) *limiterSet {
	return &limiterSet{
		clients: make(map[string]*rateLimiter),
		every:   every,
		burst:   burst,
		ttl:     ttl,
	}
}

func (s *limiterSet) allow(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	client, exists := s.clients[ip]
	if !exists {
		client = &rateLimiter{limiter: rate.NewLimiter(rate.Every(s.every), s.burst)}
		s.clients[ip] = client
	}
	client.lastSeen = now

	for clientIP, c := range s.clients {
		if now.Sub(c.lastSeen) > s.ttl {
			delete(s.clients, clientIP)
		}
	}

	return client.limiter.Allow()
}

func limit(cfg *config.Config, set *limiterSet, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip rate limiting in development mode
		if cfg.IsDevelopment() {
			c.Next()
			return
		}

		if !set.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": message})
			return
		}

		c.Next()
	}
}

func RateLimit(cfg *config.Config) gin.HandlerFunc {
	return limit(cfg, newLimiterSet(time.Second/20, 20, 10*time.Minute), "Rate limit exceeded")
}

// AuthRateLimit guards signup and login: five attempts, then one per minute.
func AuthRateLimit(cfg *config.Config) gin.HandlerFunc {
	return limit(cfg, newLimiterSet(time.Minute, 5, 30*time.Minute), "Authentication rate limit exceeded")
}

type clientTracker struct {
	errors404    []time.Time
	blockedUntil time.Time
	lastSeen     time.Time
}

// Blocker bans a client IP for 15 minutes after ten 404s within 5 minutes.
type Blocker struct {
	mu       sync.Mutex
	trackers map[string]*clientTracker
	cfg      *config.Config
}

func NewBlocker(cfg *config.Config) *Blocker {
	return &Blocker{trackers: make(map[string]*clientTracker), cfg: cfg}
}

func (b *Blocker) IPBlocker() gin.HandlerFunc {
	return func(c *gin.Context) {
		if b.cfg.IsDevelopment() {
			c.Next()
			return
		}

		b.mu.Lock()
		tracker, exists := b.trackers[c.ClientIP()]
		blocked := exists && time.Now().Before(tracker.blockedUntil)
		b.mu.Unlock()

		if blocked {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Your IP has been temporarily blocked due to excessive invalid requests. Please try again later.",
			})
			return
		}

		c.Next()
	}
}

func (b *Blocker) Track404AndBlock() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if b.cfg.IsDevelopment() || c.Writer.Status() != http.StatusNotFound {
			return
		}

		ip := c.ClientIP()
		now := time.Now()

		b.mu.Lock()
		defer b.mu.Unlock()

		tracker, exists := b.trackers[ip]
		if !exists {
			tracker = &clientTracker{}
			b.trackers[ip] = tracker
		}
		tracker.lastSeen = now
		tracker.errors404 = append(tracker.errors404, now)

		cutoff := now.Add(-5 * time.Minute)
		recent := tracker.errors404[:0]
		for _, at := range tracker.errors404 {
			if at.After(cutoff) {
				recent = append(recent, at)
			}
		}
		tracker.errors404 = recent

		if len(tracker.errors404) >= 10 {
			tracker.blockedUntil = now.Add(15 * time.Minute)
			logger.Warn("Blocked client for repeated 404s", "client_ip", ip, "count", len(tracker.errors404))
			tracker.errors404 = nil
		}

		for trackerIP, t := range b.trackers {
			if now.Sub(t.lastSeen) > 30*time.Minute && now.After(t.blockedUntil) {
				delete(b.trackers, trackerIP)
			}
		}
	}
}

func CORS(allowedOrigins string) gin.HandlerFunc {
	origins := strings.Split(allowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		for _, allowedOrigin := range origins {
			if origin != "" && origin == allowedOrigin {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Access-Control-Allow-Credentials", "true")
				c.Header("Vary", "Origin")
				break
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// currentSession resolves the sessionId cookie. A request without the cookie
// is unauthenticated.
func currentSession(c *gin.Context, sessions *auth.SessionManager) (*models.Session, error) {
	sessionID, err := c.Cookie(auth.SessionCookieName)
	if err != nil || sessionID == "" {
		return nil, auth.ErrUnauthenticated
	}
	return sessions.GetSession(c.Request.Context(), sessionID)
}

func setSession(c *gin.Context, session *models.Session) {
	c.Set(SessionKey, session)
	c.Set(UserIDKey, session.UserID)
	c.Set(EmailKey, session.Email)
}

// AuthRequired rejects requests without a live session with 401. An expired
// session also clears the cookie.
func AuthRequired(sessions *auth.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := currentSession(c, sessions)
		if err != nil {
			var authErr *auth.AuthError
			if !errors.As(err, &authErr) {
				logger.Error("Failed to load session", "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
				return
			}
			if authErr.Kind == auth.SessionExpired {
				c.Writer.Header().Add("Set-Cookie", auth.ClearSessionCookie())
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": authErr.Message})
			return
		}

		setSession(c, session)
		c.Next()
	}
}

// AuthOptional attaches the session when there is one and never rejects.
func AuthOptional(sessions *auth.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if session, err := currentSession(c, sessions); err == nil {
			setSession(c, session)
		}
		c.Next()
	}
}

// RedirectIfAuthenticated sends signed-in callers to target instead of
// running the handler.
func RedirectIfAuthenticated(sessions *auth.SessionManager, target string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := currentSession(c, sessions); err == nil {
			c.Redirect(http.StatusSeeOther, target)
			c.Abort()
			return
		}
		c.Next()
	}
}

func SecurityHeaders(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "same-origin")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		if !cfg.IsDevelopment() {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

func LogRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		}
		if userID, ok := c.Get(UserIDKey); ok {
			fields = append(fields, "user_id", userID)
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("HTTP request", fields...)
		default:
			logger.Info("HTTP request", fields...)
		}
	}
}

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.ObserveRequest(c.Request.Method, c.FullPath(), strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

func AddDBContext(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("db", db)
		c.Next()
	}
}

// MaxBodyBytes caps every request body read by the server.
const MaxBodyBytes = 1 << 20

// TrimSpaces trims every submitted form value before handlers read it. The
// body is capped at MaxBodyBytes before it is parsed.
func TrimSpaces() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodPost && isFormRequest(c) {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
			if err := c.Request.ParseForm(); err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
					return
				}
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Malformed request body"})
				return
			}
			for key, values := range c.Request.PostForm {
				for i, value := range values {
					c.Request.PostForm[key][i] = strings.TrimSpace(value)
				}
			}
		}
		c.Next()
	}
}

func isFormRequest(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "application/x-www-form-urlencoded")
}
