package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"spicywod/internal/auth"
	"spicywod/internal/config"
	"spicywod/internal/kvstore"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newSessions(now *time.Time) *auth.SessionManager {
	return auth.NewSessionManager(kvstore.NewMemoryStore(), auth.SessionDuration).
		WithClock(func() time.Time { return *now })
}

func protectedRouter(sessions *auth.SessionManager) *gin.Engine {
	r := gin.New()
	r.GET("/private", AuthRequired(sessions), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(UserIDKey)+" "+c.GetString(EmailKey))
	})
	return r
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func withSession(req *http.Request, id string) *http.Request {
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: id})
	return req
}

func TestAuthRequired(t *testing.T) {
	now := time.Now()
	sessions := newSessions(&now)
	r := protectedRouter(sessions)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Set-Cookie"))

	rec = serve(r, withSession(httptest.NewRequest(http.MethodGet, "/private", nil), "unknown"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	id, _, err := sessions.CreateSession(context.Background(), "user-1", "athlete@example.com")
	require.NoError(t, err)

	rec = serve(r, withSession(httptest.NewRequest(http.MethodGet, "/private", nil), id))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1 athlete@example.com", rec.Body.String())

	now = now.Add(auth.SessionDuration + time.Second)
	rec = serve(r, withSession(httptest.NewRequest(http.MethodGet, "/private", nil), id))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Session expired"}`, rec.Body.String())
	assert.Equal(t, auth.ClearSessionCookie(), rec.Header().Get("Set-Cookie"))
}

func TestAuthOptionalAndRedirect(t *testing.T) {
	now := time.Now()
	sessions := newSessions(&now)
	id, _, err := sessions.CreateSession(context.Background(), "user-1", "athlete@example.com")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/maybe", AuthOptional(sessions), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(UserIDKey))
	})
	r.GET("/login", RedirectIfAuthenticated(sessions, "/me"), func(c *gin.Context) {
		c.String(http.StatusOK, "login form")
	})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/maybe", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = serve(r, withSession(httptest.NewRequest(http.MethodGet, "/maybe", nil), id))
	assert.Equal(t, "user-1", rec.Body.String())

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, "login form", rec.Body.String())

	rec = serve(r, withSession(httptest.NewRequest(http.MethodGet, "/login", nil), id))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/me", rec.Header().Get("Location"))
}

func TestAuthRateLimit(t *testing.T) {
	cfg := &config.Config{Environment: "production"}
	r := gin.New()
	r.POST("/login", AuthRateLimit(cfg), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		rec := serve(r, httptest.NewRequest(http.MethodPost, "/login", nil))
		require.Equal(t, http.StatusOK, rec.Code, "attempt %d", i+1)
	}
	rec := serve(r, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	dev := gin.New()
	dev.POST("/login", AuthRateLimit(&config.Config{Environment: "development"}), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, serve(dev, httptest.NewRequest(http.MethodPost, "/login", nil)).Code)
	}
}

func TestBlockerBansAfterRepeated404s(t *testing.T) {
	blocker := NewBlocker(&config.Config{Environment: "production"})
	r := gin.New()
	r.Use(blocker.IPBlocker(), blocker.Track404AndBlock())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusNotFound, serve(r, httptest.NewRequest(http.MethodGet, "/missing", nil)).Code)
	}
	rec := serve(r, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS("http://localhost:8080, https://spicywod.app"))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://spicywod.app")
	rec := serve(r, req)
	assert.Equal(t, "https://spicywod.app", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = serve(r, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	rec = serve(r, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	for env, wantHSTS := range map[string]bool{"development": false, "production": true} {
		r := gin.New()
		r.Use(SecurityHeaders(&config.Config{Environment: env}))
		r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

		rec := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"), env)
		assert.Equal(t, wantHSTS, rec.Header().Get("Strict-Transport-Security") != "", env)
	}
}

func TestTrimSpaces(t *testing.T) {
	r := gin.New()
	r.Use(TrimSpaces())
	r.POST("/form", func(c *gin.Context) {
		c.String(http.StatusOK, "[%s][%s]", c.PostForm("email"), c.PostForm("name"))
	})

	form := url.Values{"email": {"  athlete@example.com "}, "name": {"\tFran\n"}}
	req := httptest.NewRequest(http.MethodPost, "/form", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := serve(r, req)
	assert.Equal(t, "[athlete@example.com][Fran]", rec.Body.String())
}

func TestTrimSpacesCapsBody(t *testing.T) {
	reached := false
	r := gin.New()
	r.Use(TrimSpaces())
	r.POST("/form", func(c *gin.Context) {
		reached = true
		c.Status(http.StatusOK)
	})

	form := url.Values{"notes": {strings.Repeat("a", MaxBodyBytes)}}
	req := httptest.NewRequest(http.MethodPost, "/form", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := serve(r, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.False(t, reached)
}
