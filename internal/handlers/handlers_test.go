package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"spicywod/internal/auth"
	"spicywod/internal/config"
	"spicywod/internal/database"
	"spicywod/internal/kvstore"

	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "Murph2024!"

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

type testServer struct {
	router *gin.Engine
	db     *sql.DB
	clock  *testClock
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(db))
	catalog, err := database.LoadMovementCatalog("")
	require.NoError(t, err)
	_, err = database.SeedMovements(db, catalog)
	require.NoError(t, err)

	store := kvstore.NewSQLiteStore(db)
	require.NoError(t, store.Migrate(context.Background()))

	clock := &testClock{now: time.Now()}
	sessions := auth.NewSessionManager(store, auth.SessionDuration).WithClock(clock.Now)

	cfg := &config.Config{
		Environment:     "development",
		AllowedOrigins:  "http://localhost:8080",
		SessionDuration: auth.SessionDuration,
	}

	r := gin.New()
	SetupRoutes(r, Services{DB: db, Sessions: sessions, Config: cfg})

	return &testServer{router: r, db: db, clock: clock}
}

func (s *testServer) do(method, path string, body io.Reader, contentType, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cookie != "" {
		req.Header.Set("Cookie", auth.SessionCookieName+"="+cookie)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) get(path, cookie string) *httptest.ResponseRecorder {
	return s.do(http.MethodGet, path, nil, "", cookie)
}

func (s *testServer) postForm(path string, form url.Values, cookie string) *httptest.ResponseRecorder {
	return s.do(http.MethodPost, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", cookie)
}

func (s *testServer) postJSON(t *testing.T, path string, body any, cookie string) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return s.do(http.MethodPost, path, bytes.NewReader(data), "application/json", cookie)
}

// login signs a fresh user up and returns its session id.
func (s *testServer) login(t *testing.T, email string) string {
	t.Helper()
	rec := s.postForm("/signup", url.Values{"email": {email}, "password": {testPassword}}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.postForm("/login", url.Values{"email": {email}, "password": {testPassword}}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == auth.SessionCookieName {
			return cookie.Value
		}
	}
	t.Fatal("login did not set a session cookie")
	return ""
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func fieldsOf(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	fields, ok := decode(t, rec)["fields"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	return fields
}

func movementID(t *testing.T, db *sql.DB, name string) string {
	t.Helper()
	m, _, err := database.GetMovementByName(db, name)
	require.NoError(t, err)
	return m.ID
}

func TestSignupLoginLogout(t *testing.T) {
	s := setupTestServer(t)

	rec := s.postForm("/signup", url.Values{"email": {"athlete@example.com"}, "password": {testPassword}}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	user := decode(t, rec)["user"].(map[string]any)
	assert.Equal(t, "athlete@example.com", user["email"])
	assert.NotContains(t, rec.Body.String(), "hashed_password")

	rec = s.postForm("/signup", url.Values{"email": {"athlete@example.com"}, "password": {testPassword}}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User already exists", decode(t, rec)["error"])

	rec = s.postForm("/signup", url.Values{"email": {"weak@example.com"}, "password": {"password"}}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Password must contain at least one uppercase letter", fieldsOf(t, rec)["password"])

	rec = s.postForm("/signup", url.Values{"email": {"not-an-email"}, "password": {testPassword}}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please enter a valid email address", fieldsOf(t, rec)["email"])

	wrongPassword := s.postForm("/login", url.Values{"email": {"athlete@example.com"}, "password": {"Wrong123!"}}, "")
	unknownEmail := s.postForm("/login", url.Values{"email": {"nobody@example.com"}, "password": {testPassword}}, "")
	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.Equal(t, "Invalid email or password", decode(t, wrongPassword)["error"])
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())

	rec = s.postJSON(t, "/login", map[string]string{"email": "athlete@example.com", "password": testPassword}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	setCookie := rec.Header().Get("Set-Cookie")
	assert.True(t, strings.HasPrefix(setCookie, "sessionId="))
	assert.True(t, strings.HasSuffix(setCookie, "; Path=/; HttpOnly; Secure; SameSite=Lax; Max-Age=86400"), setCookie)
	sessionID := rec.Result().Cookies()[0].Value

	rec = s.get("/me", sessionID)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode(t, rec)
	assert.Equal(t, "athlete@example.com", me["user"].(map[string]any)["email"])
	assert.Equal(t, float64(0), me["stats"].(map[string]any)["results_logged"])

	rec = s.postForm("/login", url.Values{"email": {"athlete@example.com"}, "password": {testPassword}}, sessionID)
	assert.Equal(t, http.StatusSeeOther, rec.Code, "signed-in users are sent away from login")
	assert.Equal(t, "/me", rec.Header().Get("Location"))

	rec = s.do(http.MethodPost, "/logout", nil, "", sessionID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sessionId=; Path=/; HttpOnly; Secure; SameSite=Lax; Max-Age=0", rec.Header().Get("Set-Cookie"))

	rec = s.get("/me", sessionID)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", decode(t, rec)["error"])

	rec = s.do(http.MethodPost, "/logout", nil, "", sessionID)
	assert.Equal(t, http.StatusOK, rec.Code, "logout is idempotent")
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s := setupTestServer(t)

	for _, path := range []string{"/me", "/movements", "/workouts", "/workouts/fran"} {
		rec := s.get(path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := s.get("/workouts", "not-a-session")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExpiredSessionIsRejected(t *testing.T) {
	s := setupTestServer(t)
	sessionID := s.login(t, "athlete@example.com")

	s.clock.now = s.clock.now.Add(86399 * time.Second)
	assert.Equal(t, http.StatusOK, s.get("/me", sessionID).Code)

	s.clock.now = s.clock.now.Add(2 * time.Second)
	rec := s.get("/me", sessionID)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Session expired", decode(t, rec)["error"])
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")

	rec = s.get("/me", sessionID)
	assert.Equal(t, "Unauthorized", decode(t, rec)["error"], "an expired session is gone after the first read")
}

func TestRegistrationDisabled(t *testing.T) {
	s := setupTestServer(t)
	require.NoError(t, database.SetRegistrationEnabled(s.db, false))

	rec := s.postForm("/signup", url.Values{"email": {"athlete@example.com"}, "password": {testPassword}}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRoundsRepsResultEndToEnd(t *testing.T) {
	s := setupTestServer(t)
	sessionID := s.login(t, "athlete@example.com")

	rec := s.postForm("/workouts", url.Values{
		"name":         {"Cindy Lite"},
		"description":  {"AMRAP 10: 3 pull-ups"},
		"scheme":       {"rounds-reps"},
		"repsPerRound": {"3"},
		"movements":    {movementID(t, s.db, "Pull-up")},
	}, sessionID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/workouts/cindy lite", rec.Header().Get("Location"))

	rec = s.postForm("/workouts/cindy%20lite/results", url.Values{"rounds": {"5"}, "scale": {"rx"}}, sessionID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decode(t, rec)["result"].(map[string]any)
	sets := result["sets"].([]any)
	require.Len(t, sets, 1)
	set := sets[0].(map[string]any)
	assert.Equal(t, float64(1), set["set_number"])
	assert.Equal(t, float64(15), set["score"])
	assert.Equal(t, "15 reps", set["display"])

	rec = s.get("/workouts/CINDY%20LITE", sessionID)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode(t, rec)
	assert.Equal(t, "rounds-reps", detail["workout"].(map[string]any)["scheme"])
	results := detail["results"].([]any)
	require.Len(t, results, 1)
	best := detail["best"].(map[string]any)
	assert.Equal(t, "15 reps", best["display"])
	assert.Equal(t, "max", best["better_is"])
}

func TestTimedResultEndToEnd(t *testing.T) {
	s := setupTestServer(t)
	sessionID := s.login(t, "athlete@example.com")

	rec := s.postJSON(t, "/workouts", map[string]any{
		"name":          "Row Intervals",
		"description":   "2 x 500m row, rest 3:00",
		"scheme":        "time",
		"roundsToScore": 2,
		"movements":     []string{movementID(t, s.db, "Row")},
	}, sessionID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	workoutID := decode(t, rec)["workout"].(map[string]any)["id"].(string)

	rec = s.postJSON(t, "/workouts/"+workoutID+"/results", map[string]any{
		"scores": []map[string]int{{"minutes": 1, "seconds": 30}, {"minutes": 1, "seconds": 45}},
		"notes":  "negative split next time",
	}, sessionID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decode(t, rec)["result"].(map[string]any)
	assert.Equal(t, "rx", result["scale"])
	sets := result["sets"].([]any)
	require.Len(t, sets, 2)
	assert.Equal(t, float64(90), sets[0].(map[string]any)["score"])
	assert.Equal(t, "1:30", sets[0].(map[string]any)["display"])
	assert.Equal(t, float64(2), sets[1].(map[string]any)["set_number"])
	assert.Equal(t, float64(105), sets[1].(map[string]any)["score"])

	rec = s.postJSON(t, "/workouts/"+workoutID+"/results", map[string]any{
		"scores": []map[string]int{{"minutes": 1, "seconds": 30}},
	}, sessionID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_rounds", decode(t, rec)["kind"])

	rec = s.postJSON(t, "/workouts/"+workoutID+"/results", map[string]any{
		"scores": []int{90, 105},
	}, sessionID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "scheme_mismatch", decode(t, rec)["kind"])

	rec = s.postJSON(t, "/workouts/"+workoutID+"/results", map[string]any{
		"scores": []map[string]int{{"minutes": -1, "seconds": 30}, {"minutes": 1, "seconds": 45}},
	}, sessionID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_value", decode(t, rec)["kind"])

	rec = s.get("/workouts/row%20intervals", sessionID)
	require.Equal(t, http.StatusOK, rec.Code)
	best := decode(t, rec)["best"].(map[string]any)
	assert.Equal(t, float64(90), best["score"])
	assert.Equal(t, "1:30", best["display"])
	assert.Equal(t, "min", best["better_is"])
}

func TestWorkoutValidation(t *testing.T) {
	s := setupTestServer(t)
	sessionID := s.login(t, "athlete@example.com")

	rec := s.postForm("/workouts", url.Values{}, sessionID)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := fieldsOf(t, rec)
	assert.Equal(t, "Workout name is required", fields["name"])
	assert.Equal(t, "Description is required", fields["description"])
	assert.Equal(t, "Scoring scheme is required", fields["scheme"])

	rec = s.postForm("/workouts", url.Values{
		"name":            {"Bad"},
		"description":     {"bad"},
		"scheme":          {"laps"},
		"secondaryScheme": {"time-with-cap"},
		"tiebreakScheme":  {"load"},
		"roundsToScore":   {"0"},
	}, sessionID)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields = fieldsOf(t, rec)
	assert.Contains(t, fields, "scheme")
	assert.Contains(t, fields, "secondaryScheme")
	assert.Contains(t, fields, "tiebreakScheme")
	assert.Contains(t, fields, "roundsToScore")

	rec = s.postForm("/workouts", url.Values{
		"name":        {"Ghost"},
		"description": {"unknown movement"},
		"scheme":      {"reps"},
		"movements":   {"does-not-exist"},
	}, sessionID)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, fieldsOf(t, rec)["movements"], "does-not-exist")

	form := url.Values{"name": {"Grace"}, "description": {"30 clean and jerks"}, "scheme": {"time"}}
	require.Equal(t, http.StatusCreated, s.postForm("/workouts", form, sessionID).Code)
	rec = s.postForm("/workouts", url.Values{"name": {"GRACE"}, "description": {"dup"}, "scheme": {"time"}}, sessionID)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestEditWorkout(t *testing.T) {
	s := setupTestServer(t)
	owner := s.login(t, "owner@example.com")
	other := s.login(t, "other@example.com")

	rec := s.postForm("/workouts", url.Values{
		"name":        {"Fran"},
		"description": {"21-15-9"},
		"scheme":      {"time"},
		"movements":   {movementID(t, s.db, "Thruster") + "," + movementID(t, s.db, "Pull-up")},
	}, owner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	movements := decode(t, rec)["workout"].(map[string]any)["movements"].([]any)
	assert.Len(t, movements, 2)

	edit := url.Values{
		"name":        {"Fran"},
		"description": {"21-15-9 thrusters (95/65) and pull-ups"},
		"scheme":      {"time-with-cap"},
		"timeCap":     {"600"},
		"movements":   {movementID(t, s.db, "Thruster")},
	}

	rec = s.postForm("/workouts/fran", edit, other)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.postForm("/workouts/fran", edit, owner)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	workout := decode(t, rec)["workout"].(map[string]any)
	assert.Equal(t, "time-with-cap", workout["scheme"])
	assert.Equal(t, float64(600), workout["time_cap"])
	assert.Len(t, workout["movements"].([]any), 1)

	rec = s.postForm("/workouts/nope", edit, owner)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.postForm("/workouts/fran/results", url.Values{
		"minutes":   {"10"},
		"seconds":   {"0"},
		"capped":    {"true"},
		"repsAtCap": {"77"},
	}, owner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decode(t, rec)["result"].(map[string]any)
	assert.Equal(t, true, result["capped"])
	assert.Equal(t, float64(77), result["reps_at_cap"])
	assert.Equal(t, float64(600), result["sets"].([]any)[0].(map[string]any)["score"])
}

func TestBrowseWorkoutsAndMovements(t *testing.T) {
	s := setupTestServer(t)
	sessionID := s.login(t, "athlete@example.com")

	create := func(name, scheme string, movements ...string) {
		var ids []string
		for _, m := range movements {
			ids = append(ids, movementID(t, s.db, m))
		}
		rec := s.postForm("/workouts", url.Values{
			"name": {name}, "description": {name}, "scheme": {scheme}, "movements": ids,
		}, sessionID)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	create("Fran", "time", "Thruster", "Pull-up")
	create("Cindy", "rounds-reps", "Pull-up", "Push-up", "Air Squat")
	create("Max Deadlift", "load", "Deadlift")

	names := func(query string) []string {
		rec := s.get("/workouts"+query, sessionID)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		out := []string{}
		for _, w := range decode(t, rec)["workouts"].([]any) {
			out = append(out, w.(map[string]any)["name"].(string))
		}
		return out
	}

	assert.Equal(t, []string{"Cindy", "Fran", "Max Deadlift"}, names(""))
	assert.Equal(t, []string{"Cindy", "Fran", "Max Deadlift"}, names("?scheme=all"))
	assert.Equal(t, []string{"Max Deadlift"}, names("?scheme=load"))
	assert.Equal(t, []string{"Fran"}, names("?name=fr"))
	assert.Equal(t, []string{"Cindy", "Fran"}, names("?movements=pull-up"))
	assert.Equal(t, []string{"Fran"}, names("?movements=pull-up,thruster"))
	assert.Equal(t, []string{"Fran"}, names("?movements=pull-up&movements=thruster"))

	rec := s.get("/workouts?scheme=laps", sessionID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.get("/workouts", sessionID)
	for _, w := range decode(t, rec)["workouts"].([]any) {
		workout := w.(map[string]any)
		if workout["name"] == "Max Deadlift" {
			assert.Equal(t, "lbs", workout["unit"])
			assert.Equal(t, "max", workout["better_is"])
		}
	}

	rec = s.get("/movements", sessionID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["movements"])

	rec = s.get("/movements/pull-up", sessionID)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode(t, rec)
	assert.Equal(t, "Pull-up", detail["movement"].(map[string]any)["name"])
	assert.Len(t, detail["workouts"].([]any), 2)

	assert.Equal(t, http.StatusNotFound, s.get("/movements/unicycle", sessionID).Code)
	assert.Equal(t, http.StatusNotFound, s.get("/workouts/unknown", sessionID).Code)
}

func TestDeleteResult(t *testing.T) {
	s := setupTestServer(t)
	owner := s.login(t, "owner@example.com")
	other := s.login(t, "other@example.com")

	rec := s.postForm("/workouts", url.Values{"name": {"Max Pull-ups"}, "description": {"one set"}, "scheme": {"reps"}}, owner)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.postForm("/workouts/max%20pull-ups/results", url.Values{"score": {"21"}, "scale": {"scaled"}}, owner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resultID := decode(t, rec)["result"].(map[string]any)["id"].(string)

	rec = s.do(http.MethodPost, "/workouts/max%20pull-ups/results/"+resultID+"/delete", nil, "", other)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/workouts/max%20pull-ups/results/"+resultID+"/delete", nil, "", owner)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.get("/workouts/max%20pull-ups", owner)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode(t, rec)
	assert.Empty(t, detail["results"])
	assert.Nil(t, detail["best"])
}

func TestChangePassword(t *testing.T) {
	s := setupTestServer(t)
	sessionID := s.login(t, "athlete@example.com")

	rec := s.postForm("/login", url.Values{"email": {"athlete@example.com"}, "password": {testPassword}}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	otherDevice := rec.Result().Cookies()[0].Value

	rec = s.postForm("/account/password", url.Values{
		"current_password": {"Wrong123!"},
		"new_password":     {"Grace2025!"},
		"confirm_password": {"Grace2025!"},
	}, sessionID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Current password is incorrect", fieldsOf(t, rec)["current_password"])

	rec = s.postForm("/account/password", url.Values{
		"current_password": {testPassword},
		"new_password":     {"Grace2025!"},
		"confirm_password": {"Grace2025!"},
	}, sessionID)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusOK, s.get("/me", sessionID).Code, "the session that changed the password stays signed in")
	assert.Equal(t, http.StatusUnauthorized, s.get("/me", otherDevice).Code, "other sessions are signed out")

	rec = s.postForm("/login", url.Values{"email": {"athlete@example.com"}, "password": {testPassword}}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.postForm("/login", url.Values{"email": {"athlete@example.com"}, "password": {"Grace2025!"}}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsAndHealth(t *testing.T) {
	s := setupTestServer(t)

	rec := s.get("/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.get("/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "spicywod_http_request_duration_seconds")

	rec = s.get("/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
