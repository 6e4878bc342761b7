package web

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/middleware"
	"github.com/authgate/authgate/internal/telemetry/metrics"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"
)

// use TestMain(m *testing.M) { ... } for
// global set-up/tear-down for all the tests in a package
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func hashForTests(t *testing.T, password string) string {
	t.Helper()
	// min cost, these tests do not care about hash strength
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

// the same setup as in Server.routerSetup() ... these are not so much of a "unit" tests
func setupRouterForTests(t *testing.T) *mux.Router {
	t.Helper()

	userStore, err := auth.NewInMemoryUserStore(
		auth.User{ID: 1, Username: "user1", Role: auth.RoleUser, PasswordHash: hashForTests(t, "password1")},
		auth.User{ID: 2, Username: "admin", Role: auth.RoleAdmin, PasswordHash: hashForTests(t, "admin_pass")},
	)
	require.NoError(t, err)

	authService := auth.NewService(userStore, auth.NewSessionManager(time.Hour))
	metricsManager := metrics.NewTestManager()

	r := mux.NewRouter()
	r.Use(middleware.PanicRecovery(metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(metricsManager))
	r.Use(middleware.Cors([]string{"http://localhost:3000"}))
	r.Use(middleware.DrainAndCloseRequest())

	handler := NewHandler(authService, metricsManager, false, "dummy")
	handler.SetupRoutes(r, middleware.NewAuthMiddlewareHandler(authService, metricsManager))

	return r
}

func loginRequest(username, password string) *http.Request {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	req := httptest.NewRequest("POST", "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func doLogin(t *testing.T, router *mux.Router, username, password string) *http.Cookie {
	t.Helper()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, loginRequest(username, password))

	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/home", rr.Header().Get("Location"))

	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == middleware.SessionCookieName {
			require.NotEmpty(t, cookie.Value)
			assert.True(t, cookie.HttpOnly)
			assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
			return cookie
		}
	}
	t.Fatal("no session cookie set on successful login")
	return nil
}

func TestFullLoginFlow(t *testing.T) {
	router := setupRouterForTests(t)

	// no session: protected page bounces to login with the auth-required hint
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/home", nil))
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login?error=1", rr.Header().Get("Location"))

	// login and reach the protected page
	sessionCookie := doLogin(t, router, "user1", "password1")

	rr = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/home", nil)
	req.AddCookie(sessionCookie)
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Welcome, user1!")
	assert.NotContains(t, rr.Body.String(), "Admin area")

	// plain user on the admin page: rejected, not redirected to login
	rr = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/admin", nil)
	req.AddCookie(sessionCookie)
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, rr.Header().Get("Location"))

	// logout lands on login and kills the session
	rr = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/logout", nil)
	req.AddCookie(sessionCookie)
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))

	rr = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/home", nil)
	req.AddCookie(sessionCookie)
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login?error=1", rr.Header().Get("Location"))
}

func TestAdminFlow(t *testing.T) {
	router := setupRouterForTests(t)

	adminCookie := doLogin(t, router, "admin", "admin_pass")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin", nil)
	req.AddCookie(adminCookie)
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Hello, admin.")
	assert.Contains(t, rr.Body.String(), "Active sessions: 1")

	// admins see the home page too
	rr = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/home", nil)
	req.AddCookie(adminCookie)
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Admin area")
}

func TestLogin_Failures_Indistinguishable(t *testing.T) {
	router := setupRouterForTests(t)

	// wrong password for a real user vs. an unknown user: the HTTP
	// outcome must be byte for byte the same
	cases := [][2]string{
		{"user1", "wrong"},
		{"nosuchuser", "password1"},
		{"", ""},
	}

	for _, c := range cases {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, loginRequest(c[0], c[1]))

		assert.Equal(t, http.StatusSeeOther, rr.Code, "credentials %q/%q", c[0], c[1])
		assert.Equal(t, "/login?failed=1", rr.Header().Get("Location"), "credentials %q/%q", c[0], c[1])
		assert.Empty(t, rr.Result().Cookies(), "no cookie on failed login for %q/%q", c[0], c[1])
	}
}

func TestLoginPage_Banners(t *testing.T) {
	router := setupRouterForTests(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/login", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "Please log in first.")
	assert.NotContains(t, rr.Body.String(), "Wrong username or password.")

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/login?error=1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Please log in first.")

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/login?failed=1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Wrong username or password.")
}

func TestRootRedirects(t *testing.T) {
	router := setupRouterForTests(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))

	sessionCookie := doLogin(t, router, "user1", "password1")

	rr = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(sessionCookie)
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/home", rr.Header().Get("Location"))
}

func TestLogout_WithoutSession(t *testing.T) {
	router := setupRouterForTests(t)

	// logout never fails, with or without a session
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("POST", "/logout", nil))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))

	rr = httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "bogus-token"})
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
}

func TestVersionAndHealth(t *testing.T) {
	router := setupRouterForTests(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/version", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "dummy", rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}
