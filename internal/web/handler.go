package web

import (
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/middleware"
	"github.com/authgate/authgate/internal/telemetry/metrics"
	"github.com/authgate/authgate/internal/telemetry/tracing"
	"github.com/authgate/authgate/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	loginFailedPath = "/login?failed=1"
	homePath        = "/home"
)

// Handler is the view boundary: it turns auth outcomes into redirects,
// cookies and rendered pages. No auth decisions are made here.
type Handler struct {
	authService    *auth.Service
	metricsManager *metrics.Manager
	templates      *template.Template
	secureCookies  bool
	versionInfo    string
}

func NewHandler(
	authService *auth.Service,
	metricsManager *metrics.Manager,
	secureCookies bool,
	versionInfo string,
) *Handler {
	return &Handler{
		authService:    authService,
		metricsManager: metricsManager,
		templates:      template.Must(template.ParseFS(templatesFS, "templates/*.html")),
		secureCookies:  secureCookies,
		versionInfo:    versionInfo,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	authMiddleware *middleware.AuthMiddlewareHandler,
) {
	mainRouter.HandleFunc("/", handler.handleRoot).Methods("GET").Name("root")
	mainRouter.HandleFunc("/login", handler.handleLoginPage).Methods("GET").Name("login-page")
	mainRouter.HandleFunc("/login", handler.handleLogin).Methods("POST").Name("login")
	mainRouter.HandleFunc("/logout", handler.handleLogout).Methods("POST").Name("logout")
	mainRouter.HandleFunc("/version", handler.handleGetVersionInfo).Methods("GET").Name("version")
	mainRouter.HandleFunc("/health", handler.handleHealth).Methods("GET").Name("health")

	mainRouter.Handle(
		"/home",
		authMiddleware.RequireAuth()(http.HandlerFunc(handler.handleHome)),
	).Methods("GET").Name("home")
	mainRouter.Handle(
		"/admin",
		authMiddleware.RequireRole(auth.RoleAdmin)(http.HandlerFunc(handler.handleAdmin)),
	).Methods("GET").Name("admin")
}

// handleRoot sends logged-in visitors home and everybody else to login.
func (handler *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "webHandler.root")
	defer span.End()

	if token := middleware.ReadSessionToken(r); token != "" {
		if _, err := handler.authService.Session(ctx, token); err == nil {
			span.SetStatus(codes.Ok, "to-home")
			http.Redirect(w, r, homePath, http.StatusFound)
			return
		}
	}

	span.SetStatus(codes.Ok, "to-login")
	http.Redirect(w, r, middleware.LoginPath, http.StatusFound)
}

func (handler *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "webHandler.loginPage")
	defer span.End()

	data := struct {
		AuthRequired bool
		LoginFailed  bool
	}{
		AuthRequired: r.URL.Query().Get("error") != "",
		LoginFailed:  r.URL.Query().Get("failed") != "",
	}

	handler.render(w, "login.html", data)
	span.SetStatus(codes.Ok, "ok")
}

func (handler *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "webHandler.login")
	defer span.End()

	if err := r.ParseForm(); err != nil {
		log.Errorf("login, parse form: %s", err)
		span.SetStatus(codes.Error, "parse-form")
		http.Redirect(w, r, loginFailedPath, http.StatusSeeOther)
		return
	}

	credentials := auth.Credentials{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}

	session, err := handler.authService.Login(ctx, credentials)
	if err != nil {
		handler.metricsManager.CounterLoginFailure.Inc()
		if errors.Is(err, auth.ErrInvalidCredentials) {
			if reqIp, ipErr := pkg.ReadUserIP(r); ipErr == nil {
				log.Tracef("failed login attempt for user [%s] from [%s]", credentials.Username, reqIp)
			}
		} else {
			// session store trouble, the client still only sees the generic outcome
			log.Errorf("login for user [%s]: %s", credentials.Username, err)
		}
		span.SetStatus(codes.Error, "login-failed")
		http.Redirect(w, r, loginFailedPath, http.StatusSeeOther)
		return
	}

	handler.metricsManager.CounterLoginSuccess.Inc()
	log.Tracef("new login success for user [%s]", session.Username)

	http.SetCookie(w, middleware.SessionCookie(
		session.Token,
		handler.authService.SessionTTL(),
		handler.secureCookies,
	))
	span.SetStatus(codes.Ok, "login-ok")
	http.Redirect(w, r, homePath, http.StatusSeeOther)
}

// handleLogout always lands on the login page, even for requests
// without a session. There is no way to fail a logout.
func (handler *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "webHandler.logout")
	defer span.End()

	if token := middleware.ReadSessionToken(r); token != "" {
		handler.authService.Logout(ctx, token)
	}

	http.SetCookie(w, middleware.ExpiredSessionCookie(handler.secureCookies))
	span.SetStatus(codes.Ok, "logout-ok")
	http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
}

func (handler *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "webHandler.home")
	defer span.End()

	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		// cannot happen behind RequireAuth, but never render without identity
		span.SetStatus(codes.Error, "no-session-in-context")
		http.Redirect(w, r, middleware.LoginPath, http.StatusFound)
		return
	}

	data := struct {
		Username string
		IsAdmin  bool
	}{
		Username: session.Username,
		IsAdmin:  session.Role == auth.RoleAdmin,
	}

	handler.render(w, "home.html", data)
	span.SetStatus(codes.Ok, "ok")
}

func (handler *Handler) handleAdmin(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "webHandler.admin")
	defer span.End()

	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		span.SetStatus(codes.Error, "no-session-in-context")
		http.Redirect(w, r, middleware.LoginPath, http.StatusFound)
		return
	}

	data := struct {
		Username       string
		ActiveSessions int64
	}{
		Username:       session.Username,
		ActiveSessions: handler.authService.ActiveSessions(),
	}

	handler.render(w, "admin.html", data)
	span.SetStatus(codes.Ok, "ok")
}

func (handler *Handler) handleGetVersionInfo(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, handler.versionInfo)
}

func (handler *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, "I'm OK, thanks ;)")
}

func (handler *Handler) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", pkg.ContentType.HTML)
	if err := handler.templates.ExecuteTemplate(w, name, data); err != nil {
		log.Errorf("render %s: %s", name, err)
	}
}
