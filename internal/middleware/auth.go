package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/telemetry/metrics"
	"github.com/authgate/authgate/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

const (
	// SessionCookieName carries the opaque session token. The cookie is
	// the only place the token ever travels.
	SessionCookieName = "authgate_session"

	// LoginPath is where unauthenticated requests get redirected,
	// tagged with a reason so the login view can show a hint.
	LoginPath             = "/login"
	loginPathAuthRequired = "/login?error=1"
)

//go:generate mockgen -source=auth.go -destination=auth_mocks_test.go -package=middleware_test

type sessionResolver interface {
	Session(ctx context.Context, token string) (*auth.Session, error)
}

// SessionCookie builds the session cookie: unreadable by page scripts,
// same-site by default, secure-only when served over TLS.
func SessionCookie(token string, ttl time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredSessionCookie tells the browser to drop the session cookie.
func ExpiredSessionCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ReadSessionToken returns the session token from the request cookie,
// or an empty string when there is none.
func ReadSessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

type ctxKey int

const sessionCtxKey ctxKey = 0

// SessionFromContext returns the session the auth middleware resolved
// for this request, if any.
func SessionFromContext(ctx context.Context) (*auth.Session, bool) {
	session, ok := ctx.Value(sessionCtxKey).(*auth.Session)
	return session, ok
}

// ContextWithSession is exposed for handler tests.
func ContextWithSession(ctx context.Context, session *auth.Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session)
}

type AuthMiddlewareHandler struct {
	sessions       sessionResolver
	metricsManager *metrics.Manager
}

func NewAuthMiddlewareHandler(
	sessions sessionResolver,
	metricsManager *metrics.Manager,
) *AuthMiddlewareHandler {
	return &AuthMiddlewareHandler{
		sessions:       sessions,
		metricsManager: metricsManager,
	}
}

// resolve maps the request's cookie to a live session. Any session
// store failure is already collapsed to absence down in the manager, so
// a nil session here simply means "not authenticated".
func (h *AuthMiddlewareHandler) resolve(r *http.Request) *auth.Session {
	token := ReadSessionToken(r)
	if token == "" {
		return nil
	}
	session, err := h.sessions.Session(r.Context(), token)
	if err != nil {
		return nil
	}
	return session
}

// RequireAuth gates a handler behind the "is authenticated" guard.
// Requests without a live session get redirected to the login view.
func (h *AuthMiddlewareHandler) RequireAuth() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.requireAuth")
			defer span.End()

			session := h.resolve(r)
			if auth.RequireAuthenticated(session) != auth.Pass {
				log.Tracef("[no session] unauthenticated => %s", r.URL.Path)
				h.metricsManager.CounterUnauthenticated.Inc()
				span.SetStatus(codes.Error, "must-authenticate")
				http.Redirect(w, r, loginPathAuthRequired, http.StatusFound)
				return
			}

			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r.WithContext(ContextWithSession(ctx, session)))
		})
	}
}

// RequireRole gates a handler behind both guards: authenticated first,
// then role. A wrong role is a hard 403, never a login redirect - the
// user should know they were rejected, not think they were logged out.
func (h *AuthMiddlewareHandler) RequireRole(role auth.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.requireRole")
			defer span.End()

			session := h.resolve(r)
			switch decision := auth.RequireRole(session, role); decision {
			case auth.Pass:
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r.WithContext(ContextWithSession(ctx, session)))
			case auth.MustAuthenticate:
				log.Tracef("[no session] unauthenticated => %s", r.URL.Path)
				h.metricsManager.CounterUnauthenticated.Inc()
				span.SetStatus(codes.Error, "must-authenticate")
				http.Redirect(w, r, loginPathAuthRequired, http.StatusFound)
			case auth.Forbidden:
				log.Tracef("[role %s required] forbidden for user [%s] => %s", role, session.Username, r.URL.Path)
				h.metricsManager.CounterForbidden.Inc()
				span.SetStatus(codes.Error, "forbidden")
				http.Error(w, "forbidden", http.StatusForbidden)
			default:
				span.SetStatus(codes.Error, "unexpected-decision")
				http.Error(w, "forbidden", http.StatusForbidden)
			}
		})
	}
}
