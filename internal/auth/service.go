package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/authgate/authgate/internal/telemetry/tracing"
	"github.com/authgate/authgate/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

// ErrInvalidCredentials is the single failure for unknown username and
// wrong password. Callers must never be able to tell those two apart.
var ErrInvalidCredentials = errors.New("invalid credentials")

// decoyPasswordHash is compared against when the username is unknown,
// so that path burns the same bcrypt work as a wrong-password check for
// an existing user. Hashed once at startup with pkg.HashPassword, its
// embedded cost factor cannot drift from the cost real user hashes are
// created with.
var decoyPasswordHash = func() string {
	hash, err := pkg.HashPassword("decoy, matches no real password")
	if err != nil {
		panic(fmt.Sprintf("generate decoy password hash: %s", err))
	}
	return hash
}()

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Service orchestrates the credential store, the password check and the
// session manager into the login and logout flows.
type Service struct {
	users    UserStore
	sessions *SessionManager
}

func NewService(users UserStore, sessions *SessionManager) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
	}
}

// Login checks the credentials and, on success, issues a session bound
// to a snapshot of the user's identity. Every failure comes back as
// ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, credentials Credentials) (*Session, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "authService.login")
	defer span.End()

	user, err := s.users.FindByUsername(credentials.Username)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			// store acting up - log it, fail closed with the generic outcome
			log.Errorf("login, credential store lookup: %s", err)
			span.RecordError(err)
		}
		// burn a hash comparison regardless, see decoyPasswordHash
		pkg.CheckPasswordHash(credentials.Password, decoyPasswordHash)
		span.SetStatus(codes.Error, "invalid-credentials")
		return nil, ErrInvalidCredentials
	}

	if !pkg.CheckPasswordHash(credentials.Password, user.PasswordHash) {
		span.SetStatus(codes.Error, "invalid-credentials")
		return nil, ErrInvalidCredentials
	}

	session, err := s.sessions.Create(ctx, user.ID, user.Username, user.Role)
	if err != nil {
		span.SetStatus(codes.Error, "create-session")
		span.RecordError(err)
		return nil, fmt.Errorf("create session: %w", err)
	}

	span.SetStatus(codes.Ok, "login-ok")
	return session, nil
}

// Session resolves a token to its live session, ErrNoSession otherwise.
func (s *Service) Session(ctx context.Context, token string) (*Session, error) {
	return s.sessions.Get(ctx, token)
}

// Logout destroys the session for the token. It always succeeds from
// the caller's perspective, even for tokens that never existed.
func (s *Service) Logout(ctx context.Context, token string) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "authService.logout")
	defer span.End()

	s.sessions.Destroy(ctx, token)
	span.SetStatus(codes.Ok, "logout-ok")
}

// ActiveSessions reports the current number of stored sessions.
func (s *Service) ActiveSessions() int64 {
	return s.sessions.ActiveSessions()
}

// SessionTTL is the lifetime of newly issued sessions, also used for
// the cookie max age.
func (s *Service) SessionTTL() time.Duration {
	return s.sessions.TTL()
}
