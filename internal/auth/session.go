package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/authgate/authgate/internal/telemetry/tracing"
	"github.com/authgate/authgate/pkg"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultTTL = time.Hour

	tokenLength      = 35
	sessionCacheSize = 16 * 1024 * 1024
)

// ErrNoSession covers every way a session can be absent: never created,
// expired, destroyed, or a session store failure (fail closed).
var ErrNoSession = errors.New("no session")

// Session is the identity snapshot bound to a token at login time.
// It deliberately holds copies of the user fields - changing a user
// record later does not change what an existing session sees.
type Session struct {
	Token     string    `json:"-"`
	UserID    int       `json:"user_id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionManager owns all session state. The freecache backend gives us
// synchronized per-key access and a second layer of TTL enforcement,
// ExpiresAt in the snapshot stays authoritative.
type SessionManager struct {
	cache *freecache.Cache
	ttl   time.Duration

	// injectable for unit and dev testing
	RandStringFunc func(s int) (string, error)
	NowFunc        func() time.Time
}

func NewSessionManager(ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SessionManager{
		cache:          freecache.NewCache(sessionCacheSize),
		ttl:            ttl,
		RandStringFunc: pkg.GenerateRandomString,
		NowFunc:        time.Now,
	}
}

func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// Create issues a new session for the given identity and returns it,
// token included. The token is never reused on purpose - a fresh one is
// generated for every login, concurrent logins get independent sessions.
func (sm *SessionManager) Create(ctx context.Context, userID int, username string, role Role) (*Session, error) {
	_, span := tracing.GlobalTracer.Start(ctx, "sessionManager.create")
	defer span.End()

	token, err := sm.RandStringFunc(tokenLength)
	if err != nil {
		span.SetStatus(codes.Error, "generate token")
		span.RecordError(err)
		return nil, err
	}

	now := sm.NowFunc()
	session := &Session{
		Token:     token,
		UserID:    userID,
		Username:  username,
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(sm.ttl),
	}

	sessionBytes, err := json.Marshal(session)
	if err != nil {
		span.SetStatus(codes.Error, "marshal session")
		span.RecordError(err)
		return nil, err
	}

	if err := sm.cache.Set([]byte(token), sessionBytes, int(sm.ttl.Seconds())); err != nil {
		span.SetStatus(codes.Error, "store session")
		span.RecordError(err)
		return nil, err
	}

	span.SetStatus(codes.Ok, "session-created")
	return session, nil
}

// Get returns the session for the token, or ErrNoSession when the token
// is unknown, the session expired, or the store misbehaves. Callers can
// not tell those cases apart, and that is intended.
func (sm *SessionManager) Get(ctx context.Context, token string) (*Session, error) {
	_, span := tracing.GlobalTracer.Start(ctx, "sessionManager.get")
	defer span.End()

	if token == "" {
		return nil, ErrNoSession
	}

	sessionBytes, err := sm.cache.Get([]byte(token))
	if err != nil {
		if !errors.Is(err, freecache.ErrNotFound) {
			log.Errorf("session store get: %s", err)
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, "session-absent")
		return nil, ErrNoSession
	}

	var session Session
	if err := json.Unmarshal(sessionBytes, &session); err != nil {
		// corrupt entry, drop it and fail closed
		log.Errorf("unmarshal stored session: %s", err)
		sm.cache.Del([]byte(token))
		span.SetStatus(codes.Error, "session-corrupt")
		return nil, ErrNoSession
	}
	session.Token = token

	if !sm.NowFunc().Before(session.ExpiresAt) {
		sm.cache.Del([]byte(token))
		span.SetStatus(codes.Error, "session-expired")
		return nil, ErrNoSession
	}

	span.SetStatus(codes.Ok, "session-found")
	return &session, nil
}

// Destroy removes the session, idempotently. It cannot fail from the
// caller's perspective - a user must never be stuck unable to log out.
func (sm *SessionManager) Destroy(ctx context.Context, token string) {
	_, span := tracing.GlobalTracer.Start(ctx, "sessionManager.destroy")
	defer span.End()

	if token == "" {
		return
	}
	sm.cache.Del([]byte(token))
	span.SetStatus(codes.Ok, "session-destroyed")
}

// ActiveSessions reports the number of stored sessions. Entries past
// their TTL may still be counted until swept or read.
func (sm *SessionManager) ActiveSessions() int64 {
	return sm.cache.EntryCount()
}

// ScanAndClean runs through all sessions, drops the expired ones and
// reports how many were removed. Purely an optimization - Get enforces
// expiry lazily either way.
func (sm *SessionManager) ScanAndClean(ctx context.Context) int {
	_, span := tracing.GlobalTracer.Start(ctx, "sessionManager.scanAndClean")
	defer span.End()

	if sm.cache.EntryCount() == 0 {
		log.Debugln("session manager, scan and clean abort, no sessions")
		return 0
	}

	log.Debugf("session manager, scan and clean [%d sessions] start ...", sm.cache.EntryCount())

	now := sm.NowFunc()
	var toRemove [][]byte
	iter := sm.cache.NewIterator()
	for entry := iter.Next(); entry != nil; entry = iter.Next() {
		var session Session
		if err := json.Unmarshal(entry.Value, &session); err != nil {
			log.Errorf("session manager, scan and clean, unmarshal session: %s", err)
			toRemove = append(toRemove, entry.Key)
			continue
		}
		if !now.Before(session.ExpiresAt) {
			toRemove = append(toRemove, entry.Key)
		}
	}

	for _, key := range toRemove {
		sm.cache.Del(key)
	}

	if len(toRemove) > 0 {
		log.Debugf("session manager, scan and clean, removed %d sessions", len(toRemove))
	}
	return len(toRemove)
}
