package auth

import (
	"errors"
	"fmt"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

var ErrUserNotFound = errors.New("user not found")

// User is a credential store record. PasswordHash is a bcrypt hash and
// must never leave the store - sessions carry an identity snapshot only.
type User struct {
	ID           int
	Username     string
	Role         Role
	PasswordHash string
}

// UserStore is a read-only credential lookup. A real persistence
// backend can be plugged in behind it without touching the login logic.
type UserStore interface {
	FindByUsername(username string) (User, error)
}

// InMemoryUserStore holds a fixed set of users, seeded once at
// construction and immutable afterwards.
type InMemoryUserStore struct {
	users map[string]User
}

func NewInMemoryUserStore(users ...User) (*InMemoryUserStore, error) {
	store := &InMemoryUserStore{
		users: make(map[string]User, len(users)),
	}
	for _, u := range users {
		if u.Username == "" {
			return nil, fmt.Errorf("user %d: empty username", u.ID)
		}
		if !u.Role.Valid() {
			return nil, fmt.Errorf("user %s: invalid role %q", u.Username, u.Role)
		}
		if _, ok := store.users[u.Username]; ok {
			return nil, fmt.Errorf("duplicate username: %s", u.Username)
		}
		store.users[u.Username] = u
	}
	return store, nil
}

// FindByUsername does an exact, case-sensitive lookup.
func (s *InMemoryUserStore) FindByUsername(username string) (User, error) {
	user, ok := s.users[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}
