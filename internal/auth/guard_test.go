package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequireAuthenticated(t *testing.T) {
	assert.Equal(t, MustAuthenticate, RequireAuthenticated(nil))

	session := &Session{
		Token:     "t",
		UserID:    1,
		Username:  "user1",
		Role:      RoleUser,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	assert.Equal(t, Pass, RequireAuthenticated(session))
}

func TestRequireRole(t *testing.T) {
	userSession := &Session{Token: "t1", UserID: 1, Username: "user1", Role: RoleUser}
	adminSession := &Session{Token: "t2", UserID: 2, Username: "admin", Role: RoleAdmin}

	testCases := []struct {
		name     string
		session  *Session
		role     Role
		expected Decision
	}{
		{
			name:     "NoSession",
			session:  nil,
			role:     RoleAdmin,
			expected: MustAuthenticate,
		},
		{
			name:     "UserAccessingUserResource",
			session:  userSession,
			role:     RoleUser,
			expected: Pass,
		},
		{
			name: "UserAccessingAdminResource",
			// authenticated but wrong role: rejected, not bounced to login
			session:  userSession,
			role:     RoleAdmin,
			expected: Forbidden,
		},
		{
			name:     "AdminAccessingAdminResource",
			session:  adminSession,
			role:     RoleAdmin,
			expected: Pass,
		},
		{
			name:     "AdminAccessingUserResource",
			session:  adminSession,
			role:     RoleUser,
			expected: Forbidden,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, RequireRole(tc.session, tc.role))
		})
	}
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "pass", Pass.String())
	assert.Equal(t, "must-authenticate", MustAuthenticate.String())
	assert.Equal(t, "forbidden", Forbidden.String())
	assert.Equal(t, "unknown", Decision(42).String())
}
