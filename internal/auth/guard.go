package auth

// Decision is a guard outcome. MustAuthenticate and Forbidden are
// deliberately distinct: a logged-in user with the wrong role gets
// rejected, not bounced to the login page as if logged out.
type Decision int

const (
	Pass Decision = iota
	MustAuthenticate
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Pass:
		return "pass"
	case MustAuthenticate:
		return "must-authenticate"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// RequireAuthenticated passes for any live session. A nil session means
// the lookup already reported the token as absent, expired or destroyed.
func RequireAuthenticated(session *Session) Decision {
	if session == nil {
		return MustAuthenticate
	}
	return Pass
}

// RequireRole passes only for a live session holding the given role.
// The authentication check runs first, role comparison assumes a
// valid snapshot.
func RequireRole(session *Session, role Role) Decision {
	if decision := RequireAuthenticated(session); decision != Pass {
		return decision
	}
	if session.Role != role {
		return Forbidden
	}
	return Pass
}
