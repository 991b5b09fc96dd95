package flows

import (
	"github.com/Kascald/bootPractice-2/jwt"
)

// Identity is an authenticated subject and its role.
type Identity struct {
	Subject string
	Role    string
}

// TokenIssuer signs access and refresh tokens.
type TokenIssuer interface {
	IssueAccess(subject, role string) (jwt.Issued, error)
	IssueRefresh(subject, tokenID, family string) (jwt.Issued, error)
}

// Deps groups flow dependency sets. The engine builds this once and
// delegates each request method to the matching flow.
type Deps struct {
	Login    LoginDeps
	Reissue  ReissueDeps
	Logout   LogoutDeps
	Validate ValidateDeps
	Signup   SignupDeps
}

func warn(fn func(string, ...any), msg string, args ...any) {
	if fn != nil {
		fn(msg, args...)
	}
}
