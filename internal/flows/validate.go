package flows

import (
	"errors"
	"strings"

	"github.com/Kascald/bootPractice-2/jwt"
)

// ValidateFailureKind classifies access token rejections.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureMissing
	ValidateFailureMalformed
	ValidateFailureInvalidSignature
	ValidateFailureExpired
	ValidateFailureWrongType
)

type ValidateDeps struct {
	Verify func(string) (*jwt.Claims, error)
}

type ValidateResult struct {
	Failure  ValidateFailureKind
	Err      error
	Identity Identity
	Claims   *jwt.Claims
}

// RunValidate verifies an access token. It performs no I/O: access tokens
// are proven by signature and expiry alone.
func RunValidate(token string, deps ValidateDeps) ValidateResult {
	if strings.TrimSpace(token) == "" {
		return ValidateResult{Failure: ValidateFailureMissing, Err: jwt.ErrMalformed}
	}
	claims, err := deps.Verify(token)
	if err != nil {
		return ValidateResult{Failure: classifyTokenError(err), Err: err}
	}
	return ValidateResult{
		Identity: Identity{Subject: claims.Subject, Role: claims.Role},
		Claims:   claims,
	}
}

func classifyTokenError(err error) ValidateFailureKind {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return ValidateFailureExpired
	case errors.Is(err, jwt.ErrInvalidSignature):
		return ValidateFailureInvalidSignature
	case errors.Is(err, jwt.ErrWrongType):
		return ValidateFailureWrongType
	default:
		return ValidateFailureMalformed
	}
}
