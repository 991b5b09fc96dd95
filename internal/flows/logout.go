package flows

import (
	"context"
	"strings"

	"github.com/Kascald/bootPractice-2/jwt"
)

// LogoutFailureKind classifies why a logout revoked nothing. Logout never
// fails from the caller's point of view; kinds exist for logs and metrics.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureNoToken
	LogoutFailureDecode
	LogoutFailureTokenStore
)

type LogoutTokenStore interface {
	Revoke(ctx context.Context, tokenID string) error
	RevokeFamily(ctx context.Context, subject, family string) error
}

// LogoutDeps captures logout flow dependencies. Decode should authenticate
// the token but tolerate expiry.
type LogoutDeps struct {
	Decode func(string) (*jwt.Claims, error)
	Store  LogoutTokenStore
}

type LogoutResult struct {
	Failure LogoutFailureKind
	Err     error
	Subject string
	TokenID string
}

// RunLogout revokes the refresh token's store record if it can be decoded,
// together with the subject's current token when that token continues the
// same rotation chain. A reissue that won the race against this logout
// cannot leave the chain usable, while a stale token from an earlier login
// leaves the subject's newer session alone.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) LogoutResult {
	if strings.TrimSpace(refreshToken) == "" {
		return LogoutResult{Failure: LogoutFailureNoToken}
	}
	claims, err := deps.Decode(refreshToken)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureDecode, Err: err}
	}
	if err := deps.Store.Revoke(ctx, claims.ID); err != nil {
		return LogoutResult{Failure: LogoutFailureTokenStore, Err: err, Subject: claims.Subject, TokenID: claims.ID}
	}
	if err := deps.Store.RevokeFamily(ctx, claims.Subject, claims.FamilyID()); err != nil {
		return LogoutResult{Failure: LogoutFailureTokenStore, Err: err, Subject: claims.Subject, TokenID: claims.ID}
	}
	return LogoutResult{Subject: claims.Subject, TokenID: claims.ID}
}
