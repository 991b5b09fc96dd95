package flows

import (
	"context"

	"github.com/Kascald/bootPractice-2/jwt"
	"github.com/Kascald/bootPractice-2/tokenstore"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureLimiterUnavailable
	LoginFailureCredentials
	LoginFailureUserStore
	LoginFailureIssue
	LoginFailureTokenStore
)

type LoginRateLimiter interface {
	CheckLogin(ctx context.Context, username, ip string) error
	IncrementLogin(ctx context.Context, username, ip string) error
	ResetLogin(ctx context.Context, username, ip string) error
}

type LoginTokenStore interface {
	Record(ctx context.Context, rec tokenstore.Record) error
}

// LoginDeps captures login flow dependencies. RateLimiter and ClientIP are
// optional.
type LoginDeps struct {
	Authenticate        func(ctx context.Context, username, password string) (Identity, error)
	IsCredentialFailure func(error) bool
	Issuer              TokenIssuer
	Store               LoginTokenStore
	NewTokenID          func() string
	RateLimiter         LoginRateLimiter
	IsRateLimited       func(error) bool
	ClientIP            func(context.Context) string
	Warn                func(string, ...any)
}

// LoginResult carries either the issued token pair or failure metadata.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	Subject string
	Role    string
	Access  jwt.Issued
	Refresh jwt.Issued
}

// RunLogin authenticates the credentials, issues an access and refresh
// token, and records the refresh token as the subject's only active one.
// The refresh token starts a new rotation chain named after its own id.
func RunLogin(ctx context.Context, username, password string, deps LoginDeps) LoginResult {
	var ip string
	if deps.ClientIP != nil {
		ip = deps.ClientIP(ctx)
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckLogin(ctx, username, ip); err != nil {
			if deps.IsRateLimited != nil && deps.IsRateLimited(err) {
				return LoginResult{Failure: LoginFailureRateLimited, Err: err, Subject: username}
			}
			return LoginResult{Failure: LoginFailureLimiterUnavailable, Err: err, Subject: username}
		}
	}

	id, err := deps.Authenticate(ctx, username, password)
	if err != nil {
		if deps.IsCredentialFailure(err) {
			if deps.RateLimiter != nil {
				if incErr := deps.RateLimiter.IncrementLogin(ctx, username, ip); incErr != nil {
					warn(deps.Warn, "login limiter increment failed", "error", incErr)
				}
			}
			return LoginResult{Failure: LoginFailureCredentials, Err: err, Subject: username}
		}
		return LoginResult{Failure: LoginFailureUserStore, Err: err, Subject: username}
	}

	tokenID := deps.NewTokenID()
	refresh, err := deps.Issuer.IssueRefresh(id.Subject, tokenID, tokenID)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, Subject: id.Subject}
	}
	access, err := deps.Issuer.IssueAccess(id.Subject, id.Role)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, Subject: id.Subject}
	}

	if err := deps.Store.Record(ctx, tokenstore.Record{
		TokenID:   refresh.ID,
		Subject:   id.Subject,
		Family:    tokenID,
		IssuedAt:  refresh.IssuedAt,
		ExpiresAt: refresh.ExpiresAt,
	}); err != nil {
		return LoginResult{Failure: LoginFailureTokenStore, Err: err, Subject: id.Subject}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.ResetLogin(ctx, username, ip); err != nil {
			warn(deps.Warn, "login limiter reset failed", "error", err)
		}
	}

	return LoginResult{
		Failure: LoginFailureNone,
		Subject: id.Subject,
		Role:    id.Role,
		Access:  access,
		Refresh: refresh,
	}
}
