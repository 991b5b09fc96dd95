package bootpractice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	internalaudit "github.com/Kascald/bootPractice-2/internal/audit"
	"github.com/Kascald/bootPractice-2/internal/flows"
	"github.com/Kascald/bootPractice-2/internal/rate"
	"github.com/Kascald/bootPractice-2/jwt"
	"github.com/Kascald/bootPractice-2/metrics"
	"github.com/Kascald/bootPractice-2/password"
	"github.com/Kascald/bootPractice-2/tokenstore"
)

// Engine runs login, reissue, logout, signup and access token validation.
// It is safe for concurrent use once built.
type Engine struct {
	config       Config
	codec        *jwt.Codec
	tokens       tokenstore.Store
	userProvider UserProvider
	hasher       password.Set
	dummyHash    string
	limiter      *rate.Limiter
	audit        *internalaudit.Dispatcher
	metrics      *metrics.Metrics
	log          *zap.Logger
	now          func() time.Time
	flows        flows.Deps
	stopSweeper  context.CancelFunc
}

// Close stops background work and flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.stopSweeper != nil {
		e.stopSweeper()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AccessTTL reports the lifetime of issued access tokens.
func (e *Engine) AccessTTL() time.Duration { return e.codec.AccessTTL() }

// RefreshTTL reports the lifetime of issued refresh tokens.
func (e *Engine) RefreshTTL() time.Duration { return e.codec.RefreshTTL() }

// Login authenticates username and password and returns a fresh token
// pair. The refresh token becomes the subject's only active one.
//
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, username, pw string) (*TokenPair, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}
	if !e.codec.CanSign() {
		return nil, ErrVerifyOnly
	}
	defer e.metrics.Observe("login", time.Now())

	res := flows.RunLogin(ctx, normalizeUsername(username), pw, e.flows.Login)
	switch res.Failure {
	case flows.LoginFailureNone:
		e.metrics.Login("success")
		e.emitAudit(ctx, auditEventLoginSuccess, true, res.Subject, res.Refresh.ID, nil, nil)
		return pairFrom(res.Access, res.Refresh), nil
	case flows.LoginFailureRateLimited:
		e.metrics.Login("rate_limited")
		e.emitAudit(ctx, auditEventLoginRateLimited, false, res.Subject, "", ErrLoginRateLimited, nil)
		return nil, ErrLoginRateLimited
	case flows.LoginFailureCredentials:
		e.metrics.Login("invalid_credentials")
		e.emitAudit(ctx, auditEventLoginFailure, false, res.Subject, "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	case flows.LoginFailureLimiterUnavailable, flows.LoginFailureUserStore, flows.LoginFailureTokenStore:
		e.metrics.Login("unavailable")
		e.log.Warn("login backend unavailable", zap.Error(res.Err))
		e.emitAudit(ctx, auditEventLoginFailure, false, res.Subject, "", ErrStoreUnavailable, nil)
		return nil, unavailable(res.Err)
	default:
		e.metrics.Login("error")
		e.log.Error("login token issue failed", zap.Error(res.Err))
		e.emitAudit(ctx, auditEventLoginFailure, false, res.Subject, "", res.Err, nil)
		return nil, fmt.Errorf("issue tokens: %w", res.Err)
	}
}

// Reissue exchanges a refresh token for a new pair. Each refresh token can
// be exchanged once; concurrent calls with the same token have exactly one
// winner and the others get ErrRefreshRevoked.
func (e *Engine) Reissue(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}
	if !e.codec.CanSign() {
		return nil, ErrVerifyOnly
	}
	defer e.metrics.Observe("reissue", time.Now())

	res := flows.RunReissue(ctx, refreshToken, e.flows.Reissue)
	switch res.Failure {
	case flows.ReissueFailureNone:
		e.metrics.Reissue("success")
		e.emitAudit(ctx, auditEventRefreshSuccess, true, res.Subject, res.Refresh.ID,
			nil, map[string]string{"previous_token_id": res.OldTokenID})
		return pairFrom(res.Access, res.Refresh), nil
	case flows.ReissueFailureExpired:
		e.metrics.Reissue("expired")
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrTokenExpired, nil)
		return nil, fmt.Errorf("%w: %w", ErrTokenExpired, res.Err)
	case flows.ReissueFailureInvalid:
		e.metrics.Reissue("invalid")
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrTokenInvalid, nil)
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, res.Err)
	case flows.ReissueFailureRevoked:
		e.metrics.Reissue("revoked")
		meta := map[string]string{"contained": fmt.Sprint(res.ReuseContained)}
		e.emitAudit(ctx, auditEventRefreshReuse, false, res.Subject, res.OldTokenID, ErrRefreshRevoked, meta)
		return nil, ErrRefreshRevoked
	case flows.ReissueFailureUserMissing:
		e.metrics.Reissue("revoked")
		e.emitAudit(ctx, auditEventRefreshUserMissing, false, res.Subject, res.OldTokenID, ErrUserNotFound, nil)
		return nil, ErrRefreshRevoked
	case flows.ReissueFailureUserStore, flows.ReissueFailureTokenStore:
		e.metrics.Reissue("unavailable")
		e.log.Warn("reissue backend unavailable", zap.Error(res.Err))
		return nil, unavailable(res.Err)
	default:
		e.metrics.Reissue("error")
		e.log.Error("reissue token issue failed", zap.Error(res.Err))
		return nil, fmt.Errorf("issue tokens: %w", res.Err)
	}
}

// Logout revokes the refresh token's record and the subject's current
// refresh token when it was rotated from the same login. It is idempotent
// and never fails: malformed tokens are ignored, and a token from an ended
// session does not touch the subject's newer one.
func (e *Engine) Logout(ctx context.Context, refreshToken string) {
	if e == nil || e.codec == nil {
		return
	}

	res := flows.RunLogout(ctx, refreshToken, e.flows.Logout)
	switch res.Failure {
	case flows.LogoutFailureNone:
		e.metrics.Logout("revoked")
		e.emitAudit(ctx, auditEventLogout, true, res.Subject, res.TokenID, nil, nil)
	case flows.LogoutFailureNoToken:
		e.metrics.Logout("no_token")
	case flows.LogoutFailureDecode:
		e.metrics.Logout("undecodable")
	case flows.LogoutFailureTokenStore:
		e.metrics.Logout("unavailable")
		e.log.Warn("logout revoke failed", zap.Error(res.Err))
		e.emitAudit(ctx, auditEventLogout, false, res.Subject, res.TokenID, ErrStoreUnavailable, nil)
	}
}

// LogoutAll revokes every refresh token of subject. Access tokens already
// issued stay valid until they expire.
func (e *Engine) LogoutAll(ctx context.Context, subject string) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	if err := e.tokens.RevokeAllForSubject(ctx, subject); err != nil {
		return unavailable(err)
	}
	e.emitAudit(ctx, auditEventLogoutAll, true, subject, "", nil, nil)
	return nil
}

// ValidateAccess verifies an access token by signature and expiry. It does
// no I/O.
func (e *Engine) ValidateAccess(ctx context.Context, token string) (Principal, error) {
	if e == nil || e.codec == nil {
		return Principal{}, ErrEngineNotReady
	}

	res := flows.RunValidate(token, e.flows.Validate)
	switch res.Failure {
	case flows.ValidateFailureNone:
		e.metrics.Authn("success")
		return Principal{Subject: res.Identity.Subject, Role: res.Identity.Role}, nil
	case flows.ValidateFailureMissing:
		e.metrics.Authn("missing")
		return Principal{}, fmt.Errorf("%w: %w", ErrTokenInvalid, res.Err)
	case flows.ValidateFailureExpired:
		e.metrics.Authn("expired")
		return Principal{}, fmt.Errorf("%w: %w", ErrTokenExpired, res.Err)
	case flows.ValidateFailureInvalidSignature:
		e.metrics.Authn("invalid_signature")
	case flows.ValidateFailureWrongType:
		e.metrics.Authn("wrong_type")
	default:
		e.metrics.Authn("malformed")
	}
	return Principal{}, fmt.Errorf("%w: %w", ErrTokenInvalid, res.Err)
}

// Signup creates a user with the configured default role.
func (e *Engine) Signup(ctx context.Context, username, pw string) (Principal, error) {
	if e == nil || e.codec == nil {
		return Principal{}, ErrEngineNotReady
	}
	defer e.metrics.Observe("signup", time.Now())

	res := flows.RunSignup(ctx, normalizeUsername(username), pw, e.flows.Signup)
	switch res.Failure {
	case flows.SignupFailureNone:
		e.metrics.Signup("success")
		e.emitAudit(ctx, auditEventSignupSuccess, true, res.Subject, "", nil, nil)
		return Principal{Subject: res.Subject, Role: res.Role}, nil
	case flows.SignupFailureDisabled:
		e.metrics.Signup("disabled")
		return Principal{}, ErrSignupDisabled
	case flows.SignupFailurePolicy:
		e.metrics.Signup("policy")
		e.emitAudit(ctx, auditEventSignupFailure, false, res.Subject, "", res.Err, nil)
		return Principal{}, res.Err
	case flows.SignupFailureExists:
		e.metrics.Signup("duplicate")
		e.emitAudit(ctx, auditEventSignupDuplicate, false, res.Subject, "", ErrUserExists, nil)
		return Principal{}, ErrUserExists
	case flows.SignupFailureHash:
		e.metrics.Signup("policy")
		if errors.Is(res.Err, password.ErrPasswordTooLong) || errors.Is(res.Err, password.ErrEmptyPassword) {
			return Principal{}, fmt.Errorf("%w: %w", ErrPasswordPolicy, res.Err)
		}
		e.log.Error("signup hash failed", zap.Error(res.Err))
		return Principal{}, fmt.Errorf("hash password: %w", res.Err)
	default:
		e.metrics.Signup("unavailable")
		e.log.Warn("signup backend unavailable", zap.Error(res.Err))
		e.emitAudit(ctx, auditEventSignupFailure, false, res.Subject, "", ErrStoreUnavailable, nil)
		return Principal{}, unavailable(res.Err)
	}
}

func (e *Engine) initFlowDeps() {
	sugar := e.log.Sugar()

	login := flows.LoginDeps{
		Authenticate: func(ctx context.Context, username, pw string) (flows.Identity, error) {
			p, err := e.Authenticate(ctx, username, pw)
			return flows.Identity{Subject: p.Subject, Role: p.Role}, err
		},
		IsCredentialFailure: func(err error) bool {
			return errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrUserNotFound)
		},
		Issuer:     e.codec,
		Store:      e.tokens,
		NewTokenID: uuid.NewString,
		ClientIP:   clientIPFromContext,
		Warn:       sugar.Warnw,
	}
	if e.limiter != nil {
		login.RateLimiter = e.limiter
		login.IsRateLimited = func(err error) bool { return errors.Is(err, rate.ErrRateLimited) }
	}

	e.flows = flows.Deps{
		Login: login,
		Reissue: flows.ReissueDeps{
			Verify: e.codec.VerifyRefresh,
			Issuer: e.codec,
			LookupRole: func(ctx context.Context, subject string) (string, error) {
				u, err := e.userProvider.GetUserByUsername(ctx, subject)
				if err != nil {
					return "", err
				}
				return u.Role, nil
			},
			IsUserMissing: func(err error) bool { return errors.Is(err, ErrUserNotFound) },
			Store:         e.tokens,
			NewTokenID:    uuid.NewString,
			RevokeOnReuse: e.config.Reissue.RevokeOnReuse,
			Warn:          sugar.Warnw,
		},
		Logout: flows.LogoutDeps{
			Decode: e.codec.VerifyRefreshAllowExpired,
			Store:  e.tokens,
		},
		Validate: flows.ValidateDeps{
			Verify: e.codec.VerifyAccess,
		},
		Signup: flows.SignupDeps{
			Enabled:          e.config.Signup.Enabled,
			DefaultRole:      e.config.Signup.DefaultRole,
			ValidateUsername: e.validateUsername,
			ValidatePassword: e.validatePassword,
			Hash:             e.hasher.Hash,
			Create: func(ctx context.Context, username, hash, role string) error {
				return e.userProvider.CreateUser(ctx, UserRecord{
					Username:     username,
					PasswordHash: hash,
					Role:         role,
					CreatedAt:    e.now().UTC(),
				})
			},
			IsDuplicate: func(err error) bool { return errors.Is(err, ErrUserExists) },
		},
	}
}

func pairFrom(access, refresh jwt.Issued) *TokenPair {
	return &TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}
}

// unavailable tags err as a store outage unless it already is one.
func unavailable(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
