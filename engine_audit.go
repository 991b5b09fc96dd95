package bootpractice

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLoginRateLimited   = "login_rate_limited"
	auditEventRefreshSuccess     = "refresh_success"
	auditEventRefreshInvalid     = "refresh_invalid"
	auditEventRefreshReuse       = "refresh_reuse"
	auditEventRefreshUserMissing = "refresh_user_missing"
	auditEventLogout             = "logout"
	auditEventLogoutAll          = "logout_all"
	auditEventSignupSuccess      = "signup_success"
	auditEventSignupFailure      = "signup_failure"
	auditEventSignupDuplicate    = "signup_duplicate"
	auditEventPasswordRehash     = "password_rehash"
)

// AuditErrorCode is the stable identifier written to AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrUserExists         AuditErrorCode = "user_exists"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrUnavailable        AuditErrorCode = "unavailable"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrRefreshRevoked     AuditErrorCode = "refresh_revoked"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrUsernameInvalid    AuditErrorCode = "username_invalid"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, subject, tokenID string, err error, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	var code string
	if err != nil {
		code = string(auditErrorCode(err))
	}

	e.audit.Emit(ctx, AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Subject:   subject,
		TokenID:   tokenID,
		IP:        clientIPFromContext(ctx),
		RequestID: requestIDFromContext(ctx),
		Success:   success,
		Error:     code,
		Metadata:  metadata,
	})
}

// auditErrorCode maps err onto a code that carries no internal detail.
func auditErrorCode(err error) AuditErrorCode {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrUserExists):
		return auditErrUserExists
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrRefreshRevoked):
		return auditErrRefreshRevoked
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrUsernameInvalid):
		return auditErrUsernameInvalid
	default:
		return auditErrInternal
	}
}
