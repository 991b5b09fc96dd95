package bootpractice

import "errors"

var (
	// ErrInvalidCredentials is returned by Login for any username/password
	// mismatch, including unknown users.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by a UserProvider when no record exists.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned by a UserProvider and by Signup for a taken username.
	ErrUserExists = errors.New("user already exists")
	// ErrLoginRateLimited is returned while a username or IP is in cooldown.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrStoreUnavailable marks a backing store outage. It is never
	// reported as a token or credential failure.
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrTokenInvalid   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrRefreshRevoked = errors.New("refresh token revoked")

	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	ErrPasswordPolicy  = errors.New("password policy violation")
	ErrUsernameInvalid = errors.New("invalid username")
	ErrSignupDisabled  = errors.New("signup disabled")

	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrVerifyOnly is returned by Login and Reissue on an engine built with
	// an ed25519 public key only.
	ErrVerifyOnly = errors.New("engine cannot issue tokens")
)
