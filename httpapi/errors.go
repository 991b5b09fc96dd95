package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	bootpractice "github.com/Kascald/bootPractice-2"
)

// errorMapping is checked in order; the first sentinel the error wraps wins.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{bootpractice.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{bootpractice.ErrLoginRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{bootpractice.ErrStoreUnavailable, http.StatusServiceUnavailable, "unavailable"},
	{bootpractice.ErrTokenExpired, http.StatusUnauthorized, "token_expired"},
	{bootpractice.ErrRefreshRevoked, http.StatusUnauthorized, "token_revoked"},
	{bootpractice.ErrTokenInvalid, http.StatusUnauthorized, "invalid_token"},
	{bootpractice.ErrUnauthenticated, http.StatusUnauthorized, "unauthorized"},
	{bootpractice.ErrForbidden, http.StatusForbidden, "forbidden"},
	{bootpractice.ErrUserExists, http.StatusConflict, "user_exists"},
	{bootpractice.ErrPasswordPolicy, http.StatusBadRequest, "password_policy"},
	{bootpractice.ErrUsernameInvalid, http.StatusBadRequest, "invalid_username"},
	{bootpractice.ErrSignupDisabled, http.StatusForbidden, "signup_disabled"},
	{bootpractice.ErrEngineNotReady, http.StatusServiceUnavailable, "unavailable"},
	{bootpractice.ErrVerifyOnly, http.StatusServiceUnavailable, "unavailable"},
}

// statusFor maps an engine error to its HTTP status and public error code.
// Unknown errors are 500 internal_error.
func statusFor(err error) (int, string) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	if status == http.StatusUnauthorized {
		switch code {
		case "invalid_token", "token_expired", "token_revoked":
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		default:
			w.Header().Set("WWW-Authenticate", "Bearer")
		}
	}
	writeJSON(w, status, map[string]string{"error": code})
}
