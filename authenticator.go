package bootpractice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Kascald/bootPractice-2/password"
)

// Authenticate checks a username and password against the user provider.
//
// It returns ErrUserNotFound or ErrInvalidCredentials on a mismatch. For
// unknown users a comparison against a dummy hash still runs, so response
// time does not reveal whether the account exists.
func (e *Engine) Authenticate(ctx context.Context, username, pw string) (Principal, error) {
	username = normalizeUsername(username)
	if username == "" || pw == "" {
		return Principal{}, ErrInvalidCredentials
	}

	u, err := e.userProvider.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_, _ = e.hasher.Verify(pw, e.dummyHash)
			return Principal{}, ErrUserNotFound
		}
		return Principal{}, unavailable(err)
	}

	ok, err := e.hasher.Verify(pw, u.PasswordHash)
	if err != nil {
		if !errors.Is(err, password.ErrPasswordTooLong) {
			e.log.Warn("stored password hash unreadable", zap.String("username", u.Username), zap.Error(err))
		}
		return Principal{}, ErrInvalidCredentials
	}
	if !ok {
		return Principal{}, ErrInvalidCredentials
	}

	if e.config.Password.UpgradeOnLogin {
		e.upgradeHash(ctx, u, pw)
	}

	return Principal{Subject: u.Username, Role: u.Role}, nil
}

func (e *Engine) upgradeHash(ctx context.Context, u UserRecord, pw string) {
	updater, ok := e.userProvider.(PasswordUpdater)
	if !ok {
		return
	}
	needs, err := e.hasher.NeedsUpgrade(u.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.hasher.Hash(pw)
	if err != nil {
		e.log.Warn("password rehash failed", zap.Error(err))
		return
	}
	if err := updater.UpdatePasswordHash(ctx, u.Username, hash); err != nil {
		e.log.Warn("password rehash store failed", zap.String("username", u.Username), zap.Error(err))
		return
	}
	e.emitAudit(ctx, auditEventPasswordRehash, true, u.Username, "",
		nil, map[string]string{"algorithm": password.ForHash(hash)})
}

func normalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

func (e *Engine) validateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: empty", ErrUsernameInvalid)
	}
	if utf8.RuneCountInString(username) > e.config.Signup.MaxUsernameLength {
		return fmt.Errorf("%w: longer than %d characters", ErrUsernameInvalid, e.config.Signup.MaxUsernameLength)
	}
	for _, r := range username {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: contains whitespace or control characters", ErrUsernameInvalid)
		}
	}
	return nil
}

func (e *Engine) validatePassword(pw string) error {
	if utf8.RuneCountInString(pw) < e.config.Signup.MinPasswordLength {
		return fmt.Errorf("%w: shorter than %d characters", ErrPasswordPolicy, e.config.Signup.MinPasswordLength)
	}
	if limit := e.config.Password.MaxPasswordBytes; limit > 0 && len(pw) > limit {
		return fmt.Errorf("%w: longer than %d bytes", ErrPasswordPolicy, limit)
	}
	return nil
}
