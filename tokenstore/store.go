package tokenstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrRevoked is returned when a refresh token is absent, revoked, expired,
	// or no longer the current token of its subject.
	ErrRevoked = errors.New("refresh token revoked")
	// ErrUnavailable wraps backend I/O failures.
	ErrUnavailable = errors.New("token store unavailable")
	// ErrInvalidRecord is returned for records missing an id, subject, or a
	// future expiry.
	ErrInvalidRecord = errors.New("invalid refresh token record")
)

// Record describes one issued refresh token. Family names the rotation chain
// the token belongs to: a login starts one and every reissue continues it.
type Record struct {
	TokenID   string
	Subject   string
	Family    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Store is the persistence contract for refresh-token state. Every method is
// linearizable with respect to the others.
type Store interface {
	// Record makes rec the subject's active token, revoking any earlier one.
	Record(ctx context.Context, rec Record) error
	// IsValid reports whether tokenID exists, is unrevoked and unexpired.
	IsValid(ctx context.Context, tokenID string) (bool, error)
	// Rotate revokes oldTokenID and records next, but only if oldTokenID is
	// valid and is the current token of next.Subject. Otherwise it returns
	// ErrRevoked and records nothing.
	Rotate(ctx context.Context, oldTokenID string, next Record) error
	// Revoke removes tokenID. Unknown ids are not an error.
	Revoke(ctx context.Context, tokenID string) error
	// RevokeAllForSubject removes every token held by subject.
	RevokeAllForSubject(ctx context.Context, subject string) error
	// RevokeFamily removes subject's current token if it belongs to family.
	// Tokens of other chains are left alone.
	RevokeFamily(ctx context.Context, subject, family string) error
	// Sweep removes expired records and reports how many were dropped.
	Sweep(ctx context.Context) (int, error)
}

func validate(rec Record, now time.Time) error {
	if rec.TokenID == "" || rec.Subject == "" {
		return ErrInvalidRecord
	}
	if !rec.ExpiresAt.After(now) {
		return ErrInvalidRecord
	}
	return nil
}
