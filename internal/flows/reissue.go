package flows

import (
	"context"
	"errors"

	"github.com/Kascald/bootPractice-2/jwt"
	"github.com/Kascald/bootPractice-2/tokenstore"
)

// ReissueFailureKind classifies reissue failures for root-level mapping.
type ReissueFailureKind int

const (
	ReissueFailureNone ReissueFailureKind = iota
	ReissueFailureInvalid
	ReissueFailureExpired
	ReissueFailureRevoked
	ReissueFailureUserMissing
	ReissueFailureUserStore
	ReissueFailureIssue
	ReissueFailureTokenStore
)

type ReissueTokenStore interface {
	Rotate(ctx context.Context, oldTokenID string, next tokenstore.Record) error
	RevokeAllForSubject(ctx context.Context, subject string) error
	RevokeFamily(ctx context.Context, subject, family string) error
}

// ReissueDeps captures reissue flow dependencies.
type ReissueDeps struct {
	Verify        func(string) (*jwt.Claims, error)
	Issuer        TokenIssuer
	LookupRole    func(ctx context.Context, subject string) (string, error)
	IsUserMissing func(error) bool
	Store         ReissueTokenStore
	NewTokenID    func() string
	// RevokeOnReuse revokes the subject's current token when a token of the
	// same chain that is no longer current is presented.
	RevokeOnReuse bool
	Warn          func(string, ...any)
}

// ReissueResult carries the rotated pair or failure metadata.
type ReissueResult struct {
	Failure        ReissueFailureKind
	Err            error
	Subject        string
	Role           string
	OldTokenID     string
	Access         jwt.Issued
	Refresh        jwt.Issued
	ReuseContained bool
}

// RunReissue exchanges a refresh token for a new access token and a rotated
// refresh token. The old token is retired in the same atomic store step that
// records the new one.
func RunReissue(ctx context.Context, refreshToken string, deps ReissueDeps) ReissueResult {
	claims, err := deps.Verify(refreshToken)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return ReissueResult{Failure: ReissueFailureExpired, Err: err}
		}
		return ReissueResult{Failure: ReissueFailureInvalid, Err: err}
	}
	subject, oldID, family := claims.Subject, claims.ID, claims.FamilyID()

	role, err := deps.LookupRole(ctx, subject)
	if err != nil {
		if deps.IsUserMissing != nil && deps.IsUserMissing(err) {
			if revErr := deps.Store.RevokeAllForSubject(ctx, subject); revErr != nil {
				warn(deps.Warn, "revoke tokens of removed user failed", "error", revErr)
			}
			return ReissueResult{Failure: ReissueFailureUserMissing, Err: err, Subject: subject, OldTokenID: oldID}
		}
		return ReissueResult{Failure: ReissueFailureUserStore, Err: err, Subject: subject, OldTokenID: oldID}
	}

	refresh, err := deps.Issuer.IssueRefresh(subject, deps.NewTokenID(), family)
	if err != nil {
		return ReissueResult{Failure: ReissueFailureIssue, Err: err, Subject: subject, OldTokenID: oldID}
	}
	access, err := deps.Issuer.IssueAccess(subject, role)
	if err != nil {
		return ReissueResult{Failure: ReissueFailureIssue, Err: err, Subject: subject, OldTokenID: oldID}
	}

	err = deps.Store.Rotate(ctx, oldID, tokenstore.Record{
		TokenID:   refresh.ID,
		Subject:   subject,
		Family:    family,
		IssuedAt:  refresh.IssuedAt,
		ExpiresAt: refresh.ExpiresAt,
	})
	if err != nil {
		if !errors.Is(err, tokenstore.ErrRevoked) {
			return ReissueResult{Failure: ReissueFailureTokenStore, Err: err, Subject: subject, OldTokenID: oldID}
		}
		res := ReissueResult{Failure: ReissueFailureRevoked, Err: err, Subject: subject, OldTokenID: oldID}
		if deps.RevokeOnReuse {
			if revErr := deps.Store.RevokeFamily(ctx, subject, family); revErr != nil {
				warn(deps.Warn, "refresh reuse containment failed", "error", revErr)
			} else {
				res.ReuseContained = true
			}
		}
		return res
	}

	return ReissueResult{
		Failure:    ReissueFailureNone,
		Subject:    subject,
		Role:       role,
		OldTokenID: oldID,
		Access:     access,
		Refresh:    refresh,
	}
}
