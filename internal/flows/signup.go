package flows

import (
	"context"
)

type SignupFailureKind int

const (
	SignupFailureNone SignupFailureKind = iota
	SignupFailureDisabled
	SignupFailurePolicy
	SignupFailureExists
	SignupFailureHash
	SignupFailureUserStore
)

// SignupDeps captures account creation dependencies.
type SignupDeps struct {
	Enabled          bool
	DefaultRole      string
	ValidateUsername func(string) error
	ValidatePassword func(string) error
	Hash             func(string) (string, error)
	Create           func(ctx context.Context, username, passwordHash, role string) error
	IsDuplicate      func(error) bool
}

type SignupResult struct {
	Failure SignupFailureKind
	Err     error
	Subject string
	Role    string
}

// RunSignup validates and stores a new credential record.
func RunSignup(ctx context.Context, username, password string, deps SignupDeps) SignupResult {
	if !deps.Enabled {
		return SignupResult{Failure: SignupFailureDisabled}
	}
	if err := deps.ValidateUsername(username); err != nil {
		return SignupResult{Failure: SignupFailurePolicy, Err: err}
	}
	if err := deps.ValidatePassword(password); err != nil {
		return SignupResult{Failure: SignupFailurePolicy, Err: err, Subject: username}
	}

	hash, err := deps.Hash(password)
	if err != nil {
		return SignupResult{Failure: SignupFailureHash, Err: err, Subject: username}
	}
	if err := deps.Create(ctx, username, hash, deps.DefaultRole); err != nil {
		if deps.IsDuplicate(err) {
			return SignupResult{Failure: SignupFailureExists, Err: err, Subject: username}
		}
		return SignupResult{Failure: SignupFailureUserStore, Err: err, Subject: username}
	}
	return SignupResult{Subject: username, Role: deps.DefaultRole}
}
