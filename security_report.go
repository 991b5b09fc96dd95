package bootpractice

import (
	"time"

	"github.com/Kascald/bootPractice-2/tokenstore"
)

// SecurityReport summarises the effective security posture of a built
// engine, for startup logs and health pages.
type SecurityReport struct {
	SigningAlgorithm   string
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	PasswordAlgorithm  string
	BcryptCost         int
	Argon2             PasswordConfigReport
	UpgradeOnLogin     bool
	RateLimitingActive bool
	IPThrottleActive   bool
	RevokeOnReuse      bool
	SignupEnabled      bool
	AuditEnabled       bool
	// SharedTokenStore is false when refresh token state lives in this
	// process only, so replicas cannot see each other's revocations.
	SharedTokenStore bool
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	_, inProcess := e.tokens.(*tokenstore.MemoryStore)

	return SecurityReport{
		SigningAlgorithm:  e.config.JWT.SigningMethod,
		AccessTTL:         e.config.JWT.AccessTTL,
		RefreshTTL:        e.config.JWT.RefreshTTL,
		PasswordAlgorithm: e.config.Password.Algorithm,
		BcryptCost:        e.config.Password.BcryptCost,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		UpgradeOnLogin:     e.config.Password.UpgradeOnLogin,
		RateLimitingActive: e.limiter != nil,
		IPThrottleActive:   e.limiter != nil && e.config.RateLimit.EnableIPThrottle,
		RevokeOnReuse:      e.config.Reissue.RevokeOnReuse,
		SignupEnabled:      e.config.Signup.Enabled,
		AuditEnabled:       e.audit != nil,
		SharedTokenStore:   !inProcess,
	}
}
