package bootpractice

import (
	"errors"
	"strings"
	"time"
)

// Config holds every engine setting. Start from DefaultConfig and override
// fields; Build validates the result.
type Config struct {
	JWT        JWTConfig
	Password   PasswordConfig
	RateLimit  RateLimitConfig
	Signup     SignupConfig
	Reissue    ReissueConfig
	TokenStore TokenStoreConfig
	Audit      AuditConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds token lifetimes and the signing key, loaded once at
// startup.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte // HMAC secret for hs256
	// PublicKey alone makes an ed25519 node verify-only: it validates
	// access tokens but cannot log users in or reissue.
	PublicKey []byte
	Issuer    string
	Audience  string
	Leeway    time.Duration
	KeyID     string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the primary hasher. Hashes in the other format
// still verify, and are rehashed on login when UpgradeOnLogin is set.
type PasswordConfig struct {
	Algorithm        string // "bcrypt" (default) or "argon2id"
	BcryptCost       int
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	UpgradeOnLogin   bool
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig throttles failed logins. It requires a Redis client.
type RateLimitConfig struct {
	Enabled          bool
	MaxLoginAttempts int
	Cooldown         time.Duration
	EnableIPThrottle bool
	RedisPrefix      string
}

/*
====================================
SIGNUP CONFIG
====================================
*/

type SignupConfig struct {
	Enabled           bool
	MinPasswordLength int
	MaxUsernameLength int
	DefaultRole       string
}

/*
====================================
TOKEN CONFIG
====================================
*/

type ReissueConfig struct {
	// RevokeOnReuse revokes the subject's current refresh token when one
	// that was already rotated away is presented. Two clients racing the
	// same token would then log each other out.
	RevokeOnReuse bool
}

type TokenStoreConfig struct {
	RedisPrefix string
	// SweepInterval drives the in-memory store's expiry sweeper. Zero
	// leaves eviction to lookups.
	SweepInterval time.Duration
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// DefaultConfig returns working defaults except for key material, which
// must always be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     10 * time.Minute,
			RefreshTTL:    24 * time.Hour,
			SigningMethod: "hs256",
			Leeway:        0,
		},
		Password: PasswordConfig{
			Algorithm:        "bcrypt",
			BcryptCost:       10,
			Memory:           65536,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MaxPasswordBytes: 1024,
			UpgradeOnLogin:   true,
		},
		RateLimit: RateLimitConfig{
			Enabled:          false,
			MaxLoginAttempts: 5,
			Cooldown:         15 * time.Minute,
			EnableIPThrottle: false,
			RedisPrefix:      "bp",
		},
		Signup: SignupConfig{
			Enabled:           true,
			MinPasswordLength: 8,
			MaxUsernameLength: 64,
			DefaultRole:       "ROLE_USER",
		},
		TokenStore: TokenStoreConfig{
			RedisPrefix:   "bp",
			SweepInterval: time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting. Key material is checked in
// depth by jwt.NewCodec during Build.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	switch c.JWT.SigningMethod {
	case "hs256", "ed25519":
	default:
		return errors.New("unsupported JWT signing method")
	}
	switch {
	case c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) == 0:
		return errors.New("JWT PrivateKey is required for hs256")
	case len(c.JWT.PrivateKey) == 0 && len(c.JWT.PublicKey) == 0:
		return errors.New("JWT PrivateKey or PublicKey is required")
	}
	if c.JWT.Leeway < 0 {
		return errors.New("JWT Leeway must be >= 0")
	}

	// Password
	switch c.Password.Algorithm {
	case "bcrypt":
		if c.Password.BcryptCost != 0 && (c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31) {
			return errors.New("Password BcryptCost must be between 4 and 31")
		}
	case "argon2id":
		if c.Password.Memory < 8*1024 {
			return errors.New("Password Memory must be >= 8192 KB")
		}
		if c.Password.Time < 1 {
			return errors.New("Password Time must be >= 1")
		}
		if c.Password.Parallelism < 1 {
			return errors.New("Password Parallelism must be >= 1")
		}
		if c.Password.SaltLength < 16 {
			return errors.New("Password SaltLength must be >= 16")
		}
		if c.Password.KeyLength < 16 {
			return errors.New("Password KeyLength must be >= 16")
		}
	default:
		return errors.New("Password Algorithm must be 'bcrypt' or 'argon2id'")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password MaxPasswordBytes must be >= 0")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxLoginAttempts <= 0 {
			return errors.New("RateLimit MaxLoginAttempts must be > 0")
		}
		if c.RateLimit.Cooldown <= 0 {
			return errors.New("RateLimit Cooldown must be > 0")
		}
	}

	// Signup
	if c.Signup.Enabled {
		if c.Signup.MinPasswordLength < 1 {
			return errors.New("Signup MinPasswordLength must be >= 1")
		}
		if c.Signup.MaxUsernameLength < 1 {
			return errors.New("Signup MaxUsernameLength must be >= 1")
		}
		if strings.TrimSpace(c.Signup.DefaultRole) == "" {
			return errors.New("Signup DefaultRole is required")
		}
	}

	// Token store
	if c.TokenStore.SweepInterval < 0 {
		return errors.New("TokenStore SweepInterval must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
