package bootpractice

import (
	"fmt"
	"strings"
	"time"
)

// LintSeverity orders lint findings. Higher is worse.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is one finding from Config.Lint. Code is stable and suitable
// for filtering; Message is for humans.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

type LintResult []LintWarning

func (r LintResult) Codes() []string {
	codes := make([]string, 0, len(r))
	for _, w := range r {
		codes = append(codes, w.Code)
	}
	return codes
}

// BySeverity returns the findings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError folds the findings at or above min into one error, or returns nil
// when there are none.
func (r LintResult) AsError(min LintSeverity) error {
	hits := r.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	parts := make([]string, 0, len(hits))
	for _, w := range hits {
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return fmt.Errorf("config lint: %s", strings.Join(parts, "; "))
}

// Lint reports settings that validate but weaken the deployment. It never
// fails; callers decide which severities to act on.
func (c Config) Lint() LintResult {
	var r LintResult
	add := func(code string, sev LintSeverity, format string, args ...any) {
		r = append(r, LintWarning{Code: code, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	// JWT
	if c.JWT.SigningMethod == "hs256" {
		if len(c.JWT.PrivateKey) < 32 {
			add("hs256_key_short", LintHigh, "HMAC secret is %d bytes, use at least 32", len(c.JWT.PrivateKey))
		}
		add("hs256_shared_secret", LintInfo, "every verifier holds the signing secret; ed25519 separates them")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PrivateKey) == 0 {
		add("verify_only", LintInfo, "no ed25519 private key: this node validates tokens but cannot issue them")
	}
	if c.JWT.Leeway > 60*time.Second {
		add("leeway_large", LintWarn, "clock skew leeway %s extends every token's life", c.JWT.Leeway)
	}
	if c.JWT.AccessTTL > 10*time.Minute {
		add("access_ttl_long", LintWarn, "access tokens cannot be revoked and live %s", c.JWT.AccessTTL)
	}
	if c.JWT.RefreshTTL > 7*24*time.Hour {
		add("refresh_ttl_long", LintWarn, "refresh tokens live %s", c.JWT.RefreshTTL)
	}

	// Password
	switch c.Password.Algorithm {
	case "bcrypt":
		if c.Password.BcryptCost != 0 && c.Password.BcryptCost < 10 {
			add("bcrypt_cost_low", LintWarn, "bcrypt cost %d is below 10", c.Password.BcryptCost)
		}
	case "argon2id":
		if c.Password.Memory < 64*1024 {
			add("argon2_memory_low", LintWarn, "argon2id memory %d KB is below 64 MB", c.Password.Memory)
		}
	}

	// Rate limits and reuse
	if !c.RateLimit.Enabled {
		add("rate_limits_disabled", LintWarn, "failed logins are not throttled")
	} else if !c.RateLimit.EnableIPThrottle {
		add("ip_throttle_disabled", LintInfo, "login throttling is per username only")
	}
	if c.Reissue.RevokeOnReuse {
		add("revoke_on_reuse", LintInfo, "a client losing a concurrent reissue race logs the winner out")
	}

	// Signup and audit
	if c.Signup.Enabled {
		add("signup_open", LintInfo, "anyone can create a %s account", c.Signup.DefaultRole)
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "no audit events are emitted")
	}

	return r
}
