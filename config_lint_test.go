package bootpractice

import (
	"slices"
	"testing"
	"time"
)

func TestLint_DefaultConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Password.BcryptCost = 10
	codes := cfg.Lint().Codes()

	// Rate limiting is off by default, so the default config warns about it.
	if !slices.Contains(codes, "rate_limits_disabled") {
		t.Error("expected rate_limits_disabled for the default config")
	}
	for _, unwanted := range []string{"leeway_large", "access_ttl_long", "refresh_ttl_long", "hs256_key_short", "bcrypt_cost_low"} {
		if slices.Contains(codes, unwanted) {
			t.Errorf("default config should not produce %q", unwanted)
		}
	}
}

func TestLint_Findings(t *testing.T) {
	tests := []struct {
		code   string
		mutate func(*Config)
	}{
		{"leeway_large", func(c *Config) { c.JWT.Leeway = 90 * time.Second }},
		{"access_ttl_long", func(c *Config) { c.JWT.AccessTTL = 15 * time.Minute }},
		{"refresh_ttl_long", func(c *Config) { c.JWT.RefreshTTL = 30 * 24 * time.Hour }},
		{"hs256_key_short", func(c *Config) { c.JWT.PrivateKey = []byte("short") }},
		{"bcrypt_cost_low", func(c *Config) { c.Password.BcryptCost = 6 }},
		{"argon2_memory_low", func(c *Config) { c.Password.Algorithm = "argon2id"; c.Password.Memory = 16 * 1024 }},
		{"ip_throttle_disabled", func(c *Config) { c.RateLimit.Enabled = true }},
		{"revoke_on_reuse", func(c *Config) { c.Reissue.RevokeOnReuse = true }},
		{"audit_disabled", func(c *Config) { c.Audit.Enabled = false }},
		{"verify_only", func(c *Config) {
			c.JWT.SigningMethod = "ed25519"
			c.JWT.PrivateKey = nil
			c.JWT.PublicKey = make([]byte, 32)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			if !slices.Contains(cfg.Lint().Codes(), tt.code) {
				t.Fatalf("expected %s warning, got %v", tt.code, cfg.Lint().Codes())
			}
		})
	}
}

func TestLint_AsError(t *testing.T) {
	cfg := testConfig()
	if err := cfg.Lint().AsError(LintHigh); err != nil {
		t.Errorf("test config should not fail AsError(LintHigh): %v", err)
	}

	cfg.JWT.PrivateKey = []byte("tiny")
	if err := cfg.Lint().AsError(LintHigh); err == nil {
		t.Error("expected AsError(LintHigh) to fail for a short HMAC secret")
	}
}

func TestLint_BySeverity(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.PrivateKey = []byte("tiny")
	ws := cfg.Lint()

	high := ws.BySeverity(LintHigh)
	if len(high) != 1 || high[0].Code != "hs256_key_short" {
		t.Fatalf("unexpected HIGH findings %v", high.Codes())
	}
	for _, w := range ws.BySeverity(LintWarn) {
		if w.Severity < LintWarn {
			t.Errorf("BySeverity(LintWarn) returned %s finding %s", w.Severity, w.Code)
		}
	}
	if LintHigh.String() != "HIGH" {
		t.Errorf("unexpected severity name %s", LintHigh)
	}
}
