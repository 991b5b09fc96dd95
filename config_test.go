package bootpractice

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"
)

func TestConfigValidateEnums(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "jwt signing hs256",
			mutate:    func(c *Config) { c.JWT.SigningMethod = "hs256" },
			wantValid: true,
		},
		{
			name:      "jwt signing invalid",
			mutate:    func(c *Config) { c.JWT.SigningMethod = "rs256" },
			wantValid: false,
		},
		{
			name:      "jwt no key",
			mutate:    func(c *Config) { c.JWT.PrivateKey = nil },
			wantValid: false,
		},
		{
			name:      "jwt zero access ttl",
			mutate:    func(c *Config) { c.JWT.AccessTTL = 0 },
			wantValid: false,
		},
		{
			name:      "jwt refresh shorter than access",
			mutate:    func(c *Config) { c.JWT.RefreshTTL = time.Minute },
			wantValid: false,
		},
		{
			name:      "jwt negative leeway",
			mutate:    func(c *Config) { c.JWT.Leeway = -time.Second },
			wantValid: false,
		},
		{
			name: "ed25519 public key only",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "ed25519"
				c.JWT.PrivateKey = nil
				c.JWT.PublicKey = make([]byte, 32)
			},
			wantValid: true,
		},
		{
			name: "ed25519 without keys",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "ed25519"
				c.JWT.PrivateKey = nil
			},
			wantValid: false,
		},
		{
			name:      "password algorithm invalid",
			mutate:    func(c *Config) { c.Password.Algorithm = "md5" },
			wantValid: false,
		},
		{
			name:      "bcrypt cost out of range",
			mutate:    func(c *Config) { c.Password.BcryptCost = 40 },
			wantValid: false,
		},
		{
			name:      "argon2id defaults",
			mutate:    func(c *Config) { c.Password.Algorithm = "argon2id" },
			wantValid: true,
		},
		{
			name: "argon2id too weak",
			mutate: func(c *Config) {
				c.Password.Algorithm = "argon2id"
				c.Password.Memory = 1024
			},
			wantValid: false,
		},
		{
			name:      "signup role blank",
			mutate:    func(c *Config) { c.Signup.DefaultRole = " " },
			wantValid: false,
		},
		{
			name: "signup disabled ignores its fields",
			mutate: func(c *Config) {
				c.Signup.Enabled = false
				c.Signup.DefaultRole = ""
			},
			wantValid: true,
		},
		{
			name: "audit buffer zero",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "rate limit window zero",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = true
				c.RateLimit.Cooldown = 0
			},
			wantValid: false,
		},
		{
			name:      "negative sweep interval",
			mutate:    func(c *Config) { c.TokenStore.SweepInterval = -time.Second },
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestBuildConfigImmutabilityAgainstExternalMutation(t *testing.T) {
	cfg := testConfig()
	engine := newTestEngine(t, cfg, newTestUserProvider(t), nil)

	before := engine.config.JWT.PrivateKey[0]
	cfg.JWT.PrivateKey[0] = 'X'

	if engine.config.JWT.PrivateKey[0] != before {
		t.Fatal("engine config key mutated from external config after build")
	}
}

func TestSecurityReportReflectsPosture(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := testConfig()
	cfg.RateLimit.Enabled = true
	cfg.Reissue.RevokeOnReuse = true
	cfg.Audit.Enabled = true

	engine, err := New().WithConfig(cfg).WithRedis(rdb).WithUserProvider(newTestUserProvider(t)).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	if report.SigningAlgorithm != "hs256" {
		t.Fatalf("expected hs256 signing algorithm in report, got %s", report.SigningAlgorithm)
	}
	if !report.RateLimitingActive || report.IPThrottleActive {
		t.Fatalf("unexpected rate limit posture %+v", report)
	}
	if !report.RevokeOnReuse || !report.AuditEnabled || !report.SharedTokenStore {
		t.Fatalf("unexpected posture %+v", report)
	}
	if report.AccessTTL != cfg.JWT.AccessTTL || report.RefreshTTL != cfg.JWT.RefreshTTL {
		t.Fatal("report TTLs differ from config")
	}

	mem := newTestEngine(t, testConfig(), newTestUserProvider(t), nil).SecurityReport()
	if mem.SharedTokenStore || mem.RateLimitingActive || mem.AuditEnabled {
		t.Fatalf("unexpected in-process posture %+v", mem)
	}
}

func TestVerifyOnlyEngine(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	ctx := context.Background()

	signCfg := testConfig()
	signCfg.JWT.SigningMethod = "ed25519"
	signCfg.JWT.PrivateKey = priv
	signer := newTestEngine(t, signCfg, newTestUserProvider(t), nil)
	pair, err := signer.Login(ctx, "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login on signing engine: %v", err)
	}

	verifyCfg := testConfig()
	verifyCfg.JWT.SigningMethod = "ed25519"
	verifyCfg.JWT.PrivateKey = nil
	verifyCfg.JWT.PublicKey = pub
	verifier := newTestEngine(t, verifyCfg, newTestUserProvider(t), nil)

	p, err := verifier.ValidateAccess(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("verify-only engine rejected a valid token: %v", err)
	}
	if p.Subject != "alice" {
		t.Fatalf("unexpected subject %q", p.Subject)
	}
	if _, err := verifier.Login(ctx, "alice", "correct-password-123"); !errors.Is(err, ErrVerifyOnly) {
		t.Fatalf("expected ErrVerifyOnly from login, got %v", err)
	}
	if _, err := verifier.Reissue(ctx, pair.RefreshToken); !errors.Is(err, ErrVerifyOnly) {
		t.Fatalf("expected ErrVerifyOnly from reissue, got %v", err)
	}
}
