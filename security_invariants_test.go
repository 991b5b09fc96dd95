package bootpractice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	internalaudit "github.com/Kascald/bootPractice-2/internal/audit"
)

func TestSecurityInvariantAccessValidationStaysStateless(t *testing.T) {
	mr, rdb := newTestRedis(t)
	engine, err := New().WithConfig(testConfig()).WithRedis(rdb).WithUserProvider(newTestUserProvider(t)).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()

	pair, err := engine.Login(context.Background(), "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	mr.Close() // drop Redis before validate

	if _, err := engine.ValidateAccess(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("expected access validation without redis, got %v", err)
	}
	if _, err := engine.Reissue(context.Background(), pair.RefreshToken); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable for reissue, got %v", err)
	}
}

func TestSecurityInvariantRefreshTokenIsNotAnAccessToken(t *testing.T) {
	engine := newTestEngine(t, testConfig(), newTestUserProvider(t), nil)

	pair, err := engine.Login(context.Background(), "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := engine.ValidateAccess(context.Background(), pair.RefreshToken); err == nil {
		t.Fatal("refresh token accepted as access token")
	}
	if _, err := engine.Reissue(context.Background(), pair.AccessToken); err == nil {
		t.Fatal("access token accepted for reissue")
	}
}

func TestSecurityInvariantLogsCarryNoSecrets(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	cfg := testConfig()
	cfg.Audit.Enabled = true
	engine, err := New().
		WithConfig(cfg).
		WithUserProvider(newTestUserProvider(t)).
		WithAuditSink(internalaudit.NewZapSink(zap.New(core))).
		WithLogger(zap.New(core)).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	ctx := context.Background()
	pair, err := engine.Login(ctx, "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	_, _ = engine.Login(ctx, "alice", "wrong-password-456")
	next, err := engine.Reissue(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("reissue failed: %v", err)
	}
	_, _ = engine.Reissue(ctx, pair.RefreshToken)
	engine.Logout(ctx, next.RefreshToken)
	engine.Close()

	secrets := []string{"correct-password-123", "wrong-password-456", pair.RefreshToken, pair.AccessToken, next.RefreshToken}
	for _, entry := range logs.All() {
		line := entry.Message
		for k, v := range entry.ContextMap() {
			line += fmt.Sprintf(" %s=%v", k, v)
		}
		for _, s := range secrets {
			if strings.Contains(line, s) {
				t.Fatalf("log entry %q leaks a secret", entry.Message)
			}
		}
	}
}
