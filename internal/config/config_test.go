package config

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bootpractice "github.com/Kascald/bootPractice-2"
	"github.com/Kascald/bootPractice-2/middleware"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bootpractice.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, 15*time.Second, cfg.Server.GracefulTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, "refresh", cfg.Auth.Cookie.Name)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 3600, cfg.CORS.MaxAge)
	assert.Equal(t, "bp", cfg.Redis.Prefix)
	assert.True(t, cfg.Metrics.Enable)
	assert.Empty(t, cfg.Rules)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "127.0.0.1:9000"
auth:
  jwt_secret: "file-secret-0123456789abcdef0123"
  access_ttl: 5m
  cookie:
    secure: true
    same_site: strict
cors:
  allowed_origins: ["https://app.example"]
rules:
  - patterns: ["/ops/**"]
    access: "hasRole:OPS"
  - patterns: ["/**"]
    access: permitAll
kafka:
  enable: true
  brokers: ["k1:9092", "k2:9092"]
`)
	t.Setenv("BOOTPRACTICE_AUTH_REFRESH_TTL", "48h")
	t.Setenv("BOOTPRACTICE_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.HTTPAddr)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 48*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"https://app.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	require.Len(t, cfg.Rules, 2)
	assert.Equal(t, "hasRole:OPS", cfg.Rules[0].Access)

	engineCfg, err := cfg.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, []byte("file-secret-0123456789abcdef0123"), engineCfg.JWT.PrivateKey)
	assert.Equal(t, 48*time.Hour, engineCfg.JWT.RefreshTTL)

	cookies, err := cfg.CookieConfig()
	require.NoError(t, err)
	assert.True(t, cookies.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookies.SameSite)

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, middleware.Allow, policy.Decide(http.MethodGet, "/ops/x", &bootpractice.Principal{Role: "ROLE_OPS"}))
	assert.Equal(t, middleware.Allow, policy.Decide(http.MethodGet, "/anything", nil))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, `
postgres:
  enable: true
`)
	_, err := Load(path)
	assert.Error(t, err)

	path = writeConfig(t, `
auth:
  rate_limit:
    enable: true
`)
	_, err = Load(path)
	assert.Error(t, err)
}

func TestEngineConfigNeedsSecret(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	_, err = cfg.EngineConfig()
	assert.Error(t, err)

	cfg.Auth.SigningMethod = "ed25519"
	cfg.Auth.PrivateKeyFile = filepath.Join(t.TempDir(), "missing.pem")
	_, err = cfg.EngineConfig()
	assert.Error(t, err)
}

func TestEngineConfigPublicKeyOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	pubFile := filepath.Join(t.TempDir(), "auth.pub")
	require.NoError(t, os.WriteFile(pubFile, make([]byte, 32), 0o600))

	cfg.Auth.SigningMethod = "ed25519"
	cfg.Auth.PublicKeyFile = pubFile
	engineCfg, err := cfg.EngineConfig()
	require.NoError(t, err)
	assert.Empty(t, engineCfg.JWT.PrivateKey)
	assert.Len(t, engineCfg.JWT.PublicKey, 32)

	cfg.Auth.PublicKeyFile = ""
	_, err = cfg.EngineConfig()
	assert.Error(t, err)
}

func TestDefaultPolicy(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.True(t, policy.IsPublic(http.MethodPost, "/login"))
	assert.Equal(t, middleware.Unauthenticated, policy.Decide(http.MethodGet, "/me", nil))
}
