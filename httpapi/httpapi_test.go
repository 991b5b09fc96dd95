package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bootpractice "github.com/Kascald/bootPractice-2"
	"github.com/Kascald/bootPractice-2/metrics"
	"github.com/Kascald/bootPractice-2/userstore"
)

const alicePassword = "correct-password-123"

type testServer struct {
	handler http.Handler
	engine  *bootpractice.Engine
	users   *userstore.MemoryStore
	metrics *metrics.Metrics
}

func testConfig() bootpractice.Config {
	cfg := bootpractice.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.BcryptCost = 4
	cfg.TokenStore.SweepInterval = 0
	return cfg
}

func newTestServer(t *testing.T, rdb redis.UniversalClient) *testServer {
	t.Helper()
	users := userstore.NewMemoryStore()
	m := metrics.New()

	b := bootpractice.New().WithConfig(testConfig()).WithUserProvider(users).WithMetrics(m)
	if rdb != nil {
		b = b.WithRedis(rdb)
	}
	engine, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	ctx := context.Background()
	_, err = engine.Signup(ctx, "alice", alicePassword)
	require.NoError(t, err)
	_, err = engine.Signup(ctx, "root", "admin-password-123")
	require.NoError(t, err)
	require.NoError(t, users.SetRole("root", "ROLE_ADMIN"))

	h, err := NewRouter(Options{Service: engine, Metrics: m})
	require.NoError(t, err)
	return &testServer{handler: h, engine: engine, users: users, metrics: m}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func loginBody(user, pw string) string {
	b, _ := json.Marshal(map[string]string{"username": user, "password": pw})
	return string(b)
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func writeFile(dir, name, content string) error {
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func decodeTokens(t *testing.T, rec *httptest.ResponseRecorder) tokenResponse {
	t.Helper()
	var resp tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestLoginReissueLogout(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(jsonRequest(http.MethodPost, "/login", loginBody("alice", alicePassword)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	tokens := decodeTokens(t, rec)
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.EqualValues(t, s.engine.AccessTTL().Seconds(), tokens.ExpiresIn)
	assert.Equal(t, "Bearer "+tokens.AccessToken, rec.Header().Get("Authorization"))

	refresh := findCookie(rec, "refresh")
	require.NotNil(t, refresh)
	assert.True(t, refresh.HttpOnly)
	assert.Equal(t, "/", refresh.Path)
	assert.Equal(t, http.SameSiteLaxMode, refresh.SameSite)
	assert.Equal(t, int(s.engine.RefreshTTL().Seconds()), refresh.MaxAge)

	// access token reaches a protected route
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec = s.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"username":"alice","role":"ROLE_USER"}`, rec.Body.String())

	// reissue rotates the cookie
	req = httptest.NewRequest(http.MethodPost, "/reissue", nil)
	req.AddCookie(refresh)
	rec = s.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rotated := findCookie(rec, "refresh")
	require.NotNil(t, rotated)
	assert.NotEqual(t, refresh.Value, rotated.Value)

	// the old refresh token is spent
	req = httptest.NewRequest(http.MethodPost, "/reissue", nil)
	req.AddCookie(refresh)
	rec = s.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"token_revoked"}`, rec.Body.String())

	// logout clears the cookie and revokes the rotated token
	req = httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(rotated)
	rec = s.do(req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, `"cookies"`, rec.Header().Get("Clear-Site-Data"))
	cleared := findCookie(rec, "refresh")
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")

	req = httptest.NewRequest(http.MethodPost, "/reissue", nil)
	req.AddCookie(rotated)
	rec = s.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginAcceptsFormAndAlias(t *testing.T) {
	s := newTestServer(t, nil)

	form := url.Values{"username": {"alice"}, "password": {alicePassword}}
	req := httptest.NewRequest(http.MethodPost, "/user/api/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := s.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decodeTokens(t, rec).AccessToken)
}

func TestLoginFailures(t *testing.T) {
	s := newTestServer(t, nil)

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"wrong password", loginBody("alice", "nope"), http.StatusUnauthorized, "invalid_credentials"},
		{"unknown user", loginBody("mallory", alicePassword), http.StatusUnauthorized, "invalid_credentials"},
		{"empty", loginBody("", ""), http.StatusUnauthorized, "invalid_credentials"},
		{"malformed body", "{", http.StatusBadRequest, "invalid_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(jsonRequest(http.MethodPost, "/login", tc.body))
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, `{"error":"`+tc.code+`"}`, rec.Body.String())
			assert.Nil(t, findCookie(rec, "refresh"))
		})
	}
}

func TestLoginWithStaleHeaderStillWorks(t *testing.T) {
	s := newTestServer(t, nil)

	req := jsonRequest(http.MethodPost, "/login", loginBody("alice", alicePassword))
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := s.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReissueWithoutCookie(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(httptest.NewRequest(http.MethodPost, "/reissue", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid_token"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/reissue", nil)
	req.AddCookie(&http.Cookie{Name: "refresh", Value: "garbage"})
	rec = s.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid_token"}`, rec.Body.String())
}

func TestLogoutWithoutCookie(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(httptest.NewRequest(http.MethodPost, "/logout", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotNil(t, findCookie(rec, "refresh"))
}

func TestStoreOutageIsUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	s := newTestServer(t, rdb)

	rec := s.do(jsonRequest(http.MethodPost, "/login", loginBody("alice", alicePassword)))
	require.Equal(t, http.StatusOK, rec.Code)
	refresh := findCookie(rec, "refresh")
	require.NotNil(t, refresh)

	mr.Close()

	rec = s.do(jsonRequest(http.MethodPost, "/login", loginBody("alice", alicePassword)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"unavailable"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/reissue", nil)
	req.AddCookie(refresh)
	rec = s.do(req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, rec.Header().Values("Set-Cookie"), "an outage must not clear the client's refresh cookie")
}

func TestSignup(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(jsonRequest(http.MethodPost, "/user/api/signup", loginBody("bob", "bob-password-1")))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"username":"bob","role":"ROLE_USER"}`, rec.Body.String())

	rec = s.do(jsonRequest(http.MethodPost, "/user/api/signup", loginBody("bob", "bob-password-1")))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(jsonRequest(http.MethodPost, "/user/api/signup", loginBody("carol", "short")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"password_policy"}`, rec.Body.String())

	rec = s.do(jsonRequest(http.MethodPost, "/login", loginBody("bob", "bob-password-1")))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoleTestArea(t *testing.T) {
	s := newTestServer(t, nil)

	access := func(user, pw string) string {
		rec := s.do(jsonRequest(http.MethodPost, "/login", loginBody(user, pw)))
		require.Equal(t, http.StatusOK, rec.Code)
		return decodeTokens(t, rec).AccessToken
	}

	req := httptest.NewRequest(http.MethodGet, "/roleTest/page", nil)
	req.Header.Set("Authorization", "Bearer "+access("alice", alicePassword))
	rec := s.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/roleTest/page", nil)
	req.Header.Set("Authorization", "Bearer "+access("root", "admin-password-123"))
	rec = s.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"ROLE_ADMIN"`)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/roleTest/page", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPublicPagesAndHealth(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{"/", "/result", "/user/result", "/user/signup"} {
		rec := s.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), `"authenticated":false`, path)
	}

	rec := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = s.do(httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "unmatched paths require authentication")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	s.do(jsonRequest(http.MethodPost, "/login", loginBody("alice", alicePassword)))
	s.do(jsonRequest(http.MethodPost, "/login", loginBody("alice", "wrong")))

	rec := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(jsonRequest(http.MethodPost, "/login", loginBody("alice", alicePassword)))
	require.Equal(t, http.StatusOK, rec.Code)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+decodeTokens(t, rec).AccessToken)
	rec = s.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(jsonRequest(http.MethodPost, "/login", loginBody("root", "admin-password-123")))
	require.Equal(t, http.StatusOK, rec.Code)
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+decodeTokens(t, rec).AccessToken)
	rec = s.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `bootpractice_login_total{result="success"} 3`)
	assert.Contains(t, body, `bootpractice_login_total{result="invalid_credentials"} 1`)
	assert.Contains(t, body, `bootpractice_http_requests_total{code="2xx",route="/login"}`)
	assert.Contains(t, body, `bootpractice_authz_total{decision="allow"}`)
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFile(dir, "css/site.css", "body{}"))
	s := newTestServer(t, nil)
	h, err := NewRouter(Options{Service: s.engine, StaticDir: dir})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/css/site.css", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{}", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewRouterRequiresService(t *testing.T) {
	_, err := NewRouter(Options{})
	assert.Error(t, err)
}

func TestStatusFor(t *testing.T) {
	status, code := statusFor(bootpractice.ErrLoginRateLimited)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "rate_limited", code)

	status, code = statusFor(bootpractice.ErrSignupDisabled)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "signup_disabled", code)

	status, code = statusFor(bootpractice.ErrVerifyOnly)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unavailable", code)

	status, code = statusFor(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal_error", code)
}

func TestParseSameSite(t *testing.T) {
	ss, err := ParseSameSite("Strict")
	require.NoError(t, err)
	assert.Equal(t, http.SameSiteStrictMode, ss)
	_, err = ParseSameSite("sometimes")
	assert.Error(t, err)
}
