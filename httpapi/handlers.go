package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"time"

	"go.uber.org/zap"

	bootpractice "github.com/Kascald/bootPractice-2"
)

const maxBodyBytes = 64 << 10

// Service is the engine surface the handlers need. *bootpractice.Engine
// satisfies it.
type Service interface {
	Login(ctx context.Context, username, password string) (*bootpractice.TokenPair, error)
	Reissue(ctx context.Context, refreshToken string) (*bootpractice.TokenPair, error)
	Logout(ctx context.Context, refreshToken string)
	Signup(ctx context.Context, username, password string) (bootpractice.Principal, error)
	ValidateAccess(ctx context.Context, token string) (bootpractice.Principal, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type principalResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type handlers struct {
	svc     Service
	cookies CookieConfig
	log     *zap.Logger
}

// readCredentials accepts a JSON body or an urlencoded form.
func readCredentials(w http.ResponseWriter, r *http.Request) (credentials, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var c credentials
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return c, err
		}
		c.Username = r.PostFormValue("username")
		c.Password = r.PostFormValue("password")
	default:
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			return c, err
		}
	}
	return c, nil
}

// issue writes a token pair: the access token in the body and the
// Authorization header, the refresh token in its cookie.
func (h *handlers) issue(w http.ResponseWriter, status int, pair *bootpractice.TokenPair) {
	http.SetCookie(w, h.cookies.cookie(h.cookies.Name, pair.RefreshToken, h.svc.RefreshTTL()))
	if h.cookies.AccessName != "" {
		http.SetCookie(w, h.cookies.cookie(h.cookies.AccessName, pair.AccessToken, h.svc.AccessTTL()))
	}
	w.Header().Set("Authorization", "Bearer "+pair.AccessToken)
	writeJSON(w, status, tokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.svc.AccessTTL() / time.Second),
	})
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(op+" failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	writeError(w, status, code)
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	c, err := readCredentials(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	pair, err := h.svc.Login(r.Context(), c.Username, c.Password)
	if err != nil {
		h.fail(w, r, "login", err)
		return
	}
	h.issue(w, http.StatusOK, pair)
}

func (h *handlers) reissue(w http.ResponseWriter, r *http.Request) {
	ck, err := r.Cookie(h.cookies.Name)
	if err != nil || ck.Value == "" {
		writeError(w, http.StatusUnauthorized, "invalid_token")
		return
	}

	pair, err := h.svc.Reissue(r.Context(), ck.Value)
	if err != nil {
		if !errors.Is(err, bootpractice.ErrStoreUnavailable) {
			http.SetCookie(w, h.cookies.expired(h.cookies.Name))
		}
		h.fail(w, r, "reissue", err)
		return
	}
	h.issue(w, http.StatusOK, pair)
}

// logout always succeeds from the client's point of view.
func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	if ck, err := r.Cookie(h.cookies.Name); err == nil && ck.Value != "" {
		h.svc.Logout(r.Context(), ck.Value)
	}

	http.SetCookie(w, h.cookies.expired(h.cookies.Name))
	if h.cookies.AccessName != "" {
		http.SetCookie(w, h.cookies.expired(h.cookies.AccessName))
	}
	w.Header().Set("Clear-Site-Data", `"cookies"`)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) signup(w http.ResponseWriter, r *http.Request) {
	c, err := readCredentials(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	p, err := h.svc.Signup(r.Context(), c.Username, c.Password)
	if err != nil {
		h.fail(w, r, "signup", err)
		return
	}
	writeJSON(w, http.StatusCreated, principalResponse{Username: p.Subject, Role: p.Role})
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	p, ok := bootpractice.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, principalResponse{Username: p.Subject, Role: p.Role})
}

// page returns a small status document for the public result views.
func page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc := map[string]any{"page": name, "authenticated": false}
		if p, ok := bootpractice.PrincipalFromContext(r.Context()); ok {
			doc["authenticated"] = true
			doc["username"] = p.Subject
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func roleTest(w http.ResponseWriter, r *http.Request) {
	p, _ := bootpractice.PrincipalFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"area":     "roleTest",
		"path":     r.URL.Path,
		"username": p.Subject,
		"role":     p.Role,
	})
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
