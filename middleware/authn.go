package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	bootpractice "github.com/Kascald/bootPractice-2"
	"github.com/Kascald/bootPractice-2/metrics"
)

// TokenValidator resolves an access token into a principal.
type TokenValidator interface {
	ValidateAccess(ctx context.Context, token string) (bootpractice.Principal, error)
}

// AuthnConfig configures Authenticate. Policy is consulted only to let a
// request with a bad token continue anonymously on a public path.
type AuthnConfig struct {
	Validator    TokenValidator
	Policy       *Policy
	AccessCookie string
	Logger       *zap.Logger
}

// Authenticate reads the access token from the Authorization header, or
// from AccessCookie when set, and attaches the verified principal to the
// request context. Requests without a token continue anonymously. A token
// that fails verification is rejected with 401 unless the path is public.
// Expired tokens are never refreshed here.
func Authenticate(cfg AuthnConfig) func(http.Handler) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := accessToken(r, cfg.AccessCookie)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			if cfg.Validator == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			p, err := cfg.Validator.ValidateAccess(r.Context(), token)
			if err != nil {
				if cfg.Policy.IsPublic(r.Method, r.URL.Path) {
					log.Debug("stale access token ignored on public path",
						zap.String("path", r.URL.Path),
						zap.String("request_id", chimw.GetReqID(r.Context())),
						zap.Error(err))
					next.ServeHTTP(w, r)
					return
				}
				log.Debug("access token rejected",
					zap.String("path", r.URL.Path),
					zap.String("request_id", chimw.GetReqID(r.Context())),
					zap.Error(err))
				code := "invalid_token"
				if errors.Is(err, bootpractice.ErrTokenExpired) {
					code = "token_expired"
				}
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				writeError(w, http.StatusUnauthorized, code)
				return
			}

			next.ServeHTTP(w, r.WithContext(bootpractice.WithPrincipal(r.Context(), p)))
		})
	}
}

// Authorize applies policy to every request. Denials are 401 for anonymous
// callers and 403 for authenticated ones.
func Authorize(policy *Policy, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var principal *bootpractice.Principal
			if p, ok := bootpractice.PrincipalFromContext(r.Context()); ok {
				principal = &p
			}

			decision := policy.Decide(r.Method, r.URL.Path, principal)
			m.Authz(decision.String())
			switch decision {
			case Allow:
				next.ServeHTTP(w, r)
			case Unauthenticated:
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, http.StatusUnauthorized, "unauthorized")
			default:
				writeError(w, http.StatusForbidden, "forbidden")
			}
		})
	}
}

// RequestContext copies the client address and chi request id into the
// context values the engine reads. Mount it after chi's RealIP and
// RequestID middleware.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := bootpractice.WithClientIP(r.Context(), clientIP(r.RemoteAddr))
		if id := chimw.GetReqID(ctx); id != "" {
			ctx = bootpractice.WithRequestID(ctx, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accessToken(r *http.Request, cookieName string) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	if cookieName == "" {
		return "", false
	}
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
