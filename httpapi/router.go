package httpapi

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/Kascald/bootPractice-2/metrics"
	"github.com/Kascald/bootPractice-2/middleware"
)

// Options configures NewRouter. Service is required; a nil Policy means
// middleware.DefaultRules.
type Options struct {
	Service Service
	Policy  *middleware.Policy
	CORS    *cors.Options
	Cookies CookieConfig
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	// StaticDir, when set, serves /css, /img, /js and /favicon.ico from disk.
	StaticDir string
}

// NewRouter builds the full handler: pipeline middleware first, then routes.
func NewRouter(opts Options) (http.Handler, error) {
	if opts.Service == nil {
		return nil, errors.New("httpapi: service is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	policy := opts.Policy
	if policy == nil {
		p, err := middleware.NewPolicy(middleware.DefaultRules()...)
		if err != nil {
			return nil, err
		}
		policy = p
	}
	corsOpts := middleware.DefaultCORSOptions()
	if opts.CORS != nil {
		corsOpts = *opts.CORS
	}
	cookies := opts.Cookies.withDefaults()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(accessLog(log, opts.Metrics))
	r.Use(middleware.CORS(corsOpts))
	r.Use(middleware.RequestContext)
	r.Use(middleware.Authenticate(middleware.AuthnConfig{
		Validator:    opts.Service,
		Policy:       policy,
		AccessCookie: cookies.AccessName,
		Logger:       log,
	}))
	r.Use(middleware.Authorize(policy, opts.Metrics))

	h := &handlers{svc: opts.Service, cookies: cookies, log: log}

	r.Post("/login", h.login)
	r.Post("/user/api/login", h.login)
	r.Post("/reissue", h.reissue)
	r.Post("/logout", h.logout)
	r.Post("/user/api/signup", h.signup)

	r.Get("/", page("index"))
	r.Get("/result", page("result"))
	r.Get("/user/result", page("user_result"))
	r.Get("/user/signup", page("signup"))
	r.Get("/me", h.me)
	r.Get("/roleTest/*", roleTest)

	r.Get("/healthz", healthz)
	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())

	if opts.StaticDir != "" {
		mountStatic(r, opts.StaticDir)
	}

	return r, nil
}

func mountStatic(r chi.Router, dir string) {
	fs := http.FileServer(http.Dir(dir))
	for _, prefix := range []string{"/css", "/img", "/js"} {
		r.Handle(prefix+"/*", fs)
	}
	favicon := filepath.Join(dir, "favicon.ico")
	r.Get("/favicon.ico", func(w http.ResponseWriter, req *http.Request) {
		if _, err := os.Stat(favicon); err != nil {
			http.NotFound(w, req)
			return
		}
		http.ServeFile(w, req, favicon)
	})
}

// accessLog writes one line per request and counts it by route pattern.
// Requests rejected before routing are labelled "unmatched".
func accessLog(log *zap.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if p := rc.RoutePattern(); p != "" {
					route = p
				}
			}
			m.Request(route, status)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
				zap.String("request_id", chimw.GetReqID(r.Context())))
		})
	}
}
