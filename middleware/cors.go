package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORSConfig is the configurable part of the CORS policy.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxAge         int      `mapstructure:"max_age"`
}

// DefaultCORSOptions allows one front-end origin with credentials, every
// common method and header, and exposes Authorization so browsers can read
// the issued access token.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{"http://localhost:3000"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
			http.MethodDelete, http.MethodOptions, http.MethodHead,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           3600,
	}
}

// CORSOptions applies cfg over DefaultCORSOptions.
func (cfg CORSConfig) CORSOptions() cors.Options {
	opts := DefaultCORSOptions()
	if len(cfg.AllowedOrigins) > 0 {
		opts.AllowedOrigins = cfg.AllowedOrigins
	}
	if cfg.MaxAge > 0 {
		opts.MaxAge = cfg.MaxAge
	}
	return opts
}

// CORS answers preflight requests and decorates cross-origin responses.
func CORS(opts cors.Options) func(http.Handler) http.Handler {
	return cors.Handler(opts)
}
