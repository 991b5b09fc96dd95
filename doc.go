// Package bootpractice is a stateless JWT authentication core.
//
// An Engine issues a short-lived access token and a long-lived refresh
// token on login. Access tokens are proven by signature and expiry alone;
// refresh tokens additionally need a live record in a tokenstore.Store,
// which keeps at most one active refresh token per subject. Reissue rotates
// that record atomically, so a refresh token can be exchanged exactly once.
//
// Build an Engine with New:
//
//	engine, err := bootpractice.New().
//		WithConfig(cfg).
//		WithUserProvider(users).
//		WithRedis(client).
//		Build()
//
// The middleware and httpapi packages put the engine behind an HTTP
// pipeline with CORS, per-request authentication and ordered path rules.
package bootpractice
