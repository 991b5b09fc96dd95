// Package middleware holds the HTTP stages that sit in front of routing.
//
//   - [RequestContext] copies the client IP and request id into the context
//     the engine reads for throttling and audit records.
//   - [Authenticate] resolves the access token into a principal.
//   - [Authorize] applies an ordered [Policy] of path rules.
//   - [CORS] answers cross-origin preflights before authentication runs.
//
// Authentication never authorizes and authorization never parses tokens;
// the principal in the request context is the only hand-off between them.
package middleware
