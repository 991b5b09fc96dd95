// Package httpapi serves the authentication endpoints over chi.
//
// NewRouter composes the request pipeline in a fixed order: request id, real
// IP, panic recovery, access log, CORS, token authentication and the
// authorization gate. Login, reissue and logout are ordinary routes on public
// paths, so every request is authenticated (or left anonymous) before any
// route runs. The server keeps no session; the refresh token travels in an
// HttpOnly cookie and the access token in the Authorization header.
package httpapi
