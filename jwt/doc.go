// Package jwt issues and verifies the signed access and refresh tokens used by
// the authentication pipeline. A Codec holds its key material for the life of
// the process and performs no I/O, so it is safe for concurrent use.
package jwt
