// Package tokenstore records which refresh tokens are still honoured.
//
// Each subject owns at most one active refresh token. Recording a new token
// revokes the previous one, and Rotate swaps the current token for its
// successor in a single atomic step, so a refresh token presented twice
// concurrently is accepted at most once.
//
// # Implementations
//
//   - [MemoryStore] keeps records in process memory behind one mutex.
//   - [RedisStore] keeps records in Redis hashes with key TTLs and performs
//     every mutation inside a Lua script.
//
// Backend failures are reported as [ErrUnavailable] and are never folded into
// [ErrRevoked].
package tokenstore
