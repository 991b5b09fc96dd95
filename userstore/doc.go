// Package userstore provides credential stores for the engine's
// UserProvider contract: an in-memory store for tests and examples, and a
// PostgreSQL store on pgx with embedded goose migrations.
package userstore
