package bootpractice

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/Kascald/bootPractice-2/internal/audit"
)

// Principal is the authenticated identity attached to a request.
type Principal struct {
	Subject string
	Role    string
}

// TokenPair is returned by Login and Reissue.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// UserProvider is the credential store the engine authenticates against.
//
// GetUserByUsername returns ErrUserNotFound when no record exists and
// CreateUser returns ErrUserExists for a taken username. Any other error is
// treated as the store being unavailable.
type UserProvider interface {
	GetUserByUsername(ctx context.Context, username string) (UserRecord, error)
	CreateUser(ctx context.Context, u UserRecord) error
}

// PasswordUpdater is optionally implemented by a UserProvider. When present,
// successful logins against a hash in a non-primary format are rehashed.
type PasswordUpdater interface {
	UpdatePasswordHash(ctx context.Context, username, hash string) error
}

// UserRecord is a stored credential.
type UserRecord struct {
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// MultiSink fans each event out to several sinks.
type MultiSink = internalaudit.MultiSink

// NewChannelSink returns a sink delivering events on a channel of the given
// buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing one JSON object per event to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
