package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusMismatch int64 = 2
	rotateStatusRotated  int64 = 3
)

// KEYS: token, subject pointer, previous token (absent when there is none).
// ARGV: id, subject, exp ms, ttl ms, expected previous id, iat ms, family.
// Returns 0 when the pointer moved since the caller read it.
const recordScript = `
local prev = redis.call("GET", KEYS[2]) or ""
if prev ~= ARGV[5] then
  return 0
end
if KEYS[3] and prev ~= ARGV[1] then
  redis.call("DEL", KEYS[3])
end
redis.call("HSET", KEYS[1], "sub", ARGV[2], "exp", ARGV[3], "iat", ARGV[6], "fam", ARGV[7])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
redis.call("SET", KEYS[2], ARGV[1], "PX", ARGV[4])
return 1
`

// KEYS: old token, subject pointer, next token.
// ARGV: old id, subject, next id, next exp ms, next ttl ms, now ms, next iat ms,
// next family.
const rotateScript = `
local data = redis.call("HMGET", KEYS[1], "sub", "exp")
if not data[1] then
  return 0
end
if data[1] ~= ARGV[2] then
  return 2
end
if tonumber(data[2]) <= tonumber(ARGV[6]) then
  redis.call("DEL", KEYS[1])
  if redis.call("GET", KEYS[2]) == ARGV[1] then
    redis.call("DEL", KEYS[2])
  end
  return 1
end
if redis.call("GET", KEYS[2]) ~= ARGV[1] then
  redis.call("DEL", KEYS[1])
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("HSET", KEYS[3], "sub", ARGV[2], "exp", ARGV[4], "iat", ARGV[7], "fam", ARGV[8])
redis.call("PEXPIRE", KEYS[3], ARGV[5])
redis.call("SET", KEYS[2], ARGV[3], "PX", ARGV[5])
return 3
`

// KEYS: token, subject pointer. ARGV: id.
const revokeScript = `
redis.call("DEL", KEYS[1])
if redis.call("GET", KEYS[2]) == ARGV[1] then
  redis.call("DEL", KEYS[2])
end
return 1
`

// KEYS: subject pointer, current token. ARGV: expected current id.
// Returns 0 when the pointer moved since the caller read it.
const revokeAllScript = `
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
  return 0
end
redis.call("DEL", KEYS[1], KEYS[2])
return 1
`

// KEYS: subject pointer, current token. ARGV: expected current id, family.
// Returns 0 when the pointer moved since the caller read it.
const revokeFamilyScript = `
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
  return 0
end
if redis.call("HGET", KEYS[2], "fam") == ARGV[2] then
  redis.call("DEL", KEYS[1], KEYS[2])
end
return 1
`

// maxPointerAttempts bounds the retries of scripts whose keys depend on the
// subject pointer read just before them.
const maxPointerAttempts = 5

var (
	recordLua    = redis.NewScript(recordScript)
	rotateLua    = redis.NewScript(rotateScript)
	revokeLua    = redis.NewScript(revokeScript)
	revokeAllLua = redis.NewScript(revokeAllScript)
	revokeFamLua = redis.NewScript(revokeFamilyScript)
)

// RedisStore is a Store backed by Redis. Each token lives in a hash
// "{<prefix>}:rt:<id>" and each subject's current token id in
// "{<prefix>}:rts:<subject>"; both carry the token's remaining lifetime as
// TTL. The hash tag keeps every key of one store in a single cluster slot,
// and every script declares the keys it touches, so a cluster client works
// as well as a single node.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisClock overrides the clock used for expiry checks.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRedisStore creates a RedisStore using prefix as key namespace.
func NewRedisStore(client redis.UniversalClient, prefix string, opts ...RedisOption) *RedisStore {
	if prefix == "" {
		prefix = "bp"
	}
	s := &RedisStore{redis: client, prefix: prefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) tokenKey(id string) string        { return "{" + s.prefix + "}:rt:" + id }
func (s *RedisStore) subjectKey(subject string) string { return "{" + s.prefix + "}:rts:" + subject }

// current reads the subject pointer; "" means no active token.
func (s *RedisStore) current(ctx context.Context, subject string) (string, error) {
	id, err := s.redis.Get(ctx, s.subjectKey(subject)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return id, nil
}

// Record makes rec the subject's active token, retrying while a concurrent
// writer moves the subject pointer.
func (s *RedisStore) Record(ctx context.Context, rec Record) error {
	now := s.now()
	if err := validate(rec, now); err != nil {
		return err
	}
	ttl := rec.ExpiresAt.Sub(now)

	for attempt := 0; attempt < maxPointerAttempts; attempt++ {
		prev, err := s.current(ctx, rec.Subject)
		if err != nil {
			return err
		}
		keys := []string{s.tokenKey(rec.TokenID), s.subjectKey(rec.Subject)}
		if prev != "" {
			keys = append(keys, s.tokenKey(prev))
		}

		done, err := recordLua.Run(ctx, s.redis, keys,
			rec.TokenID, rec.Subject, rec.ExpiresAt.UnixMilli(), ttl.Milliseconds(), prev, issuedAtMillis(rec, now), rec.Family,
		).Int64()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if done == 1 {
			return nil
		}
	}
	return fmt.Errorf("%w: subject %q kept changing during record", ErrUnavailable, rec.Subject)
}

func (s *RedisStore) IsValid(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	vals, err := s.redis.HMGet(ctx, s.tokenKey(tokenID), "sub", "exp").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return false, nil
	}
	raw, ok := vals[1].(string)
	if !ok {
		return false, nil
	}
	expMs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, nil
	}
	return s.now().UnixMilli() < expMs, nil
}

// Rotate swaps oldTokenID for next in one script run.
func (s *RedisStore) Rotate(ctx context.Context, oldTokenID string, next Record) error {
	now := s.now()
	if err := validate(next, now); err != nil {
		return err
	}
	if oldTokenID == "" || oldTokenID == next.TokenID {
		return ErrRevoked
	}
	ttl := next.ExpiresAt.Sub(now)

	status, err := rotateLua.Run(ctx, s.redis,
		[]string{s.tokenKey(oldTokenID), s.subjectKey(next.Subject), s.tokenKey(next.TokenID)},
		oldTokenID, next.Subject, next.TokenID, next.ExpiresAt.UnixMilli(), ttl.Milliseconds(), now.UnixMilli(), issuedAtMillis(next, now), next.Family,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch status {
	case rotateStatusRotated:
		return nil
	case rotateStatusNotFound, rotateStatusExpired, rotateStatusMismatch:
		return ErrRevoked
	default:
		return fmt.Errorf("%w: unexpected rotate status %d", ErrUnavailable, status)
	}
}

func (s *RedisStore) Revoke(ctx context.Context, tokenID string) error {
	if tokenID == "" {
		return nil
	}
	subject, err := s.redis.HGet(ctx, s.tokenKey(tokenID), "sub").Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	err = revokeLua.Run(ctx, s.redis, []string{s.tokenKey(tokenID), s.subjectKey(subject)}, tokenID).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) RevokeAllForSubject(ctx context.Context, subject string) error {
	if subject == "" {
		return nil
	}
	for attempt := 0; attempt < maxPointerAttempts; attempt++ {
		cur, err := s.current(ctx, subject)
		if err != nil || cur == "" {
			return err
		}
		done, err := revokeAllLua.Run(ctx, s.redis,
			[]string{s.subjectKey(subject), s.tokenKey(cur)}, cur,
		).Int64()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if done == 1 {
			return nil
		}
	}
	return fmt.Errorf("%w: subject %q kept changing during revoke", ErrUnavailable, subject)
}

func (s *RedisStore) RevokeFamily(ctx context.Context, subject, family string) error {
	if subject == "" || family == "" {
		return nil
	}
	for attempt := 0; attempt < maxPointerAttempts; attempt++ {
		cur, err := s.current(ctx, subject)
		if err != nil || cur == "" {
			return err
		}
		done, err := revokeFamLua.Run(ctx, s.redis,
			[]string{s.subjectKey(subject), s.tokenKey(cur)}, cur, family,
		).Int64()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if done == 1 {
			return nil
		}
	}
	return fmt.Errorf("%w: subject %q kept changing during revoke", ErrUnavailable, subject)
}

// Sweep is a no-op: Redis evicts records through their key TTLs.
func (s *RedisStore) Sweep(context.Context) (int, error) {
	return 0, nil
}

func issuedAtMillis(rec Record, now time.Time) int64 {
	if rec.IssuedAt.IsZero() {
		return now.UnixMilli()
	}
	return rec.IssuedAt.UnixMilli()
}
