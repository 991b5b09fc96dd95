package rate

import "errors"

var (
	// ErrRateLimited is returned once an attempt budget is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis I/O failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
