// Package rate throttles failed logins with Redis fixed-window counters.
//
// Keys:
//   - <prefix>:al:<username>  failed attempts per username
//   - <prefix>:ali:<ip>       failed attempts per client IP (optional)
//
// A window opens on the first failure and lasts the configured cooldown.
// Redis failures are reported as [ErrRedisUnavailable] so callers can fail
// closed instead of letting an outage disable throttling.
package rate
