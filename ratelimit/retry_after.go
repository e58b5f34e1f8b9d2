package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ParseRetryAfter reads a Retry-After value given either as delta seconds or
// as an HTTP date. Missing, non-positive or past values report false.
func ParseRetryAfter(raw string, now time.Time) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds * float64(time.Second)), true
	}
	if retryAt, err := http.ParseTime(raw); err == nil {
		if retryAt.After(now) {
			return retryAt.Sub(now), true
		}
	}
	return 0, false
}

// RetryAfterFromHeaders checks Retry-After first, then the common
// x-ratelimit-reset family (unix seconds or delta seconds).
func RetryAfterFromHeaders(headers http.Header, now time.Time) (time.Duration, bool) {
	if headers == nil {
		return 0, false
	}
	if delay, ok := ParseRetryAfter(headers.Get("Retry-After"), now); ok {
		return delay, true
	}
	for _, key := range []string{"X-RateLimit-Reset", "RateLimit-Reset"} {
		value := strings.TrimSpace(headers.Get(key))
		if value == "" {
			continue
		}
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			continue
		}
		// Values this large are absolute unix timestamps.
		if parsed > 1_000_000_000 {
			resetAt := time.Unix(parsed, 0).UTC()
			if resetAt.After(now) {
				return resetAt.Sub(now), true
			}
			continue
		}
		return time.Duration(parsed) * time.Second, true
	}
	return 0, false
}
