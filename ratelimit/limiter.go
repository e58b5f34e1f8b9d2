package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-costhook/core"
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/time/rate"
)

// ThrottledError is returned when a call could not be admitted before the
// caller's deadline.
type ThrottledError struct {
	ProviderType core.ProviderType
	RetryAfter   time.Duration
	Err          error
}

func (e ThrottledError) Error() string {
	msg := fmt.Sprintf("ratelimit: provider type %q throttled", strings.TrimSpace(string(e.ProviderType)))
	if e.RetryAfter > 0 {
		msg = fmt.Sprintf("%s for %s", msg, e.RetryAfter)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e ThrottledError) Unwrap() error {
	return e.Err
}

func (e ThrottledError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{
		"provider_type": strings.TrimSpace(string(e.ProviderType)),
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.ServiceErrorRateLimited).
		WithMetadata(metadata)
}

// TypeLimiter keeps one token bucket per provider type so that every
// instance of the same vendor shares the outbound budget.
type TypeLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[core.ProviderType]*rate.Limiter
	override map[core.ProviderType]core.RateLimitConfig
}

type Option func(*TypeLimiter)

// WithTypeLimit sets a dedicated budget for one provider type.
func WithTypeLimit(providerType core.ProviderType, cfg core.RateLimitConfig) Option {
	return func(l *TypeLimiter) {
		if l.override == nil {
			l.override = map[core.ProviderType]core.RateLimitConfig{}
		}
		l.override[normalizeType(providerType)] = cfg
	}
}

func NewTypeLimiter(cfg core.RateLimitConfig, opts ...Option) *TypeLimiter {
	limiter := &TypeLimiter{
		limit:    toLimit(cfg.RequestsPerSecond),
		burst:    toBurst(cfg.Burst),
		limiters: map[core.ProviderType]*rate.Limiter{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(limiter)
	}
	return limiter
}

func (l *TypeLimiter) Wait(ctx context.Context, providerType core.ProviderType) error {
	if l == nil {
		return nil
	}
	bucket := l.bucket(providerType)
	reservation := bucket.Reserve()
	if !reservation.OK() {
		return ThrottledError{ProviderType: providerType}
	}
	delay := reservation.Delay()
	if delay <= 0 {
		return nil
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
		reservation.Cancel()
		return ThrottledError{ProviderType: providerType, RetryAfter: delay, Err: context.DeadlineExceeded}
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		reservation.Cancel()
		return ctx.Err()
	}
}

// Allow reports whether a call may proceed now without waiting.
func (l *TypeLimiter) Allow(providerType core.ProviderType) bool {
	if l == nil {
		return true
	}
	return l.bucket(providerType).Allow()
}

func (l *TypeLimiter) bucket(providerType core.ProviderType) *rate.Limiter {
	key := normalizeType(providerType)
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.limiters[key]; ok {
		return existing
	}
	limit, burst := l.limit, l.burst
	if cfg, ok := l.override[key]; ok {
		limit, burst = toLimit(cfg.RequestsPerSecond), toBurst(cfg.Burst)
	}
	created := rate.NewLimiter(limit, burst)
	l.limiters[key] = created
	return created
}

func normalizeType(providerType core.ProviderType) core.ProviderType {
	return core.ProviderType(strings.TrimSpace(strings.ToLower(string(providerType))))
}

func toLimit(perSecond float64) rate.Limit {
	if perSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(perSecond)
}

func toBurst(burst int) int {
	if burst < 1 {
		return 1
	}
	return burst
}

var _ core.CallLimiter = (*TypeLimiter)(nil)

func (e ThrottledError) RetryHint() time.Duration {
	return e.RetryAfter
}
