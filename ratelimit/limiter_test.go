package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-costhook/core"
)

func TestTypeLimiter_BucketsArePerProviderType(t *testing.T) {
	limiter := NewTypeLimiter(core.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1})

	if !limiter.Allow(core.ProviderTypeStripe) {
		t.Fatalf("expected first stripe call to be admitted")
	}
	if limiter.Allow(core.ProviderTypeStripe) {
		t.Fatalf("expected second stripe call to be throttled")
	}
	if !limiter.Allow(core.ProviderTypeOpenAI) {
		t.Fatalf("expected openai to have its own budget")
	}
	if limiter.Allow(core.ProviderType(" STRIPE ")) {
		t.Fatalf("expected provider type to be normalized to the stripe bucket")
	}
}

func TestTypeLimiter_WaitFailsFastWhenDeadlineTooShort(t *testing.T) {
	limiter := NewTypeLimiter(core.RateLimitConfig{RequestsPerSecond: 0.01, Burst: 1})
	if err := limiter.Wait(context.Background(), core.ProviderTypeVercel); err != nil {
		t.Fatalf("expected first wait to pass, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := limiter.Wait(ctx, core.ProviderTypeVercel)
	var throttled ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("expected ThrottledError, got %v", err)
	}
	if throttled.RetryAfter <= 0 {
		t.Fatalf("expected positive retry hint, got %s", throttled.RetryAfter)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded cause, got %v", err)
	}
}

func TestTypeLimiter_WaitHonorsCancellation(t *testing.T) {
	limiter := NewTypeLimiter(core.RateLimitConfig{RequestsPerSecond: 0.01, Burst: 1})
	_ = limiter.Wait(context.Background(), core.ProviderTypeResend)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if err := limiter.Wait(ctx, core.ProviderTypeResend); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestTypeLimiter_OverridesAndUnlimited(t *testing.T) {
	limiter := NewTypeLimiter(
		core.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1},
		WithTypeLimit(core.ProviderTypeAnthropic, core.RateLimitConfig{RequestsPerSecond: 0, Burst: 1}),
	)
	for i := 0; i < 10; i++ {
		if !limiter.Allow(core.ProviderTypeAnthropic) {
			t.Fatalf("expected unlimited anthropic bucket, throttled at call %d", i)
		}
	}
	var nilLimiter *TypeLimiter
	if err := nilLimiter.Wait(context.Background(), core.ProviderTypeStripe); err != nil {
		t.Fatalf("expected nil limiter to admit, got %v", err)
	}
}

func TestThrottledError_ToServiceError(t *testing.T) {
	err := ThrottledError{ProviderType: core.ProviderTypeStripe, RetryAfter: 3 * time.Second}

	mapped := err.ToServiceError()
	if mapped == nil {
		t.Fatalf("expected mapped error")
	}
	if mapped.TextCode != core.ServiceErrorRateLimited {
		t.Fatalf("expected %q text code, got %q", core.ServiceErrorRateLimited, mapped.TextCode)
	}
	if mapped.Code != 429 {
		t.Fatalf("expected status code 429, got %d", mapped.Code)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if delay, ok := ParseRetryAfter("30", now); !ok || delay != 30*time.Second {
		t.Fatalf("expected 30s, got %s %v", delay, ok)
	}
	if delay, ok := ParseRetryAfter("1.5", now); !ok || delay != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s, got %s %v", delay, ok)
	}
	date := now.Add(2 * time.Minute).Format(http.TimeFormat)
	if delay, ok := ParseRetryAfter(date, now); !ok || delay != 2*time.Minute {
		t.Fatalf("expected 2m from http date, got %s %v", delay, ok)
	}
	if _, ok := ParseRetryAfter(now.Add(-time.Minute).Format(http.TimeFormat), now); ok {
		t.Fatalf("expected past date to be ignored")
	}
	for _, raw := range []string{"", "0", "-5", "soon"} {
		if _, ok := ParseRetryAfter(raw, now); ok {
			t.Fatalf("expected %q to be ignored", raw)
		}
	}
}

func TestRetryAfterFromHeaders(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()

	headers := http.Header{}
	headers.Set("X-RateLimit-Reset", "1700000045")
	if delay, ok := RetryAfterFromHeaders(headers, now); !ok || delay != 45*time.Second {
		t.Fatalf("expected 45s from unix reset, got %s %v", delay, ok)
	}

	headers = http.Header{}
	headers.Set("RateLimit-Reset", "12")
	if delay, ok := RetryAfterFromHeaders(headers, now); !ok || delay != 12*time.Second {
		t.Fatalf("expected 12s from delta reset, got %s %v", delay, ok)
	}

	headers.Set("Retry-After", "3")
	if delay, ok := RetryAfterFromHeaders(headers, now); !ok || delay != 3*time.Second {
		t.Fatalf("expected Retry-After to win, got %s %v", delay, ok)
	}
	if _, ok := RetryAfterFromHeaders(nil, now); ok {
		t.Fatalf("expected nil headers to be ignored")
	}
}
