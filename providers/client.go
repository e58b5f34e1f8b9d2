package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-costhook/core"
	"github.com/goliatone/go-costhook/ratelimit"
	"github.com/goliatone/go-costhook/transport"
)

const (
	defaultUserAgent       = "costhook/1"
	maxErrorMessageLength  = 200
	defaultMaxPages        = 500
	defaultClientTimeout   = 60 * time.Second
	providerResponseFormat = "application/json"
)

type ClientOption func(*Client)

func WithHTTPClient(doer transport.HTTPDoer) ClientOption {
	return func(c *Client) {
		if doer != nil {
			c.rest.Client = doer
		}
	}
}

func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func WithUserAgent(agent string) ClientOption {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(agent); trimmed != "" {
			c.userAgent = trimmed
		}
	}
}

func WithResponseBodyLimit(limit int64) ClientOption {
	return func(c *Client) {
		if limit > 0 {
			c.rest.MaxResponseBodyBytes = limit
		}
	}
}

// Client is the shared HTTP layer of every vendor adapter. It turns raw
// transport outcomes into *core.AdapterError values.
type Client struct {
	rest      *transport.RESTAdapter
	now       func() time.Time
	userAgent string
	maxPages  int
}

func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		rest:      transport.NewRESTAdapter(&http.Client{Timeout: defaultClientTimeout}),
		now:       func() time.Time { return time.Now().UTC() },
		userAgent: defaultUserAgent,
		maxPages:  defaultMaxPages,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(client)
	}
	return client
}

func (c *Client) Now() time.Time {
	if c == nil || c.now == nil {
		return time.Now().UTC()
	}
	return c.now().UTC()
}

// MaxPages bounds pagination loops.
func (c *Client) MaxPages() int {
	if c == nil || c.maxPages <= 0 {
		return defaultMaxPages
	}
	return c.maxPages
}

// Do performs one call and returns only 2xx responses. Every other outcome
// is an *AdapterError, except caller cancellation which is returned as is.
func (c *Client) Do(ctx context.Context, provider core.ProviderType, req transport.Request) (transport.Response, error) {
	if c == nil || c.rest == nil {
		return transport.Response{}, core.NewTransientError(provider, "http client is not configured", nil)
	}
	headers := make(map[string]string, len(req.Headers)+2)
	headers["User-Agent"] = c.userAgent
	headers["Accept"] = providerResponseFormat
	for key, value := range req.Headers {
		headers[key] = value
	}
	req.Headers = headers

	res, err := c.rest.Do(ctx, req)
	if err != nil {
		return transport.Response{}, ClassifyTransportError(ctx, provider, err)
	}
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return res, nil
	}
	return transport.Response{}, ClassifyStatus(provider, res.StatusCode, res.Headers, res.Body, c.Now())
}

// GetJSON issues a GET and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, provider core.ProviderType, req transport.Request, out any) error {
	req.Method = http.MethodGet
	res, err := c.Do(ctx, provider, req)
	if err != nil {
		return err
	}
	return DecodeJSON(provider, res.Body, out)
}

func DecodeJSON(provider core.ProviderType, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return core.NewAdapterError(core.AdapterErrorUnsupported, provider, "unexpected response payload", err)
	}
	return nil
}

// ClassifyStatus maps a non-2xx vendor response onto the adapter error
// taxonomy.
func ClassifyStatus(provider core.ProviderType, status int, headers http.Header, body []byte, now time.Time) *core.AdapterError {
	detail := vendorMessage(body)
	if detail == "" {
		detail = strings.ToLower(http.StatusText(status))
	}
	if detail == "" {
		detail = fmt.Sprintf("unexpected status %d", status)
	}
	retryAfter, _ := ratelimit.RetryAfterFromHeaders(headers, now)

	var err *core.AdapterError
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		err = core.NewAuthExpiredError(provider, detail)
	case status == http.StatusTooManyRequests:
		err = core.NewRateLimitedError(provider, detail, retryAfter)
	case status >= 500 || status == http.StatusRequestTimeout:
		err = core.NewTransientError(provider, detail, nil)
		err.RetryAfter = retryAfter
	default:
		err = core.NewUnsupportedError(provider, detail)
	}
	return err.WithStatusCode(status)
}

// ClassifyTransportError maps failures that produced no response. Caller
// cancellation passes through untouched so the scheduler can tell it apart.
func ClassifyTransportError(ctx context.Context, provider core.ProviderType, err error) error {
	if err == nil {
		return nil
	}
	if ctx != nil && errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	var tooLarge *transport.ResponseTooLargeError
	if errors.As(err, &tooLarge) {
		return core.NewAdapterError(core.AdapterErrorUnsupported, provider, "response exceeds size limit", err).
			WithStatusCode(tooLarge.StatusCode)
	}
	// A request that could not be built will not improve on retry.
	if stage, ok := transport.StageOf(err); ok && (stage == transport.StageBuild || stage == transport.StageConfigure) {
		return core.NewAdapterError(core.AdapterErrorUnsupported, provider, "request could not be built", err)
	}
	if ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return core.NewTransientError(provider, "request timed out", err)
	}
	return core.NewTransientError(provider, "network error", err)
}

func vendorMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return ""
	}
	candidates := []any{payload["message"], payload["error_description"], payload["error"]}
	if nested, ok := payload["error"].(map[string]any); ok {
		candidates = append([]any{nested["message"]}, candidates...)
	}
	for _, candidate := range candidates {
		if text, ok := candidate.(string); ok && strings.TrimSpace(text) != "" {
			return truncate(strings.TrimSpace(text), maxErrorMessageLength)
		}
	}
	return ""
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}

// Paginate calls fetch with successive cursors until it returns an empty
// next cursor. Repeated cursors and runaway page counts are Unsupported.
func (c *Client) Paginate(ctx context.Context, provider core.ProviderType, fetch func(ctx context.Context, cursor string) (string, error)) error {
	cursor := ""
	seen := map[string]struct{}{}
	for page := 0; page < c.MaxPages(); page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		next, err := fetch(ctx, cursor)
		if err != nil {
			return err
		}
		next = strings.TrimSpace(next)
		if next == "" {
			return nil
		}
		if _, repeated := seen[next]; repeated {
			return core.NewUnsupportedError(provider, "pagination cursor repeated")
		}
		seen[next] = struct{}{}
		cursor = next
	}
	return core.NewUnsupportedError(provider, fmt.Sprintf("pagination exceeded %d pages", c.MaxPages()))
}
