// Package fetcher is the shared HTTP layer of the metadata clients: one
// throttled GET per call, with response statuses mapped onto the
// not-found/transient taxonomy of package resilience. Retries are left to
// the caller.
package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teaterarkiv/archive-cli/internal/resilience"
)

// DefaultDelay is the pause between two calls to the same source.
const DefaultDelay = 500 * time.Millisecond

// maxBody caps how much of a response is read.
const maxBody = 8 << 20

// Options configures a Getter.
type Options struct {
	Source    string        // used in errors and logs: "nrk", "wikidata", "sceneweb"
	UserAgent string        // default "archive-cli/1.0"
	Timeout   time.Duration // default 30s
	Delay     time.Duration // default DefaultDelay; negative disables throttling
	Client    *http.Client  // optional, overrides Timeout
}

// AdaptiveLimiter spaces calls by a fixed delay and slows down when the
// source answers 429. It recovers toward the configured rate on success.
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	initialRate rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter returns a limiter allowing one call per delay.
func NewAdaptiveLimiter(delay time.Duration) *AdaptiveLimiter {
	r := rate.Inf
	if delay > 0 {
		r = rate.Every(delay)
	}
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(r, 1),
		initialRate: r,
		minRate:     r / 4,
		currentRate: r,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess raises the rate by 20%, never above the configured rate.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.currentRate == rate.Inf {
		return
	}
	a.currentRate = min(a.currentRate*1.2, a.initialRate)
	a.limiter.SetLimit(a.currentRate)
}

// OnRateLimit halves the rate, down to a quarter of the configured rate.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.currentRate == rate.Inf {
		return
	}
	a.currentRate = max(a.currentRate*0.5, a.minRate)
	a.limiter.SetLimit(a.currentRate)
	zap.L().Warn("fetch: reducing rate after 429",
		zap.Float64("new_rate", float64(a.currentRate)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// Getter performs throttled GET requests for one source.
type Getter struct {
	source    string
	userAgent string
	client    *http.Client
	limiter   *AdaptiveLimiter
}

// NewGetter creates a Getter with the given options.
func NewGetter(opts Options) *Getter {
	if opts.UserAgent == "" {
		opts.UserAgent = "archive-cli/1.0"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Delay == 0 {
		opts.Delay = DefaultDelay
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Getter{
		source:    opts.Source,
		userAgent: opts.UserAgent,
		client:    client,
		limiter:   NewAdaptiveLimiter(opts.Delay),
	}
}

// Get fetches rawURL and returns the body of a 2xx response. what names the
// record in error messages. Errors wrap model.ErrNotFound for 404/410 and
// are transient for 429, 5xx and network failures.
func (g *Getter) Get(ctx context.Context, rawURL, what string, header http.Header) ([]byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrapf(err, "%s: rate limiter wait", g.source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: create request", g.source)
	}
	req.Header.Set("User-Agent", g.userAgent)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if resilience.IsTransient(err) {
			return nil, resilience.NewTransientError(eris.Wrapf(err, "%s: get %s", g.source, what), 0)
		}
		return nil, eris.Wrapf(err, "%s: get %s", g.source, what)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests {
		g.limiter.OnRateLimit()
	}
	if err := resilience.CheckStatus(g.source, what, resp.StatusCode); err != nil {
		var te *resilience.TransientError
		if errors.As(err, &te) {
			te.RetryAfter = resilience.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		}
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "%s: read %s", g.source, what), 0)
	}
	g.limiter.OnSuccess()
	return body, nil
}
