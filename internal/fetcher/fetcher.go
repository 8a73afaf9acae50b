// Package fetcher retrieves rendered product-page HTML, either from a
// remote rendering service or a local headless browser, with caching,
// bounded retries, and a direct-fetch fallback.
package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/time/rate"

	"github.com/medicalexcom/medx-ingest-api-sub000/internal/cache"
	"github.com/medicalexcom/medx-ingest-api-sub000/internal/metrics"
	"github.com/medicalexcom/medx-ingest-api-sub000/internal/urlutil"
	"github.com/medicalexcom/medx-ingest-api-sub000/pkg/types"
)

// Renderer turns a render request into final HTML.
type Renderer interface {
	Render(ctx context.Context, req types.RenderRequest) (string, error)
}

// Options controls fetching behaviour.
type Options struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	BackoffFactor  float64
	MaxBodyBytes   int64
	UserAgent      string
	SSRFGuard      bool
	RatePerSecond  float64
	RateBurst      int
	WallClockWarn  time.Duration
}

// Client coordinates the cache, the renderer, retry policy, and the
// direct-fetch fallback.
type Client struct {
	renderer Renderer
	direct   *http.Client
	store    cache.Store
	limiter  *rate.Limiter
	opts     Options
	logger   *slog.Logger

	// jitter returns the backoff multiplier for one wait; uniform in
	// [0.85, 1.0] so retries never fire early and growth stays
	// monotonic. Replaceable in tests.
	jitter func() float64
}

// NewClient constructs a fetch client. store may be nil to disable
// caching (used by the CLI).
func NewClient(renderer Renderer, store cache.Store, opts Options, logger *slog.Logger) *Client {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 600 * time.Millisecond
	}
	if opts.BackoffFactor < 1 {
		opts.BackoffFactor = 1.8
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 6 * 1024 * 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return &Client{
		renderer: renderer,
		direct: &http.Client{
			Timeout: 30 * time.Second,
		},
		store:   store,
		limiter: limiter,
		opts:    opts,
		logger:  logger,
		jitter: func() float64 {
			return 0.85 + 0.15*rand.Float64()
		},
	}
}

// FetchRenderedHTML resolves a render request to HTML. The cache is
// consulted first; on a miss the renderer is called with bounded
// attempts and jittered backoff, and a 502/503/504 from the renderer
// triggers one direct fetch of the origin instead of further retries.
func (c *Client) FetchRenderedHTML(ctx context.Context, req types.RenderRequest) (types.FetchResult, error) {
	start := time.Now()
	var out types.FetchResult

	u, err := url.Parse(req.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return out, fmt.Errorf("invalid url %q", req.URL)
	}
	if c.opts.SSRFGuard && urlutil.IsLikelyDangerousHost(u.Hostname()) {
		return out, fmt.Errorf("%w: %s", ErrBlockedHost, u.Hostname())
	}

	key := req.CacheKey()
	if c.store != nil {
		if html, ok, cerr := c.store.Get(ctx, key); cerr != nil {
			c.logger.Warn("cache read failed", "error", cerr)
		} else if ok {
			metrics.CacheHits.Inc()
			out.HTML = html
			out.FinalURL = req.URL
			out.FetchedAt = time.Now()
			return out, nil
		}
		metrics.CacheMisses.Inc()
	}

	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return out, err
			}
		}
		metrics.RenderFetchAttempts.Inc()

		html, rerr := c.renderer.Render(ctx, req)
		out.Attempts = attempt
		if rerr == nil {
			c.finish(ctx, key, html, &out, req.URL, start)
			return out, nil
		}
		lastErr = rerr
		c.logger.Warn("render attempt failed",
			"url", req.URL, "attempt", attempt, "error", rerr)

		var ue *UpstreamError
		if errors.As(rerr, &ue) && retryableGateway(ue.StatusCode) {
			// The render dependency is struggling; the origin may not be.
			metrics.RenderFallbacks.Inc()
			html, derr := c.fetchDirect(ctx, req.URL)
			if derr == nil {
				out.Fallback = true
				c.finish(ctx, key, html, &out, req.URL, start)
				return out, nil
			}
			c.logger.Warn("direct fallback failed", "url", req.URL, "error", derr)
			lastErr = rerr
			break
		}

		if attempt < c.opts.MaxAttempts {
			delay := c.backoffDelay(attempt)
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return out, ctx.Err()
			}
		}
	}
	return out, lastErr
}

func (c *Client) finish(ctx context.Context, key, html string, out *types.FetchResult, finalURL string, start time.Time) {
	out.HTML = html
	out.FinalURL = finalURL
	out.FetchedAt = time.Now()
	if c.store != nil {
		if err := c.store.Set(ctx, key, html); err != nil {
			c.logger.Warn("cache write failed", "error", err)
		}
	}
	if c.opts.WallClockWarn > 0 {
		if elapsed := time.Since(start); elapsed > c.opts.WallClockWarn {
			c.logger.Warn("fetch exceeded wall-clock budget",
				"url", finalURL, "elapsed", elapsed.String())
		}
	}
}

// backoffDelay computes the wait before the next attempt:
// initial × factor^(attempt-1) × jitter.
func (c *Client) backoffDelay(attempt int) time.Duration {
	base := float64(c.opts.InitialBackoff) * math.Pow(c.opts.BackoffFactor, float64(attempt-1))
	return time.Duration(base * c.jitter())
}

// fetchDirect retrieves the raw origin HTML, bypassing rendering.
func (c *Client) fetchDirect(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := c.direct.Do(req)
	if err != nil {
		return "", fmt.Errorf("direct fetch failed: %w", err)
	}
	body, err := c.readBody(resp)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: truncateBody(body)}
	}
	return string(body), nil
}

func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, fmt.Errorf("empty response body")
	}

	reader := io.Reader(resp.Body)
	closers := []io.Closer{resp.Body}

	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		reader = gz
		closers = append(closers, gz)
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		reader = fl
		closers = append(closers, fl)
	}

	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	limited := io.LimitReader(reader, c.opts.MaxBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.opts.MaxBodyBytes {
		return nil, fmt.Errorf("%w (%d bytes allowed)", ErrBodyTooLarge, c.opts.MaxBodyBytes)
	}
	return body, nil
}
