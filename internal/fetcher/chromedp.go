package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/medicalexcom/medx-ingest-api-sub000/pkg/types"
)

// ChromedpRenderer renders pages with a local headless Chrome, for
// deployments without a remote render service.
type ChromedpRenderer struct {
	opts      ChromedpOptions
	semaphore chan struct{}
	logger    *slog.Logger
}

// ChromedpOptions configures the local rendering engine.
type ChromedpOptions struct {
	Timeout            time.Duration
	UserAgent          string
	MaxBodyBytes       int64
	ConcurrentSessions int
	CaptureDelay       time.Duration
}

// NewChromedpRenderer constructs a renderer with bounded concurrency.
func NewChromedpRenderer(opts ChromedpOptions) *ChromedpRenderer {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 6 * 1024 * 1024
	}
	if opts.ConcurrentSessions <= 0 {
		opts.ConcurrentSessions = 1
	}
	return &ChromedpRenderer{
		opts:      opts,
		semaphore: make(chan struct{}, opts.ConcurrentSessions),
		logger:    slog.Default(),
	}
}

// Render navigates to the product page and exports the final DOM.
func (r *ChromedpRenderer) Render(parentCtx context.Context, req types.RenderRequest) (string, error) {
	select {
	case r.semaphore <- struct{}{}:
		defer func() { <-r.semaphore }()
	case <-parentCtx.Done():
		return "", parentCtx.Err()
	}

	timeout := r.opts.Timeout
	if req.TimeoutMS > 0 {
		timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(parentCtx, timeout)
	defer cancel()

	execOpts := []chromedp.ExecAllocatorOption{
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	}
	if ua := strings.TrimSpace(r.opts.UserAgent); ua != "" {
		execOpts = append(execOpts, chromedp.UserAgent(ua))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOpts...)
	defer allocCancel()

	chromeCtx, chromeCancel := chromedp.NewContext(allocCtx)
	defer chromeCancel()

	actions := []chromedp.Action{
		chromedp.Navigate(req.URL),
	}
	if sel := strings.TrimSpace(req.Selector); sel != "" {
		actions = append(actions,
			chromedp.WaitReady(sel, chromedp.ByQuery),
			chromedp.Sleep(250*time.Millisecond),
		)
	} else {
		delay := r.opts.CaptureDelay
		if req.WaitMS > 0 {
			delay = time.Duration(req.WaitMS) * time.Millisecond
		}
		if delay <= 0 {
			delay = 1500 * time.Millisecond
		}
		actions = append(actions, chromedp.Sleep(delay))
	}

	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(chromeCtx, actions...); err != nil {
		r.logger.Error("chromedp run failed", "url", req.URL, "error", err)
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	if int64(len(html)) > r.opts.MaxBodyBytes {
		return "", fmt.Errorf("%w (%d bytes allowed)", ErrBodyTooLarge, r.opts.MaxBodyBytes)
	}
	return html, nil
}
