package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/medicalexcom/medx-ingest-api-sub000/pkg/types"
)

// RemoteRenderer calls the external rendering service over HTTP.
type RemoteRenderer struct {
	baseURL      string
	token        string
	client       *http.Client
	timeout      time.Duration
	maxBodyBytes int64
}

// RemoteOptions configures the remote render client.
type RemoteOptions struct {
	BaseURL      string
	Token        string
	Timeout      time.Duration
	MaxBodyBytes int64
}

// NewRemoteRenderer constructs a renderer backed by the render API.
func NewRemoteRenderer(opts RemoteOptions) (*RemoteRenderer, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("render base url is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 25 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 6 * 1024 * 1024
	}
	return &RemoteRenderer{
		baseURL:      opts.BaseURL,
		token:        opts.Token,
		client:       &http.Client{},
		timeout:      opts.Timeout,
		maxBodyBytes: opts.MaxBodyBytes,
	}, nil
}

// Render executes one attempt against the render dependency. A non-2xx
// response surfaces as *UpstreamError; oversized bodies as
// ErrBodyTooLarge.
func (r *RemoteRenderer) Render(parentCtx context.Context, req types.RenderRequest) (string, error) {
	timeout := r.timeout
	if req.TimeoutMS > 0 {
		timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(parentCtx, timeout)
	defer cancel()

	q := url.Values{}
	q.Set("url", req.URL)
	if req.Selector != "" {
		q.Set("selector", req.Selector)
	}
	if req.WaitMS > 0 {
		q.Set("wait", strconv.Itoa(req.WaitMS))
	}
	if req.TimeoutMS > 0 {
		q.Set("timeout", strconv.Itoa(req.TimeoutMS))
	}
	if req.Mode != "" {
		q.Set("mode", req.Mode)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/render?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build render request: %w", err)
	}
	if r.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("render request failed: %w", err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, r.maxBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return "", fmt.Errorf("read render response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: truncateBody(body)}
	}
	if int64(len(body)) > r.maxBodyBytes {
		return "", fmt.Errorf("%w (%d bytes allowed)", ErrBodyTooLarge, r.maxBodyBytes)
	}
	return string(body), nil
}
