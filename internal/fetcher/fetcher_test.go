package fetcher

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medicalexcom/medx-ingest-api-sub000/internal/cache"
	"github.com/medicalexcom/medx-ingest-api-sub000/pkg/types"
)

type renderFunc func(ctx context.Context, req types.RenderRequest) (string, error)

func (f renderFunc) Render(ctx context.Context, req types.RenderRequest) (string, error) {
	return f(ctx, req)
}

func TestFetchSucceedsAfterRetries(t *testing.T) {
	var calls int
	var mu sync.Mutex
	var waits []time.Duration
	var lastAttempt time.Time

	r := renderFunc(func(ctx context.Context, req types.RenderRequest) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		now := time.Now()
		if !lastAttempt.IsZero() {
			waits = append(waits, now.Sub(lastAttempt))
		}
		lastAttempt = now
		calls++
		if calls < 3 {
			return "", &UpstreamError{StatusCode: 500, Body: "boom"}
		}
		return "<html>ok</html>", nil
	})

	c := NewClient(r, nil, Options{
		MaxAttempts:    3,
		InitialBackoff: 50 * time.Millisecond,
		BackoffFactor:  1.8,
	}, nil)

	res, err := c.FetchRenderedHTML(context.Background(), types.RenderRequest{URL: "https://example.com/p/1"})
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", res.HTML)
	assert.Equal(t, 3, res.Attempts)
	assert.False(t, res.Fallback)

	// First wait ~50ms, second ~90ms, each scaled by jitter in [0.85, 1.0].
	require.Len(t, waits, 2)
	assert.GreaterOrEqual(t, waits[0], time.Duration(float64(50*time.Millisecond)*0.85))
	assert.GreaterOrEqual(t, waits[1], time.Duration(float64(90*time.Millisecond)*0.85))
	assert.Greater(t, waits[1], waits[0])
}

func TestBackoffDelayBounds(t *testing.T) {
	c := NewClient(renderFunc(nil), nil, Options{
		InitialBackoff: 600 * time.Millisecond,
		BackoffFactor:  1.8,
	}, nil)

	c.jitter = func() float64 { return 0.85 }
	assert.Equal(t, time.Duration(600*0.85)*time.Millisecond, c.backoffDelay(1))

	c.jitter = func() float64 { return 1.0 }
	assert.Equal(t, time.Duration(float64(600*time.Millisecond)*1.8), c.backoffDelay(2))
}

func TestFetchExhaustsAttempts(t *testing.T) {
	var calls int
	r := renderFunc(func(ctx context.Context, req types.RenderRequest) (string, error) {
		calls++
		return "", &UpstreamError{StatusCode: 500, Body: "persistent failure"}
	})

	c := NewClient(r, nil, Options{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	}, nil)

	_, err := c.FetchRenderedHTML(context.Background(), types.RenderRequest{URL: "https://example.com/p/1"})
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 500, ue.StatusCode)
}

func TestGatewayErrorTriggersDirectFallback(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>direct</html>"))
	}))
	defer origin.Close()

	var renderCalls int
	r := renderFunc(func(ctx context.Context, req types.RenderRequest) (string, error) {
		renderCalls++
		return "", &UpstreamError{StatusCode: 503, Body: "render pool exhausted"}
	})

	c := NewClient(r, nil, Options{MaxAttempts: 3, InitialBackoff: time.Millisecond}, nil)

	res, err := c.FetchRenderedHTML(context.Background(), types.RenderRequest{URL: origin.URL + "/product"})
	require.NoError(t, err)
	assert.Equal(t, "<html>direct</html>", res.HTML)
	assert.True(t, res.Fallback)
	assert.Equal(t, 1, renderCalls, "gateway failure must not be retried against the renderer")
}

func TestDirectFallbackFailurePropagatesRenderError(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer origin.Close()

	r := renderFunc(func(ctx context.Context, req types.RenderRequest) (string, error) {
		return "", &UpstreamError{StatusCode: 502, Body: "bad gateway"}
	})

	c := NewClient(r, nil, Options{MaxAttempts: 3, InitialBackoff: time.Millisecond}, nil)

	_, err := c.FetchRenderedHTML(context.Background(), types.RenderRequest{URL: origin.URL + "/p"})
	require.Error(t, err)

	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 502, ue.StatusCode)
}

func TestDirectFallbackRejectsOversizedBody(t *testing.T) {
	big := strings.Repeat("x", 4096)
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(big))
	}))
	defer origin.Close()

	r := renderFunc(func(ctx context.Context, req types.RenderRequest) (string, error) {
		return "", &UpstreamError{StatusCode: 504, Body: "timeout"}
	})

	c := NewClient(r, nil, Options{MaxAttempts: 1, MaxBodyBytes: 1024}, nil)

	_, err := c.FetchRenderedHTML(context.Background(), types.RenderRequest{URL: origin.URL})
	require.Error(t, err)
}

func TestDirectFallbackDecodesGzip(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte("<html>compressed</html>"))
		_ = gz.Close()
	}))
	defer origin.Close()

	r := renderFunc(func(ctx context.Context, req types.RenderRequest) (string, error) {
		return "", &UpstreamError{StatusCode: 503, Body: "down"}
	})

	c := NewClient(r, nil, Options{MaxAttempts: 1}, nil)

	res, err := c.FetchRenderedHTML(context.Background(), types.RenderRequest{URL: origin.URL})
	require.NoError(t, err)
	assert.Equal(t, "<html>compressed</html>", res.HTML)
}

func TestSSRFGuardBlocksPrivateHosts(t *testing.T) {
	r := renderFunc(func(ctx context.Context, req types.RenderRequest) (string, error) {
		t.Fatal("renderer must not be reached for blocked hosts")
		return "", nil
	})

	c := NewClient(r, nil, Options{SSRFGuard: true}, nil)

	for _, raw := range []string{
		"http://localhost/admin",
		"http://127.0.0.1:8080/",
		"http://169.254.169.254/latest/meta-data",
		"http://10.0.0.5/internal",
	} {
		_, err := c.FetchRenderedHTML(context.Background(), types.RenderRequest{URL: raw})
		assert.ErrorIs(t, err, ErrBlockedHost, raw)
	}
}

func TestCacheHitSkipsRenderer(t *testing.T) {
	var renderCalls int
	r := renderFunc(func(ctx context.Context, req types.RenderRequest) (string, error) {
		renderCalls++
		return "<html>fresh</html>", nil
	})

	store := cache.NewMemory(time.Minute, 10)
	c := NewClient(r, store, Options{MaxAttempts: 1}, nil)

	req := types.RenderRequest{URL: "https://example.com/p/9", WaitMS: 500}

	res1, err := c.FetchRenderedHTML(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, renderCalls)

	res2, err := c.FetchRenderedHTML(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, renderCalls, "second fetch must be served from cache")
	assert.Equal(t, res1.HTML, res2.HTML)

	// A different wait is a different cache key.
	_, err = c.FetchRenderedHTML(context.Background(), types.RenderRequest{URL: "https://example.com/p/9", WaitMS: 900})
	require.NoError(t, err)
	assert.Equal(t, 2, renderCalls)
}

func TestRemoteRendererPassesParametersAndToken(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("<html>rendered</html>"))
	}))
	defer srv.Close()

	rr, err := NewRemoteRenderer(RemoteOptions{BaseURL: srv.URL, Token: "secret-token"})
	require.NoError(t, err)

	html, err := rr.Render(context.Background(), types.RenderRequest{
		URL:       "https://shop.example.com/p/7",
		Selector:  "#main",
		WaitMS:    800,
		TimeoutMS: 12000,
		Mode:      "stealth",
	})
	require.NoError(t, err)
	assert.Equal(t, "<html>rendered</html>", html)
	assert.Equal(t, "/render", gotPath)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, []string{"https://shop.example.com/p/7"}, gotQuery["url"])
	assert.Equal(t, []string{"#main"}, gotQuery["selector"])
	assert.Equal(t, []string{"800"}, gotQuery["wait"])
	assert.Equal(t, []string{"12000"}, gotQuery["timeout"])
	assert.Equal(t, []string{"stealth"}, gotQuery["mode"])
}

func TestRemoteRendererSurfacesUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "render farm overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rr, err := NewRemoteRenderer(RemoteOptions{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = rr.Render(context.Background(), types.RenderRequest{URL: "https://example.com"})
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 503, ue.StatusCode)
	assert.Contains(t, ue.Body, "render farm overloaded")
}
