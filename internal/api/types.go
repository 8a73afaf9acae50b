package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/medicalexcom/medx-ingest-api-sub000/internal/config"
	"github.com/medicalexcom/medx-ingest-api-sub000/pkg/types"
)

// IngestParams is the decoded query surface of GET /ingest.
type IngestParams struct {
	URL       string
	Selector  string
	WaitMS    int
	TimeoutMS int
	Mode      string

	MinImagePx int
	ExcludePNG bool
	Aggressive bool
	Harvest    bool
	Sanitize   bool
	Markdown   bool
	MainOnly   bool
	Debug      bool
}

// parseIngestParams decodes and validates the query string. Extraction
// knobs default from config; harvest defaults on.
func parseIngestParams(q url.Values, extract config.ExtractConfig, maxWaitMS int) (IngestParams, error) {
	p := IngestParams{
		MinImagePx: extract.MinImagePx,
		ExcludePNG: extract.ExcludePNG,
		Harvest:    true,
	}

	p.URL = strings.TrimSpace(q.Get("url"))
	if p.URL == "" {
		return p, fmt.Errorf("missing required parameter url")
	}
	u, err := url.Parse(p.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return p, fmt.Errorf("invalid url %q", p.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return p, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	p.Selector = strings.TrimSpace(q.Get("selector"))

	if p.WaitMS, err = intParam(q, "wait", 0); err != nil {
		return p, err
	}
	if p.TimeoutMS, err = intParam(q, "timeout", 0); err != nil {
		return p, err
	}
	if maxWaitMS > 0 {
		if p.WaitMS > maxWaitMS {
			p.WaitMS = maxWaitMS
		}
		if p.TimeoutMS > maxWaitMS {
			p.TimeoutMS = maxWaitMS
		}
	}

	p.Mode = strings.ToLower(strings.TrimSpace(q.Get("mode")))
	switch p.Mode {
	case "", "fast", "full":
	default:
		return p, fmt.Errorf("invalid mode %q, want fast or full", p.Mode)
	}

	if p.MinImagePx, err = intParam(q, "minpx", p.MinImagePx); err != nil {
		return p, err
	}
	if p.ExcludePNG, err = boolParam(q, "excludepng", p.ExcludePNG); err != nil {
		return p, err
	}
	if p.Aggressive, err = boolParam(q, "aggressive", false); err != nil {
		return p, err
	}
	if p.Harvest, err = boolParam(q, "harvest", true); err != nil {
		return p, err
	}
	if p.Sanitize, err = boolParam(q, "sanitize", false); err != nil {
		return p, err
	}
	if p.Markdown, err = boolParam(q, "markdown", false); err != nil {
		return p, err
	}
	if p.MainOnly, err = boolParam(q, "mainonly", false); err != nil {
		return p, err
	}
	if p.Debug, err = boolParam(q, "debug", false); err != nil {
		return p, err
	}
	return p, nil
}

func (p IngestParams) renderRequest() types.RenderRequest {
	return types.RenderRequest{
		URL:       p.URL,
		Selector:  p.Selector,
		WaitMS:    p.WaitMS,
		TimeoutMS: p.TimeoutMS,
		Mode:      p.Mode,
	}
}

func intParam(q url.Values, key string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def, fmt.Errorf("invalid %s %q, want a non-negative integer", key, raw)
	}
	return n, nil
}

func boolParam(q url.Values, key string, def bool) (bool, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("invalid %s %q, want a boolean", key, raw)
	}
	return b, nil
}
