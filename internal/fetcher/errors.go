package fetcher

import (
	"errors"
	"fmt"
)

// ErrBlockedHost marks URLs refused by the SSRF guard before any
// network activity.
var ErrBlockedHost = errors.New("host is blocked by the ssrf guard")

// ErrBodyTooLarge marks responses exceeding the configured byte
// ceiling; oversized pages are rejected rather than truncated.
var ErrBodyTooLarge = errors.New("response body exceeds configured limit")

// UpstreamError carries a non-2xx status from the render dependency
// (or the direct fallback) with a truncated body for diagnostics.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// retryableGateway reports whether the status is one of the gateway
// failures that trigger the one-shot direct-fetch fallback.
func retryableGateway(status int) bool {
	switch status {
	case 502, 503, 504:
		return true
	}
	return false
}

const maxErrBodyBytes = 512

func truncateBody(b []byte) string {
	if len(b) > maxErrBodyBytes {
		return string(b[:maxErrBodyBytes])
	}
	return string(b)
}
