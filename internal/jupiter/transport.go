// internal/jupiter/transport.go
package jupiter

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const defaultRetryAfter = time.Second

// rateLimitTransport retries a request exactly once after an HTTP 429,
// waiting the Retry-After hint (or one second when the header is absent or
// unreadable). Repeated 429s across invocations mean repeated waits; bounding
// total latency is the caller's job.
type rateLimitTransport struct {
	next   http.RoundTripper
	logger *zap.Logger
}

func newRateLimitTransport(next http.RoundTripper, logger *zap.Logger) *rateLimitTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &rateLimitTransport{next: next, logger: logger}
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusTooManyRequests {
		return resp, err
	}

	wait := retryAfterHint(resp.Header)
	t.logger.Warn("rate limited, backing off",
		zap.String("url", req.URL.Path),
		zap.Duration("wait", wait))

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	retryReq, err := rewind(req)
	if err != nil {
		return resp, nil
	}

	select {
	case <-req.Context().Done():
		return nil, req.Context().Err()
	case <-time.After(wait):
	}

	return t.next.RoundTrip(retryReq)
}

func retryAfterHint(h http.Header) time.Duration {
	raw := h.Get("Retry-After")
	if raw == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

// rewind produces a re-sendable copy of req. Requests with one-shot bodies
// and no GetBody cannot be replayed.
func rewind(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, http.ErrBodyReadAfterClose
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}
