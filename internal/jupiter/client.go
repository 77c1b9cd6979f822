// internal/jupiter/client.go
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Velocity-BPA/jupiter-go/internal/quote"
	"github.com/Velocity-BPA/jupiter-go/internal/retry"
)

const (
	defaultBaseURL        = "https://quote-api.jup.ag/v6"
	defaultRequestTimeout = 12 * time.Second
)

// HTTPError is a non-2xx response from the aggregator.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("jupiter http %d", e.StatusCode)
	}
	return fmt.Sprintf("jupiter http %d: %s", e.StatusCode, b)
}

// IsRateLimited reports whether err is an HTTP 429 that survived the
// transport-level retry.
func IsRateLimited(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests
}

// Client talks to the aggregator's quote and swap endpoints. Safe for
// concurrent use; every request is independent.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
	policy  retry.Policy
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey attaches an API key to every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = strings.TrimSpace(key) }
}

// WithRetryPolicy overrides the transport retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func NewClient(baseURL string, logger *zap.Logger, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	logger = logger.Named("jupiter-client")

	c := &Client{
		baseURL: baseURL,
		logger:  logger,
		policy:  retry.DefaultPolicy(),
		http: &http.Client{
			Timeout: defaultRequestTimeout,
			Transport: newRateLimitTransport(&http.Transport{
				MaxIdleConns:        100,
				MaxConnsPerHost:     100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			}, logger),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Quote fetches a priced route for req. The response is validated at the
// boundary before it is handed to callers.
func (c *Client) Quote(ctx context.Context, req quote.Request) (*quote.Quote, error) {
	if strings.TrimSpace(req.InputMint) == "" {
		return nil, fmt.Errorf("%w: inputMint", ErrMissingParameter)
	}
	if strings.TrimSpace(req.OutputMint) == "" {
		return nil, fmt.Errorf("%w: outputMint", ErrMissingParameter)
	}
	if strings.TrimSpace(req.Amount) == "" {
		return nil, fmt.Errorf("%w: amount", ErrMissingParameter)
	}

	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", req.Amount)
	if req.SlippageBps != nil {
		q.Set("slippageBps", strconv.Itoa(*req.SlippageBps))
	}
	if req.SwapMode != "" {
		q.Set("swapMode", string(req.SwapMode))
	}
	if len(req.Dexes) > 0 {
		q.Set("dexes", strings.Join(req.Dexes, ","))
	}
	if len(req.ExcludeDexes) > 0 {
		q.Set("excludeDexes", strings.Join(req.ExcludeDexes, ","))
	}
	if req.OnlyDirect {
		q.Set("onlyDirectRoutes", "true")
	}
	if req.PlatformFeeBps != nil {
		q.Set("platformFeeBps", strconv.Itoa(*req.PlatformFeeBps))
	}
	if req.MaxAccounts != nil {
		q.Set("maxAccounts", strconv.Itoa(*req.MaxAccounts))
	}

	var out quote.Quote
	if err := c.get(ctx, "/quote?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	if err := validateQuote(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Swap asks the aggregator to compile a quote into a serialized transaction.
func (c *Client) Swap(ctx context.Context, req SwapRequest) (*SwapResponse, error) {
	if strings.TrimSpace(req.UserPublicKey) == "" {
		return nil, fmt.Errorf("%w: userPublicKey", ErrMissingParameter)
	}
	if err := validateQuote(&req.Quote); err != nil {
		return nil, err
	}

	body := swapRequestBody{
		QuoteResponse:             req.Quote,
		UserPublicKey:             req.UserPublicKey,
		WrapAndUnwrapSol:          req.WrapUnwrapSOL,
		PrioritizationFeeLamports: req.PrioritizationFeeLamports,
		AsLegacyTransaction:       req.AsLegacyTransaction,
	}

	var out SwapResponse
	if err := c.post(ctx, "/swap", body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.SwapTransaction) == "" {
		return nil, fmt.Errorf("%w: missing swapTransaction", ErrMalformedResponse)
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, dst interface{}) error {
	return c.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		return c.do(req, dst)
	})
}

func (c *Client) post(ctx context.Context, path string, body, dst interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		return c.do(req, dst)
	})
}

func (c *Client) do(req *http.Request, dst interface{}) error {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	c.logger.Debug("request completed",
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: body}
		// Client errors other than 429 will not improve with retries.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return retry.Permanent(httpErr)
		}
		return httpErr
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return retry.Permanent(fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}
	return nil
}
