package jupiter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Velocity-BPA/jupiter-go/internal/quote"
	"github.com/Velocity-BPA/jupiter-go/internal/retry"
)

func validQuoteJSON() map[string]interface{} {
	return map[string]interface{}{
		"inputMint":            "So11111111111111111111111111111111111111112",
		"outputMint":           "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		"inAmount":             "1000000000",
		"outAmount":            "145000000",
		"otherAmountThreshold": "144275000",
		"swapMode":             "ExactIn",
		"slippageBps":          50,
		"priceImpactPct":       "0.05",
		"routePlan": []map[string]interface{}{
			{
				"ammKey":     "pool-a",
				"label":      "Orca",
				"inputMint":  "So11111111111111111111111111111111111111112",
				"outputMint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
				"inAmount":   "1000000000",
				"outAmount":  "145000000",
				"feeAmount":  "1500",
				"feeMint":    "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
				"percent":    100,
			},
		},
	}
}

func quoteRequest() quote.Request {
	return quote.Request{
		InputMint:  "So11111111111111111111111111111111111111112",
		OutputMint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Amount:     "1000000000",
	}
}

func TestQuoteSuccess(t *testing.T) {
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.RawQuery)
		json.NewEncoder(w).Encode(validQuoteJSON())
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zaptest.NewLogger(t))
	slippage := 50
	req := quoteRequest()
	req.SlippageBps = &slippage
	req.OnlyDirect = true

	q, err := c.Quote(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "145000000", q.OutAmount)
	assert.Equal(t, quote.SwapModeExactIn, q.SwapMode)
	assert.Len(t, q.RoutePlan, 1)

	query := gotQuery.Load().(string)
	assert.Contains(t, query, "slippageBps=50")
	assert.Contains(t, query, "onlyDirectRoutes=true")
}

func TestQuoteRetriesAfter429(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(validQuoteJSON())
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zaptest.NewLogger(t))
	q, err := c.Quote(context.Background(), quoteRequest())
	require.NoError(t, err)
	assert.Equal(t, "145000000", q.OutAmount)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestQuoteRejectsMalformedResponse(t *testing.T) {
	payload := validQuoteJSON()
	payload["outAmount"] = "not-a-number"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(payload)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zaptest.NewLogger(t))
	_, err := c.Quote(context.Background(), quoteRequest())
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestQuoteDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":"bad mint"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zaptest.NewLogger(t))
	_, err := c.Quote(context.Background(), quoteRequest())
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestQuoteRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(validQuoteJSON())
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zaptest.NewLogger(t),
		WithRetryPolicy(retry.Policy{MaxRetries: 3, BaseInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}))

	q, err := c.Quote(context.Background(), quoteRequest())
	require.NoError(t, err)
	assert.Equal(t, "145000000", q.OutAmount)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQuoteRequiresParameters(t *testing.T) {
	c := NewClient("http://localhost:0", zaptest.NewLogger(t))
	_, err := c.Quote(context.Background(), quote.Request{OutputMint: "X", Amount: "1"})
	assert.ErrorIs(t, err, ErrMissingParameter)
}

func TestSwapPostsQuoteAndReturnsTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/swap", r.URL.Path)

		var body swapRequestBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "payer-pubkey", body.UserPublicKey)
		assert.Equal(t, "1000000000", body.QuoteResponse.InAmount)

		json.NewEncoder(w).Encode(SwapResponse{
			SwapTransaction:      "AQAB",
			LastValidBlockHeight: 245832190,
		})
	}))
	defer srv.Close()

	raw, err := json.Marshal(validQuoteJSON())
	require.NoError(t, err)
	var q quote.Quote
	require.NoError(t, json.Unmarshal(raw, &q))

	c := NewClient(srv.URL, zaptest.NewLogger(t))
	resp, err := c.Swap(context.Background(), SwapRequest{
		Quote:         q,
		UserPublicKey: "payer-pubkey",
		WrapUnwrapSOL: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "AQAB", resp.SwapTransaction)
	assert.Equal(t, uint64(245832190), resp.LastValidBlockHeight)
}

func TestRetryAfterHint(t *testing.T) {
	h := http.Header{}
	assert.Equal(t, time.Second, retryAfterHint(h))

	h.Set("Retry-After", "3")
	assert.Equal(t, 3*time.Second, retryAfterHint(h))

	h.Set("Retry-After", "soon")
	assert.Equal(t, time.Second, retryAfterHint(h))
}
