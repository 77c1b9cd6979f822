// internal/jupiter/types.go
package jupiter

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/Velocity-BPA/jupiter-go/internal/quote"
)

var (
	ErrMalformedResponse = errors.New("malformed aggregator response")
	ErrMissingParameter  = errors.New("missing required parameter")
)

// SwapRequest asks the aggregator to build a swap transaction for a quote.
type SwapRequest struct {
	Quote         quote.Quote
	UserPublicKey string
	WrapUnwrapSOL bool
	// PrioritizationFeeLamports is passed through verbatim when nonzero; the
	// compute-budget instructions built locally take precedence otherwise.
	PrioritizationFeeLamports uint64
	AsLegacyTransaction       bool
}

// SwapResponse carries the serialized transaction produced by the aggregator.
type SwapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

type swapRequestBody struct {
	QuoteResponse             quote.Quote `json:"quoteResponse"`
	UserPublicKey             string      `json:"userPublicKey"`
	WrapAndUnwrapSol          bool        `json:"wrapAndUnwrapSol"`
	PrioritizationFeeLamports uint64      `json:"prioritizationFeeLamports,omitempty"`
	AsLegacyTransaction       bool        `json:"asLegacyTransaction,omitempty"`
}

// validateQuote rejects responses that do not carry the fields the rest of
// the pipeline relies on, so untyped remote data never travels inward.
func validateQuote(q *quote.Quote) error {
	if q == nil {
		return fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}
	if strings.TrimSpace(q.InputMint) == "" || strings.TrimSpace(q.OutputMint) == "" {
		return fmt.Errorf("%w: missing mint", ErrMalformedResponse)
	}
	if q.InputMint == q.OutputMint {
		return fmt.Errorf("%w: input and output mints are identical", ErrMalformedResponse)
	}
	for _, field := range []struct{ name, value string }{
		{"inAmount", q.InAmount},
		{"outAmount", q.OutAmount},
		{"otherAmountThreshold", q.OtherAmountThreshold},
	} {
		if _, ok := new(big.Int).SetString(strings.TrimSpace(field.value), 10); !ok {
			return fmt.Errorf("%w: %s %q is not an integer amount", ErrMalformedResponse, field.name, field.value)
		}
	}
	if q.SwapMode != quote.SwapModeExactIn && q.SwapMode != quote.SwapModeExactOut {
		return fmt.Errorf("%w: unknown swap mode %q", ErrMalformedResponse, q.SwapMode)
	}
	if q.SlippageBps < 0 || q.SlippageBps > 10000 {
		return fmt.Errorf("%w: slippageBps %d out of range", ErrMalformedResponse, q.SlippageBps)
	}
	if len(q.RoutePlan) == 0 {
		return fmt.Errorf("%w: empty route plan", ErrMalformedResponse)
	}
	for i, step := range q.RoutePlan {
		if strings.TrimSpace(step.InputMint) == "" || strings.TrimSpace(step.OutputMint) == "" {
			return fmt.Errorf("%w: route step %d missing mint", ErrMalformedResponse, i)
		}
	}
	return nil
}
