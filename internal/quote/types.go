// internal/quote/types.go
package quote

// SwapMode determines which side of the swap is fixed.
type SwapMode string

const (
	SwapModeExactIn  SwapMode = "ExactIn"
	SwapModeExactOut SwapMode = "ExactOut"
)

// RouteStep is a single hop of a route plan. Amounts are raw integers in the
// smallest indivisible unit, kept as decimal strings.
type RouteStep struct {
	AmmKey     string `json:"ammKey"`
	Label      string `json:"label,omitempty"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
	FeeAmount  string `json:"feeAmount,omitempty"`
	FeeMint    string `json:"feeMint,omitempty"`
	Percent    int    `json:"percent"`
}

// PlatformFee is an optional integrator fee attached to a quote.
type PlatformFee struct {
	Amount string `json:"amount,omitempty"`
	FeeBps int    `json:"feeBps,omitempty"`
}

// Quote is an immutable priced proposal for swapping InputMint into OutputMint.
// It is a plain value: constructed once at the API boundary and never mutated.
type Quote struct {
	InputMint            string       `json:"inputMint"`
	OutputMint           string       `json:"outputMint"`
	InAmount             string       `json:"inAmount"`
	OutAmount            string       `json:"outAmount"`
	OtherAmountThreshold string       `json:"otherAmountThreshold"`
	SwapMode             SwapMode     `json:"swapMode"`
	SlippageBps          int          `json:"slippageBps"`
	PriceImpactPct       string       `json:"priceImpactPct"`
	RoutePlan            []RouteStep  `json:"routePlan"`
	PlatformFee          *PlatformFee `json:"platformFee,omitempty"`
	ContextSlot          uint64       `json:"contextSlot,omitempty"`
	TimeTaken            float64      `json:"timeTaken,omitempty"`
}

// Request carries the user-supplied parameters of a quote lookup, before any
// remote call is made. Optional fields are pointers so "absent" and "zero" stay
// distinguishable during validation.
type Request struct {
	InputMint      string
	OutputMint     string
	Amount         string
	SlippageBps    *int
	SwapMode       SwapMode
	Dexes          []string
	ExcludeDexes   []string
	OnlyDirect     bool
	PlatformFeeBps *int
	MaxAccounts    *int
}

// ValidationResult enumerates every violated rule of a Request.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ImpactLevel classifies the severity of a quote's price impact.
type ImpactLevel string

const (
	ImpactLow      ImpactLevel = "low"
	ImpactMedium   ImpactLevel = "medium"
	ImpactHigh     ImpactLevel = "high"
	ImpactVeryHigh ImpactLevel = "very_high"
)

// SlippageTiers maps price-impact bands to recommended slippage tolerances in
// basis points. The thresholds are tuning constants with no market-model
// derivation behind them, so they stay caller-configurable.
type SlippageTiers struct {
	LowBps      int
	MediumBps   int
	HighBps     int
	VeryHighBps int
}

// DefaultSlippageTiers returns the stock recommendation table.
func DefaultSlippageTiers() SlippageTiers {
	return SlippageTiers{
		LowBps:      50,
		MediumBps:   100,
		HighBps:     300,
		VeryHighBps: 1000,
	}
}
