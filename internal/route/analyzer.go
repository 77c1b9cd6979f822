// internal/route/analyzer.go
package route

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Velocity-BPA/jupiter-go/internal/quote"
)

// UnknownDexLabel is substituted when a route step carries no DEX label.
const UnknownDexLabel = "Unknown DEX"

// Hop is the per-step view exposed to callers.
type Hop struct {
	AmmKey     string `json:"ammKey"`
	DexLabel   string `json:"dexLabel"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
	FeeAmount  string `json:"feeAmount"`
	FeeMint    string `json:"feeMint"`
	Percent    int    `json:"percent"`
}

// Summary is the statistical view of a route plan.
type Summary struct {
	HopCount        int               `json:"hopCount"`
	Dexes           []string          `json:"dexes"`
	Mints           []string          `json:"mints"`
	FeeTotals       map[string]string `json:"feeTotals"`
	SplitRouteCount int               `json:"splitRouteCount"`
	IsDirect        bool              `json:"isDirect"`
}

// EfficiencyConfig carries the scoring constants. The penalty factor and the
// recommendation thresholds are tuning values with no stated derivation, so
// they are kept configurable rather than baked into the scoring code.
type EfficiencyConfig struct {
	ImpactPenalty      int64
	ExcellentThreshold float64
	GoodThreshold      float64
	CautionThreshold   float64
}

// DefaultEfficiencyConfig returns the stock scoring constants.
func DefaultEfficiencyConfig() EfficiencyConfig {
	return EfficiencyConfig{
		ImpactPenalty:      20,
		ExcellentThreshold: 90,
		GoodThreshold:      70,
		CautionThreshold:   50,
	}
}

// Efficiency is the derived quality view of a route.
type Efficiency struct {
	Score          float64            `json:"efficiencyScore"`
	HopShareByDex  map[string]float64 `json:"hopsPercentageByLabel"`
	LargestHopDex  string             `json:"largestHopLabel"`
	Recommendation string             `json:"recommendationText"`
}

// Criteria filters a set of quotes; every supplied criterion must pass.
// Nil and empty fields are ignored.
type Criteria struct {
	MaxPriceImpact *float64
	MaxHops        *int
	DirectOnly     bool
	IncludeDexes   []string
	ExcludeDexes   []string
}

// ExtractHops projects each route step into a Hop, defaulting the DEX label
// when the aggregator did not supply one.
func ExtractHops(q quote.Quote) []Hop {
	hops := make([]Hop, 0, len(q.RoutePlan))
	for _, step := range q.RoutePlan {
		label := step.Label
		if label == "" {
			label = UnknownDexLabel
		}
		hops = append(hops, Hop{
			AmmKey:     step.AmmKey,
			DexLabel:   label,
			InputMint:  step.InputMint,
			OutputMint: step.OutputMint,
			InAmount:   step.InAmount,
			OutAmount:  step.OutAmount,
			FeeAmount:  step.FeeAmount,
			FeeMint:    step.FeeMint,
			Percent:    step.Percent,
		})
	}
	return hops
}

// Summarize derives hop count, DEX and mint sets, per-mint fee totals, and
// split-route detection from a quote's route plan.
//
// A step whose input mint equals the quote's input mint is counted as the
// start of a parallel branch. This heuristic misreads routes where a split
// converges and diverges again mid-path; it matches the aggregator's own
// reporting and is kept as-is.
func Summarize(q quote.Quote) Summary {
	hops := ExtractHops(q)

	dexSet := map[string]struct{}{}
	mintSet := map[string]struct{}{}
	feeTotals := map[string]*big.Int{}
	splitCount := 0

	for _, h := range hops {
		dexSet[h.DexLabel] = struct{}{}
		mintSet[h.InputMint] = struct{}{}
		mintSet[h.OutputMint] = struct{}{}

		if h.InputMint == q.InputMint {
			splitCount++
		}

		if h.FeeAmount != "" && h.FeeMint != "" {
			if fee, ok := new(big.Int).SetString(h.FeeAmount, 10); ok {
				total, exists := feeTotals[h.FeeMint]
				if !exists {
					total = new(big.Int)
					feeTotals[h.FeeMint] = total
				}
				total.Add(total, fee)
			}
		}
	}

	fees := make(map[string]string, len(feeTotals))
	for mint, total := range feeTotals {
		fees[mint] = total.String()
	}

	return Summary{
		HopCount:        len(hops),
		Dexes:           sortedKeys(dexSet),
		Mints:           sortedKeys(mintSet),
		FeeTotals:       fees,
		SplitRouteCount: splitCount,
		IsDirect:        len(hops) == 1 || splitCount == 1,
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FormatPath renders the route plan as one line per parallel branch, e.g.
//
//	SOL --(Orca 60%)--> USDC
//	SOL --(Raydium 40%)--> USDC
//
// A new branch starts at every step whose input mint equals the quote's input.
func FormatPath(q quote.Quote) string {
	hops := ExtractHops(q)
	if len(hops) == 0 {
		return ""
	}

	var lines []string
	var line strings.Builder

	for i, h := range hops {
		if h.InputMint == q.InputMint && line.Len() > 0 {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() == 0 {
			line.WriteString(h.InputMint)
		}
		fmt.Fprintf(&line, " --(%s %d%%)--> %s", h.DexLabel, h.Percent, h.OutputMint)
		if i == len(hops)-1 {
			lines = append(lines, line.String())
		}
	}

	return strings.Join(lines, "\n")
}

// AnalyzeEfficiency scores a route from its price impact and derives per-DEX
// hop shares and a canned recommendation.
func AnalyzeEfficiency(q quote.Quote, cfg EfficiencyConfig) (Efficiency, error) {
	impact, err := decimal.NewFromString(strings.TrimSpace(q.PriceImpactPct))
	if err != nil {
		return Efficiency{}, fmt.Errorf("%w: %q", quote.ErrInvalidPercent, q.PriceImpactPct)
	}

	score := decimal.NewFromInt(100).Sub(impact.Abs().Mul(decimal.NewFromInt(cfg.ImpactPenalty)))
	if score.IsNegative() {
		score = decimal.Zero
	}
	scoreF, _ := score.Float64()

	hops := ExtractHops(q)
	share := map[string]float64{}
	if len(hops) > 0 {
		for _, h := range hops {
			share[h.DexLabel] += 100 / float64(len(hops))
		}
	}

	largest := ""
	largestIn := new(big.Int)
	for _, h := range hops {
		in, ok := new(big.Int).SetString(h.InAmount, 10)
		if !ok {
			continue
		}
		if largest == "" || in.Cmp(largestIn) > 0 {
			largest = h.DexLabel
			largestIn = in
		}
	}

	var recommendation string
	switch {
	case scoreF >= cfg.ExcellentThreshold:
		recommendation = "Excellent route with minimal price impact."
	case scoreF >= cfg.GoodThreshold:
		recommendation = "Good route. Price impact is within normal bounds."
	case scoreF >= cfg.CautionThreshold:
		recommendation = "Caution: noticeable price impact. Consider a smaller amount."
	default:
		recommendation = "Warning: high price impact. Splitting the trade or raising slippage tolerance is strongly advised."
	}

	return Efficiency{
		Score:          scoreF,
		HopShareByDex:  share,
		LargestHopDex:  largest,
		Recommendation: recommendation,
	}, nil
}

// Filter returns the quotes satisfying every supplied criterion.
func Filter(quotes []quote.Quote, c Criteria) []quote.Quote {
	var out []quote.Quote
	for _, q := range quotes {
		if matches(q, c) {
			out = append(out, q)
		}
	}
	return out
}

func matches(q quote.Quote, c Criteria) bool {
	summary := Summarize(q)

	if c.MaxPriceImpact != nil {
		impact, err := decimal.NewFromString(strings.TrimSpace(q.PriceImpactPct))
		if err != nil || impact.Abs().GreaterThan(decimal.NewFromFloat(*c.MaxPriceImpact)) {
			return false
		}
	}
	if c.MaxHops != nil && summary.HopCount > *c.MaxHops {
		return false
	}
	if c.DirectOnly && !summary.IsDirect {
		return false
	}

	if len(c.IncludeDexes) > 0 {
		found := false
		for _, dex := range summary.Dexes {
			if containsFold(c.IncludeDexes, dex) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, dex := range summary.Dexes {
		if containsFold(c.ExcludeDexes, dex) {
			return false
		}
	}

	return true
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
