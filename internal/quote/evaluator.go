// internal/quote/evaluator.go
package quote

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount      = errors.New("amount is not a valid integer")
	ErrNegativeAmount     = errors.New("amount must not be negative")
	ErrInvalidDecimals    = errors.New("decimals must not be negative")
	ErrInvalidPercent     = errors.New("percent value is not a valid decimal")
	ErrMixedSwapModes     = errors.New("quotes have different swap modes")
	ErrSlippageOutOfRange = errors.New("slippage must be between 0 and 10000 basis points")
)

var tenThousand = big.NewInt(10000)

// PercentageToBasisPoints converts a percentage to basis points, rounding to
// the nearest whole basis point. The round trip with BasisPointsToPercentage
// is exact only for whole basis points; fractional bps lose the remainder here.
func PercentageToBasisPoints(pct float64) int {
	return int(math.Round(pct * 100))
}

// BasisPointsToPercentage converts basis points back to a percentage.
func BasisPointsToPercentage(bps int) float64 {
	return float64(bps) / 100
}

// FormatRawAmount renders a raw integer amount as a display string with the
// given number of fractional digits. Arithmetic is done on big.Int so no
// precision is lost at any magnitude; trailing fractional zeros are trimmed.
func FormatRawAmount(raw string, decimals int) (string, error) {
	if decimals < 0 {
		return "", ErrInvalidDecimals
	}
	n, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if n.Sign() < 0 {
		return "", fmt.Errorf("%w: %q", ErrNegativeAmount, raw)
	}
	if decimals == 0 {
		return n.String(), nil
	}

	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	quo, rem := new(big.Int).QuoRem(n, divisor, new(big.Int))

	frac := strings.TrimRight(fmt.Sprintf("%0*s", decimals, rem.String()), "0")
	if frac == "" {
		return quo.String(), nil
	}
	return quo.String() + "." + frac, nil
}

// ParseDisplayAmount is the inverse of FormatRawAmount: it converts a display
// string into a raw integer string, padding or truncating the fractional part
// to exactly decimals digits. Values representable with at most decimals
// fractional digits round-trip exactly.
func ParseDisplayAmount(display string, decimals int) (string, error) {
	if decimals < 0 {
		return "", ErrInvalidDecimals
	}
	display = strings.TrimSpace(display)
	intPart := display
	fracPart := ""
	if i := strings.IndexByte(display, '.'); i >= 0 {
		intPart, fracPart = display[:i], display[i+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	if !isDigits(intPart) || (fracPart != "" && !isDigits(fracPart)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, display)
	}

	if len(fracPart) > decimals {
		fracPart = fracPart[:decimals]
	}
	fracPart += strings.Repeat("0", decimals-len(fracPart))

	n, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, display)
	}
	return n.String(), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ClassifyPriceImpact buckets a price-impact percentage into severity bands.
// Boundaries are half-open on the lower bound: exactly 0.1% is already medium.
func ClassifyPriceImpact(pct string) (ImpactLevel, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(pct))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPercent, pct)
	}
	d = d.Abs()
	switch {
	case d.LessThan(decimal.NewFromFloat(0.1)):
		return ImpactLow, nil
	case d.LessThan(decimal.NewFromInt(1)):
		return ImpactMedium, nil
	case d.LessThan(decimal.NewFromInt(5)):
		return ImpactHigh, nil
	default:
		return ImpactVeryHigh, nil
	}
}

// ValidateRequest checks a quote request against every rule and reports all
// violations at once rather than stopping at the first.
func ValidateRequest(req Request) ValidationResult {
	var errs []string

	if strings.TrimSpace(req.InputMint) == "" {
		errs = append(errs, "input mint is required")
	}
	if strings.TrimSpace(req.OutputMint) == "" {
		errs = append(errs, "output mint is required")
	}
	if req.InputMint != "" && req.InputMint == req.OutputMint {
		errs = append(errs, "input and output mints must differ")
	}

	if strings.TrimSpace(req.Amount) == "" {
		errs = append(errs, "amount is required")
	} else if n, ok := new(big.Int).SetString(strings.TrimSpace(req.Amount), 10); !ok {
		errs = append(errs, "amount must be a whole number of base units")
	} else if n.Sign() <= 0 {
		errs = append(errs, "amount must be greater than zero")
	}

	if req.SlippageBps != nil && (*req.SlippageBps < 0 || *req.SlippageBps > 10000) {
		errs = append(errs, "slippageBps must be between 0 and 10000")
	}
	if req.PlatformFeeBps != nil && (*req.PlatformFeeBps < 0 || *req.PlatformFeeBps > 10000) {
		errs = append(errs, "platformFeeBps must be between 0 and 10000")
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// MinimumOutput computes the guaranteed output after applying a slippage
// tolerance: outputAmount * (10000 - slippageBps) / 10000 with floor division.
// Flooring means the "at least this much" guarantee can never be overstated.
func MinimumOutput(outputAmount string, slippageBps int) (string, error) {
	if slippageBps < 0 || slippageBps > 10000 {
		return "", ErrSlippageOutOfRange
	}
	out, ok := new(big.Int).SetString(strings.TrimSpace(outputAmount), 10)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, outputAmount)
	}
	if out.Sign() < 0 {
		return "", fmt.Errorf("%w: %q", ErrNegativeAmount, outputAmount)
	}

	min := new(big.Int).Mul(out, big.NewInt(int64(10000-slippageBps)))
	min.Quo(min, tenThousand)
	return min.String(), nil
}

// RecommendedSlippageBps picks a slippage tolerance from the tier table based
// on the quote's price impact.
func RecommendedSlippageBps(priceImpactPct string, tiers SlippageTiers) (int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(priceImpactPct))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPercent, priceImpactPct)
	}
	d = d.Abs()
	switch {
	case d.LessThan(decimal.NewFromFloat(0.1)):
		return tiers.LowBps, nil
	case d.LessThan(decimal.NewFromFloat(0.5)):
		return tiers.MediumBps, nil
	case d.LessThan(decimal.NewFromInt(2)):
		return tiers.HighBps, nil
	default:
		return tiers.VeryHighBps, nil
	}
}

// Compare ranks two quotes for the same intent: 1 if a is better, -1 if b is
// better, 0 on a tie. ExactIn prefers the higher output; ExactOut prefers the
// lower input. Amounts are compared as big integers, never floats.
func Compare(a, b Quote) (int, error) {
	if a.SwapMode != b.SwapMode {
		return 0, ErrMixedSwapModes
	}

	parse := func(s string) (*big.Int, error) {
		n, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
		return n, nil
	}

	if a.SwapMode == SwapModeExactOut {
		ain, err := parse(a.InAmount)
		if err != nil {
			return 0, err
		}
		bin, err := parse(b.InAmount)
		if err != nil {
			return 0, err
		}
		// Lower input wins.
		return bin.Cmp(ain), nil
	}

	aout, err := parse(a.OutAmount)
	if err != nil {
		return 0, err
	}
	bout, err := parse(b.OutAmount)
	if err != nil {
		return 0, err
	}
	return aout.Cmp(bout), nil
}
