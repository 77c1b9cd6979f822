// internal/priority/priority.go
package priority

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
)

// Level selects a fixed compute-unit price tier.
type Level string

const (
	LevelNone     Level = "none"
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelVeryHigh Level = "very_high"
)

// DefaultComputeUnitLimit leaves ample headroom for multi-hop swap routes.
const DefaultComputeUnitLimit uint32 = 1_400_000

// microLamportsPerCU maps each level to a fixed price per compute unit.
var microLamportsPerCU = map[Level]uint64{
	LevelNone:     0,
	LevelLow:      1_000,
	LevelMedium:   10_000,
	LevelHigh:     100_000,
	LevelVeryHigh: 1_000_000,
}

// Config is pure configuration for the compute-budget instruction pair.
type Config struct {
	Level            Level
	ComputeUnitLimit uint32
}

// DefaultConfig returns a medium-priority configuration.
func DefaultConfig() Config {
	return Config{Level: LevelMedium, ComputeUnitLimit: DefaultComputeUnitLimit}
}

// ParseLevel validates a level string.
func ParseLevel(s string) (Level, error) {
	l := Level(s)
	if _, ok := microLamportsPerCU[l]; !ok {
		return "", fmt.Errorf("unknown priority level: %q", s)
	}
	return l, nil
}

// MicroLamports returns the compute-unit price for the configured level.
func (c Config) MicroLamports() uint64 {
	return microLamportsPerCU[c.Level]
}

// PriorityFeeLamports converts the per-unit price into a total lamport fee
// over the configured compute-unit limit, the form aggregator swap requests
// expect.
func (c Config) PriorityFeeLamports() uint64 {
	limit := c.ComputeUnitLimit
	if limit == 0 {
		limit = DefaultComputeUnitLimit
	}
	return c.MicroLamports() * uint64(limit) / 1_000_000
}

// Instructions builds the compute-budget prefix for a transaction: the unit
// limit always, the unit price only when the resolved fee is nonzero.
func (c Config) Instructions() ([]solana.Instruction, error) {
	if _, ok := microLamportsPerCU[c.Level]; !ok {
		return nil, fmt.Errorf("unknown priority level: %q", c.Level)
	}

	limit := c.ComputeUnitLimit
	if limit == 0 {
		limit = DefaultComputeUnitLimit
	}

	instructions := []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(limit).Build(),
	}
	if fee := c.MicroLamports(); fee > 0 {
		instructions = append(instructions,
			computebudget.NewSetComputeUnitPriceInstruction(fee).Build())
	}
	return instructions, nil
}
