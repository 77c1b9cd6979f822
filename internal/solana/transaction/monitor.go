// internal/solana/transaction/monitor.go
package transaction

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Monitor observes a submitted transaction until it confirms or the deadline
// elapses. It never re-sends anything; confirmation is purely observational.
type Monitor struct {
	client ChainClient
	logger *zap.Logger
	config Config
}

func NewMonitor(client ChainClient, logger *zap.Logger, config Config) *Monitor {
	if config.ConfirmTimeout == 0 {
		config.ConfirmTimeout = DefaultConfirmTimeout
	}
	if config.PollInterval == 0 {
		config.PollInterval = DefaultPollInterval
	}
	return &Monitor{
		client: client,
		logger: logger.Named("tx-monitor"),
		config: config,
	}
}

// AwaitConfirmation polls the signature status at a fixed interval. Three
// terminal outcomes, all returned as a Result: confirmed (with slot and block
// time from a follow-up lookup), failed on-chain, or timed out. Only context
// cancellation surfaces as a Go error.
func (m *Monitor) AwaitConfirmation(ctx context.Context, sig solana.Signature) (*Result, error) {
	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	deadline := time.After(m.config.ConfirmTimeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-deadline:
			m.logger.Warn("confirmation deadline elapsed",
				zap.String("state", string(StateTimedOut)),
				zap.String("signature", sig.String()),
				zap.Duration("timeout", m.config.ConfirmTimeout))
			m.config.Metrics.RecordOutcome(false)
			return &Result{
				Signature: sig.String(),
				Confirmed: false,
				Error:     confirmationTimeoutMessage,
			}, nil

		case <-ticker.C:
			status, err := m.client.SignatureStatus(ctx, sig)
			if err != nil {
				// Transient lookup failures just mean another poll.
				m.logger.Warn("status check failed", zap.Error(err))
				continue
			}
			if !status.Found {
				continue
			}

			if status.Err != "" {
				m.logger.Warn("transaction failed on chain",
					zap.String("state", string(StateFailed)),
					zap.String("signature", sig.String()),
					zap.String("error", status.Err))
				m.config.Metrics.RecordOutcome(false)
				return &Result{
					Signature: sig.String(),
					Confirmed: false,
					Slot:      status.Slot,
					Error:     status.Err,
				}, nil
			}

			if status.Confirmed || status.Finalized {
				m.config.Metrics.RecordOutcome(true)
				return m.confirmedResult(ctx, sig, status), nil
			}
		}
	}
}

// confirmedResult enriches a confirmed status with slot and block time. The
// follow-up lookup is best effort; the status-derived slot stands in when it
// fails.
func (m *Monitor) confirmedResult(ctx context.Context, sig solana.Signature, status *SignatureStatus) *Result {
	result := &Result{
		Signature: sig.String(),
		Confirmed: true,
		Slot:      status.Slot,
	}

	meta, err := m.client.TransactionMeta(ctx, sig)
	if err != nil {
		m.logger.Debug("transaction meta lookup failed", zap.Error(err))
	} else if meta != nil {
		if meta.Slot != 0 {
			result.Slot = meta.Slot
		}
		result.BlockTime = meta.BlockTime
	}

	m.logger.Info("transaction confirmed",
		zap.String("state", string(StateConfirmed)),
		zap.String("signature", sig.String()),
		zap.Uint64("slot", result.Slot))
	return result
}
