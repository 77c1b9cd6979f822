// internal/solana/transaction/manager.go
package transaction

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/Velocity-BPA/jupiter-go/internal/priority"
	"github.com/Velocity-BPA/jupiter-go/internal/retry"
)

// Manager drives a transaction through Built → Signed → Submitted and hands
// confirmation off to the monitor. One Manager serves many concurrent calls;
// it holds no per-transaction state.
type Manager struct {
	client    ChainClient
	logger    *zap.Logger
	config    Config
	validator *Validator
	monitor   *Monitor
}

func NewManager(client ChainClient, logger *zap.Logger, config Config) *Manager {
	if config.BlockhashAttempts == 0 {
		config.BlockhashAttempts = DefaultBlockhashAttempts
	}
	if config.BlockhashRetryBase == 0 {
		config.BlockhashRetryBase = DefaultBlockhashRetryBase
	}
	if config.ConfirmTimeout == 0 {
		config.ConfirmTimeout = DefaultConfirmTimeout
	}
	if config.PollInterval == 0 {
		config.PollInterval = DefaultPollInterval
	}

	logger = logger.Named("tx-manager")
	return &Manager{
		client:    client,
		logger:    logger,
		config:    config,
		validator: NewValidator(logger),
		monitor:   NewMonitor(client, logger, config),
	}
}

// Build assembles a transaction: the compute-budget pair ahead of the swap
// instructions, then a recent blockhash fetched with bounded linear-backoff
// retries.
func (m *Manager) Build(ctx context.Context, instructions []solana.Instruction, payer solana.PublicKey, fee priority.Config) (*solana.Transaction, error) {
	budget, err := fee.Instructions()
	if err != nil {
		return nil, err
	}
	all := append(budget, instructions...)

	blockhash, err := m.recentBlockhash(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := solana.NewTransaction(all, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}

	m.logger.Debug("transaction built",
		zap.String("state", string(StateBuilt)),
		zap.Int("instructions", len(all)),
		zap.String("payer", payer.String()))
	return tx, nil
}

func (m *Manager) recentBlockhash(ctx context.Context) (solana.Hash, error) {
	var blockhash solana.Hash
	err := retry.Linear(ctx, m.config.BlockhashAttempts, m.config.BlockhashRetryBase, m.logger, func() error {
		var err error
		blockhash, err = m.client.LatestBlockhash(ctx)
		return err
	})
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get recent blockhash: %w", err)
	}
	return blockhash, nil
}

// Sign applies the externally supplied signing capability. A nil signer is a
// configuration fault and fails immediately.
func (m *Manager) Sign(tx *solana.Transaction, signer Signer) error {
	if signer == nil {
		return ErrSigningUnavailable
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		return signer(key)
	}); err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	m.logger.Debug("transaction signed", zap.String("state", string(StateSigned)))
	return nil
}

// submitOptions fills unset per-call options from the manager's config.
func (m *Manager) submitOptions(opts SubmitOptions) SubmitOptions {
	if !opts.SkipPreflight {
		opts.SkipPreflight = m.config.SkipPreflight
	}
	if opts.MaxRetries == nil {
		opts.MaxRetries = m.config.MaxRetries
	}
	return opts
}

// Submit broadcasts a signed transaction object.
func (m *Manager) Submit(ctx context.Context, tx *solana.Transaction, opts SubmitOptions) (solana.Signature, error) {
	if err := m.validator.Validate(tx); err != nil {
		return solana.Signature{}, err
	}
	sig, err := m.client.SendTransaction(ctx, tx, m.submitOptions(opts))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	m.logger.Info("transaction submitted",
		zap.String("state", string(StateSubmitted)),
		zap.String("signature", sig.String()))
	return sig, nil
}

// SubmitRaw broadcasts pre-serialized transaction bytes, covering both the
// legacy and versioned wire encodings.
func (m *Manager) SubmitRaw(ctx context.Context, raw []byte, opts SubmitOptions) (solana.Signature, error) {
	sig, err := m.client.SendRawTransaction(ctx, raw, m.submitOptions(opts))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send raw transaction: %w", err)
	}
	m.logger.Info("transaction submitted",
		zap.String("state", string(StateSubmitted)),
		zap.String("signature", sig.String()))
	return sig, nil
}

// SendAndConfirm runs the full lifecycle for a built transaction: sign,
// submit, then poll until confirmation or timeout. The returned Result is
// terminal; a timeout carries Confirmed:false and is not a Go error.
func (m *Manager) SendAndConfirm(ctx context.Context, tx *solana.Transaction, signer Signer, opts SubmitOptions) (*Result, error) {
	defer m.config.Metrics.TrackTransaction(time.Now())

	if err := m.Sign(tx, signer); err != nil {
		return nil, err
	}

	sig, err := m.Submit(ctx, tx, opts)
	if err != nil {
		return nil, err
	}

	return m.monitor.AwaitConfirmation(ctx, sig)
}

// Confirm exposes the monitor's poll loop for externally submitted signatures.
func (m *Manager) Confirm(ctx context.Context, sig solana.Signature) (*Result, error) {
	defer m.config.Metrics.TrackTransaction(time.Now())
	return m.monitor.AwaitConfirmation(ctx, sig)
}

// Simulate dry-runs the transaction. Program-level failures come back inside
// the result; transport failures are folded into it as well, so callers always
// receive a result to inspect.
func (m *Manager) Simulate(ctx context.Context, tx *solana.Transaction) *SimulationResult {
	res, err := m.client.Simulate(ctx, tx)
	if err != nil {
		m.logger.Warn("simulation transport failure", zap.Error(err))
		return &SimulationResult{Success: false, Error: err.Error()}
	}
	return res
}

// EstimateFee quotes the lamport fee for the transaction's compiled message,
// falling back to a fixed constant when the ledger cannot price it.
func (m *Manager) EstimateFee(ctx context.Context, tx *solana.Transaction) uint64 {
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		m.logger.Warn("failed to serialize message for fee estimate", zap.Error(err))
		return DefaultFeeLamports
	}

	fee, err := m.client.FeeForMessage(ctx, base64.StdEncoding.EncodeToString(msg))
	if err != nil {
		m.logger.Debug("fee quote unavailable, using fallback",
			zap.Uint64("fallback", DefaultFeeLamports),
			zap.Error(err))
		return DefaultFeeLamports
	}
	return fee
}
