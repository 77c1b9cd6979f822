// internal/solana/client.go
package solana

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/Velocity-BPA/jupiter-go/internal/solana/transaction"
)

var (
	ErrInvalidAddress = errors.New("invalid solana address")
	ErrNoFeeQuote     = errors.New("ledger returned no fee quote")
)

// Client is a thin adapter over the solana-go RPC client. It is stateless per
// request and safe for concurrent use.
type Client struct {
	rpc    *rpc.Client
	logger *zap.Logger
}

var _ transaction.ChainClient = (*Client)(nil)

func NewClient(rpcURL string, logger *zap.Logger) *Client {
	return &Client{
		rpc:    rpc.New(rpcURL),
		logger: logger.Named("solana-client"),
	}
}

// ValidateAddress checks that s is a well-formed base58 public key.
func ValidateAddress(s string) (solana.PublicKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != solana.PublicKeyLength {
		return solana.PublicKey{}, fmt.Errorf("%w: expected %d bytes, got %d",
			ErrInvalidAddress, solana.PublicKeyLength, len(raw))
	}
	return solana.PublicKeyFromBytes(raw), nil
}

// LatestBlockhash fetches one recent blockhash; retrying is the caller's job.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	result, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		c.logger.Debug("GetLatestBlockhash error", zap.Error(err))
		return solana.Hash{}, err
	}
	return result.Value.Blockhash, nil
}

// Balance returns the lamport balance of an account.
func (c *Client) Balance(ctx context.Context, pubkey solana.PublicKey) (uint64, error) {
	result, err := c.rpc.GetBalance(ctx, pubkey, rpc.CommitmentConfirmed)
	if err != nil {
		c.logger.Debug("GetBalance error",
			zap.String("pubkey", pubkey.String()),
			zap.Error(err))
		return 0, err
	}
	return result.Value, nil
}

// AccountInfo fetches raw account data.
func (c *Client) AccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	result, err := c.rpc.GetAccountInfo(ctx, pubkey)
	if err != nil {
		c.logger.Debug("GetAccountInfo error",
			zap.String("pubkey", pubkey.String()),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction, opts transaction.SubmitOptions) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       opts.SkipPreflight,
		MaxRetries:          opts.MaxRetries,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		c.logger.Debug("SendTransaction error", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

func (c *Client) SendRawTransaction(ctx context.Context, raw []byte, opts transaction.SubmitOptions) (solana.Signature, error) {
	sig, err := c.rpc.SendRawTransactionWithOpts(ctx, raw, rpc.TransactionOpts{
		SkipPreflight:       opts.SkipPreflight,
		MaxRetries:          opts.MaxRetries,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		c.logger.Debug("SendRawTransaction error", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

func (c *Client) SignatureStatus(ctx context.Context, sig solana.Signature) (*transaction.SignatureStatus, error) {
	response, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		return nil, fmt.Errorf("failed to get signature status: %w", err)
	}
	if response == nil || len(response.Value) == 0 || response.Value[0] == nil {
		return &transaction.SignatureStatus{}, nil
	}

	status := response.Value[0]
	out := &transaction.SignatureStatus{
		Found:     true,
		Slot:      status.Slot,
		Confirmed: status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed,
		Finalized: status.ConfirmationStatus == rpc.ConfirmationStatusFinalized,
	}
	if status.Err != nil {
		out.Err = fmt.Sprintf("%v", status.Err)
	}
	return out, nil
}

func (c *Client) TransactionMeta(ctx context.Context, sig solana.Signature) (*transaction.TransactionMeta, error) {
	maxVersion := uint64(0)
	result, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if result == nil {
		return nil, nil
	}

	meta := &transaction.TransactionMeta{Slot: result.Slot}
	if result.BlockTime != nil {
		t := result.BlockTime.Time()
		meta.BlockTime = &t
	}
	return meta, nil
}

func (c *Client) Simulate(ctx context.Context, tx *solana.Transaction) (*transaction.SimulationResult, error) {
	response, err := c.rpc.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		Commitment:             rpc.CommitmentConfirmed,
		ReplaceRecentBlockhash: true,
	})
	if err != nil {
		return nil, err
	}
	if response == nil || response.Value == nil {
		return nil, errors.New("empty simulation response")
	}

	value := response.Value
	result := &transaction.SimulationResult{
		Success: value.Err == nil,
		Logs:    value.Logs,
	}
	if value.UnitsConsumed != nil {
		result.UnitsConsumed = *value.UnitsConsumed
	}
	if value.Err != nil {
		result.Error = fmt.Sprintf("%v", value.Err)
	}
	return result, nil
}

func (c *Client) FeeForMessage(ctx context.Context, messageBase64 string) (uint64, error) {
	result, err := c.rpc.GetFeeForMessage(ctx, messageBase64, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, err
	}
	if result == nil || result.Value == nil {
		return 0, ErrNoFeeQuote
	}
	return *result.Value, nil
}
