// internal/solana/transaction/types.go
package transaction

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrSigningUnavailable = errors.New("no signing capability configured")
	ErrInvalidSignature   = errors.New("invalid transaction signature")
	ErrInvalidBlockhash   = errors.New("invalid blockhash")
	ErrInvalidInstruction = errors.New("invalid instruction")
)

// confirmationTimeoutMessage is the error text a timed-out confirmation
// carries; the timeout is reported as data, never as a Go error.
const confirmationTimeoutMessage = "Transaction confirmation timeout"

// State names a submission attempt's position in its lifecycle; used for
// structured logging only, the ordering itself is enforced by call sequencing.
type State string

const (
	StateBuilt     State = "built"
	StateSigned    State = "signed"
	StateSubmitted State = "submitted"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
)

// Config tunes the lifecycle manager. Zero values fall back to the defaults
// applied in NewManager.
type Config struct {
	BlockhashAttempts  int
	BlockhashRetryBase time.Duration
	ConfirmTimeout     time.Duration
	PollInterval       time.Duration
	SkipPreflight      bool
	MaxRetries         *uint
	// Metrics is optional; nil disables collection.
	Metrics *Metrics
}

const (
	DefaultBlockhashAttempts  = 3
	DefaultBlockhashRetryBase = time.Second
	DefaultConfirmTimeout     = 60 * time.Second
	DefaultPollInterval       = time.Second

	// DefaultFeeLamports is the fallback when the ledger cannot quote a fee.
	DefaultFeeLamports = 5000
)

// SubmitOptions are passed through to the broadcast call.
type SubmitOptions struct {
	SkipPreflight bool
	MaxRetries    *uint
}

// Result is the terminal outcome of one submit-and-confirm call. It is
// created after submission and never mutated once returned.
type Result struct {
	Signature string     `json:"signature"`
	Confirmed bool       `json:"confirmed"`
	Slot      uint64     `json:"slot,omitempty"`
	BlockTime *time.Time `json:"blockTime,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// TimedOut reports whether the result is a confirmation timeout.
func (r *Result) TimedOut() bool {
	return !r.Confirmed && r.Error == confirmationTimeoutMessage
}

// SimulationResult is a dry-run outcome. Program-level failures are data,
// not errors; only the absence of any result is exceptional.
type SimulationResult struct {
	Success       bool     `json:"success"`
	Logs          []string `json:"logs,omitempty"`
	UnitsConsumed uint64   `json:"unitsConsumed,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// SignatureStatus is the ledger's view of a submitted transaction.
type SignatureStatus struct {
	Found     bool
	Confirmed bool
	Finalized bool
	Slot      uint64
	Err       string
}

// TransactionMeta is the follow-up lookup for a confirmed transaction.
type TransactionMeta struct {
	Slot      uint64
	BlockTime *time.Time
}

// Signer resolves the private key for a public key, or nil when the key is
// not held. Key material never enters this package.
type Signer func(key solana.PublicKey) *solana.PrivateKey

// ChainClient is the ledger-access capability the manager consumes.
type ChainClient interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction, opts SubmitOptions) (solana.Signature, error)
	SendRawTransaction(ctx context.Context, raw []byte, opts SubmitOptions) (solana.Signature, error)
	SignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error)
	TransactionMeta(ctx context.Context, sig solana.Signature) (*TransactionMeta, error)
	Simulate(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error)
	FeeForMessage(ctx context.Context, messageBase64 string) (uint64, error)
}
