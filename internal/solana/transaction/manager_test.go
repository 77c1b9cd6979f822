package transaction

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Velocity-BPA/jupiter-go/internal/priority"
)

// fakeChain is a scriptable ChainClient.
type fakeChain struct {
	blockhashCalls  int32
	blockhashFails  int32
	blockhash       solana.Hash
	blockhashErr    error
	sendSig         solana.Signature
	sendErr         error
	statusCalls     int32
	statusFn        func(call int32) (*SignatureStatus, error)
	meta            *TransactionMeta
	metaErr         error
	simulateResult  *SimulationResult
	simulateErr     error
	feeValue        uint64
	feeErr          error
	lastSubmitOpts  SubmitOptions
	lastRawSubmit   []byte
}

func (f *fakeChain) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	call := atomic.AddInt32(&f.blockhashCalls, 1)
	if call <= f.blockhashFails {
		if f.blockhashErr != nil {
			return solana.Hash{}, f.blockhashErr
		}
		return solana.Hash{}, errors.New("node behind")
	}
	return f.blockhash, nil
}

func (f *fakeChain) SendTransaction(ctx context.Context, tx *solana.Transaction, opts SubmitOptions) (solana.Signature, error) {
	f.lastSubmitOpts = opts
	return f.sendSig, f.sendErr
}

func (f *fakeChain) SendRawTransaction(ctx context.Context, raw []byte, opts SubmitOptions) (solana.Signature, error) {
	f.lastRawSubmit = raw
	f.lastSubmitOpts = opts
	return f.sendSig, f.sendErr
}

func (f *fakeChain) SignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error) {
	call := atomic.AddInt32(&f.statusCalls, 1)
	if f.statusFn != nil {
		return f.statusFn(call)
	}
	return &SignatureStatus{}, nil
}

func (f *fakeChain) TransactionMeta(ctx context.Context, sig solana.Signature) (*TransactionMeta, error) {
	return f.meta, f.metaErr
}

func (f *fakeChain) Simulate(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error) {
	return f.simulateResult, f.simulateErr
}

func (f *fakeChain) FeeForMessage(ctx context.Context, messageBase64 string) (uint64, error) {
	return f.feeValue, f.feeErr
}

func testConfig() Config {
	return Config{
		BlockhashAttempts:  3,
		BlockhashRetryBase: 20 * time.Millisecond,
		ConfirmTimeout:     220 * time.Millisecond,
		PollInterval:       100 * time.Millisecond,
	}
}

func testHash(t *testing.T) solana.Hash {
	t.Helper()
	return solana.HashFromBytes([]byte("test-blockhash-test-blockhash-32"))
}

func TestBuildRetriesBlockhashThenSucceeds(t *testing.T) {
	chain := &fakeChain{blockhashFails: 2, blockhash: testHash(t)}
	m := NewManager(chain, zaptest.NewLogger(t), testConfig())

	payer := solana.NewWallet().PublicKey()
	start := time.Now()
	tx, err := m.Build(context.Background(), nil, payer, priority.Config{Level: priority.LevelMedium})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, testHash(t), tx.Message.RecentBlockhash)
	assert.Equal(t, int32(3), atomic.LoadInt32(&chain.blockhashCalls))
	// Two failures cost base*1 + base*2 of linear backoff.
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
}

func TestBuildSurfacesLastBlockhashError(t *testing.T) {
	boom := errors.New("rpc unreachable")
	chain := &fakeChain{blockhashFails: 99, blockhashErr: boom}
	cfg := testConfig()
	cfg.BlockhashRetryBase = time.Millisecond
	m := NewManager(chain, zaptest.NewLogger(t), cfg)

	_, err := m.Build(context.Background(), nil, solana.NewWallet().PublicKey(), priority.Config{Level: priority.LevelNone})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(3), atomic.LoadInt32(&chain.blockhashCalls))
}

func TestBuildPrependsComputeBudget(t *testing.T) {
	chain := &fakeChain{blockhash: testHash(t)}
	m := NewManager(chain, zaptest.NewLogger(t), testConfig())

	tx, err := m.Build(context.Background(), nil, solana.NewWallet().PublicKey(),
		priority.Config{Level: priority.LevelHigh, ComputeUnitLimit: 600_000})
	require.NoError(t, err)
	// Unit limit plus unit price at a nonzero fee level.
	assert.Len(t, tx.Message.Instructions, 2)

	tx, err = m.Build(context.Background(), nil, solana.NewWallet().PublicKey(),
		priority.Config{Level: priority.LevelNone})
	require.NoError(t, err)
	assert.Len(t, tx.Message.Instructions, 1)
}

func TestSignRequiresSigner(t *testing.T) {
	m := NewManager(&fakeChain{}, zaptest.NewLogger(t), testConfig())
	err := m.Sign(&solana.Transaction{}, nil)
	assert.ErrorIs(t, err, ErrSigningUnavailable)
}

func TestSendAndConfirmHappyPath(t *testing.T) {
	wallet := solana.NewWallet()
	sig := solana.SignatureFromBytes(make([]byte, 64))
	blockTime := time.Unix(1700000000, 0)

	chain := &fakeChain{
		blockhash: testHash(t),
		sendSig:   sig,
		statusFn: func(call int32) (*SignatureStatus, error) {
			if call == 1 {
				return &SignatureStatus{Found: true, Slot: 100}, nil
			}
			return &SignatureStatus{Found: true, Confirmed: true, Slot: 101}, nil
		},
		meta: &TransactionMeta{Slot: 101, BlockTime: &blockTime},
	}
	m := NewManager(chain, zaptest.NewLogger(t), Config{
		BlockhashAttempts:  3,
		BlockhashRetryBase: time.Millisecond,
		ConfirmTimeout:     2 * time.Second,
		PollInterval:       10 * time.Millisecond,
	})

	tx, err := m.Build(context.Background(), nil, wallet.PublicKey(), priority.Config{Level: priority.LevelLow})
	require.NoError(t, err)

	signer := func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(wallet.PublicKey()) {
			return &wallet.PrivateKey
		}
		return nil
	}

	result, err := m.SendAndConfirm(context.Background(), tx, signer, SubmitOptions{SkipPreflight: true})
	require.NoError(t, err)
	assert.True(t, result.Confirmed)
	assert.Equal(t, sig.String(), result.Signature)
	assert.Equal(t, uint64(101), result.Slot)
	require.NotNil(t, result.BlockTime)
	assert.Equal(t, blockTime, *result.BlockTime)
	assert.True(t, chain.lastSubmitOpts.SkipPreflight)
}

func TestConfirmationTimeoutIsDataNotError(t *testing.T) {
	sig := solana.SignatureFromBytes(make([]byte, 64))
	chain := &fakeChain{
		statusFn: func(call int32) (*SignatureStatus, error) {
			return &SignatureStatus{}, nil // never found
		},
	}
	m := NewManager(chain, zaptest.NewLogger(t), testConfig())

	result, err := m.Confirm(context.Background(), sig)
	require.NoError(t, err) // never throws on timeout
	assert.False(t, result.Confirmed)
	assert.Equal(t, "Transaction confirmation timeout", result.Error)
	assert.True(t, result.TimedOut())
	// 220ms budget at 100ms polls means exactly two polls.
	assert.Equal(t, int32(2), atomic.LoadInt32(&chain.statusCalls))
}

func TestConfirmReportsOnChainFailure(t *testing.T) {
	sig := solana.SignatureFromBytes(make([]byte, 64))
	chain := &fakeChain{
		statusFn: func(call int32) (*SignatureStatus, error) {
			return &SignatureStatus{Found: true, Slot: 55, Err: "InstructionError: custom program error 0x1"}, nil
		},
	}
	m := NewManager(chain, zaptest.NewLogger(t), testConfig())

	result, err := m.Confirm(context.Background(), sig)
	require.NoError(t, err)
	assert.False(t, result.Confirmed)
	assert.Equal(t, uint64(55), result.Slot)
	assert.Contains(t, result.Error, "InstructionError")
}

func TestConfirmToleratesTransientStatusErrors(t *testing.T) {
	sig := solana.SignatureFromBytes(make([]byte, 64))
	chain := &fakeChain{
		statusFn: func(call int32) (*SignatureStatus, error) {
			if call == 1 {
				return nil, errors.New("502 bad gateway")
			}
			return &SignatureStatus{Found: true, Finalized: true, Slot: 200}, nil
		},
	}
	cfg := testConfig()
	cfg.ConfirmTimeout = time.Second
	m := NewManager(chain, zaptest.NewLogger(t), cfg)

	result, err := m.Confirm(context.Background(), sig)
	require.NoError(t, err)
	assert.True(t, result.Confirmed)
	assert.Equal(t, uint64(200), result.Slot)
}

func TestSimulateFoldsTransportFailureIntoResult(t *testing.T) {
	chain := &fakeChain{simulateErr: errors.New("connection refused")}
	m := NewManager(chain, zaptest.NewLogger(t), testConfig())

	res := m.Simulate(context.Background(), &solana.Transaction{})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "connection refused")
}

func TestSimulatePassesProgramFailureThrough(t *testing.T) {
	chain := &fakeChain{simulateResult: &SimulationResult{
		Success:       false,
		Logs:          []string{"Program log: insufficient funds"},
		UnitsConsumed: 3200,
		Error:         "custom program error: 0x1",
	}}
	m := NewManager(chain, zaptest.NewLogger(t), testConfig())

	res := m.Simulate(context.Background(), &solana.Transaction{})
	assert.False(t, res.Success)
	assert.Equal(t, uint64(3200), res.UnitsConsumed)
	assert.Len(t, res.Logs, 1)
}

func TestEstimateFeeFallsBackToDefault(t *testing.T) {
	wallet := solana.NewWallet()
	chain := &fakeChain{blockhash: testHash(t), feeErr: errors.New("fee quote unavailable")}
	m := NewManager(chain, zaptest.NewLogger(t), testConfig())

	tx, err := m.Build(context.Background(), nil, wallet.PublicKey(), priority.Config{Level: priority.LevelLow})
	require.NoError(t, err)

	assert.Equal(t, uint64(DefaultFeeLamports), m.EstimateFee(context.Background(), tx))

	chain.feeErr = nil
	chain.feeValue = 7500
	assert.Equal(t, uint64(7500), m.EstimateFee(context.Background(), tx))
}

func TestSubmitRawForwardsBytes(t *testing.T) {
	sig := solana.SignatureFromBytes(make([]byte, 64))
	chain := &fakeChain{sendSig: sig}
	m := NewManager(chain, zaptest.NewLogger(t), testConfig())

	raw := []byte{1, 2, 3}
	got, err := m.SubmitRaw(context.Background(), raw, SubmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, sig, got)
	assert.Equal(t, raw, chain.lastRawSubmit)
}

func TestSubmitAppliesConfigDefaults(t *testing.T) {
	retries := uint(7)
	chain := &fakeChain{sendSig: solana.SignatureFromBytes(make([]byte, 64))}
	cfg := testConfig()
	cfg.SkipPreflight = true
	cfg.MaxRetries = &retries
	m := NewManager(chain, zaptest.NewLogger(t), cfg)

	_, err := m.SubmitRaw(context.Background(), []byte{1}, SubmitOptions{})
	require.NoError(t, err)
	assert.True(t, chain.lastSubmitOpts.SkipPreflight)
	require.NotNil(t, chain.lastSubmitOpts.MaxRetries)
	assert.Equal(t, uint(7), *chain.lastSubmitOpts.MaxRetries)

	// Per-call options win over config defaults.
	perCall := uint(2)
	_, err = m.SubmitRaw(context.Background(), []byte{1}, SubmitOptions{MaxRetries: &perCall})
	require.NoError(t, err)
	assert.Equal(t, uint(2), *chain.lastSubmitOpts.MaxRetries)
}
