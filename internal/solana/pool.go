// internal/solana/pool.go
package solana

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/Velocity-BPA/jupiter-go/internal/solana/transaction"
)

var ErrNoEndpoints = errors.New("rpc pool has no endpoints")

// node is the per-endpoint capability the pool rotates over.
type node interface {
	transaction.ChainClient
	Balance(ctx context.Context, pubkey solana.PublicKey) (uint64, error)
}

type nodeMetrics struct {
	mu           sync.Mutex
	successCount uint64
	errorCount   uint64
	latency      time.Duration
}

type endpoint struct {
	url    string
	client node

	mu      sync.RWMutex
	active  bool
	metrics nodeMetrics
}

func (e *endpoint) setActive(state bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = state
}

func (e *endpoint) isActive() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.active
}

func (e *endpoint) updateMetrics(success bool, latency time.Duration) {
	e.metrics.mu.Lock()
	defer e.metrics.mu.Unlock()

	if success {
		atomic.AddUint64(&e.metrics.successCount, 1)
	} else {
		atomic.AddUint64(&e.metrics.errorCount, 1)
	}
	e.metrics.latency = (e.metrics.latency + latency) / 2 // sliding average
}

// Stats returns the endpoint's call counters and average latency.
func (e *endpoint) Stats() (successCount uint64, errorCount uint64, avgLatency time.Duration) {
	e.metrics.mu.Lock()
	defer e.metrics.mu.Unlock()
	return atomic.LoadUint64(&e.metrics.successCount),
		atomic.LoadUint64(&e.metrics.errorCount),
		e.metrics.latency
}

// Pool fans RPC calls out over several endpoints. Calls stick to the current
// endpoint until it fails, then rotate to the next; a call is retried on every
// endpoint before its error surfaces.
type Pool struct {
	endpoints []*endpoint
	current   atomic.Uint32
	logger    *zap.Logger
}

var _ transaction.ChainClient = (*Pool)(nil)

// NewPool builds one Client per RPC URL.
func NewPool(rpcURLs []string, logger *zap.Logger) (*Pool, error) {
	nodes := make([]*endpoint, 0, len(rpcURLs))
	for _, u := range rpcURLs {
		nodes = append(nodes, &endpoint{
			url:    u,
			client: NewClient(u, logger),
			active: true,
		})
	}
	return newPool(nodes, logger)
}

func newPool(endpoints []*endpoint, logger *zap.Logger) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	return &Pool{
		endpoints: endpoints,
		logger:    logger.Named("rpc-pool"),
	}, nil
}

// do runs fn against the current endpoint, rotating on failure until every
// endpoint has been tried once. Success pins the pool to that endpoint; the
// last error wins when all fail.
func (p *Pool) do(ctx context.Context, op string, fn func(node) error) error {
	first := int(p.current.Load())
	var lastErr error
	for i := 0; i < len(p.endpoints); i++ {
		idx := (first + i) % len(p.endpoints)
		ep := p.endpoints[idx]
		// Inactive endpoints are skipped unless nothing else is left.
		if !ep.isActive() && i < len(p.endpoints)-1 {
			continue
		}

		start := time.Now()
		err := fn(ep.client)
		ep.updateMetrics(err == nil, time.Since(start))

		if err == nil {
			ep.setActive(true)
			p.current.Store(uint32(idx))
			return nil
		}
		if ctx.Err() != nil {
			return err
		}

		lastErr = err
		ep.setActive(false)
		p.logger.Warn("rpc endpoint failed, rotating",
			zap.String("op", op),
			zap.String("endpoint", ep.url),
			zap.Error(err))
	}
	return lastErr
}

func (p *Pool) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var out solana.Hash
	err := p.do(ctx, "latest_blockhash", func(n node) error {
		var err error
		out, err = n.LatestBlockhash(ctx)
		return err
	})
	return out, err
}

func (p *Pool) Balance(ctx context.Context, pubkey solana.PublicKey) (uint64, error) {
	var out uint64
	err := p.do(ctx, "balance", func(n node) error {
		var err error
		out, err = n.Balance(ctx, pubkey)
		return err
	})
	return out, err
}

func (p *Pool) SendTransaction(ctx context.Context, tx *solana.Transaction, opts transaction.SubmitOptions) (solana.Signature, error) {
	var out solana.Signature
	err := p.do(ctx, "send_transaction", func(n node) error {
		var err error
		out, err = n.SendTransaction(ctx, tx, opts)
		return err
	})
	return out, err
}

func (p *Pool) SendRawTransaction(ctx context.Context, raw []byte, opts transaction.SubmitOptions) (solana.Signature, error) {
	var out solana.Signature
	err := p.do(ctx, "send_raw_transaction", func(n node) error {
		var err error
		out, err = n.SendRawTransaction(ctx, raw, opts)
		return err
	})
	return out, err
}

func (p *Pool) SignatureStatus(ctx context.Context, sig solana.Signature) (*transaction.SignatureStatus, error) {
	var out *transaction.SignatureStatus
	err := p.do(ctx, "signature_status", func(n node) error {
		var err error
		out, err = n.SignatureStatus(ctx, sig)
		return err
	})
	return out, err
}

func (p *Pool) TransactionMeta(ctx context.Context, sig solana.Signature) (*transaction.TransactionMeta, error) {
	var out *transaction.TransactionMeta
	err := p.do(ctx, "transaction_meta", func(n node) error {
		var err error
		out, err = n.TransactionMeta(ctx, sig)
		return err
	})
	return out, err
}

func (p *Pool) Simulate(ctx context.Context, tx *solana.Transaction) (*transaction.SimulationResult, error) {
	var out *transaction.SimulationResult
	err := p.do(ctx, "simulate", func(n node) error {
		var err error
		out, err = n.Simulate(ctx, tx)
		return err
	})
	return out, err
}

func (p *Pool) FeeForMessage(ctx context.Context, messageBase64 string) (uint64, error) {
	var out uint64
	err := p.do(ctx, "fee_for_message", func(n node) error {
		var err error
		out, err = n.FeeForMessage(ctx, messageBase64)
		return err
	})
	return out, err
}
