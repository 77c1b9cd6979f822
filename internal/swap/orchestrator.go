// internal/swap/orchestrator.go
package swap

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Velocity-BPA/jupiter-go/internal/jupiter"
	"github.com/Velocity-BPA/jupiter-go/internal/logger"
	"github.com/Velocity-BPA/jupiter-go/internal/priority"
	"github.com/Velocity-BPA/jupiter-go/internal/quote"
	"github.com/Velocity-BPA/jupiter-go/internal/route"
	"github.com/Velocity-BPA/jupiter-go/internal/solana/transaction"
	"github.com/Velocity-BPA/jupiter-go/internal/wallet"
)

// InvalidRequestError enumerates every violated validation rule of a request.
type InvalidRequestError struct {
	Violations []string
}

func (e *InvalidRequestError) Error() string {
	return "invalid swap request: " + strings.Join(e.Violations, "; ")
}

// QuoteSource is the remote pricing capability.
type QuoteSource interface {
	Quote(ctx context.Context, req quote.Request) (*quote.Quote, error)
	Swap(ctx context.Context, req jupiter.SwapRequest) (*jupiter.SwapResponse, error)
}

// Ledger is the subset of chain access the orchestrator uses directly; the
// lifecycle manager holds its own handle.
type Ledger interface {
	Balance(ctx context.Context, pubkey solana.PublicKey) (uint64, error)
}

// Orchestrator composes the quote evaluator, route analyzer, and transaction
// lifecycle manager into a single intent-to-confirmation flow.
type Orchestrator struct {
	source QuoteSource
	ledger Ledger
	txm    *transaction.Manager
	logger *logger.Logger
	tiers  quote.SlippageTiers
	effcfg route.EfficiencyConfig
}

func NewOrchestrator(source QuoteSource, ledger Ledger, txm *transaction.Manager, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		source: source,
		ledger: ledger,
		txm:    txm,
		logger: logger.FromZap(log.WithComponent("swap-orchestrator")),
		tiers:  quote.DefaultSlippageTiers(),
		effcfg: route.DefaultEfficiencyConfig(),
	}
}

// Evaluation is the priced-and-analyzed view of a quote before execution.
type Evaluation struct {
	Quote          *quote.Quote      `json:"quote"`
	Summary        route.Summary     `json:"summary"`
	Impact         quote.ImpactLevel `json:"impact"`
	Efficiency     route.Efficiency  `json:"efficiency"`
	MinimumOut     string            `json:"minimumOut"`
	RecommendedBps int               `json:"recommendedSlippageBps"`
	Path           string            `json:"path"`
}

// GetQuote validates the request, fetches a quote, and derives the analysis
// views callers present to users.
func (o *Orchestrator) GetQuote(ctx context.Context, req quote.Request) (*Evaluation, error) {
	if v := quote.ValidateRequest(req); !v.Valid {
		return nil, &InvalidRequestError{Violations: v.Errors}
	}

	q, err := o.source.Quote(ctx, req)
	if err != nil {
		return nil, err
	}
	return o.evaluate(q)
}

func (o *Orchestrator) evaluate(q *quote.Quote) (*Evaluation, error) {
	impact, err := quote.ClassifyPriceImpact(q.PriceImpactPct)
	if err != nil {
		return nil, err
	}
	minOut, err := quote.MinimumOutput(q.OutAmount, q.SlippageBps)
	if err != nil {
		return nil, err
	}
	recommended, err := quote.RecommendedSlippageBps(q.PriceImpactPct, o.tiers)
	if err != nil {
		return nil, err
	}
	efficiency, err := route.AnalyzeEfficiency(*q, o.effcfg)
	if err != nil {
		return nil, err
	}

	return &Evaluation{
		Quote:          q,
		Summary:        route.Summarize(*q),
		Impact:         impact,
		Efficiency:     efficiency,
		MinimumOut:     minOut,
		RecommendedBps: recommended,
		Path:           route.FormatPath(*q),
	}, nil
}

// QuoteAttempt is one branch of a fan-out: either an evaluation or the error
// that branch produced. A failed branch never cancels its siblings.
type QuoteAttempt struct {
	Request    quote.Request
	Evaluation *Evaluation
	Err        error
}

// CompareQuotes fetches quotes for several routing configurations
// concurrently and returns every attempt plus the best passing quote.
// Best means highest by quote.Compare among attempts satisfying criteria.
func (o *Orchestrator) CompareQuotes(ctx context.Context, requests []quote.Request, criteria route.Criteria) ([]QuoteAttempt, *Evaluation, error) {
	if len(requests) == 0 {
		return nil, nil, &InvalidRequestError{Violations: []string{"at least one quote request is required"}}
	}

	attempts := make([]QuoteAttempt, len(requests))
	g, ctx := errgroup.WithContext(ctx)
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			// Each branch carries its own correlation id.
			branchLog := o.logger.WithOperation("quote_fanout")
			eval, err := o.GetQuote(ctx, req)
			attempts[i] = QuoteAttempt{Request: req, Evaluation: eval, Err: err}
			if err != nil {
				// Failures are collected, not propagated.
				branchLog.Warn("quote branch failed", zap.Int("branch", i), zap.Error(err))
				return nil
			}
			branchLog.Debug("quote branch finished",
				zap.Int("branch", i),
				zap.String("out_amount", eval.Quote.OutAmount))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return attempts, nil, err
	}

	var best *Evaluation
	for i := range attempts {
		a := attempts[i]
		if a.Err != nil || a.Evaluation == nil {
			continue
		}
		if len(route.Filter([]quote.Quote{*a.Evaluation.Quote}, criteria)) == 0 {
			continue
		}
		if best == nil {
			best = a.Evaluation
			continue
		}
		cmp, err := quote.Compare(*a.Evaluation.Quote, *best.Quote)
		if err != nil {
			o.logger.Warn("quote comparison failed", zap.Error(err))
			continue
		}
		if cmp > 0 {
			best = a.Evaluation
		}
	}

	return attempts, best, nil
}

// ExecuteParams carries everything needed to turn a quote into a confirmed
// transaction.
type ExecuteParams struct {
	Request       quote.Request
	Wallet        *wallet.Wallet
	Priority      priority.Config
	SkipPreflight bool
	MaxRetries    *uint
	DryRun        bool
}

// ExecuteResult is the outcome surface handed back to the glue layer. All
// amounts stay decimal strings; the whole record serializes to JSON without
// precision loss.
type ExecuteResult struct {
	Evaluation  *Evaluation                   `json:"evaluation"`
	Simulation  *transaction.SimulationResult `json:"simulation,omitempty"`
	Transaction *transaction.Result           `json:"transaction,omitempty"`
}

// Execute runs the full pipeline: intent → quote → swap transaction → sign →
// submit → confirm. With DryRun set it stops after simulation.
func (o *Orchestrator) Execute(ctx context.Context, params ExecuteParams) (*ExecuteResult, error) {
	if params.Wallet == nil {
		return nil, transaction.ErrSigningUnavailable
	}
	defer o.logger.TrackPerformance("execute_swap")()

	eval, err := o.GetQuote(ctx, params.Request)
	if err != nil {
		return nil, err
	}

	o.logger.Info("quote accepted",
		zap.String("in", eval.Quote.InAmount),
		zap.String("out", eval.Quote.OutAmount),
		zap.String("impact", string(eval.Impact)),
		zap.String("minimum_out", eval.MinimumOut),
		zap.Int("hops", eval.Summary.HopCount))

	swapResp, err := o.source.Swap(ctx, jupiter.SwapRequest{
		Quote:                     *eval.Quote,
		UserPublicKey:             params.Wallet.PublicKey.String(),
		WrapUnwrapSOL:             true,
		PrioritizationFeeLamports: params.Priority.PriorityFeeLamports(),
	})
	if err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(swapResp.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("%w: swap transaction is not base64", jupiter.ErrMalformedResponse)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable swap transaction", jupiter.ErrMalformedResponse)
	}

	result := &ExecuteResult{Evaluation: eval}

	if params.DryRun {
		result.Simulation = o.txm.Simulate(ctx, tx)
		return result, nil
	}

	if err := o.preflightBalance(ctx, params.Wallet.PublicKey, tx); err != nil {
		return nil, err
	}

	if err := o.txm.Sign(tx, params.Wallet.Signer()); err != nil {
		return nil, err
	}

	signed, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize signed transaction: %w", err)
	}

	sig, err := o.txm.SubmitRaw(ctx, signed, transaction.SubmitOptions{
		SkipPreflight: params.SkipPreflight,
		MaxRetries:    params.MaxRetries,
	})
	if err != nil {
		return nil, err
	}
	txLog := o.logger.WithTransaction(sig.String())

	confirmation, err := o.txm.Confirm(ctx, sig)
	if err != nil {
		return nil, err
	}
	txLog.Info("swap finished",
		zap.Bool("confirmed", confirmation.Confirmed),
		zap.Uint64("slot", confirmation.Slot))
	result.Transaction = confirmation
	return result, nil
}

// preflightBalance rejects submissions the payer cannot even pay fees for.
func (o *Orchestrator) preflightBalance(ctx context.Context, payer solana.PublicKey, tx *solana.Transaction) error {
	balance, err := o.ledger.Balance(ctx, payer)
	if err != nil {
		o.logger.Warn("balance preflight skipped", zap.Error(err))
		return nil
	}
	fee := o.txm.EstimateFee(ctx, tx)
	if balance < fee {
		return fmt.Errorf("insufficient balance: %d lamports held, %d needed for fees", balance, fee)
	}
	return nil
}
