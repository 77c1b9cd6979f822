// ====================================
// File: cmd/swap/main.go
// ====================================
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Velocity-BPA/jupiter-go/internal/config"
	"github.com/Velocity-BPA/jupiter-go/internal/jupiter"
	"github.com/Velocity-BPA/jupiter-go/internal/license"
	"github.com/Velocity-BPA/jupiter-go/internal/logger"
	"github.com/Velocity-BPA/jupiter-go/internal/priority"
	"github.com/Velocity-BPA/jupiter-go/internal/quote"
	solclient "github.com/Velocity-BPA/jupiter-go/internal/solana"
	"github.com/Velocity-BPA/jupiter-go/internal/solana/transaction"
	"github.com/Velocity-BPA/jupiter-go/internal/swap"
	"github.com/Velocity-BPA/jupiter-go/internal/wallet"
)

func main() {
	var (
		configPath  = flag.String("config", "configs/config.json", "path to configuration file")
		inputMint   = flag.String("in", "", "input token mint address")
		outputMint  = flag.String("out", "", "output token mint address")
		amount      = flag.String("amount", "", "raw amount in base units")
		slippageBps = flag.Int("slippage", 0, "slippage tolerance in basis points (0 = config default)")
		onlyDirect  = flag.Bool("direct", false, "restrict routing to single-hop routes")
		execute     = flag.Bool("execute", false, "sign and submit the swap (default is quote only)")
		dryRun      = flag.Bool("dry-run", false, "simulate the swap without submitting")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		LogFile:     cfg.LogFile,
		MaxSize:     100,
		MaxAge:      7,
		MaxBackups:  3,
		Compress:    true,
		Development: cfg.DebugLogging,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	license.EmitNotice(log.Logger)

	if err := run(cfg, log, runParams{
		inputMint:   *inputMint,
		outputMint:  *outputMint,
		amount:      *amount,
		slippageBps: *slippageBps,
		onlyDirect:  *onlyDirect,
		execute:     *execute,
		dryRun:      *dryRun,
	}); err != nil {
		log.LogError("Swap failed", err)
		log.Sync()
		os.Exit(1)
	}
}

type runParams struct {
	inputMint   string
	outputMint  string
	amount      string
	slippageBps int
	onlyDirect  bool
	execute     bool
	dryRun      bool
}

func run(cfg *config.Config, log *logger.Logger, params runParams) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-shutdownCh
		log.Info("Signal received: " + sig.String())
		cancel()
	}()

	if err := validateLicense(ctx, cfg, log); err != nil {
		return err
	}

	level, err := priority.ParseLevel(cfg.PriorityLevel)
	if err != nil {
		return err
	}

	var opts []jupiter.Option
	if cfg.JupiterAPIKey != "" {
		opts = append(opts, jupiter.WithAPIKey(cfg.JupiterAPIKey))
	}
	jupiterClient := jupiter.NewClient(cfg.JupiterBaseURL, log.WithComponent("jupiter"), opts...)

	chainPool, err := solclient.NewPool(cfg.RPCList, log.WithComponent("chain"))
	if err != nil {
		return err
	}

	var metrics *transaction.Metrics
	if cfg.MetricsEnabled {
		metrics = transaction.NewMetrics(prometheus.DefaultRegisterer)
	}

	var maxRetries *uint
	if cfg.Retries > 0 {
		r := uint(cfg.Retries)
		maxRetries = &r
	}
	txManager := transaction.NewManager(chainPool, log.Logger, transaction.Config{
		BlockhashAttempts: cfg.Retries,
		ConfirmTimeout:    time.Duration(cfg.ConfirmTimeout) * time.Second,
		PollInterval:      time.Duration(cfg.PollInterval) * time.Millisecond,
		SkipPreflight:     cfg.SkipPreflight,
		MaxRetries:        maxRetries,
		Metrics:           metrics,
	})

	orchestrator := swap.NewOrchestrator(jupiterClient, chainPool, txManager, log)

	slippage := cfg.SlippageBps
	if params.slippageBps > 0 {
		slippage = params.slippageBps
	}
	request := quote.Request{
		InputMint:   params.inputMint,
		OutputMint:  params.outputMint,
		Amount:      params.amount,
		SlippageBps: &slippage,
		OnlyDirect:  params.onlyDirect,
	}

	if !params.execute && !params.dryRun {
		eval, err := orchestrator.GetQuote(ctx, request)
		if err != nil {
			return err
		}
		return printJSON(eval)
	}

	w, err := loadWallet(cfg)
	if err != nil {
		return err
	}
	log.WithWallet(w.String()).Info("Wallet loaded")

	result, err := orchestrator.Execute(ctx, swap.ExecuteParams{
		Request: request,
		Wallet:  w,
		Priority: priority.Config{
			Level:            level,
			ComputeUnitLimit: cfg.ComputeUnitLimit,
		},
		SkipPreflight: cfg.SkipPreflight,
		DryRun:        params.dryRun,
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

// validateLicense checks the configured license key against Keygen.sh.
// Without a key the process runs in evaluation mode.
func validateLicense(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if cfg.License == "" {
		log.Warn("No license configured, running in evaluation mode")
		return nil
	}

	validator := license.NewKeygenValidator(
		cfg.KeygenAccountID,
		cfg.KeygenProductToken,
		cfg.KeygenProductID,
		log.WithComponent("license"),
	)
	if err := validator.ValidateLicense(ctx, cfg.License); err != nil {
		return fmt.Errorf("license validation failed: %w", err)
	}
	return nil
}

func loadWallet(cfg *config.Config) (*wallet.Wallet, error) {
	if key := os.Getenv("JUPITER_SWAP_PRIVATE_KEY"); key != "" {
		return wallet.New(key)
	}
	if cfg.KeypairPath != "" {
		return wallet.Load(cfg.KeypairPath)
	}
	return nil, fmt.Errorf("no wallet configured: set keypair_path or JUPITER_SWAP_PRIVATE_KEY")
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
