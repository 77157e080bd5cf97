package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sugarswap"
	"sugarswap/internal/config"
	"sugarswap/internal/gateway"
	"sugarswap/internal/model"
	"sugarswap/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "sugar",
		Short:        "DEX quote and liquidity engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("network", "", "network name from config")

	poolsCmd := &cobra.Command{
		Use:   "pools",
		Short: "List pools with TVL and APR",
		RunE:  runPools,
	}
	root.AddCommand(poolsCmd)

	tokensCmd := &cobra.Command{
		Use:   "tokens",
		Short: "List tokens appearing in any pool",
		RunE:  runTokens,
	}
	root.AddCommand(tokensCmd)

	pricesCmd := &cobra.Command{
		Use:   "prices [address...]",
		Short: "Fetch oracle prices for tokens",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPrices,
	}
	root.AddCommand(pricesCmd)

	epochsCmd := &cobra.Command{
		Use:   "epochs [pool]",
		Short: "Show epoch fees and incentives, latest per pool or one pool's history",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEpochs,
	}
	root.AddCommand(epochsCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote <from> <to> <amount>",
		Short: "Quote a swap without executing",
		Args:  cobra.ExactArgs(3),
		RunE:  runQuote,
	}
	root.AddCommand(quoteCmd)

	swapCmd := &cobra.Command{
		Use:   "swap <from> <to> <amount>",
		Short: "Quote and execute a swap",
		Args:  cobra.ExactArgs(3),
		RunE:  runSwap,
	}
	swapCmd.Flags().String("private-key", "", "hex private key for signing")
	swapCmd.Flags().String("pg-dsn", "", "Postgres DSN; executed swaps are recorded when set")
	root.AddCommand(swapCmd)

	superQuoteCmd := &cobra.Command{
		Use:   "superquote <from> <to> <amount>",
		Short: "Quote a cross-network swap",
		Args:  cobra.ExactArgs(3),
		RunE:  runSuperQuote,
	}
	superQuoteCmd.Flags().String("dest-network", "", "destination network name from config")
	root.AddCommand(superQuoteCmd)

	superSwapCmd := &cobra.Command{
		Use:   "superswap <from> <to> <amount>",
		Short: "Quote and execute a cross-network swap",
		Args:  cobra.ExactArgs(3),
		RunE:  runSuperSwap,
	}
	superSwapCmd.Flags().String("dest-network", "", "destination network name from config")
	superSwapCmd.Flags().String("private-key", "", "hex private key for signing")
	root.AddCommand(superSwapCmd)

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Persist pool and epoch snapshots to Postgres on an interval",
		RunE:  runSnapshot,
	}
	snapshotCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	snapshotCmd.Flags().Duration("interval", 5*time.Minute, "snapshot interval")
	snapshotCmd.Flags().String("metrics-addr", "", "Prometheus listen address (e.g. :9090)")
	root.AddCommand(snapshotCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads config, builds the logger, and opens the requested network.
func setup(cmd *cobra.Command, sender gateway.TxSender) (context.Context, context.CancelFunc, config.Config, *sugarswap.Chain, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, config.Config{}, nil, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, config.Config{}, nil, nil, err
	}

	name, _ := cmd.Flags().GetString("network")
	network, ok := cfg.Networks[name]
	if !ok {
		return nil, nil, config.Config{}, nil, nil, fmt.Errorf("unknown network %q", name)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	chain, err := sugarswap.NewChain(ctx, name, network, cfg, sender, logger)
	if err != nil {
		stop()
		return nil, nil, config.Config{}, nil, nil, err
	}
	return ctx, stop, cfg, chain, logger, nil
}

func runPools(cmd *cobra.Command, _ []string) error {
	ctx, stop, _, chain, logger, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	defer stop()
	defer chain.Close()
	defer logger.Sync()

	pools, err := chain.GetPools(ctx)
	if err != nil && !errors.Is(err, model.ErrCatalogTruncated) {
		return err
	}
	if errors.Is(err, model.ErrCatalogTruncated) {
		logger.Warn("pool listing truncated at the configured cap")
	}
	for _, pool := range pools {
		fmt.Printf("%s  %s  tvl=%s  apr=%s%%\n",
			pool.Address.Hex(), pool.Symbol, pool.TVL.StringFixed(2), pool.APR.StringFixed(2))
	}
	return nil
}

func runTokens(cmd *cobra.Command, _ []string) error {
	ctx, stop, _, chain, logger, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	defer stop()
	defer chain.Close()
	defer logger.Sync()

	tokens, err := chain.GetAllTokens(ctx)
	if err != nil && !errors.Is(err, model.ErrCatalogTruncated) {
		return err
	}
	for _, token := range tokens {
		fmt.Printf("%s  %s  decimals=%d\n", token.Address.Hex(), token.Symbol, token.Decimals)
	}
	return nil
}

func runPrices(cmd *cobra.Command, args []string) error {
	ctx, stop, _, chain, logger, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	defer stop()
	defer chain.Close()
	defer logger.Sync()

	tokens := make([]model.Token, 0, len(args))
	for _, arg := range args {
		token, err := chain.Token(ctx, common.HexToAddress(arg))
		if err != nil {
			return fmt.Errorf("resolve %s: %w", arg, err)
		}
		tokens = append(tokens, token)
	}

	results, err := chain.GetPrices(ctx, tokens)
	if err != nil {
		return err
	}
	for _, token := range tokens {
		result := results[token.Key()]
		if result.Status != model.PriceOK {
			fmt.Printf("%s  %s\n", token.Symbol, result.Status)
			continue
		}
		fmt.Printf("%s  %s\n", token.Symbol, result.Price.Value.String())
	}
	return nil
}

func runEpochs(cmd *cobra.Command, args []string) error {
	ctx, stop, _, chain, logger, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	defer stop()
	defer chain.Close()
	defer logger.Sync()

	var epochs []model.Epoch
	if len(args) == 1 {
		epochs, err = chain.GetPoolEpochs(ctx, common.HexToAddress(args[0]))
	} else {
		epochs, err = chain.GetLatestPoolEpochs(ctx)
	}
	if err != nil && !errors.Is(err, model.ErrCatalogTruncated) {
		return err
	}
	if errors.Is(err, model.ErrCatalogTruncated) {
		logger.Warn("epoch listing truncated at the configured cap")
	}
	for _, epoch := range epochs {
		fmt.Printf("%s  start=%s  fees=%s  incentives=%s\n",
			epoch.Pool.Hex(), epoch.Start.Format(time.RFC3339),
			epoch.TotalFees.StringFixed(2), epoch.TotalIncentives.StringFixed(2))
	}
	return nil
}

// parseSwapArgs resolves the pair and a decimal amount into smallest units.
func parseSwapArgs(ctx context.Context, chain *sugarswap.Chain, args []string) (model.Token, model.Token, *big.Int, error) {
	from, err := chain.Token(ctx, common.HexToAddress(args[0]))
	if err != nil {
		return model.Token{}, model.Token{}, nil, fmt.Errorf("resolve from token: %w", err)
	}
	to, err := chain.Token(ctx, common.HexToAddress(args[1]))
	if err != nil {
		return model.Token{}, model.Token{}, nil, fmt.Errorf("resolve to token: %w", err)
	}
	amount, err := from.ParseUnits(args[2])
	if err != nil {
		return model.Token{}, model.Token{}, nil, fmt.Errorf("parse amount: %w", err)
	}
	return from, to, amount, nil
}

func runQuote(cmd *cobra.Command, args []string) error {
	ctx, stop, _, chain, logger, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	defer stop()
	defer chain.Close()
	defer logger.Sync()

	from, to, amount, err := parseSwapArgs(ctx, chain, args)
	if err != nil {
		return err
	}

	quote, err := chain.GetQuote(ctx, from, to, amount)
	if err != nil {
		return err
	}
	if quote == nil {
		return fmt.Errorf("%s -> %s: %w", from, to, model.ErrNoRoute)
	}
	printQuote(quote)
	return nil
}

func runSwap(cmd *cobra.Command, args []string) error {
	key, _ := cmd.Flags().GetString("private-key")
	if key == "" {
		return fmt.Errorf("private-key is required")
	}

	// The sender needs the network's RPC URL before the chain exists, so the
	// config is loaded once more here.
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("network")
	network, ok := cfg.Networks[name]
	if !ok {
		return fmt.Errorf("unknown network %q", name)
	}

	sender, err := newKeySender(cmd.Context(), network.RPCURL, key)
	if err != nil {
		return err
	}
	defer sender.Close()

	ctx, stop, runCfg, chain, logger, err := setup(cmd, sender)
	if err != nil {
		return err
	}
	defer stop()
	defer chain.Close()
	defer logger.Sync()

	from, to, amount, err := parseSwapArgs(ctx, chain, args)
	if err != nil {
		return err
	}

	quote, err := chain.GetQuote(ctx, from, to, amount)
	if err != nil {
		return err
	}
	if quote == nil {
		return fmt.Errorf("%s -> %s: %w", from, to, model.ErrNoRoute)
	}

	receipt, err := chain.SwapFromQuote(ctx, quote)
	if err != nil {
		return err
	}
	fmt.Printf("submitted %s on chain %d\n", receipt.TxHash.Hex(), receipt.ChainID)

	if runCfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, runCfg.PGDSN)
		if err != nil {
			return fmt.Errorf("open swap record store: %w", err)
		}
		defer store.Close()
		if err := store.RecordSwap(ctx, quote, receipt); err != nil {
			logger.Warn("swap executed but not recorded", zap.Error(err))
		}
	}
	return nil
}

// setupPair opens the source network via setup and the destination network
// alongside it.
func setupPair(cmd *cobra.Command, sender gateway.TxSender) (context.Context, context.CancelFunc, config.Config, *sugarswap.Chain, *sugarswap.Chain, *zap.Logger, error) {
	ctx, stop, cfg, source, logger, err := setup(cmd, sender)
	if err != nil {
		return nil, nil, config.Config{}, nil, nil, nil, err
	}

	destName, _ := cmd.Flags().GetString("dest-network")
	destNetwork, ok := cfg.Networks[destName]
	if !ok {
		stop()
		source.Close()
		return nil, nil, config.Config{}, nil, nil, nil, fmt.Errorf("unknown network %q", destName)
	}
	dest, err := sugarswap.NewChain(ctx, destName, destNetwork, cfg, sender, logger)
	if err != nil {
		stop()
		source.Close()
		return nil, nil, config.Config{}, nil, nil, nil, err
	}
	return ctx, stop, cfg, source, dest, logger, nil
}

func runSuperQuote(cmd *cobra.Command, args []string) error {
	ctx, stop, cfg, source, dest, logger, err := setupPair(cmd, nil)
	if err != nil {
		return err
	}
	defer stop()
	defer source.Close()
	defer dest.Close()
	defer logger.Sync()

	swap, err := sugarswap.NewSuperswap(source, dest, cfg, logger)
	if err != nil {
		return err
	}

	from, err := source.Token(ctx, common.HexToAddress(args[0]))
	if err != nil {
		return fmt.Errorf("resolve from token: %w", err)
	}
	to, err := dest.Token(ctx, common.HexToAddress(args[1]))
	if err != nil {
		return fmt.Errorf("resolve to token: %w", err)
	}
	amount, err := from.ParseUnits(args[2])
	if err != nil {
		return fmt.Errorf("parse amount: %w", err)
	}

	sq, err := swap.GetSuperQuote(ctx, from, to, amount)
	if err != nil {
		return err
	}
	if sq == nil {
		return fmt.Errorf("%s -> %s: %w", from, to, model.ErrNoRoute)
	}
	if sq.Source != nil {
		fmt.Printf("source leg:\n")
		printQuote(sq.Source)
	}
	if sq.Bridge != nil {
		fmt.Printf("bridge %s %s from chain %d to chain %d\n",
			sq.Bridge.Token.FormatUnits(sq.Bridge.Amount),
			sq.Bridge.Token.Symbol, sq.Bridge.SourceChain, sq.Bridge.DestChain)
	}
	if sq.Dest != nil {
		fmt.Printf("dest leg:\n")
		printQuote(sq.Dest)
	}
	return nil
}

func runSuperSwap(cmd *cobra.Command, args []string) error {
	key, _ := cmd.Flags().GetString("private-key")
	if key == "" {
		return fmt.Errorf("private-key is required")
	}

	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("network")
	network, ok := cfg.Networks[name]
	if !ok {
		return fmt.Errorf("unknown network %q", name)
	}
	sender, err := newKeySender(cmd.Context(), network.RPCURL, key)
	if err != nil {
		return err
	}
	defer sender.Close()

	ctx, stop, cfg, source, dest, logger, err := setupPair(cmd, sender)
	if err != nil {
		return err
	}
	defer stop()
	defer source.Close()
	defer dest.Close()
	defer logger.Sync()

	swap, err := sugarswap.NewSuperswap(source, dest, cfg, logger)
	if err != nil {
		return err
	}

	from, err := source.Token(ctx, common.HexToAddress(args[0]))
	if err != nil {
		return fmt.Errorf("resolve from token: %w", err)
	}
	to, err := dest.Token(ctx, common.HexToAddress(args[1]))
	if err != nil {
		return fmt.Errorf("resolve to token: %w", err)
	}
	amount, err := from.ParseUnits(args[2])
	if err != nil {
		return fmt.Errorf("parse amount: %w", err)
	}

	result, err := swap.Swap(ctx, from, to, amount)
	if err != nil {
		var partial *model.PartialSwapError
		if errors.As(err, &partial) {
			logger.Error("swap stopped partway; funds may need manual remediation",
				zap.String("completed_step", partial.CompletedStep.String()))
		}
		return err
	}
	fmt.Printf("completed through step %s\n", result.Step)
	if result.SourceReceipt != nil {
		fmt.Printf("source tx %s\n", result.SourceReceipt.TxHash.Hex())
	}
	if result.BridgeReceipt != nil {
		fmt.Printf("bridge tx %s\n", result.BridgeReceipt.TxHash.Hex())
	}
	if result.DestReceipt != nil {
		fmt.Printf("dest tx %s\n", result.DestReceipt.TxHash.Hex())
	}
	return nil
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	ctx, stop, cfg, chain, logger, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	defer stop()
	defer chain.Close()
	defer logger.Sync()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	interval, _ := cmd.Flags().GetDuration("interval")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := snapshotOnce(ctx, chain, store, logger); err != nil {
			logger.Error("snapshot failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func snapshotOnce(ctx context.Context, chain *sugarswap.Chain, store *postgres.Store, logger *zap.Logger) error {
	pools, err := chain.GetPools(ctx)
	if err != nil && !errors.Is(err, model.ErrCatalogTruncated) {
		return err
	}
	if err := store.UpsertPools(ctx, chain.ChainID(), pools); err != nil {
		return fmt.Errorf("persist pools: %w", err)
	}

	epochs, err := chain.GetLatestPoolEpochs(ctx)
	if err != nil && !errors.Is(err, model.ErrCatalogTruncated) {
		return err
	}
	if err := store.UpsertEpochs(ctx, chain.ChainID(), epochs); err != nil {
		return fmt.Errorf("persist epochs: %w", err)
	}

	logger.Info("snapshot persisted",
		zap.Int("pools", len(pools)),
		zap.Int("epochs", len(epochs)),
	)
	return nil
}

func printQuote(q *model.Quote) {
	route := ""
	for i, token := range q.Route {
		if i > 0 {
			route += " > "
		}
		route += token.Symbol
	}
	fmt.Printf("  route: %s\n", route)
	fmt.Printf("  in:  %s %s\n", q.FromToken.FormatUnits(q.AmountIn), q.FromToken.Symbol)
	fmt.Printf("  out: %s %s (min %s)\n",
		q.ToToken.FormatUnits(q.AmountOut), q.ToToken.Symbol,
		q.ToToken.FormatUnits(q.MinAmountOut()))
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
