// Package sugarswap exposes one DEX deployment per network: pool discovery,
// cached pricing, epoch rewards, swap quoting and execution, plus a
// cross-network superswap composed from two networks joined by a bridge
// token.
package sugarswap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sugarswap/internal/catalog"
	"sugarswap/internal/chain"
	"sugarswap/internal/config"
	"sugarswap/internal/epoch"
	"sugarswap/internal/gateway"
	"sugarswap/internal/model"
	"sugarswap/internal/price"
	"sugarswap/internal/quote"
	"sugarswap/internal/relay"
	"sugarswap/internal/superswap"
)

// Chain is one network's engine surface. All methods are safe for concurrent
// use; shared state is confined to the price cache.
type Chain struct {
	name    string
	chainID uint64
	client  *chain.Client
	gw      *gateway.ContractGateway
	prices  *price.Cache
	catalog *catalog.Catalog
	epochs  *epoch.Aggregator
	quoter  *quote.Quoter
	bridge  model.Token
	logger  *zap.Logger
}

// NewChain dials the network and resolves connector, excluded, and bridge
// token metadata up front, so later quoting needs no extra lookups. sender
// may be nil for a read-only surface.
func NewChain(ctx context.Context, name string, cfg config.Network, shared config.Config, sender gateway.TxSender, logger *zap.Logger) (*Chain, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("network", name))

	client, err := chain.NewClient(ctx, cfg.RPCURL, cfg.RateLimitRPS)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", name, err)
	}

	gw, err := gateway.NewContractGateway(
		client,
		cfg.ChainID,
		name,
		gateway.Contracts{
			PoolRegistry: common.HexToAddress(cfg.PoolRegistry),
			PriceOracle:  common.HexToAddress(cfg.PriceOracle),
			Router:       common.HexToAddress(cfg.Router),
			Bridge:       common.HexToAddress(cfg.Bridge),
		},
		sender,
		shared.MaxRetries,
		shared.RetryBackoff,
		logger,
	)
	if err != nil {
		client.Close()
		return nil, err
	}

	threshold := decimal.Zero
	if cfg.PriceThreshold != "" {
		threshold, err = decimal.NewFromString(cfg.PriceThreshold)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("network %s: price-threshold: %w", name, err)
		}
	}
	slippage, err := decimal.NewFromString(cfg.Slippage)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("network %s: slippage: %w", name, err)
	}

	prices := price.New(gw, name, price.Config{
		TTL:       cfg.PriceTTL,
		BatchSize: cfg.PriceBatchSize,
		Workers:   cfg.PriceWorkers,
		Threshold: threshold,
	}, logger)

	c := &Chain{
		name:    name,
		chainID: cfg.ChainID,
		client:  client,
		gw:      gw,
		prices:  prices,
		catalog: catalog.New(gw, prices, cfg.ChainID, catalog.Config{
			PageSize: cfg.PageSize,
			MaxPools: cfg.MaxPools,
		}, logger),
		epochs: epoch.New(gw, prices, cfg.ChainID, epoch.Config{
			PageSize:   cfg.PageSize,
			MaxRecords: cfg.MaxEpochRecords,
		}, logger),
		logger: logger,
	}

	connectors, err := c.resolveTokens(ctx, cfg.Connectors)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("network %s: connectors: %w", name, err)
	}
	excluded, err := c.resolveTokens(ctx, cfg.Excluded)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("network %s: excluded: %w", name, err)
	}
	c.quoter = quote.New(gw, cfg.ChainID, quote.Config{
		Connectors: connectors,
		Excluded:   excluded,
		Slippage:   slippage,
	}, logger)

	if cfg.BridgeToken != "" {
		c.bridge, err = c.Token(ctx, common.HexToAddress(cfg.BridgeToken))
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("network %s: bridge token: %w", name, err)
		}
	}

	return c, nil
}

// Close releases the RPC connection.
func (c *Chain) Close() {
	c.client.Close()
}

// Name returns the configured network name.
func (c *Chain) Name() string { return c.name }

// ChainID returns the network's chain id.
func (c *Chain) ChainID() uint64 { return c.chainID }

// BridgeToken returns the configured bridge token, zero-valued when the
// network has none.
func (c *Chain) BridgeToken() model.Token { return c.bridge }

// Token resolves ERC20 metadata for an address on this network.
func (c *Chain) Token(ctx context.Context, address common.Address) (model.Token, error) {
	raw, err := c.gw.TokenMeta(ctx, address)
	if err != nil {
		return model.Token{}, err
	}
	return model.Token{
		ChainID:  c.chainID,
		Address:  raw.Address,
		Symbol:   raw.Symbol,
		Decimals: raw.Decimals,
	}, nil
}

// GetPools lists all pools with TVL and APR derived from cached prices.
func (c *Chain) GetPools(ctx context.Context) ([]model.Pool, error) {
	return c.catalog.ListPools(ctx)
}

// GetPoolsForPair lists pools pairing exactly the two tokens.
func (c *Chain) GetPoolsForPair(ctx context.Context, a, b model.Token) ([]model.Pool, error) {
	return c.catalog.PoolsForPair(ctx, a, b)
}

// GetPoolByAddress returns one pool snapshot, or nil when unknown.
func (c *Chain) GetPoolByAddress(ctx context.Context, address common.Address) (*model.Pool, error) {
	return c.catalog.GetPoolByAddress(ctx, address)
}

// GetAllTokens lists the distinct tokens appearing in any pool.
func (c *Chain) GetAllTokens(ctx context.Context) ([]model.Token, error) {
	return c.catalog.GetAllTokens(ctx)
}

// GetPrices returns a per-token price result for every requested token.
func (c *Chain) GetPrices(ctx context.Context, tokens []model.Token) (map[model.TokenKey]model.PriceResult, error) {
	return c.prices.GetPrices(ctx, tokens)
}

// GetPoolEpochs returns one pool's epoch aggregates, newest first.
func (c *Chain) GetPoolEpochs(ctx context.Context, pool common.Address) ([]model.Epoch, error) {
	return c.epochs.GetPoolEpochs(ctx, pool)
}

// GetLatestPoolEpochs returns the most recent epoch per pool.
func (c *Chain) GetLatestPoolEpochs(ctx context.Context) ([]model.Epoch, error) {
	return c.epochs.GetLatestPoolEpochs(ctx)
}

// GetQuote returns the best route for the pair, nil when none exists.
func (c *Chain) GetQuote(ctx context.Context, from, to model.Token, amountIn *big.Int) (*model.Quote, error) {
	return c.quoter.GetQuote(ctx, from, to, amountIn)
}

// SwapFromQuote executes a previously obtained quote under its slippage
// bound.
func (c *Chain) SwapFromQuote(ctx context.Context, q *model.Quote) (model.Receipt, error) {
	return c.quoter.SwapFromQuote(ctx, q)
}

// Swap quotes and executes in one step.
func (c *Chain) Swap(ctx context.Context, from, to model.Token, amountIn *big.Int) (model.Receipt, error) {
	return c.quoter.Swap(ctx, from, to, amountIn)
}

func (c *Chain) resolveTokens(ctx context.Context, addresses []string) ([]model.Token, error) {
	tokens := make([]model.Token, 0, len(addresses))
	for _, addr := range addresses {
		token, err := c.Token(ctx, common.HexToAddress(addr))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", addr, err)
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// NewSuperswap wires two chains into a cross-network swap surface. The relay
// is built from shared config when a relay URL is set.
func NewSuperswap(source, dest *Chain, shared config.Config, logger *zap.Logger) (*superswap.Superswap, error) {
	if source.bridge == (model.Token{}) || dest.bridge == (model.Token{}) {
		return nil, fmt.Errorf("superswap %s -> %s: both networks need a bridge token", source.name, dest.name)
	}

	var r superswap.Relay
	if shared.RelayURL != "" {
		r = relay.New(relay.Config{
			BaseURL:      shared.RelayURL,
			PollInterval: shared.RelayPoll,
			Timeout:      shared.RelayTimeout,
		}, logger)
	}

	policy := superswap.RequoteManual
	if shared.DestRequote == "auto" {
		policy = superswap.RequoteAuto
	}

	return superswap.New(
		superswap.Leg{ChainID: source.chainID, Quoter: source.quoter, Bridge: source.gw, BridgeToken: source.bridge},
		superswap.Leg{ChainID: dest.chainID, Quoter: dest.quoter, Bridge: dest.gw, BridgeToken: dest.bridge},
		r, policy, logger,
	), nil
}
