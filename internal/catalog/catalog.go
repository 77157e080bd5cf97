// Package catalog enumerates the pools of one network through the registry's
// paginated listing.
package catalog

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"sugarswap/internal/gateway"
	"sugarswap/internal/model"
	"sugarswap/internal/price"
)

// Source is the registry boundary the catalog walks.
type Source interface {
	ListPools(ctx context.Context, limit, offset int) ([]gateway.RawPool, error)
}

// Config tunes one catalog instance.
type Config struct {
	// PageSize is the registry page size per call.
	PageSize int
	// MaxPools caps the walk; the registry has no total-count signal, so the
	// cap defends against unbounded iteration on a misbehaving endpoint.
	MaxPools int
}

// Catalog lists pools with price enrichment. Each listing call performs a
// fresh pagination walk; page order is the registry's and is stable while the
// underlying data is unchanged.
type Catalog struct {
	source  Source
	prices  *price.Cache
	chainID uint64
	cfg     Config
	logger  *zap.Logger
}

// New builds a catalog for one network.
func New(source Source, prices *price.Cache, chainID uint64, cfg Config, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	if cfg.MaxPools <= 0 {
		cfg.MaxPools = 2500
	}
	return &Catalog{
		source:  source,
		prices:  prices,
		chainID: chainID,
		cfg:     cfg,
		logger:  logger,
	}
}

// ListPools walks every registry page in order and returns the enriched pool
// set. If the walk hits the configured cap before the registry signals end of
// data, the capped set is returned together with ErrCatalogTruncated.
func (c *Catalog) ListPools(ctx context.Context) ([]model.Pool, error) {
	pools, err := c.walk(ctx)
	if err != nil && pools == nil {
		return nil, err
	}

	if enrichErr := c.enrich(ctx, pools); enrichErr != nil {
		return nil, enrichErr
	}
	return pools, err
}

// PoolsForPair lists only pools pairing exactly the two given tokens.
func (c *Catalog) PoolsForPair(ctx context.Context, a, b model.Token) ([]model.Pool, error) {
	pools, err := c.ListPools(ctx)
	if err != nil {
		return nil, err
	}

	matched := pools[:0]
	for _, pool := range pools {
		if pool.HasPair(a, b) {
			matched = append(matched, pool)
		}
	}
	return matched, nil
}

// GetPoolByAddress returns one enriched pool, or nil when unknown.
func (c *Catalog) GetPoolByAddress(ctx context.Context, address common.Address) (*model.Pool, error) {
	pools, err := c.ListPools(ctx)
	if err != nil {
		return nil, err
	}
	for i := range pools {
		if pools[i].Address == address {
			return &pools[i], nil
		}
	}
	return nil, nil
}

// GetAllTokens returns the distinct tokens appearing in any pool.
func (c *Catalog) GetAllTokens(ctx context.Context) ([]model.Token, error) {
	pools, err := c.walk(ctx)
	if err != nil && pools == nil {
		return nil, err
	}

	seen := make(map[model.TokenKey]struct{})
	tokens := make([]model.Token, 0, 2*len(pools))
	for _, pool := range pools {
		for _, token := range []model.Token{pool.Token0, pool.Token1} {
			if _, ok := seen[token.Key()]; ok {
				continue
			}
			seen[token.Key()] = struct{}{}
			tokens = append(tokens, token)
		}
	}
	return tokens, err
}

// walk fetches pages sequentially; each page's offset depends on the count
// consumed so far, so pages are never fetched in parallel.
func (c *Catalog) walk(ctx context.Context) ([]model.Pool, error) {
	pools := make([]model.Pool, 0, c.cfg.PageSize)
	seen := make(map[common.Address]struct{})

	for offset := 0; ; offset += c.cfg.PageSize {
		page, err := c.source.ListPools(ctx, c.cfg.PageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("list pools page offset=%d: %w", offset, err)
		}

		for _, raw := range page {
			if _, ok := seen[raw.Address]; ok {
				continue
			}
			seen[raw.Address] = struct{}{}
			pools = append(pools, c.toPool(raw))

			if len(pools) >= c.cfg.MaxPools {
				c.logger.Warn("pool walk hit configured cap",
					zap.Uint64("chain_id", c.chainID),
					zap.Int("max_pools", c.cfg.MaxPools),
				)
				return pools, model.ErrCatalogTruncated
			}
		}

		if len(page) < c.cfg.PageSize {
			return pools, nil
		}
	}
}

// enrich recomputes TVL and APR from current prices via the shared cache.
// Missing or anomalous prices leave the affected pool's derived fields zero;
// they never abort the listing.
func (c *Catalog) enrich(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}

	tokens := make([]model.Token, 0, 2*len(pools))
	for _, pool := range pools {
		tokens = append(tokens, pool.Token0, pool.Token1)
	}

	results, err := c.prices.GetPrices(ctx, tokens)
	if err != nil {
		return fmt.Errorf("price pools: %w", err)
	}

	for i := range pools {
		r0, r1 := results[pools[i].Token0.Key()], results[pools[i].Token1.Key()]
		if r0.Status != model.PriceOK || r1.Status != model.PriceOK {
			c.logger.Debug("pool left unpriced",
				zap.String("pool", pools[i].Address.Hex()),
				zap.String("token0_status", r0.Status.String()),
				zap.String("token1_status", r1.Status.String()),
			)
			continue
		}
		pools[i].Derive(r0.Price, r1.Price)
	}
	return nil
}

func (c *Catalog) toPool(raw gateway.RawPool) model.Pool {
	return model.Pool{
		Address: raw.Address,
		Symbol:  raw.Symbol,
		Token0:  c.toToken(raw.Token0),
		Token1:  c.toToken(raw.Token1),

		Reserve0: raw.Reserve0,
		Reserve1: raw.Reserve1,
		Volume0:  raw.Volume0,
		Volume1:  raw.Volume1,
		Fees0:    raw.Fees0,
		Fees1:    raw.Fees1,
	}
}

func (c *Catalog) toToken(raw gateway.RawToken) model.Token {
	return model.Token{
		ChainID:  c.chainID,
		Address:  raw.Address,
		Symbol:   raw.Symbol,
		Decimals: raw.Decimals,
	}
}
