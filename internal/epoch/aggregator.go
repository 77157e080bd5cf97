// Package epoch groups raw fee and incentive records into per-pool epoch
// aggregates denominated in the reference currency.
package epoch

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sugarswap/internal/gateway"
	"sugarswap/internal/model"
	"sugarswap/internal/price"
)

// Source is the registry boundary the aggregator reads raw records from.
type Source interface {
	PoolEpochs(ctx context.Context, pool common.Address, limit, offset int) ([]gateway.RawEpoch, error)
	LatestEpochs(ctx context.Context, limit, offset int) ([]gateway.RawEpoch, error)
}

// Config tunes one aggregator instance.
type Config struct {
	// PageSize is the record page size per registry call.
	PageSize int
	// MaxRecords caps a walk over all pools, mirroring the catalog's defense
	// against unbounded pagination.
	MaxRecords int
}

// Aggregator builds Epoch values. Aggregation is deterministic: the same raw
// records always produce identical Epoch values, with per-token sums taken in
// first-seen record order.
//
// Totals use current oracle prices because the registry exposes no historical
// rates; each Epoch carries the PricedAt timestamp of the prices actually
// used so callers can tell the approximation apart from an epoch-time
// valuation.
type Aggregator struct {
	source  Source
	prices  *price.Cache
	chainID uint64
	cfg     Config
	logger  *zap.Logger
}

// New builds an aggregator for one network.
func New(source Source, prices *price.Cache, chainID uint64, cfg Config, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = 2500
	}
	return &Aggregator{
		source:  source,
		prices:  prices,
		chainID: chainID,
		cfg:     cfg,
		logger:  logger,
	}
}

// GetPoolEpochs returns a pool's epochs, newest first. When the record walk
// hits the configured cap before end of data, the aggregates built so far are
// returned together with ErrCatalogTruncated.
func (a *Aggregator) GetPoolEpochs(ctx context.Context, pool common.Address) ([]model.Epoch, error) {
	records, walkErr := a.walk(ctx, "pool epochs", func(limit, offset int) ([]gateway.RawEpoch, error) {
		return a.source.PoolEpochs(ctx, pool, limit, offset)
	})
	if walkErr != nil && !errors.Is(walkErr, model.ErrCatalogTruncated) {
		return nil, walkErr
	}
	epochs, err := a.aggregate(ctx, records)
	if err != nil {
		return nil, err
	}
	return epochs, walkErr
}

// GetLatestPoolEpochs returns the latest epoch of every pool, newest first,
// with the same truncation signal as GetPoolEpochs.
func (a *Aggregator) GetLatestPoolEpochs(ctx context.Context) ([]model.Epoch, error) {
	records, walkErr := a.walk(ctx, "latest epochs", func(limit, offset int) ([]gateway.RawEpoch, error) {
		return a.source.LatestEpochs(ctx, limit, offset)
	})
	if walkErr != nil && !errors.Is(walkErr, model.ErrCatalogTruncated) {
		return nil, walkErr
	}
	epochs, err := a.aggregate(ctx, records)
	if err != nil {
		return nil, err
	}
	return epochs, walkErr
}

// walk pages through records sequentially up to the configured cap. A short
// page is a clean end; hitting the cap with a full page still pending reports
// the partial records with ErrCatalogTruncated.
func (a *Aggregator) walk(ctx context.Context, op string, fetch func(limit, offset int) ([]gateway.RawEpoch, error)) ([]gateway.RawEpoch, error) {
	records := make([]gateway.RawEpoch, 0, a.cfg.PageSize)
	for offset := 0; ; offset += a.cfg.PageSize {
		page, err := fetch(a.cfg.PageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("%s offset=%d: %w", op, offset, err)
		}
		records = append(records, page...)

		if len(page) < a.cfg.PageSize {
			return records, nil
		}
		if len(records) >= a.cfg.MaxRecords {
			a.logger.Warn("epoch walk hit configured cap",
				zap.Uint64("chain_id", a.chainID),
				zap.String("op", op),
				zap.Int("max_records", a.cfg.MaxRecords),
			)
			return records[:a.cfg.MaxRecords], model.ErrCatalogTruncated
		}
	}
}

type epochKey struct {
	pool  common.Address
	start int64
}

// aggregate groups records by (pool, epoch start), sums same-token amounts
// within a group, and values the totals with current prices.
func (a *Aggregator) aggregate(ctx context.Context, records []gateway.RawEpoch) ([]model.Epoch, error) {
	groups := make(map[epochKey]*model.Epoch)
	order := make([]epochKey, 0, len(records))

	for _, record := range records {
		key := epochKey{pool: record.Pool, start: record.Start.Unix()}
		group, ok := groups[key]
		if !ok {
			group = &model.Epoch{Pool: record.Pool, Start: record.Start}
			groups[key] = group
			order = append(order, key)
		}
		group.Fees = mergeAmounts(group.Fees, record.Fees, a.chainID)
		group.Incentives = mergeAmounts(group.Incentives, record.Incentives, a.chainID)
	}

	tokens := make([]model.Token, 0, len(records))
	for _, key := range order {
		group := groups[key]
		for _, entry := range group.Fees {
			tokens = append(tokens, entry.Token)
		}
		for _, entry := range group.Incentives {
			tokens = append(tokens, entry.Token)
		}
	}

	priced := map[model.TokenKey]model.PriceResult{}
	if len(tokens) > 0 {
		var err error
		priced, err = a.prices.GetPrices(ctx, tokens)
		if err != nil {
			return nil, fmt.Errorf("price epoch rewards: %w", err)
		}
	}

	epochs := make([]model.Epoch, 0, len(order))
	for _, key := range order {
		group := groups[key]
		group.TotalFees, group.PricedAt = a.total(group.Fees, priced, group.PricedAt)
		group.TotalIncentives, group.PricedAt = a.total(group.Incentives, priced, group.PricedAt)
		epochs = append(epochs, *group)
	}

	sort.SliceStable(epochs, func(i, j int) bool {
		return epochs[i].Start.After(epochs[j].Start)
	})
	return epochs, nil
}

// total values a reward list in the reference currency. Tokens without a
// usable price contribute nothing; the miss is logged, not fatal.
func (a *Aggregator) total(entries []model.TokenAmount, priced map[model.TokenKey]model.PriceResult, pricedAt time.Time) (decimal.Decimal, time.Time) {
	sum := decimal.Zero
	for _, entry := range entries {
		result, ok := priced[entry.Token.Key()]
		if !ok || result.Status != model.PriceOK {
			a.logger.Debug("epoch reward left unvalued",
				zap.String("token", entry.Token.String()),
				zap.String("status", result.Status.String()),
			)
			continue
		}
		sum = sum.Add(decimal.NewFromBigInt(entry.Amount, -int32(entry.Token.Decimals)).Mul(result.Price.Value))
		if result.Price.AsOf.After(pricedAt) {
			pricedAt = result.Price.AsOf
		}
	}
	return sum, pricedAt
}

// mergeAmounts folds raw rewards into the group's running per-token sums,
// preserving first-seen token order for determinism.
func mergeAmounts(into []model.TokenAmount, rewards []gateway.RawTokenAmount, chainID uint64) []model.TokenAmount {
	for _, reward := range rewards {
		token := model.Token{
			ChainID:  chainID,
			Address:  reward.Token.Address,
			Symbol:   reward.Token.Symbol,
			Decimals: reward.Token.Decimals,
		}

		found := false
		for i := range into {
			if into[i].Token.Key() == token.Key() {
				into[i].Amount = new(big.Int).Add(into[i].Amount, reward.Amount)
				found = true
				break
			}
		}
		if !found {
			into = append(into, model.TokenAmount{Token: token, Amount: new(big.Int).Set(reward.Amount)})
		}
	}
	return into
}
