// Package price memoizes oracle price lookups per network with a TTL.
package price

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sugarswap/internal/metrics"
	"sugarswap/internal/model"
)

// rateScale is the oracle's fixed-point scale.
const rateScale = 18

// Source is the oracle boundary the cache refills from.
type Source interface {
	BatchPrices(ctx context.Context, tokens []model.Token) (map[common.Address]*big.Int, error)
}

// Config tunes one cache instance.
type Config struct {
	// TTL bounds how long a fetched price is served without a refresh.
	TTL time.Duration
	// BatchSize caps tokens per oracle call.
	BatchSize int
	// Workers caps concurrent oracle calls.
	Workers int
	// Threshold marks prices above this reference-currency value anomalous.
	Threshold decimal.Decimal
}

// Cache is the only shared mutable state within one network endpoint. Reads
// are concurrent; refreshes are single-flight per token key, so concurrent
// callers asking for the same stale token share one oracle call.
type Cache struct {
	source    Source
	chainName string
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	entries  map[model.TokenKey]model.Price
	statuses map[model.TokenKey]model.PriceStatus
	inflight map[model.TokenKey]chan struct{}
}

// New builds a cache over the given source.
func New(source Source, chainName string, cfg Config, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 40
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Second
	}
	return &Cache{
		source:    source,
		chainName: chainName,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		entries:   make(map[model.TokenKey]model.Price),
		statuses:  make(map[model.TokenKey]model.PriceStatus),
		inflight:  make(map[model.TokenKey]chan struct{}),
	}
}

// GetPrices resolves prices for a set of tokens. The result holds exactly one
// entry per unique token key: a fresh price, or an explicit unavailable or
// anomalous status. A failed batch never aborts the others.
func (c *Cache) GetPrices(ctx context.Context, tokens []model.Token) (map[model.TokenKey]model.PriceResult, error) {
	unique := dedupe(tokens)
	results := make(map[model.TokenKey]model.PriceResult, len(unique))

	var owned []model.Token
	joined := make(map[model.TokenKey]chan struct{})

	now := c.now()
	hits, misses := 0, 0

	c.mu.Lock()
	for _, token := range unique {
		key := token.Key()
		if entry, ok := c.entries[key]; ok && now.Sub(entry.AsOf) < c.cfg.TTL {
			results[key] = model.PriceResult{Price: entry, Status: model.PriceOK}
			hits++
			continue
		}
		misses++
		if ch, ok := c.inflight[key]; ok {
			joined[key] = ch
		} else {
			ch := make(chan struct{})
			c.inflight[key] = ch
			owned = append(owned, token)
		}
	}
	c.mu.Unlock()

	metrics.PriceCacheHits.WithLabelValues(c.chainName).Add(float64(hits))
	metrics.PriceCacheMisses.WithLabelValues(c.chainName).Add(float64(misses))

	if len(owned) > 0 {
		fetched := c.refresh(ctx, owned)

		c.mu.Lock()
		for _, token := range owned {
			key := token.Key()
			res := fetched[key]
			if res.Status == model.PriceOK {
				c.entries[key] = res.Price
			}
			// Joiners read the refresh outcome after the channel closes, so
			// non-OK statuses are published too, not just usable prices.
			c.statuses[key] = res.Status
			results[key] = res
			if ch, ok := c.inflight[key]; ok {
				close(ch)
				delete(c.inflight, key)
			}
		}
		c.mu.Unlock()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	for key, ch := range joined {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ch:
		}

		c.mu.Lock()
		entry, ok := c.entries[key]
		status, seen := c.statuses[key]
		c.mu.Unlock()
		switch {
		case ok && c.now().Sub(entry.AsOf) < c.cfg.TTL:
			results[key] = model.PriceResult{Price: entry, Status: model.PriceOK}
		case seen && status != model.PriceOK:
			results[key] = model.PriceResult{Status: status}
		default:
			results[key] = model.PriceResult{Status: model.PriceUnavailable}
		}
	}

	return results, nil
}

// refresh fetches prices for tokens this caller owns, in batches fanned out
// over a bounded worker pool. Failures degrade to per-token statuses.
func (c *Cache) refresh(ctx context.Context, tokens []model.Token) map[model.TokenKey]model.PriceResult {
	out := make(map[model.TokenKey]model.PriceResult, len(tokens))
	var outMu sync.Mutex

	sem := make(chan struct{}, c.cfg.Workers)
	var wg sync.WaitGroup

	for start := 0; start < len(tokens); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[start:end]

		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				c.markUnavailable(&outMu, out, batch)
				return
			}

			rates, err := c.source.BatchPrices(ctx, batch)
			if err != nil {
				c.logger.Warn("price batch failed",
					zap.String("chain", c.chainName),
					zap.Int("tokens", len(batch)),
					zap.Error(err),
				)
				c.markUnavailable(&outMu, out, batch)
				return
			}

			asOf := c.now()
			outMu.Lock()
			defer outMu.Unlock()
			for _, token := range batch {
				out[token.Key()] = c.classify(token, rates[token.Address], asOf)
			}
		}()
	}

	wg.Wait()
	return out
}

func (c *Cache) classify(token model.Token, rate *big.Int, asOf time.Time) model.PriceResult {
	if rate == nil {
		return model.PriceResult{Status: model.PriceUnavailable}
	}

	value := decimal.NewFromBigInt(rate, -rateScale)
	if value.Sign() < 0 || (!c.cfg.Threshold.IsZero() && value.GreaterThan(c.cfg.Threshold)) {
		c.logger.Debug("anomalous price excluded",
			zap.String("chain", c.chainName),
			zap.String("token", token.String()),
			zap.String("value", value.String()),
		)
		return model.PriceResult{Status: model.PriceAnomalous}
	}

	return model.PriceResult{
		Price:  model.Price{Token: token, Value: value, AsOf: asOf},
		Status: model.PriceOK,
	}
}

func (c *Cache) markUnavailable(mu *sync.Mutex, out map[model.TokenKey]model.PriceResult, tokens []model.Token) {
	mu.Lock()
	defer mu.Unlock()
	for _, token := range tokens {
		out[token.Key()] = model.PriceResult{Status: model.PriceUnavailable}
	}
}

func dedupe(tokens []model.Token) []model.Token {
	seen := make(map[model.TokenKey]struct{}, len(tokens))
	out := make([]model.Token, 0, len(tokens))
	for _, token := range tokens {
		if _, ok := seen[token.Key()]; ok {
			continue
		}
		seen[token.Key()] = struct{}{}
		out = append(out, token)
	}
	return out
}
