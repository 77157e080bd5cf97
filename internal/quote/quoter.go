// Package quote computes and executes single-network swap quotes.
package quote

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sugarswap/internal/model"
)

// Gateway is the router boundary the quoter simulates and submits through.
type Gateway interface {
	SimulateSwap(ctx context.Context, route []model.Token, amountIn *big.Int) (*big.Int, error)
	SubmitSwap(ctx context.Context, route []model.Token, amountIn, minOut *big.Int) (model.Receipt, error)
}

// Config tunes one quoter instance.
type Config struct {
	// Connectors are intermediate hop candidates for one-hop routing.
	Connectors []model.Token
	// Excluded tokens are never used as hops or destinations.
	Excluded []model.Token
	// Slippage is the default tolerance applied to produced quotes.
	Slippage decimal.Decimal
}

// Quoter finds the best route between two tokens and executes it. Routing is
// a bounded search over the direct pair plus one hop through each connector;
// output amounts always come from a fresh router simulation, never from
// cached reserves.
type Quoter struct {
	gw       Gateway
	chainID  uint64
	cfg      Config
	excluded map[model.TokenKey]struct{}
	logger   *zap.Logger
	now      func() time.Time
}

// New builds a quoter for one network.
func New(gw Gateway, chainID uint64, cfg Config, logger *zap.Logger) *Quoter {
	if logger == nil {
		logger = zap.NewNop()
	}
	excluded := make(map[model.TokenKey]struct{}, len(cfg.Excluded))
	for _, token := range cfg.Excluded {
		excluded[token.Key()] = struct{}{}
	}
	return &Quoter{
		gw:       gw,
		chainID:  chainID,
		cfg:      cfg,
		excluded: excluded,
		logger:   logger,
		now:      time.Now,
	}
}

// GetQuote returns the best executable quote for swapping amountIn of from
// into to, or nil when no viable route exists. Candidates are tried in order
// of fewer hops, so an equal-output direct route wins over a connector route.
func (q *Quoter) GetQuote(ctx context.Context, from, to model.Token, amountIn *big.Int) (*model.Quote, error) {
	if from.Key() == to.Key() {
		return nil, nil
	}
	if _, ok := q.excluded[to.Key()]; ok {
		return nil, nil
	}

	var best *model.Quote
	for _, route := range q.candidates(from, to) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := q.gw.SimulateSwap(ctx, route, amountIn)
		if err != nil {
			// A reverted simulation means this path has no pool behind it.
			// Anything else is a transport fault; a no-route answer built on
			// it would be a lie.
			if !errors.Is(err, model.ErrSwapReverted) {
				return nil, err
			}
			q.logger.Debug("route candidate not viable",
				zap.Uint64("chain_id", q.chainID),
				zap.Int("hops", len(route)-1),
				zap.Error(err),
			)
			continue
		}

		if best == nil || out.Cmp(best.AmountOut) > 0 {
			best = &model.Quote{
				FromToken: from,
				ToToken:   to,
				AmountIn:  new(big.Int).Set(amountIn),
				AmountOut: out,
				Route:     route,
				Slippage:  q.cfg.Slippage,
				CreatedAt: q.now(),
			}
		}
	}
	return best, nil
}

// SwapFromQuote re-verifies a quote against live reserves and submits it.
// If the live output has moved below the quote's tolerance the swap aborts
// with a SlippageError before anything is sent.
func (q *Quoter) SwapFromQuote(ctx context.Context, quote *model.Quote) (model.Receipt, error) {
	if quote == nil {
		return model.Receipt{}, fmt.Errorf("nil quote")
	}

	live, err := q.gw.SimulateSwap(ctx, quote.Route, quote.AmountIn)
	if err != nil {
		return model.Receipt{}, fmt.Errorf("re-verify quote: %w", err)
	}

	minOut := quote.MinAmountOut()
	if live.Cmp(minOut) < 0 {
		return model.Receipt{}, &model.SlippageError{
			Quoted: quote.AmountOut,
			Live:   live,
			MinOut: minOut,
		}
	}

	return q.gw.SubmitSwap(ctx, quote.Route, quote.AmountIn, minOut)
}

// Swap quotes and executes in one step, failing with ErrNoRoute when the
// pair cannot be routed.
func (q *Quoter) Swap(ctx context.Context, from, to model.Token, amountIn *big.Int) (model.Receipt, error) {
	quote, err := q.GetQuote(ctx, from, to, amountIn)
	if err != nil {
		return model.Receipt{}, err
	}
	if quote == nil {
		return model.Receipt{}, fmt.Errorf("%s -> %s: %w", from, to, model.ErrNoRoute)
	}
	return q.SwapFromQuote(ctx, quote)
}

// candidates enumerates the direct pair first, then one-hop paths through
// each eligible connector.
func (q *Quoter) candidates(from, to model.Token) [][]model.Token {
	routes := make([][]model.Token, 0, 1+len(q.cfg.Connectors))
	routes = append(routes, []model.Token{from, to})

	for _, connector := range q.cfg.Connectors {
		if connector.Key() == from.Key() || connector.Key() == to.Key() {
			continue
		}
		if _, ok := q.excluded[connector.Key()]; ok {
			continue
		}
		routes = append(routes, []model.Token{from, connector, to})
	}
	return routes
}
