package sugarswap

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"sugarswap/internal/model"
)

// Result delivers one asynchronous call outcome.
type Result[T any] struct {
	Value T
	Err   error
}

// AsyncChain mirrors Chain with channel-returning methods, for callers that
// fan out independent reads and collect them later. Each call runs in its own
// goroutine; the returned channel is buffered, delivers exactly one Result,
// and then closes.
type AsyncChain struct {
	chain *Chain
}

// Async wraps the chain's surface in channel-returning form.
func (c *Chain) Async() *AsyncChain {
	return &AsyncChain{chain: c}
}

func async[T any](fn func() (T, error)) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		defer close(ch)
		value, err := fn()
		ch <- Result[T]{Value: value, Err: err}
	}()
	return ch
}

func (a *AsyncChain) GetPools(ctx context.Context) <-chan Result[[]model.Pool] {
	return async(func() ([]model.Pool, error) { return a.chain.GetPools(ctx) })
}

func (a *AsyncChain) GetPoolsForPair(ctx context.Context, x, y model.Token) <-chan Result[[]model.Pool] {
	return async(func() ([]model.Pool, error) { return a.chain.GetPoolsForPair(ctx, x, y) })
}

func (a *AsyncChain) GetPoolByAddress(ctx context.Context, address common.Address) <-chan Result[*model.Pool] {
	return async(func() (*model.Pool, error) { return a.chain.GetPoolByAddress(ctx, address) })
}

func (a *AsyncChain) GetAllTokens(ctx context.Context) <-chan Result[[]model.Token] {
	return async(func() ([]model.Token, error) { return a.chain.GetAllTokens(ctx) })
}

func (a *AsyncChain) GetPrices(ctx context.Context, tokens []model.Token) <-chan Result[map[model.TokenKey]model.PriceResult] {
	return async(func() (map[model.TokenKey]model.PriceResult, error) { return a.chain.GetPrices(ctx, tokens) })
}

func (a *AsyncChain) GetPoolEpochs(ctx context.Context, pool common.Address) <-chan Result[[]model.Epoch] {
	return async(func() ([]model.Epoch, error) { return a.chain.GetPoolEpochs(ctx, pool) })
}

func (a *AsyncChain) GetLatestPoolEpochs(ctx context.Context) <-chan Result[[]model.Epoch] {
	return async(func() ([]model.Epoch, error) { return a.chain.GetLatestPoolEpochs(ctx) })
}

func (a *AsyncChain) GetQuote(ctx context.Context, from, to model.Token, amountIn *big.Int) <-chan Result[*model.Quote] {
	return async(func() (*model.Quote, error) { return a.chain.GetQuote(ctx, from, to, amountIn) })
}

func (a *AsyncChain) SwapFromQuote(ctx context.Context, q *model.Quote) <-chan Result[model.Receipt] {
	return async(func() (model.Receipt, error) { return a.chain.SwapFromQuote(ctx, q) })
}

func (a *AsyncChain) Swap(ctx context.Context, from, to model.Token, amountIn *big.Int) <-chan Result[model.Receipt] {
	return async(func() (model.Receipt, error) { return a.chain.Swap(ctx, from, to, amountIn) })
}
