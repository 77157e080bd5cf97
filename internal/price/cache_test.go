package price

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"sugarswap/internal/model"
)

type fakeSource struct {
	mu     sync.Mutex
	calls  int32
	rates  map[common.Address]*big.Int
	failOn map[common.Address]bool
	block  chan struct{}
}

func (f *fakeSource) BatchPrices(ctx context.Context, tokens []model.Token) (map[common.Address]*big.Int, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[common.Address]*big.Int, len(tokens))
	for _, token := range tokens {
		if f.failOn[token.Address] {
			return nil, errors.New("oracle revert")
		}
		if rate, ok := f.rates[token.Address]; ok {
			out[token.Address] = rate
		}
	}
	return out, nil
}

func (f *fakeSource) callCount() int { return int(atomic.LoadInt32(&f.calls)) }

func token(chainID uint64, addr byte, symbol string) model.Token {
	return model.Token{
		ChainID:  chainID,
		Address:  common.BytesToAddress([]byte{addr}),
		Symbol:   symbol,
		Decimals: 18,
	}
}

func rate(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), big.NewInt(1e18))
}

func TestGetPricesReturnsOneEntryPerUniqueToken(t *testing.T) {
	usdc := token(10, 1, "USDC")
	weth := token(10, 2, "WETH")
	missing := token(10, 3, "GHOST")

	source := &fakeSource{rates: map[common.Address]*big.Int{
		usdc.Address: rate(1),
		weth.Address: rate(2000),
	}}
	cache := New(source, "op", Config{}, nil)

	results, err := cache.GetPrices(context.Background(), []model.Token{usdc, weth, usdc, missing})
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.Equal(t, model.PriceOK, results[usdc.Key()].Status)
	require.True(t, results[weth.Key()].Price.Value.Equal(decimal.NewFromInt(2000)))
	require.Equal(t, model.PriceUnavailable, results[missing.Key()].Status)
}

func TestGetPricesServesFromCacheWithinTTL(t *testing.T) {
	usdc := token(10, 1, "USDC")
	source := &fakeSource{rates: map[common.Address]*big.Int{usdc.Address: rate(1)}}
	cache := New(source, "op", Config{TTL: time.Minute}, nil)

	_, err := cache.GetPrices(context.Background(), []model.Token{usdc})
	require.NoError(t, err)
	require.Equal(t, 1, source.callCount())

	results, err := cache.GetPrices(context.Background(), []model.Token{usdc})
	require.NoError(t, err)
	require.Equal(t, 1, source.callCount(), "second lookup within TTL must not call the gateway")
	require.Equal(t, model.PriceOK, results[usdc.Key()].Status)
}

func TestGetPricesRefreshesAfterTTL(t *testing.T) {
	usdc := token(10, 1, "USDC")
	source := &fakeSource{rates: map[common.Address]*big.Int{usdc.Address: rate(1)}}
	cache := New(source, "op", Config{TTL: time.Minute}, nil)

	clock := time.Now()
	cache.now = func() time.Time { return clock }

	_, err := cache.GetPrices(context.Background(), []model.Token{usdc})
	require.NoError(t, err)

	clock = clock.Add(2 * time.Minute)
	_, err = cache.GetPrices(context.Background(), []model.Token{usdc})
	require.NoError(t, err)
	require.Equal(t, 2, source.callCount())
}

func TestGetPricesSingleFlight(t *testing.T) {
	usdc := token(10, 1, "USDC")
	source := &fakeSource{
		rates: map[common.Address]*big.Int{usdc.Address: rate(1)},
		block: make(chan struct{}),
	}
	cache := New(source, "op", Config{TTL: time.Minute}, nil)

	const callers = 10
	statuses := make(chan model.PriceStatus, callers)
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := cache.GetPrices(context.Background(), []model.Token{usdc})
			errs <- err
			statuses <- results[usdc.Key()].Status
		}()
	}

	// Let the callers pile up on the in-flight refresh, then release it.
	time.Sleep(50 * time.Millisecond)
	close(source.block)
	wg.Wait()
	close(statuses)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	for status := range statuses {
		require.Equal(t, model.PriceOK, status)
	}

	require.Equal(t, 1, source.callCount(), "concurrent callers must share one refresh")
}

func TestGetPricesJoinersSeeAnomalousStatus(t *testing.T) {
	spiked := token(10, 1, "SPIKE")
	source := &fakeSource{
		rates: map[common.Address]*big.Int{spiked.Address: rate(5_000_000)},
		block: make(chan struct{}),
	}
	cache := New(source, "op", Config{TTL: time.Minute, Threshold: decimal.NewFromInt(1_000_000)}, nil)

	const callers = 10
	statuses := make(chan model.PriceStatus, callers)
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := cache.GetPrices(context.Background(), []model.Token{spiked})
			errs <- err
			statuses <- results[spiked.Key()].Status
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(source.block)
	wg.Wait()
	close(statuses)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	for status := range statuses {
		require.Equal(t, model.PriceAnomalous, status, "joined callers must see the owner's classification")
	}

	require.Equal(t, 1, source.callCount())
}

func TestGetPricesPartialBatchFailure(t *testing.T) {
	usdc := token(10, 1, "USDC")
	bad := token(10, 2, "BAD")

	source := &fakeSource{
		rates:  map[common.Address]*big.Int{usdc.Address: rate(1)},
		failOn: map[common.Address]bool{bad.Address: true},
	}
	cache := New(source, "op", Config{BatchSize: 1}, nil)

	results, err := cache.GetPrices(context.Background(), []model.Token{usdc, bad})
	require.NoError(t, err)
	require.Equal(t, model.PriceOK, results[usdc.Key()].Status)
	require.Equal(t, model.PriceUnavailable, results[bad.Key()].Status)
}

func TestGetPricesAnomalousExcluded(t *testing.T) {
	spiked := token(10, 1, "SPIKE")
	source := &fakeSource{rates: map[common.Address]*big.Int{
		spiked.Address: rate(5_000_000),
	}}
	cache := New(source, "op", Config{Threshold: decimal.NewFromInt(1_000_000)}, nil)

	results, err := cache.GetPrices(context.Background(), []model.Token{spiked})
	require.NoError(t, err)
	require.Equal(t, model.PriceAnomalous, results[spiked.Key()].Status)
}

func TestGetPricesBatchesLargeSets(t *testing.T) {
	rates := make(map[common.Address]*big.Int)
	tokens := make([]model.Token, 0, 100)
	for i := 0; i < 100; i++ {
		tok := token(10, byte(i+1), "T")
		tok.Address = common.BytesToAddress([]byte{byte(i / 256), byte(i + 1)})
		tokens = append(tokens, tok)
		rates[tok.Address] = rate(1)
	}

	source := &fakeSource{rates: rates}
	cache := New(source, "op", Config{BatchSize: 40, Workers: 5}, nil)

	results, err := cache.GetPrices(context.Background(), tokens)
	require.NoError(t, err)
	require.Len(t, results, 100)
	require.Equal(t, 3, source.callCount(), "100 tokens at batch size 40 is 3 calls")
}
