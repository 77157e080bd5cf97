package quote

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"sugarswap/internal/model"
)

var (
	velo = model.Token{ChainID: 10, Address: common.HexToAddress("0x01"), Symbol: "VELO", Decimals: 18}
	usdc = model.Token{ChainID: 10, Address: common.HexToAddress("0x02"), Symbol: "USDC", Decimals: 6}
	weth = model.Token{ChainID: 10, Address: common.HexToAddress("0x03"), Symbol: "WETH", Decimals: 18}
	spam = model.Token{ChainID: 10, Address: common.HexToAddress("0x04"), Symbol: "SPAM", Decimals: 18}
)

// fakeRouter simulates routes from a fixed table keyed by hop symbols.
type fakeRouter struct {
	outs      map[string]*big.Int
	submitted [][]model.Token
	simCalls  int
	simErr    error
	submitErr error
}

func routeKey(route []model.Token) string {
	key := ""
	for i, token := range route {
		if i > 0 {
			key += ">"
		}
		key += token.Symbol
	}
	return key
}

func (f *fakeRouter) SimulateSwap(_ context.Context, route []model.Token, amountIn *big.Int) (*big.Int, error) {
	f.simCalls++
	if f.simErr != nil {
		return nil, f.simErr
	}
	out, ok := f.outs[routeKey(route)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrSwapReverted, routeKey(route))
	}
	if amountIn.Sign() == 0 {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(out), nil
}

func (f *fakeRouter) SubmitSwap(_ context.Context, route []model.Token, amountIn, minOut *big.Int) (model.Receipt, error) {
	if f.submitErr != nil {
		return model.Receipt{}, f.submitErr
	}
	f.submitted = append(f.submitted, route)
	return model.Receipt{ChainID: 10, TxHash: common.HexToHash("0xfeed")}, nil
}

func newQuoter(router *fakeRouter) *Quoter {
	return New(router, 10, Config{
		Connectors: []model.Token{usdc, weth},
		Excluded:   []model.Token{spam},
		Slippage:   decimal.RequireFromString("0.01"),
	}, nil)
}

func TestGetQuotePicksBestRoute(t *testing.T) {
	router := &fakeRouter{outs: map[string]*big.Int{
		"VELO>WETH":      big.NewInt(900),
		"VELO>USDC>WETH": big.NewInt(950),
	}}
	q := newQuoter(router)

	quote, err := q.GetQuote(context.Background(), velo, weth, big.NewInt(1000))
	require.NoError(t, err)
	require.NotNil(t, quote)
	require.Zero(t, quote.AmountOut.Cmp(big.NewInt(950)))
	require.Equal(t, "VELO>USDC>WETH", routeKey(quote.Route))
}

func TestGetQuoteTiePrefersFewerHops(t *testing.T) {
	router := &fakeRouter{outs: map[string]*big.Int{
		"VELO>WETH":      big.NewInt(900),
		"VELO>USDC>WETH": big.NewInt(900),
	}}
	q := newQuoter(router)

	quote, err := q.GetQuote(context.Background(), velo, weth, big.NewInt(1000))
	require.NoError(t, err)
	require.Equal(t, "VELO>WETH", routeKey(quote.Route))
}

func TestGetQuoteNoRouteReturnsNil(t *testing.T) {
	router := &fakeRouter{outs: map[string]*big.Int{}}
	q := newQuoter(router)

	quote, err := q.GetQuote(context.Background(), velo, weth, big.NewInt(1000))
	require.NoError(t, err)
	require.Nil(t, quote)
}

func TestGetQuoteTransportFailurePropagates(t *testing.T) {
	wantErr := errors.New("connection refused")
	router := &fakeRouter{simErr: wantErr}
	q := newQuoter(router)

	quote, err := q.GetQuote(context.Background(), velo, weth, big.NewInt(1000))
	require.ErrorIs(t, err, wantErr)
	require.Nil(t, quote)

	_, err = q.Swap(context.Background(), velo, weth, big.NewInt(1000))
	require.ErrorIs(t, err, wantErr, "an RPC outage is not a missing route")
	require.NotErrorIs(t, err, model.ErrNoRoute)
}

func TestGetQuoteZeroAmountIsNotAFailure(t *testing.T) {
	router := &fakeRouter{outs: map[string]*big.Int{
		"VELO>WETH": big.NewInt(900),
	}}
	q := newQuoter(router)

	quote, err := q.GetQuote(context.Background(), velo, weth, big.NewInt(0))
	require.NoError(t, err)
	require.NotNil(t, quote)
	require.Zero(t, quote.AmountOut.Sign())
}

func TestGetQuoteExcludedDestination(t *testing.T) {
	router := &fakeRouter{outs: map[string]*big.Int{
		"VELO>SPAM": big.NewInt(900),
	}}
	q := newQuoter(router)

	quote, err := q.GetQuote(context.Background(), velo, spam, big.NewInt(1000))
	require.NoError(t, err)
	require.Nil(t, quote)
	require.Zero(t, router.simCalls, "excluded destinations are never quoted")
}

func TestGetQuoteSkipsExcludedAndEndpointConnectors(t *testing.T) {
	router := &fakeRouter{outs: map[string]*big.Int{}}
	q := newQuoter(router)

	_, err := q.GetQuote(context.Background(), velo, usdc, big.NewInt(1000))
	require.NoError(t, err)
	// Direct plus WETH hop only: USDC is an endpoint, SPAM is excluded.
	require.Equal(t, 2, router.simCalls)
}

func TestSwapFromQuoteWithinTolerance(t *testing.T) {
	router := &fakeRouter{outs: map[string]*big.Int{
		"VELO>WETH": big.NewInt(995),
	}}
	q := newQuoter(router)

	quote := &model.Quote{
		FromToken: velo,
		ToToken:   weth,
		AmountIn:  big.NewInt(1000),
		AmountOut: big.NewInt(1000),
		Route:     []model.Token{velo, weth},
		Slippage:  decimal.RequireFromString("0.01"),
	}

	receipt, err := q.SwapFromQuote(context.Background(), quote)
	require.NoError(t, err)
	require.Equal(t, uint64(10), receipt.ChainID)
	require.Len(t, router.submitted, 1)
}

func TestSwapFromQuoteSlippageExceeded(t *testing.T) {
	router := &fakeRouter{outs: map[string]*big.Int{
		"VELO>WETH": big.NewInt(900),
	}}
	q := newQuoter(router)

	quote := &model.Quote{
		FromToken: velo,
		ToToken:   weth,
		AmountIn:  big.NewInt(1000),
		AmountOut: big.NewInt(1000),
		Route:     []model.Token{velo, weth},
		Slippage:  decimal.RequireFromString("0.01"),
	}

	_, err := q.SwapFromQuote(context.Background(), quote)
	var slip *model.SlippageError
	require.ErrorAs(t, err, &slip)
	require.Zero(t, slip.Live.Cmp(big.NewInt(900)))
	require.Empty(t, router.submitted, "slippage aborts before submission")
}

func TestSwapNoRoute(t *testing.T) {
	router := &fakeRouter{outs: map[string]*big.Int{}}
	q := newQuoter(router)

	_, err := q.Swap(context.Background(), velo, weth, big.NewInt(1000))
	require.ErrorIs(t, err, model.ErrNoRoute)
}
