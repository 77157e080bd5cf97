package superswap

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
	"sugarswap/internal/quote"
)

var (
	velo   = model.Token{ChainID: 10, Address: common.HexToAddress("0x01"), Symbol: "VELO", Decimals: 18}
	oUSDTA = model.Token{ChainID: 10, Address: common.HexToAddress("0x02"), Symbol: "oUSDT", Decimals: 6}
	oUSDTB = model.Token{ChainID: 1135, Address: common.HexToAddress("0x02"), Symbol: "oUSDT", Decimals: 6}
	lsk    = model.Token{ChainID: 1135, Address: common.HexToAddress("0x03"), Symbol: "LSK", Decimals: 18}
	weth   = model.Token{ChainID: 10, Address: common.HexToAddress("0x04"), Symbol: "WETH", Decimals: 18}
)

type fakeRouter struct {
	outs      map[string]*big.Int
	simCalls  int
	submitErr error
	submitted int
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
	out, ok := f.outs[routeKey(route)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrSwapReverted, routeKey(route))
	}
	return new(big.Int).Set(out), nil
}

func (f *fakeRouter) SubmitSwap(_ context.Context, route []model.Token, amountIn, minOut *big.Int) (model.Receipt, error) {
	if f.submitErr != nil {
		return model.Receipt{}, f.submitErr
	}
	f.submitted++
	return model.Receipt{ChainID: route[0].ChainID, TxHash: common.HexToHash("0x5afe")}, nil
}

type fakeBridge struct {
	err   error
	calls int
}

func (f *fakeBridge) InitiateBridge(_ context.Context, token model.Token, amount *big.Int, destChain uint64) (model.Receipt, error) {
	f.calls++
	if f.err != nil {
		return model.Receipt{}, f.err
	}
	return model.Receipt{ChainID: token.ChainID, TxHash: common.HexToHash("0xb41d")}, nil
}

type fakeRelay struct {
	err   error
	calls int
}

func (f *fakeRelay) WaitDelivered(_ context.Context, tx common.Hash, destChain uint64) error {
	f.calls++
	return f.err
}

type fixture struct {
	sourceRouter *fakeRouter
	destRouter   *fakeRouter
	bridge       *fakeBridge
	swap         *Superswap
}

func newFixture(relay Relay, policy RequotePolicy) *fixture {
	sourceRouter := &fakeRouter{outs: map[string]*big.Int{
		"VELO>oUSDT": big.NewInt(5_000_000),
		"VELO>WETH":  big.NewInt(700),
	}}
	destRouter := &fakeRouter{outs: map[string]*big.Int{
		"oUSDT>LSK": big.NewInt(9e18),
	}}
	bridge := &fakeBridge{}

	slip := decimal.RequireFromString("0.005")
	source := Leg{
		ChainID:     10,
		Quoter:      quote.New(sourceRouter, 10, quote.Config{Slippage: slip}, nil),
		Bridge:      bridge,
		BridgeToken: oUSDTA,
	}
	dest := Leg{
		ChainID:     1135,
		Quoter:      quote.New(destRouter, 1135, quote.Config{Slippage: slip}, nil),
		Bridge:      &fakeBridge{},
		BridgeToken: oUSDTB,
	}

	return &fixture{
		sourceRouter: sourceRouter,
		destRouter:   destRouter,
		bridge:       bridge,
		swap:         New(source, dest, relay, policy, nil),
	}
}

func TestGetSuperQuoteCrossNetwork(t *testing.T) {
	f := newFixture(nil, RequoteManual)

	sq, err := f.swap.GetSuperQuote(context.Background(), velo, lsk, big.NewInt(1e18))
	require.NoError(t, err)
	require.NotNil(t, sq)

	require.NotNil(t, sq.Source)
	require.Zero(t, sq.Source.AmountOut.Cmp(big.NewInt(5_000_000)))

	require.NotNil(t, sq.Bridge)
	require.Equal(t, uint64(10), sq.Bridge.SourceChain)
	require.Equal(t, uint64(1135), sq.Bridge.DestChain)
	require.Zero(t, sq.Bridge.Amount.Cmp(big.NewInt(5_000_000)), "bridge amount is the source leg's output")

	require.NotNil(t, sq.Dest)
	require.Zero(t, sq.Dest.AmountIn.Cmp(big.NewInt(5_000_000)))
}

func TestGetSuperQuoteSourceLegUnroutable(t *testing.T) {
	f := newFixture(nil, RequoteManual)
	delete(f.sourceRouter.outs, "VELO>oUSDT")

	sq, err := f.swap.GetSuperQuote(context.Background(), velo, lsk, big.NewInt(1e18))
	require.NoError(t, err)
	require.Nil(t, sq)
	require.Zero(t, f.destRouter.simCalls, "dest leg must never be requested")
}

func TestGetSuperQuoteSameNetwork(t *testing.T) {
	f := newFixture(nil, RequoteManual)

	sq, err := f.swap.GetSuperQuote(context.Background(), velo, weth, big.NewInt(1e18))
	require.NoError(t, err)
	require.NotNil(t, sq)
	require.NotNil(t, sq.Source)
	require.Nil(t, sq.Bridge, "same-network quote has no bridge leg")
	require.Nil(t, sq.Dest)
}

func TestSwapFromQuoteSameNetworkOnDestChain(t *testing.T) {
	f := newFixture(nil, RequoteManual)

	sq, err := f.swap.GetSuperQuote(context.Background(), oUSDTB, lsk, big.NewInt(5_000_000))
	require.NoError(t, err)
	require.NotNil(t, sq)
	require.Nil(t, sq.Bridge)

	sourceSims := f.sourceRouter.simCalls
	res, err := f.swap.SwapFromQuote(context.Background(), sq)
	require.NoError(t, err)
	require.Equal(t, model.StepComplete, res.Step)
	require.Equal(t, 1, f.destRouter.submitted, "a dest-chain pair executes on the dest router")
	require.Zero(t, f.sourceRouter.submitted)
	require.Equal(t, sourceSims, f.sourceRouter.simCalls, "the source router is never consulted")
}

func TestGetSuperQuoteFromBridgeToken(t *testing.T) {
	f := newFixture(nil, RequoteManual)

	sq, err := f.swap.GetSuperQuote(context.Background(), oUSDTA, lsk, big.NewInt(5_000_000))
	require.NoError(t, err)
	require.NotNil(t, sq)
	require.Nil(t, sq.Source, "no source swap when the input already is the bridge token")
	require.NotNil(t, sq.Bridge)
	require.Zero(t, sq.Bridge.Amount.Cmp(big.NewInt(5_000_000)))
	require.NotNil(t, sq.Dest)
}

func TestSwapFromQuoteCompletes(t *testing.T) {
	relay := &fakeRelay{}
	f := newFixture(relay, RequoteManual)

	sq, err := f.swap.GetSuperQuote(context.Background(), velo, lsk, big.NewInt(1e18))
	require.NoError(t, err)

	res, err := f.swap.SwapFromQuote(context.Background(), sq)
	require.NoError(t, err)
	require.Equal(t, model.StepComplete, res.Step)
	require.NotNil(t, res.SourceReceipt)
	require.NotNil(t, res.BridgeReceipt)
	require.NotNil(t, res.DestReceipt)
	require.Equal(t, 1, relay.calls)
}

func TestSwapFromQuoteBridgeFailureIsPartial(t *testing.T) {
	f := newFixture(nil, RequoteManual)
	f.bridge.err = errors.New("bridge paused")

	sq, err := f.swap.GetSuperQuote(context.Background(), velo, lsk, big.NewInt(1e18))
	require.NoError(t, err)

	res, err := f.swap.SwapFromQuote(context.Background(), sq)
	var partial *model.PartialSwapError
	require.ErrorAs(t, err, &partial)
	require.Equal(t, model.StepSourceSubmitted, partial.CompletedStep)
	require.NotNil(t, partial.SourceReceipt, "the completed source receipt must be carried for remediation")
	require.Nil(t, partial.BridgeReceipt)
	require.Equal(t, model.StepSourceSubmitted, res.Step)
	require.Zero(t, f.destRouter.submitted)
}

func TestSwapFromQuoteDestSlippageIsPartial(t *testing.T) {
	f := newFixture(nil, RequoteManual)

	sq, err := f.swap.GetSuperQuote(context.Background(), velo, lsk, big.NewInt(1e18))
	require.NoError(t, err)

	// Dest reserves move hard between quoting and execution.
	f.destRouter.outs["oUSDT>LSK"] = big.NewInt(1e18)

	_, err = f.swap.SwapFromQuote(context.Background(), sq)
	var partial *model.PartialSwapError
	require.ErrorAs(t, err, &partial)
	require.Equal(t, model.StepBridgeInitiated, partial.CompletedStep)
	require.NotNil(t, partial.SourceReceipt)
	require.NotNil(t, partial.BridgeReceipt)

	var slip *model.SlippageError
	require.ErrorAs(t, err, &slip)
}

func TestSwapFromQuoteRequoteAuto(t *testing.T) {
	f := newFixture(nil, RequoteAuto)

	sq, err := f.swap.GetSuperQuote(context.Background(), velo, lsk, big.NewInt(1e18))
	require.NoError(t, err)

	// The same reserve move passes under auto re-quoting.
	f.destRouter.outs["oUSDT>LSK"] = big.NewInt(1e18)

	res, err := f.swap.SwapFromQuote(context.Background(), sq)
	require.NoError(t, err)
	require.Equal(t, model.StepComplete, res.Step)
	require.Equal(t, 1, f.destRouter.submitted)
}

func TestSwapFromQuoteRelayFailureIsPartial(t *testing.T) {
	relay := &fakeRelay{err: errors.New("relay timeout")}
	f := newFixture(relay, RequoteManual)

	sq, err := f.swap.GetSuperQuote(context.Background(), velo, lsk, big.NewInt(1e18))
	require.NoError(t, err)

	_, err = f.swap.SwapFromQuote(context.Background(), sq)
	var partial *model.PartialSwapError
	require.ErrorAs(t, err, &partial)
	require.Equal(t, model.StepBridgeInitiated, partial.CompletedStep)
	require.Zero(t, f.destRouter.submitted)
}

func TestSwapNoRoute(t *testing.T) {
	f := newFixture(nil, RequoteManual)
	delete(f.destRouter.outs, "oUSDT>LSK")

	_, err := f.swap.Swap(context.Background(), velo, lsk, big.NewInt(1e18))
	require.ErrorIs(t, err, model.ErrNoRoute)
}
