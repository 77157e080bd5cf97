package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"sugarswap/internal/chain"
	"sugarswap/internal/metrics"
	"sugarswap/internal/model"
)

const submitDeadline = 10 * time.Minute

// Contracts holds the deployed contract addresses for one network.
type Contracts struct {
	PoolRegistry common.Address
	PriceOracle  common.Address
	Router       common.Address
	Bridge       common.Address
}

// ContractCaller dispatches read-only contract calls. chain.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

// ContractGateway implements Gateway over a ContractCaller.
type ContractGateway struct {
	caller    ContractCaller
	chainID   uint64
	chainName string
	contracts Contracts
	sender    TxSender

	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// NewContractGateway builds a gateway for one network. sender may be nil for
// a read-only gateway; mutating calls then fail.
func NewContractGateway(
	caller ContractCaller,
	chainID uint64,
	chainName string,
	contracts Contracts,
	sender TxSender,
	maxRetries int,
	backoff time.Duration,
	logger *zap.Logger,
) (*ContractGateway, error) {
	if err := loadABIs(); err != nil {
		return nil, fmt.Errorf("parse abis: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContractGateway{
		caller:     caller,
		chainID:    chainID,
		chainName:  chainName,
		contracts:  contracts,
		sender:     sender,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
	}, nil
}

// ListPools returns one registry page.
func (g *ContractGateway) ListPools(ctx context.Context, limit, offset int) ([]RawPool, error) {
	values, err := g.call(ctx, "list_pools", g.contracts.PoolRegistry, poolRegistryABI, "all",
		big.NewInt(int64(limit)), big.NewInt(int64(offset)))
	if err != nil {
		return nil, err
	}

	rows := *abi.ConvertType(values[0], new([]registryPool)).(*[]registryPool)
	pools := make([]RawPool, 0, len(rows))
	for _, row := range rows {
		pools = append(pools, RawPool{
			Address: row.Lp,
			Symbol:  row.Symbol,
			Token0:  RawToken{Address: row.Token0, Symbol: row.Token0Symbol, Decimals: row.Token0Decimals},
			Token1:  RawToken{Address: row.Token1, Symbol: row.Token1Symbol, Decimals: row.Token1Decimals},

			Reserve0: row.Reserve0,
			Reserve1: row.Reserve1,
			Volume0:  row.Token0Volume,
			Volume1:  row.Token1Volume,
			Fees0:    row.Token0Fees,
			Fees1:    row.Token1Fees,
		})
	}
	return pools, nil
}

// BatchPrices returns oracle rates for a batch of tokens.
func (g *ContractGateway) BatchPrices(ctx context.Context, tokens []model.Token) (map[common.Address]*big.Int, error) {
	addresses := make([]common.Address, len(tokens))
	for i, token := range tokens {
		addresses[i] = token.Address
	}

	values, err := g.call(ctx, "batch_prices", g.contracts.PriceOracle, priceOracleABI, "getManyRates", addresses)
	if err != nil {
		return nil, err
	}

	rates := *abi.ConvertType(values[0], new([]*big.Int)).(*[]*big.Int)
	if len(rates) != len(tokens) {
		return nil, &model.GatewayError{
			Op:      "batch_prices",
			ChainID: g.chainID,
			Err:     fmt.Errorf("oracle returned %d rates for %d tokens", len(rates), len(tokens)),
		}
	}

	out := make(map[common.Address]*big.Int, len(tokens))
	for i, token := range tokens {
		out[token.Address] = rates[i]
	}
	return out, nil
}

// PoolEpochs returns raw epoch records for one pool.
func (g *ContractGateway) PoolEpochs(ctx context.Context, pool common.Address, limit, offset int) ([]RawEpoch, error) {
	values, err := g.call(ctx, "pool_epochs", g.contracts.PoolRegistry, poolRegistryABI, "epochsByAddress",
		big.NewInt(int64(limit)), big.NewInt(int64(offset)), pool)
	if err != nil {
		return nil, err
	}
	return convertEpochs(values[0]), nil
}

// LatestEpochs returns one page of per-pool latest epoch records.
func (g *ContractGateway) LatestEpochs(ctx context.Context, limit, offset int) ([]RawEpoch, error) {
	values, err := g.call(ctx, "latest_epochs", g.contracts.PoolRegistry, poolRegistryABI, "epochsLatest",
		big.NewInt(int64(limit)), big.NewInt(int64(offset)))
	if err != nil {
		return nil, err
	}
	return convertEpochs(values[0]), nil
}

// TokenMeta reads ERC20 symbol and decimals for a token contract.
func (g *ContractGateway) TokenMeta(ctx context.Context, token common.Address) (RawToken, error) {
	values, err := g.call(ctx, "token_meta", token, erc20ABI, "symbol")
	if err != nil {
		return RawToken{}, err
	}
	symbol := *abi.ConvertType(values[0], new(string)).(*string)

	values, err = g.call(ctx, "token_meta", token, erc20ABI, "decimals")
	if err != nil {
		return RawToken{}, err
	}
	decimals := *abi.ConvertType(values[0], new(uint8)).(*uint8)

	return RawToken{Address: token, Symbol: symbol, Decimals: decimals}, nil
}

// SimulateSwap quotes a route against current reserves via the router. A
// router revert is reported as ErrSwapReverted so callers can tell a dead
// route from a transport failure.
func (g *ContractGateway) SimulateSwap(ctx context.Context, route []model.Token, amountIn *big.Int) (*big.Int, error) {
	values, err := g.call(ctx, "simulate_swap", g.contracts.Router, routerABI, "getAmountsOut",
		amountIn, routeAddresses(route))
	if err != nil {
		if isRevert(err) {
			return nil, fmt.Errorf("%w: %s: %v", model.ErrSwapReverted, routeString(route), err)
		}
		return nil, err
	}

	amounts := *abi.ConvertType(values[0], new([]*big.Int)).(*[]*big.Int)
	if len(amounts) != len(route) {
		return nil, &model.GatewayError{
			Op:      "simulate_swap",
			ChainID: g.chainID,
			Subject: routeString(route),
			Err:     fmt.Errorf("router returned %d amounts for %d hops", len(amounts), len(route)),
		}
	}
	return amounts[len(amounts)-1], nil
}

// SubmitSwap submits the swap transaction through the configured sender.
func (g *ContractGateway) SubmitSwap(ctx context.Context, route []model.Token, amountIn, minOut *big.Int) (model.Receipt, error) {
	if g.sender == nil {
		return model.Receipt{}, &model.GatewayError{
			Op:      "submit_swap",
			ChainID: g.chainID,
			Err:     fmt.Errorf("no transaction sender configured"),
		}
	}

	deadline := big.NewInt(time.Now().Add(submitDeadline).Unix())
	data, err := routerABI.Pack("swapExactTokensForTokens", amountIn, minOut, routeAddresses(route), g.sender.From(), deadline)
	if err != nil {
		return model.Receipt{}, fmt.Errorf("pack swap: %w", err)
	}

	hash, err := g.sender.Send(ctx, g.contracts.Router, data)
	if err != nil {
		return model.Receipt{}, &model.GatewayError{
			Op:      "submit_swap",
			ChainID: g.chainID,
			Subject: routeString(route),
			Err:     err,
		}
	}

	g.logger.Info("swap submitted",
		zap.String("chain", g.chainName),
		zap.String("route", routeString(route)),
		zap.String("tx", hash.Hex()),
	)
	return model.Receipt{ChainID: g.chainID, TxHash: hash}, nil
}

// InitiateBridge starts a bridge transfer to the sender's address on the
// destination chain.
func (g *ContractGateway) InitiateBridge(ctx context.Context, token model.Token, amount *big.Int, destChain uint64) (model.Receipt, error) {
	if g.sender == nil {
		return model.Receipt{}, &model.GatewayError{
			Op:      "initiate_bridge",
			ChainID: g.chainID,
			Err:     fmt.Errorf("no transaction sender configured"),
		}
	}

	data, err := bridgeABI.Pack("sendERC20", token.Address, g.sender.From(), amount, new(big.Int).SetUint64(destChain))
	if err != nil {
		return model.Receipt{}, fmt.Errorf("pack bridge transfer: %w", err)
	}

	hash, err := g.sender.Send(ctx, g.contracts.Bridge, data)
	if err != nil {
		return model.Receipt{}, &model.GatewayError{
			Op:      "initiate_bridge",
			ChainID: g.chainID,
			Subject: token.String(),
			Err:     err,
		}
	}

	g.logger.Info("bridge transfer initiated",
		zap.String("chain", g.chainName),
		zap.String("token", token.String()),
		zap.Uint64("dest_chain", destChain),
		zap.String("tx", hash.Hex()),
	)
	return model.Receipt{ChainID: g.chainID, TxHash: hash}, nil
}

func (g *ContractGateway) call(ctx context.Context, op string, to common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	metrics.GatewayCalls.WithLabelValues(op, g.chainName).Inc()

	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	var resp []byte
	msg := ethereum.CallMsg{To: &to, Data: data}
	err = chain.WithRetry(ctx, g.maxRetries, g.backoff, func(ctx context.Context) error {
		var callErr error
		resp, callErr = g.caller.CallContract(ctx, msg)
		if callErr != nil {
			g.logger.Debug("contract call failed",
				zap.String("op", op),
				zap.String("chain", g.chainName),
				zap.Error(callErr),
			)
		}
		return callErr
	})
	if err != nil {
		metrics.GatewayErrors.WithLabelValues(op, g.chainName).Inc()
		return nil, &model.GatewayError{Op: op, ChainID: g.chainID, Subject: to.Hex(), Err: err}
	}

	values, err := contractABI.Unpack(method, resp)
	if err != nil {
		metrics.GatewayErrors.WithLabelValues(op, g.chainName).Inc()
		return nil, &model.GatewayError{Op: op, ChainID: g.chainID, Subject: to.Hex(), Err: fmt.Errorf("unpack %s: %w", method, err)}
	}
	if len(values) == 0 {
		return nil, &model.GatewayError{Op: op, ChainID: g.chainID, Subject: to.Hex(), Err: fmt.Errorf("empty %s response", method)}
	}
	return values, nil
}

func convertEpochs(value interface{}) []RawEpoch {
	rows := *abi.ConvertType(value, new([]registryEpoch)).(*[]registryEpoch)
	epochs := make([]RawEpoch, 0, len(rows))
	for _, row := range rows {
		epochs = append(epochs, RawEpoch{
			Pool:       row.Lp,
			Start:      time.Unix(row.Ts.Int64(), 0).UTC(),
			Fees:       convertRewards(row.Fees),
			Incentives: convertRewards(row.Incentives),
		})
	}
	return epochs
}

func convertRewards(rewards []registryReward) []RawTokenAmount {
	out := make([]RawTokenAmount, 0, len(rewards))
	for _, reward := range rewards {
		out = append(out, RawTokenAmount{
			Token:  RawToken{Address: reward.Token, Symbol: reward.Symbol, Decimals: reward.Decimals},
			Amount: reward.Amount,
		})
	}
	return out
}

func routeAddresses(route []model.Token) []common.Address {
	addresses := make([]common.Address, len(route))
	for i, token := range route {
		addresses[i] = token.Address
	}
	return addresses
}

func routeString(route []model.Token) string {
	symbols := make([]string, len(route))
	for i, token := range route {
		symbols[i] = token.Symbol
	}
	return strings.Join(symbols, ">")
}

// isRevert reports whether a call failure came from the EVM rather than the
// transport. Reverts surface as rpc errors carrying data or the standard
// revert message.
func isRevert(err error) bool {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted")
}
