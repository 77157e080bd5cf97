// Package gateway is the typed call surface for the fixed set of on-chain
// queries and mutations the engine needs. Everything behind it is slow,
// rate-limited, and allowed to fail; retries live here, not in the engine.
package gateway

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"sugarswap/internal/model"
)

// RawToken is token metadata as reported by a registry tuple.
type RawToken struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// RawPool is one registry row: a pool snapshot with reserves, volumes and
// fees fetched together at the same block.
type RawPool struct {
	Address common.Address
	Symbol  string
	Token0  RawToken
	Token1  RawToken

	Reserve0 *big.Int
	Reserve1 *big.Int
	Volume0  *big.Int
	Volume1  *big.Int
	Fees0    *big.Int
	Fees1    *big.Int
}

// RawTokenAmount is a single reward entry inside an epoch record.
type RawTokenAmount struct {
	Token  RawToken
	Amount *big.Int
}

// RawEpoch is one fee/incentive record for a pool epoch, before grouping.
type RawEpoch struct {
	Pool       common.Address
	Start      time.Time
	Fees       []RawTokenAmount
	Incentives []RawTokenAmount
}

// TxSender signs and submits transactions. Wallet and key handling stay
// outside the engine behind this boundary.
type TxSender interface {
	From() common.Address
	Send(ctx context.Context, to common.Address, data []byte) (common.Hash, error)
}

// Gateway is the contract-call boundary consumed by the engine.
type Gateway interface {
	// ListPools returns one registry page. A short page signals end of data.
	ListPools(ctx context.Context, limit, offset int) ([]RawPool, error)

	// BatchPrices returns oracle rates for the given tokens, keyed by token
	// address, scaled by 1e18 in the reference currency.
	BatchPrices(ctx context.Context, tokens []model.Token) (map[common.Address]*big.Int, error)

	// PoolEpochs returns raw epoch records for one pool, newest first.
	PoolEpochs(ctx context.Context, pool common.Address, limit, offset int) ([]RawEpoch, error)

	// LatestEpochs returns the latest epoch record per pool, one page at a time.
	LatestEpochs(ctx context.Context, limit, offset int) ([]RawEpoch, error)

	// TokenMeta reads ERC20 symbol and decimals.
	TokenMeta(ctx context.Context, token common.Address) (RawToken, error)

	// SimulateSwap returns the router's output amount for a route at current
	// reserves. Read-only.
	SimulateSwap(ctx context.Context, route []model.Token, amountIn *big.Int) (*big.Int, error)

	// SubmitSwap submits the swap transaction. Mutates on-chain state.
	SubmitSwap(ctx context.Context, route []model.Token, amountIn, minOut *big.Int) (model.Receipt, error)

	// InitiateBridge starts a bridge transfer of token to the sender's own
	// address on the destination chain. Mutates on-chain state.
	InitiateBridge(ctx context.Context, token model.Token, amount *big.Int, destChain uint64) (model.Receipt, error)
}
