package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Quote is a computed, time-sensitive estimate of swap output for a given
// input. It is a value, not a reservation: it holds no lock on liquidity and
// must be re-verified against live state before execution.
type Quote struct {
	FromToken Token
	ToToken   Token
	AmountIn  *big.Int
	AmountOut *big.Int

	// Route lists every hop token including both endpoints.
	Route []Token

	Slippage  decimal.Decimal
	CreatedAt time.Time
}

// MinAmountOut is the smallest acceptable output under the quote's slippage
// tolerance.
func (q Quote) MinAmountOut() *big.Int {
	out := decimal.NewFromBigInt(q.AmountOut, 0)
	min := out.Mul(decimal.NewFromInt(1).Sub(q.Slippage))
	return min.BigInt()
}

// BridgeTransfer describes the cross-network leg joining two quotes.
type BridgeTransfer struct {
	Token       Token
	Amount      *big.Int
	SourceChain uint64
	DestChain   uint64
}

// SuperQuote composes a source-network quote and a destination-network quote
// joined by a bridge transfer. Legs are independently executable; no
// cross-network atomicity exists. A nil Source or Dest means that leg is a
// no-op because the corresponding endpoint already is the bridge token. A
// same-network quote has only Source set and no bridge.
type SuperQuote struct {
	Source *Quote
	Bridge *BridgeTransfer
	Dest   *Quote
}

// Receipt identifies a submitted on-chain action.
type Receipt struct {
	ChainID uint64
	TxHash  common.Hash
}
