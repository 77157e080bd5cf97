package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// feeWindowSeconds is the accrual window the registry reports fees over.
const feeWindowSeconds = 24 * 60 * 60

// Pool is a point-in-time snapshot of one liquidity pool. Token0/Token1
// ordering is address-sorted and stable across refreshes. TVL and APR are
// derived from reserves plus current prices and must be recomputed whenever
// prices refresh.
type Pool struct {
	Address common.Address
	Symbol  string
	Token0  Token
	Token1  Token

	Reserve0 *big.Int
	Reserve1 *big.Int
	Volume0  *big.Int
	Volume1  *big.Int
	Fees0    *big.Int
	Fees1    *big.Int

	TVL decimal.Decimal
	APR decimal.Decimal
}

// HasPair reports whether the pool pairs exactly the two given tokens, in
// either order.
func (p Pool) HasPair(a, b Token) bool {
	return (p.Token0.Key() == a.Key() && p.Token1.Key() == b.Key()) ||
		(p.Token0.Key() == b.Key() && p.Token1.Key() == a.Key())
}

// Derive recomputes TVL and APR from the pool's reserves and fees using the
// given token prices. Both prices must be for the pool's own tokens.
func (p *Pool) Derive(price0, price1 Price) {
	tvl := wholeValue(p.Reserve0, p.Token0.Decimals, price0.Value).
		Add(wholeValue(p.Reserve1, p.Token1.Decimals, price1.Value))
	p.TVL = tvl

	if tvl.IsZero() {
		p.APR = decimal.Zero
		return
	}

	fees := wholeValue(p.Fees0, p.Token0.Decimals, price0.Value).
		Add(wholeValue(p.Fees1, p.Token1.Decimals, price1.Value))
	year := decimal.NewFromInt(int64((365 * 24 * time.Hour) / time.Second))
	window := decimal.NewFromInt(feeWindowSeconds)
	p.APR = fees.Mul(year).Div(window).Div(tvl).Mul(decimal.NewFromInt(100))
}

func wholeValue(amount *big.Int, decimals uint8, price decimal.Decimal) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).Mul(price)
}
