package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TokenAmount pairs a token with a raw smallest-unit amount.
type TokenAmount struct {
	Token  Token
	Amount *big.Int
}

// Epoch is an immutable aggregate of one pool's fees and incentives over a
// single on-chain epoch. (Pool, Start) is the natural key; re-fetching the
// same pair with unchanged raw inputs yields an identical value.
//
// TotalFees and TotalIncentives are denominated in the reference currency
// using the prices available at aggregation time. PricedAt carries the as-of
// timestamp of those prices so callers can tell a current-price approximation
// apart from a true epoch-time valuation.
type Epoch struct {
	Pool  common.Address
	Start time.Time

	Fees       []TokenAmount
	Incentives []TokenAmount

	TotalFees       decimal.Decimal
	TotalIncentives decimal.Decimal
	PricedAt        time.Time
}
