package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price is the reference-currency value of one whole unit of a token.
// Entries are superseded on refresh, never mutated.
type Price struct {
	Token Token
	Value decimal.Decimal
	AsOf  time.Time
}

// PriceStatus classifies a per-token pricing outcome. Unavailable and
// anomalous entries are signals attached to a result set, not hard failures.
type PriceStatus int

const (
	PriceOK PriceStatus = iota
	// PriceUnavailable means the lookup for this token failed.
	PriceUnavailable
	// PriceAnomalous means the derived price fell outside the configured
	// sanity bound and was excluded to keep aggregates honest.
	PriceAnomalous
)

func (s PriceStatus) String() string {
	switch s {
	case PriceOK:
		return "ok"
	case PriceUnavailable:
		return "unavailable"
	case PriceAnomalous:
		return "anomalous"
	default:
		return "unknown"
	}
}

// PriceResult is one entry of a price lookup: either a usable Price or an
// explicit status explaining its absence.
type PriceResult struct {
	Price  Price
	Status PriceStatus
}
