package model

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Token identifies an ERC20 token on one network. Immutable once built;
// (ChainID, Address) is the unique key.
type Token struct {
	ChainID  uint64
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// TokenKey is the comparable identity of a token across networks.
type TokenKey struct {
	ChainID uint64
	Address common.Address
}

func (t Token) Key() TokenKey {
	return TokenKey{ChainID: t.ChainID, Address: t.Address}
}

func (t Token) String() string {
	if t.Symbol != "" {
		return fmt.Sprintf("%s(%s)", t.Symbol, t.Address.Hex())
	}
	return t.Address.Hex()
}

// ParseUnits converts a human-readable decimal amount into the token's
// smallest unit. Amounts with more fractional digits than the token carries
// are rejected rather than silently rounded.
func (t Token) ParseUnits(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	rat, ok := new(big.Rat).SetString(amount)
	if !ok {
		return nil, fmt.Errorf("parse amount %q", amount)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(t.Decimals)), nil)
	rat.Mul(rat, new(big.Rat).SetInt(scale))
	if !rat.IsInt() {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", amount, t.Decimals)
	}
	return new(big.Int).Set(rat.Num()), nil
}

// FormatUnits renders a smallest-unit amount as a human-readable decimal
// string, trimming trailing fractional zeros.
func (t Token) FormatUnits(value *big.Int) string {
	if value == nil {
		return "0"
	}
	if t.Decimals == 0 {
		return value.String()
	}

	sign := ""
	abs := new(big.Int).Abs(value)
	if value.Sign() < 0 {
		sign = "-"
	}

	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(t.Decimals)), nil)
	text := new(big.Rat).SetFrac(abs, denom).FloatString(int(t.Decimals))
	text = strings.TrimRight(text, "0")
	text = strings.TrimSuffix(text, ".")
	if text == "" {
		text = "0"
	}
	return sign + text
}
