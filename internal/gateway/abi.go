package gateway

import (
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const poolRegistryABIJSON = `[
  {"inputs": [{"name": "_limit", "type": "uint256"}, {"name": "_offset", "type": "uint256"}], "name": "all", "outputs": [{"components": [
    {"name": "lp", "type": "address"},
    {"name": "symbol", "type": "string"},
    {"name": "token0", "type": "address"},
    {"name": "token0_symbol", "type": "string"},
    {"name": "token0_decimals", "type": "uint8"},
    {"name": "token1", "type": "address"},
    {"name": "token1_symbol", "type": "string"},
    {"name": "token1_decimals", "type": "uint8"},
    {"name": "reserve0", "type": "uint256"},
    {"name": "reserve1", "type": "uint256"},
    {"name": "token0_volume", "type": "uint256"},
    {"name": "token1_volume", "type": "uint256"},
    {"name": "token0_fees", "type": "uint256"},
    {"name": "token1_fees", "type": "uint256"}
  ], "name": "", "type": "tuple[]"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "_limit", "type": "uint256"}, {"name": "_offset", "type": "uint256"}, {"name": "_address", "type": "address"}], "name": "epochsByAddress", "outputs": [{"components": [
    {"name": "ts", "type": "uint256"},
    {"name": "lp", "type": "address"},
    {"name": "fees", "type": "tuple[]", "components": [
      {"name": "token", "type": "address"},
      {"name": "symbol", "type": "string"},
      {"name": "decimals", "type": "uint8"},
      {"name": "amount", "type": "uint256"}
    ]},
    {"name": "incentives", "type": "tuple[]", "components": [
      {"name": "token", "type": "address"},
      {"name": "symbol", "type": "string"},
      {"name": "decimals", "type": "uint8"},
      {"name": "amount", "type": "uint256"}
    ]}
  ], "name": "", "type": "tuple[]"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "_limit", "type": "uint256"}, {"name": "_offset", "type": "uint256"}], "name": "epochsLatest", "outputs": [{"components": [
    {"name": "ts", "type": "uint256"},
    {"name": "lp", "type": "address"},
    {"name": "fees", "type": "tuple[]", "components": [
      {"name": "token", "type": "address"},
      {"name": "symbol", "type": "string"},
      {"name": "decimals", "type": "uint8"},
      {"name": "amount", "type": "uint256"}
    ]},
    {"name": "incentives", "type": "tuple[]", "components": [
      {"name": "token", "type": "address"},
      {"name": "symbol", "type": "string"},
      {"name": "decimals", "type": "uint8"},
      {"name": "amount", "type": "uint256"}
    ]}
  ], "name": "", "type": "tuple[]"}], "stateMutability": "view", "type": "function"}
]`

const priceOracleABIJSON = `[
  {"inputs": [{"name": "_tokens", "type": "address[]"}], "name": "getManyRates", "outputs": [{"name": "", "type": "uint256[]"}], "stateMutability": "view", "type": "function"}
]`

const routerABIJSON = `[
  {"inputs": [{"name": "amountIn", "type": "uint256"}, {"name": "path", "type": "address[]"}], "name": "getAmountsOut", "outputs": [{"name": "amounts", "type": "uint256[]"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "amountIn", "type": "uint256"}, {"name": "amountOutMin", "type": "uint256"}, {"name": "path", "type": "address[]"}, {"name": "to", "type": "address"}, {"name": "deadline", "type": "uint256"}], "name": "swapExactTokensForTokens", "outputs": [{"name": "amounts", "type": "uint256[]"}], "stateMutability": "nonpayable", "type": "function"}
]`

const bridgeABIJSON = `[
  {"inputs": [{"name": "_token", "type": "address"}, {"name": "_to", "type": "address"}, {"name": "_amount", "type": "uint256"}, {"name": "_chainId", "type": "uint256"}], "name": "sendERC20", "outputs": [{"name": "msgHash_", "type": "bytes32"}], "stateMutability": "nonpayable", "type": "function"}
]`

const erc20ABIJSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"name": "", "type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "decimals", "outputs": [{"name": "", "type": "uint8"}], "stateMutability": "view", "type": "function"}
]`

var (
	abiOnce sync.Once
	abiErr  error

	poolRegistryABI abi.ABI
	priceOracleABI  abi.ABI
	routerABI       abi.ABI
	bridgeABI       abi.ABI
	erc20ABI        abi.ABI
)

func loadABIs() error {
	abiOnce.Do(func() {
		for _, item := range []struct {
			dst  *abi.ABI
			json string
		}{
			{&poolRegistryABI, poolRegistryABIJSON},
			{&priceOracleABI, priceOracleABIJSON},
			{&routerABI, routerABIJSON},
			{&bridgeABI, bridgeABIJSON},
			{&erc20ABI, erc20ABIJSON},
		} {
			parsed, err := abi.JSON(strings.NewReader(item.json))
			if err != nil {
				abiErr = err
				return
			}
			*item.dst = parsed
		}
	})
	return abiErr
}

// registryPool mirrors the registry's pool tuple layout.
type registryPool struct {
	Lp             common.Address
	Symbol         string
	Token0         common.Address
	Token0Symbol   string
	Token0Decimals uint8
	Token1         common.Address
	Token1Symbol   string
	Token1Decimals uint8
	Reserve0       *big.Int
	Reserve1       *big.Int
	Token0Volume   *big.Int
	Token1Volume   *big.Int
	Token0Fees     *big.Int
	Token1Fees     *big.Int
}

// registryReward mirrors the reward tuple inside an epoch record.
type registryReward struct {
	Token    common.Address
	Symbol   string
	Decimals uint8
	Amount   *big.Int
}

// registryEpoch mirrors the registry's epoch tuple layout.
type registryEpoch struct {
	Ts         *big.Int
	Lp         common.Address
	Fees       []registryReward
	Incentives []registryReward
}
