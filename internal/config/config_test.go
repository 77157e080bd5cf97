package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
log-level: debug
dest-requote: auto
relay-url: https://relay.example
networks:
  optimism:
    chain-id: 10
    rpc: https://op.example
    pool-registry: "0x0000000000000000000000000000000000000001"
    price-oracle: "0x0000000000000000000000000000000000000002"
    router: "0x0000000000000000000000000000000000000003"
    bridge: "0x0000000000000000000000000000000000000004"
    bridge-token: "0x0000000000000000000000000000000000000005"
    connectors:
      - "0x0000000000000000000000000000000000000006"
    page-size: 100
  lisk:
    chain-id: 1135
    rpc: https://lisk.example
    pool-registry: "0x0000000000000000000000000000000000000001"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesNetworkDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig), nil)
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "auto", cfg.DestRequote)
	require.Equal(t, 2*time.Second, cfg.RelayPoll)
	require.Len(t, cfg.Networks, 2)

	op := cfg.Networks["optimism"]
	require.Equal(t, uint64(10), op.ChainID)
	require.Equal(t, 100, op.PageSize, "explicit value wins over the default")
	require.Equal(t, 2500, op.MaxPools)
	require.Equal(t, 40, op.PriceBatchSize)
	require.Equal(t, 5*time.Second, op.PriceTTL)
	require.Equal(t, "3", op.PriceThreshold, "anomaly filter is on by default")
	require.Equal(t, "0.005", op.Slippage)

	lisk := cfg.Networks["lisk"]
	require.Equal(t, 500, lisk.PageSize)
}

func TestLoadRejectsBadRequotePolicy(t *testing.T) {
	_, err := Load(writeConfig(t, "dest-requote: sometimes\n"), nil)
	require.ErrorContains(t, err, "dest-requote")
}

func TestLoadRejectsNetworkWithoutRPC(t *testing.T) {
	body := `
networks:
  broken:
    chain-id: 7
    pool-registry: "0x0000000000000000000000000000000000000001"
`
	_, err := Load(writeConfig(t, body), nil)
	require.ErrorContains(t, err, "rpc is required")
}
