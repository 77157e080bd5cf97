package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	LogLevel     string
	PGDSN        string
	MetricsAddr  string
	RelayURL     string
	RelayPoll    time.Duration
	RelayTimeout time.Duration
	DestRequote  string
	MaxRetries   int
	RetryBackoff time.Duration

	Networks map[string]Network
}

// Network configures one chain's endpoints, contracts, and tunables.
type Network struct {
	ChainID      uint64  `mapstructure:"chain-id"`
	RPCURL       string  `mapstructure:"rpc"`
	RateLimitRPS float64 `mapstructure:"rate-limit-rps"`

	PoolRegistry string `mapstructure:"pool-registry"`
	PriceOracle  string `mapstructure:"price-oracle"`
	Router       string `mapstructure:"router"`
	Bridge       string `mapstructure:"bridge"`

	Connectors  []string `mapstructure:"connectors"`
	Excluded    []string `mapstructure:"excluded"`
	BridgeToken string   `mapstructure:"bridge-token"`

	PageSize        int           `mapstructure:"page-size"`
	MaxPools        int           `mapstructure:"max-pools"`
	MaxEpochRecords int           `mapstructure:"max-epoch-records"`
	PriceBatchSize  int           `mapstructure:"price-batch-size"`
	PriceTTL        time.Duration `mapstructure:"price-ttl"`
	PriceWorkers    int           `mapstructure:"price-workers"`
	PriceThreshold  string        `mapstructure:"price-threshold"`
	Slippage        string        `mapstructure:"slippage"`
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SUGAR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("dest-requote", "manual")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("relay-poll", 2*time.Second)
	v.SetDefault("relay-timeout", 5*time.Minute)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		LogLevel:     v.GetString("log-level"),
		PGDSN:        v.GetString("pg-dsn"),
		MetricsAddr:  v.GetString("metrics-addr"),
		RelayURL:     v.GetString("relay-url"),
		RelayPoll:    v.GetDuration("relay-poll"),
		RelayTimeout: v.GetDuration("relay-timeout"),
		DestRequote:  v.GetString("dest-requote"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
	}

	if v.IsSet("networks") {
		if err := v.UnmarshalKey("networks", &cfg.Networks); err != nil {
			return Config{}, fmt.Errorf("parse networks: %w", err)
		}
	}
	for name, network := range cfg.Networks {
		cfg.Networks[name] = withNetworkDefaults(network)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func withNetworkDefaults(n Network) Network {
	if n.PageSize <= 0 {
		n.PageSize = 500
	}
	if n.MaxPools <= 0 {
		n.MaxPools = 2500
	}
	if n.MaxEpochRecords <= 0 {
		n.MaxEpochRecords = 2500
	}
	if n.PriceBatchSize <= 0 {
		n.PriceBatchSize = 40
	}
	if n.PriceTTL <= 0 {
		n.PriceTTL = 5 * time.Second
	}
	if n.PriceWorkers <= 0 {
		n.PriceWorkers = 5
	}
	if n.PriceThreshold == "" {
		n.PriceThreshold = "3"
	}
	if n.Slippage == "" {
		n.Slippage = "0.005"
	}
	return n
}

func (c Config) validate() error {
	switch c.DestRequote {
	case "manual", "auto":
	default:
		return fmt.Errorf("dest-requote must be manual or auto, got %q", c.DestRequote)
	}
	for name, network := range c.Networks {
		if network.ChainID == 0 {
			return fmt.Errorf("network %s: chain-id is required", name)
		}
		if network.RPCURL == "" {
			return fmt.Errorf("network %s: rpc is required", name)
		}
		if network.PoolRegistry == "" {
			return fmt.Errorf("network %s: pool-registry is required", name)
		}
	}
	return nil
}
