// Package metrics exposes Prometheus instrumentation for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GatewayCalls counts contract-gateway calls by operation and chain.
	GatewayCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sugar_gateway_calls_total",
		Help: "Contract gateway calls by operation and chain.",
	}, []string{"op", "chain"})

	// GatewayErrors counts failed contract-gateway calls.
	GatewayErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sugar_gateway_errors_total",
		Help: "Failed contract gateway calls by operation and chain.",
	}, []string{"op", "chain"})

	// PriceCacheHits counts price lookups served from cache within TTL.
	PriceCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sugar_price_cache_hits_total",
		Help: "Price lookups served from cache.",
	}, []string{"chain"})

	// PriceCacheMisses counts price lookups that required a refresh.
	PriceCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sugar_price_cache_misses_total",
		Help: "Price lookups that triggered a gateway refresh.",
	}, []string{"chain"})
)
