// Package relay polls a cross-chain message relay API for bridge delivery
// status.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// Config tunes the polling client.
type Config struct {
	// BaseURL is the relay status API root.
	BaseURL string
	// PollInterval is the delay between status checks.
	PollInterval time.Duration
	// Timeout bounds how long WaitDelivered waits before giving up.
	Timeout time.Duration
}

const (
	defaultPollInterval = 2 * time.Second
	defaultTimeout      = 5 * time.Minute
)

// statusResponse is the relay API's per-message status payload.
type statusResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

const (
	statusDelivered = "delivered"
	statusFailed    = "failed"
)

// Client polls the relay status endpoint until a bridge message lands on the
// destination network.
type Client struct {
	http   *retryablehttp.Client
	cfg    Config
	logger *zap.Logger
}

// New builds a relay client. Transient HTTP failures are retried inside each
// poll; the poll loop itself only stops on a terminal status or expiry.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = nil
	return &Client{http: rc, cfg: cfg, logger: logger}
}

// WaitDelivered blocks until the bridge transaction's message is delivered on
// destChain, the relay reports a terminal failure, or the wait times out.
func (c *Client) WaitDelivered(ctx context.Context, tx common.Hash, destChain uint64) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		status, err := c.fetchStatus(ctx, tx, destChain)
		if err != nil {
			return err
		}
		switch status.Status {
		case statusDelivered:
			return nil
		case statusFailed:
			return fmt.Errorf("relay marked %s failed: %s", tx.Hex(), status.Reason)
		}
		c.logger.Debug("bridge message pending",
			zap.String("tx", tx.Hex()),
			zap.String("status", status.Status),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for delivery of %s: %w", tx.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) fetchStatus(ctx context.Context, tx common.Hash, destChain uint64) (statusResponse, error) {
	url := fmt.Sprintf("%s/messages/%s?destChainId=%d", c.cfg.BaseURL, tx.Hex(), destChain)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return statusResponse{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return statusResponse{}, fmt.Errorf("relay status for %s: %w", tx.Hex(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusResponse{}, fmt.Errorf("relay status for %s: unexpected HTTP %d", tx.Hex(), resp.StatusCode)
	}

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return statusResponse{}, fmt.Errorf("relay status for %s: %w", tx.Hex(), err)
	}
	return status, nil
}
