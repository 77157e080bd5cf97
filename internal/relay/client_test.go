package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func writeStatus(t *testing.T, w http.ResponseWriter, status, reason string) {
	t.Helper()
	require.NoError(t, json.NewEncoder(w).Encode(statusResponse{Status: status, Reason: reason}))
}

func TestWaitDeliveredPollsUntilDelivered(t *testing.T) {
	var polls atomic.Int64
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "1135", r.URL.Query().Get("destChainId"))
		if polls.Add(1) < 3 {
			writeStatus(t, w, "pending", "")
			return
		}
		writeStatus(t, w, "delivered", "")
	})

	c := New(Config{BaseURL: srv.URL, PollInterval: time.Millisecond, Timeout: time.Second}, nil)
	err := c.WaitDelivered(context.Background(), common.HexToHash("0x5afe"), 1135)
	require.NoError(t, err)
	require.Equal(t, int64(3), polls.Load())
}

func TestWaitDeliveredTerminalFailure(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeStatus(t, w, "failed", "message expired")
	})

	c := New(Config{BaseURL: srv.URL, PollInterval: time.Millisecond, Timeout: time.Second}, nil)
	err := c.WaitDelivered(context.Background(), common.HexToHash("0x5afe"), 1135)
	require.ErrorContains(t, err, "message expired")
}

func TestWaitDeliveredTimesOut(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeStatus(t, w, "pending", "")
	})

	c := New(Config{BaseURL: srv.URL, PollInterval: time.Millisecond, Timeout: 25 * time.Millisecond}, nil)
	err := c.WaitDelivered(context.Background(), common.HexToHash("0x5afe"), 1135)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitDeliveredBadHTTPStatus(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	c := New(Config{BaseURL: srv.URL, PollInterval: time.Millisecond, Timeout: time.Second}, nil)
	err := c.WaitDelivered(context.Background(), common.HexToHash("0x5afe"), 1135)
	require.ErrorContains(t, err, "HTTP 404")
}
