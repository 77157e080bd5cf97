package model

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrNoRoute means no viable swap path exists between two tokens given
	// the configured connector and excluded token sets.
	ErrNoRoute = errors.New("no viable swap route")

	// ErrCatalogTruncated means a pagination walk hit its configured cap
	// before the registry signalled end of data; the partial result
	// accompanies it.
	ErrCatalogTruncated = errors.New("registry walk truncated at configured cap")

	// ErrSwapReverted means the router rejected a simulated route; there is
	// no pool behind one of its hops. A transport failure never carries this
	// sentinel.
	ErrSwapReverted = errors.New("swap simulation reverted")
)

// GatewayError wraps a contract-call failure with enough context to tell a
// configuration mistake from a transient network fault.
type GatewayError struct {
	Op      string
	ChainID uint64
	Subject string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("gateway %s chain=%d %s: %v", e.Op, e.ChainID, e.Subject, e.Err)
	}
	return fmt.Sprintf("gateway %s chain=%d: %v", e.Op, e.ChainID, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// SlippageError reports that the live output moved past the quote's tolerance
// before submission; the swap was aborted, nothing was sent.
type SlippageError struct {
	Quoted *big.Int
	Live   *big.Int
	MinOut *big.Int
}

func (e *SlippageError) Error() string {
	return fmt.Sprintf("slippage exceeded: quoted %s, live %s, minimum %s", e.Quoted, e.Live, e.MinOut)
}

// SwapStep tracks progress through a cross-network swap sequence.
type SwapStep int

const (
	StepNotStarted SwapStep = iota
	StepSourceSubmitted
	StepBridgeInitiated
	StepDestSubmitted
	StepComplete
)

func (s SwapStep) String() string {
	switch s {
	case StepNotStarted:
		return "not_started"
	case StepSourceSubmitted:
		return "source_submitted"
	case StepBridgeInitiated:
		return "bridge_initiated"
	case StepDestSubmitted:
		return "dest_submitted"
	case StepComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// PartialSwapError reports a cross-network swap that stopped partway: every
// step up to and including CompletedStep succeeded and is externally visible,
// the step after it failed. Receipts of completed steps are carried so the
// caller can remediate manually. Retrying the whole sequence is never safe.
type PartialSwapError struct {
	CompletedStep SwapStep
	SourceReceipt *Receipt
	BridgeReceipt *Receipt
	Err           error
}

func (e *PartialSwapError) Error() string {
	return fmt.Sprintf("cross-network swap stopped after %s: %v", e.CompletedStep, e.Err)
}

func (e *PartialSwapError) Unwrap() error { return e.Err }
