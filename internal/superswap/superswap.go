// Package superswap composes two single-network quotes into a cross-network
// swap joined by a bridge transfer.
package superswap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"sugarswap/internal/model"
	"sugarswap/internal/quote"
)

// BridgeGateway initiates bridge transfers on the source network.
type BridgeGateway interface {
	InitiateBridge(ctx context.Context, token model.Token, amount *big.Int, destChain uint64) (model.Receipt, error)
}

// Relay confirms bridge message delivery on the destination network.
type Relay interface {
	WaitDelivered(ctx context.Context, tx common.Hash, destChain uint64) error
}

// RequotePolicy decides what happens when the destination-leg quote may have
// gone stale while the bridge transfer settled.
type RequotePolicy int

const (
	// RequoteManual executes the original destination quote; if it no longer
	// passes its slippage check, the sequence stops with a partial failure
	// and the caller decides how to proceed.
	RequoteManual RequotePolicy = iota
	// RequoteAuto fetches a fresh destination quote after the bridge settles
	// and executes that instead.
	RequoteAuto
)

// Leg binds one network's quoter to its bridge endpoints.
type Leg struct {
	ChainID     uint64
	Quoter      *quote.Quoter
	Bridge      BridgeGateway
	BridgeToken model.Token
}

// Superswap composes a source leg and a destination leg. The three execution
// steps are causally ordered external actions with no cross-network
// transaction around them: each step's outcome is reported individually and a
// failure after the first step surfaces as a PartialSwapError, never as a
// silent rollback. Cancelling the context mid-sequence does not undo
// completed steps; the returned Result always states how far execution got.
type Superswap struct {
	source  Leg
	dest    Leg
	relay   Relay
	requote RequotePolicy
	logger  *zap.Logger
}

// Result reports how far a cross-network swap progressed.
type Result struct {
	Step          model.SwapStep
	SourceReceipt *model.Receipt
	BridgeReceipt *model.Receipt
	DestReceipt   *model.Receipt
}

// New builds a Superswap over two legs. relay may be nil; the destination leg
// then executes without waiting for bridge delivery confirmation.
func New(source, dest Leg, relay Relay, requote RequotePolicy, logger *zap.Logger) *Superswap {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Superswap{
		source:  source,
		dest:    dest,
		relay:   relay,
		requote: requote,
		logger:  logger,
	}
}

// GetSuperQuote quotes from -> to across the two legs, or nil when either leg
// has no viable route. A same-network pair degrades to a single source-side
// quote with no bridge. When an endpoint already is the bridge token, that
// leg is omitted.
func (s *Superswap) GetSuperQuote(ctx context.Context, from, to model.Token, amountIn *big.Int) (*model.SuperQuote, error) {
	if from.ChainID == to.ChainID {
		q, err := s.quoterFor(from.ChainID).GetQuote(ctx, from, to, amountIn)
		if err != nil || q == nil {
			return nil, err
		}
		return &model.SuperQuote{Source: q}, nil
	}

	bridgeAmount := new(big.Int).Set(amountIn)
	sq := &model.SuperQuote{}

	if from.Key() != s.source.BridgeToken.Key() {
		q, err := s.source.Quoter.GetQuote(ctx, from, s.source.BridgeToken, amountIn)
		if err != nil {
			return nil, err
		}
		if q == nil {
			// Source leg unroutable: the destination leg is never consulted.
			return nil, nil
		}
		sq.Source = q
		bridgeAmount = q.AmountOut
	}

	sq.Bridge = &model.BridgeTransfer{
		Token:       s.source.BridgeToken,
		Amount:      bridgeAmount,
		SourceChain: s.source.ChainID,
		DestChain:   s.dest.ChainID,
	}

	if to.Key() != s.dest.BridgeToken.Key() {
		q, err := s.dest.Quoter.GetQuote(ctx, s.dest.BridgeToken, to, bridgeAmount)
		if err != nil {
			return nil, err
		}
		if q == nil {
			return nil, nil
		}
		sq.Dest = q
	}

	return sq, nil
}

// SwapFromQuote executes a super quote: source-leg swap, bridge transfer,
// destination-leg swap. On failure past the first completed step the error is
// a PartialSwapError carrying the receipts of everything already submitted;
// retrying the whole sequence is unsafe and is deliberately not offered.
func (s *Superswap) SwapFromQuote(ctx context.Context, sq *model.SuperQuote) (Result, error) {
	if sq == nil {
		return Result{}, fmt.Errorf("nil super quote")
	}

	res := Result{Step: model.StepNotStarted}

	// Same-network quote: one leg, no bridge. The quote itself says which
	// network it was made on; both endpoints can be the destination chain.
	if sq.Bridge == nil {
		receipt, err := s.quoterFor(sq.Source.FromToken.ChainID).SwapFromQuote(ctx, sq.Source)
		if err != nil {
			return res, err
		}
		res.SourceReceipt = &receipt
		res.Step = model.StepComplete
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}

	if sq.Source != nil {
		receipt, err := s.source.Quoter.SwapFromQuote(ctx, sq.Source)
		if err != nil {
			return res, fmt.Errorf("source leg: %w", err)
		}
		res.SourceReceipt = &receipt
		res.Step = model.StepSourceSubmitted
		s.logger.Info("source leg submitted", zap.String("tx", receipt.TxHash.Hex()))
	}

	bridgeReceipt, err := s.source.Bridge.InitiateBridge(ctx, sq.Bridge.Token, sq.Bridge.Amount, sq.Bridge.DestChain)
	if err != nil {
		return res, s.partial(res, fmt.Errorf("bridge transfer: %w", err))
	}
	res.BridgeReceipt = &bridgeReceipt
	res.Step = model.StepBridgeInitiated
	s.logger.Info("bridge transfer initiated", zap.String("tx", bridgeReceipt.TxHash.Hex()))

	if s.relay != nil {
		if err := s.relay.WaitDelivered(ctx, bridgeReceipt.TxHash, sq.Bridge.DestChain); err != nil {
			return res, s.partial(res, fmt.Errorf("bridge delivery: %w", err))
		}
	}

	if sq.Dest != nil {
		destQuote := sq.Dest
		if s.requote == RequoteAuto {
			fresh, err := s.dest.Quoter.GetQuote(ctx, destQuote.FromToken, destQuote.ToToken, destQuote.AmountIn)
			if err != nil {
				return res, s.partial(res, fmt.Errorf("dest re-quote: %w", err))
			}
			if fresh == nil {
				return res, s.partial(res, fmt.Errorf("dest re-quote: %w", model.ErrNoRoute))
			}
			destQuote = fresh
		}

		receipt, err := s.dest.Quoter.SwapFromQuote(ctx, destQuote)
		if err != nil {
			return res, s.partial(res, fmt.Errorf("dest leg: %w", err))
		}
		res.DestReceipt = &receipt
		res.Step = model.StepDestSubmitted
		s.logger.Info("dest leg submitted", zap.String("tx", receipt.TxHash.Hex()))
	}

	res.Step = model.StepComplete
	return res, nil
}

// Swap quotes and executes in one step, failing with ErrNoRoute when either
// leg cannot be routed.
func (s *Superswap) Swap(ctx context.Context, from, to model.Token, amountIn *big.Int) (Result, error) {
	sq, err := s.GetSuperQuote(ctx, from, to, amountIn)
	if err != nil {
		return Result{}, err
	}
	if sq == nil {
		return Result{}, fmt.Errorf("%s -> %s: %w", from, to, model.ErrNoRoute)
	}
	return s.SwapFromQuote(ctx, sq)
}

func (s *Superswap) partial(res Result, err error) error {
	s.logger.Error("cross-network swap stopped partway",
		zap.String("completed_step", res.Step.String()),
		zap.Error(err),
	)
	return &model.PartialSwapError{
		CompletedStep: res.Step,
		SourceReceipt: res.SourceReceipt,
		BridgeReceipt: res.BridgeReceipt,
		Err:           err,
	}
}

func (s *Superswap) quoterFor(chainID uint64) *quote.Quoter {
	if chainID == s.dest.ChainID && chainID != s.source.ChainID {
		return s.dest.Quoter
	}
	return s.source.Quoter
}
