package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-ledger/internal/ammerr"
	"github.com/aman-zulfiqar/amm-ledger/internal/guard"
	"github.com/aman-zulfiqar/amm-ledger/internal/models"
	"github.com/aman-zulfiqar/amm-ledger/internal/pool"
)

// Quote prices a swap on a read snapshot. slippageBps sets the minimum
// received that the caller would pass back to Swap.
func (e *Engine) Quote(ctx context.Context, poolID pool.ID, tokenIn models.TokenID, amountIn *uint256.Int, slippageBps uint64) (QuoteResult, error) {
	if err := ctx.Err(); err != nil {
		return QuoteResult{}, err
	}
	p, err := e.registry.Get(poolID)
	if err != nil {
		return QuoteResult{}, err
	}
	s := p.Snapshot()
	in, err := tokenIndex(s, tokenIn)
	if err != nil {
		return QuoteResult{}, err
	}
	q, err := p.Quote(amountIn, in)
	if err != nil {
		return QuoteResult{}, err
	}
	return QuoteResult{
		Quote:           q,
		TokenIn:         s.Token(in),
		TokenOut:        s.Token(1 - in),
		MinimumReceived: guard.ApplySlippage(q.AmountOut, slippageBps),
		SlippageBps:     slippageBps,
	}, nil
}

// Swap executes a swap in the pool's single-writer section.
func (e *Engine) Swap(ctx context.Context, req SwapRequest, now time.Time) (SwapResult, error) {
	if err := ctx.Err(); err != nil {
		return SwapResult{}, err
	}
	fields := logrus.Fields{"pool": req.PoolID.String(), "token_in": req.TokenIn.String()}

	p, err := e.registry.Get(req.PoolID)
	if err != nil {
		return SwapResult{}, e.reject("swap", fields, err)
	}

	unlock := e.lock(req.PoolID)
	defer unlock()

	s := p.Snapshot()
	in, err := tokenIndex(s, req.TokenIn)
	if err != nil {
		return SwapResult{}, e.reject("swap", fields, err)
	}
	if e.maxImpactBps > 0 {
		preview, err := p.Quote(req.AmountIn, in)
		if err != nil {
			return SwapResult{}, e.reject("swap", fields, err)
		}
		if err := guard.CheckPriceImpact(preview, e.maxImpactBps); err != nil {
			return SwapResult{}, e.reject("swap", fields, err)
		}
	}
	q, err := p.Swap(req.AmountIn, in, req.MinAmountOut, req.Deadline, now)
	if err != nil {
		return SwapResult{}, e.reject("swap", fields, err)
	}
	after := p.Snapshot()
	res := SwapResult{
		Quote:    q,
		TokenIn:  after.Token(in),
		TokenOut: after.Token(1 - in),
		Pool:     e.summarize(after, p),
	}

	e.logger.WithFields(fields).WithFields(logrus.Fields{
		"amount_in":  q.AmountIn.Dec(),
		"amount_out": q.AmountOut.Dec(),
		"fee":        q.FeeAmount.Dec(),
		"impact_bps": q.PriceImpactBps,
	}).Debug("swap committed")

	ev := &models.LedgerEvent{
		Type:      models.EventSwap,
		Timestamp: now,
		PoolID:    req.PoolID.String(),
		Pair:      res.Pool.Pair,
		TokenIn:   res.TokenIn.String(),
		TokenOut:  res.TokenOut.String(),
		Fee:       q.FeeAmount.Dec(),
		Reserve0:  after.Reserve0.Dec(),
		Reserve1:  after.Reserve1.Dec(),
	}
	if !req.Trader.IsZero() {
		ev.Owner = req.Trader.String()
	}
	if in == 0 {
		ev.Amount0, ev.Amount1 = q.AmountIn.Dec(), q.AmountOut.Dec()
	} else {
		ev.Amount0, ev.Amount1 = q.AmountOut.Dec(), q.AmountIn.Dec()
	}
	e.emit(ctx, ev)
	return res, nil
}

// tokenIndex resolves which side of the pool a token is on.
func tokenIndex(s pool.State, token models.TokenID) (int, error) {
	switch {
	case token.Equals(s.Token0):
		return 0, nil
	case token.Equals(s.Token1):
		return 1, nil
	default:
		return 0, fmt.Errorf("token %s is not in pool %s: %w", token, s.ID, ammerr.ErrInvalidAmount)
	}
}
