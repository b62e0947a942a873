// Package guard holds the pre-mutation checks applied to every trade: deadline,
// minimum output and price impact. Nothing here touches pool state.
package guard

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/aman-zulfiqar/amm-ledger/internal/ammerr"
	"github.com/aman-zulfiqar/amm-ledger/internal/curve"
	"github.com/aman-zulfiqar/amm-ledger/internal/fixedpoint"
)

// CheckDeadline fails once now is past deadline. A zero deadline never expires.
func CheckDeadline(deadline, now time.Time) error {
	if deadline.IsZero() {
		return nil
	}
	if now.After(deadline) {
		return fmt.Errorf("now %s past deadline %s: %w",
			now.UTC().Format(time.RFC3339), deadline.UTC().Format(time.RFC3339), ammerr.ErrDeadlineExpired)
	}
	return nil
}

// CheckMinimum fails when got is below floor. A nil floor accepts anything.
func CheckMinimum(what string, got, floor *uint256.Int) error {
	if floor == nil || !got.Lt(floor) {
		return nil
	}
	return fmt.Errorf("%s %s below minimum %s: %w", what, got.Dec(), floor.Dec(), ammerr.ErrSlippageExceeded)
}

// Validate checks a quote against the caller's deadline and minimum output.
func Validate(q curve.SwapQuote, minAmountOut *uint256.Int, deadline, now time.Time) error {
	if err := CheckDeadline(deadline, now); err != nil {
		return err
	}
	return CheckMinimum("amount out", q.AmountOut, minAmountOut)
}

// ApplySlippage calculates minimum output with slippage tolerance
// slippageBps: basis points (e.g., 100 = 1%, 50 = 0.5%)
func ApplySlippage(amountOut *uint256.Int, slippageBps uint64) *uint256.Int {
	if slippageBps >= fixedpoint.Bps {
		return fixedpoint.Zero() // 100% slippage = no output
	}
	// minOut = amountOut * (10000 - slippageBps) / 10000
	minOut, err := fixedpoint.ApplyBps(amountOut, fixedpoint.Bps-slippageBps)
	if err != nil {
		// the factor is below 1, so the quotient always fits
		return fixedpoint.Zero()
	}
	return minOut
}

// CheckPriceImpact checks if price impact exceeds threshold. Zero disables the check.
func CheckPriceImpact(q curve.SwapQuote, maxImpactBps uint64) error {
	if maxImpactBps == 0 || q.PriceImpactBps <= maxImpactBps {
		return nil
	}
	return fmt.Errorf("price impact %s%% exceeds max %s%%: %w",
		fixedpoint.FormatBpsPercent(q.PriceImpactBps), fixedpoint.FormatBpsPercent(maxImpactBps), ammerr.ErrSlippageExceeded)
}
