package engine

import (
	"time"

	"github.com/holiman/uint256"

	"github.com/aman-zulfiqar/amm-ledger/internal/curve"
	"github.com/aman-zulfiqar/amm-ledger/internal/ledger"
	"github.com/aman-zulfiqar/amm-ledger/internal/models"
	"github.com/aman-zulfiqar/amm-ledger/internal/pool"
)

// SwapRequest sells AmountIn of TokenIn into a pool.
type SwapRequest struct {
	PoolID       pool.ID
	TokenIn      models.TokenID
	AmountIn     *uint256.Int
	MinAmountOut *uint256.Int // nil accepts any output
	Deadline     time.Time    // zero means no deadline
	Trader       models.OwnerID
}

// SwapResult is a committed swap and the pool state right after it.
type SwapResult struct {
	Quote    curve.SwapQuote
	TokenIn  models.TokenID
	TokenOut models.TokenID
	Pool     PoolSummary
}

// QuoteResult prices a swap without executing it.
type QuoteResult struct {
	Quote           curve.SwapQuote
	TokenIn         models.TokenID
	TokenOut        models.TokenID
	MinimumReceived *uint256.Int
	SlippageBps     uint64
}

// AddLiquidityRequest deposits into a pool. A zero PositionID mints a new
// position; otherwise the existing one is topped up.
type AddLiquidityRequest struct {
	PoolID     pool.ID
	PositionID uint64
	Owner      models.OwnerID
	Amount0    *uint256.Int
	Amount1    *uint256.Int
	MinShares  *uint256.Int
	Deadline   time.Time
}

// InitialDeposit funds a pool in the call that creates it. Amount0 and
// Amount1 follow the token order of the definition, which need not be the
// canonical one.
type InitialDeposit struct {
	Owner     models.OwnerID
	Amount0   *uint256.Int
	Amount1   *uint256.Int
	MinShares *uint256.Int
	Deadline  time.Time
}

// RemoveLiquidityRequest withdraws shares from a position.
type RemoveLiquidityRequest struct {
	PositionID uint64
	Owner      models.OwnerID
	Shares     *uint256.Int
	MinAmount0 *uint256.Int
	MinAmount1 *uint256.Int
	Deadline   time.Time
}

// LiquidityResult reports a deposit or withdrawal.
type LiquidityResult struct {
	PositionID uint64
	Handle     string
	Shares     *uint256.Int
	Amount0    *uint256.Int
	Amount1    *uint256.Int
	Pool       PoolSummary
}

// ClaimResult reports fees paid to a position holder.
type ClaimResult struct {
	PositionID uint64
	Amount0    *uint256.Int
	Amount1    *uint256.Int
}

// BurnResult reports a destroyed position and the fees paid out with it.
type BurnResult struct {
	Position ledger.Position
	Claimed0 *uint256.Int
	Claimed1 *uint256.Int
}

// PoolSummary is a pool snapshot with its display label.
type PoolSummary struct {
	State     pool.State
	Pair      string
	SpotPrice *uint256.Int // token0 in token1, WAD; nil for an empty pool
}
