package server

import "time"

// Amounts are raw fixed-point integers rendered as base-10 strings. Scale is
// the number of implied decimals.

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Kind    string `json:"kind,omitempty"`    // Ledger error kind, e.g. SlippageExceeded
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK    bool `json:"ok"`
	Pools int  `json:"pools"`
}

type CreatePoolRequest struct {
	Token0           string                `json:"token0"`
	Token1           string                `json:"token1"`
	FeeBps           uint64                `json:"fee_bps"`
	Curve            string                `json:"curve"`             // "volatile" (default) or "stable"
	Amplification    *uint64               `json:"amplification"`     // stable only; defaults to 100
	InitialLiquidity *InitialLiquidityBody `json:"initial_liquidity"` // optional first deposit
}

// InitialLiquidityBody funds a pool on creation. Amounts follow the token
// order of the request.
type InitialLiquidityBody struct {
	Owner     string `json:"owner"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
	MinShares string `json:"min_shares"`
	Deadline  int64  `json:"deadline"`
}

type CreatePoolResponse struct {
	PoolResponse
	Position *LiquidityResponse `json:"position,omitempty"`
}

type PoolResponse struct {
	ID              string    `json:"id"`
	Pair            string    `json:"pair"`
	Token0          string    `json:"token0"`
	Token1          string    `json:"token1"`
	FeeBps          uint64    `json:"fee_bps"`
	FeeLabel        string    `json:"fee_label"`
	Curve           string    `json:"curve"`
	Amplification   uint64    `json:"amplification,omitempty"`
	Reserve0        string    `json:"reserve0"`
	Reserve1        string    `json:"reserve1"`
	TotalShares     string    `json:"total_shares"`
	CumulativeFees0 string    `json:"cumulative_fees0"`
	CumulativeFees1 string    `json:"cumulative_fees1"`
	FeeVault0       string    `json:"fee_vault0"`
	FeeVault1       string    `json:"fee_vault1"`
	Volume0         string    `json:"volume0"`
	Volume1         string    `json:"volume1"`
	SwapCount       uint64    `json:"swap_count"`
	SpotPrice       string    `json:"spot_price,omitempty"` // token0 in token1, decimal
	CreatedAt       time.Time `json:"created_at"`
	Scale           int       `json:"scale"`
}

type StatsResponse struct {
	TVLToken1     string `json:"tvl_token1"`
	FeesToken1    string `json:"fees_token1"`
	FeeAPRBps     uint64 `json:"fee_apr_bps"`
	FeeAPRPercent string `json:"fee_apr_percent"`
	SwapCount     uint64 `json:"swap_count"`
	AgeSeconds    int64  `json:"age_seconds"`
}

type PoolDetailResponse struct {
	Pool  PoolResponse  `json:"pool"`
	Stats StatsResponse `json:"stats"`
}

type QuoteResponse struct {
	PoolID          string `json:"pool_id"`
	TokenIn         string `json:"token_in"`
	TokenOut        string `json:"token_out"`
	AmountIn        string `json:"amount_in"`
	AmountInNet     string `json:"amount_in_net"`
	FeeAmount       string `json:"fee_amount"`
	AmountOut       string `json:"amount_out"`
	MinimumReceived string `json:"minimum_received"`
	SlippageBps     uint64 `json:"slippage_bps"`
	PriceImpactBps  uint64 `json:"price_impact_bps"`
	SpotPrice       string `json:"spot_price"`
	Scale           int    `json:"scale"`
}

type SwapRequest struct {
	TokenIn      string `json:"token_in"`
	AmountIn     string `json:"amount_in"`
	MinAmountOut string `json:"min_amount_out"`
	Deadline     int64  `json:"deadline"` // unix seconds; 0 means none
	Trader       string `json:"trader"`
}

type SwapResponse struct {
	TokenIn        string       `json:"token_in"`
	TokenOut       string       `json:"token_out"`
	AmountIn       string       `json:"amount_in"`
	FeeAmount      string       `json:"fee_amount"`
	AmountOut      string       `json:"amount_out"`
	PriceImpactBps uint64       `json:"price_impact_bps"`
	Pool           PoolResponse `json:"pool"`
	Scale          int          `json:"scale"`
}

type AddLiquidityRequest struct {
	Owner      string `json:"owner"`
	PositionID uint64 `json:"position_id"` // 0 mints a new position
	Amount0    string `json:"amount0"`
	Amount1    string `json:"amount1"`
	MinShares  string `json:"min_shares"`
	Deadline   int64  `json:"deadline"`
}

type WithdrawRequest struct {
	Owner      string `json:"owner"`
	Shares     string `json:"shares"`
	MinAmount0 string `json:"min_amount0"`
	MinAmount1 string `json:"min_amount1"`
	Deadline   int64  `json:"deadline"`
}

type LiquidityResponse struct {
	PositionID uint64       `json:"position_id"`
	Handle     string       `json:"handle"`
	Shares     string       `json:"shares"`
	Amount0    string       `json:"amount0"`
	Amount1    string       `json:"amount1"`
	Pool       PoolResponse `json:"pool"`
	Scale      int          `json:"scale"`
}

type OwnerRequest struct {
	Owner string `json:"owner"`
}

type TransferRequest struct {
	Owner string `json:"owner"`
	To    string `json:"to"`
}

type ClaimResponse struct {
	PositionID uint64 `json:"position_id"`
	Amount0    string `json:"amount0"`
	Amount1    string `json:"amount1"`
	Scale      int    `json:"scale"`
}

type BurnResponse struct {
	PositionID uint64 `json:"position_id"`
	Handle     string `json:"handle"`
	Claimed0   string `json:"claimed0"`
	Claimed1   string `json:"claimed1"`
	Scale      int    `json:"scale"`
}

type PositionResponse struct {
	ID           uint64    `json:"id"`
	Handle       string    `json:"handle"`
	PoolID       string    `json:"pool_id"`
	Owner        string    `json:"owner"`
	Shares       string    `json:"shares"`
	Amount0      string    `json:"amount0"`
	Amount1      string    `json:"amount1"`
	Pending0     string    `json:"pending0"`
	Pending1     string    `json:"pending1"`
	EntryPrice   string    `json:"entry_price"`
	CurrentPrice string    `json:"current_price"`
	ValueToken1  string    `json:"value_token1"`
	ILBps        uint64    `json:"il_bps"`
	ILPercent    string    `json:"il_percent"`
	Metadata     string    `json:"metadata"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Scale        int       `json:"scale"`
}

// TokenUpsertRequest sets the display symbol of a mint
type TokenUpsertRequest struct {
	Symbol string `json:"symbol"`
}
