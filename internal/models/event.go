package models

import "time"

// EventType names a committed ledger transition.
type EventType string

const (
	EventPoolCreated      EventType = "pool_created"
	EventSwap             EventType = "swap"
	EventLiquidityAdded   EventType = "liquidity_added"
	EventLiquidityRemoved EventType = "liquidity_removed"
	EventFeesClaimed      EventType = "fees_claimed"
	EventPositionBurned   EventType = "position_burned"
	EventPositionTransfer EventType = "position_transferred"
)

// LedgerEvent records one committed transition. Amounts are raw fixed-point
// integers rendered in base 10 so no precision is lost on the wire.
type LedgerEvent struct {
	Seq        uint64    `json:"seq"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	PoolID     string    `json:"pool_id"`
	PositionID uint64    `json:"position_id,omitempty"`
	Owner      string    `json:"owner,omitempty"`
	Pair       string    `json:"pair,omitempty"`
	TokenIn    string    `json:"token_in,omitempty"`
	TokenOut   string    `json:"token_out,omitempty"`
	Amount0    string    `json:"amount0,omitempty"`
	Amount1    string    `json:"amount1,omitempty"`
	Shares     string    `json:"shares,omitempty"`
	Fee        string    `json:"fee,omitempty"`
	Reserve0   string    `json:"reserve0,omitempty"`
	Reserve1   string    `json:"reserve1,omitempty"`
}
