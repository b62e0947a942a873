package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"github.com/aman-zulfiqar/amm-ledger/internal/ammerr"
	"github.com/aman-zulfiqar/amm-ledger/internal/engine"
	"github.com/aman-zulfiqar/amm-ledger/internal/fees"
	"github.com/aman-zulfiqar/amm-ledger/internal/fixedpoint"
	"github.com/aman-zulfiqar/amm-ledger/internal/ledger"
	"github.com/aman-zulfiqar/amm-ledger/internal/pool"
)

func dec(a *uint256.Int) string {
	if a == nil {
		return "0"
	}
	return a.Dec()
}

// parseAmount reads an optional raw amount; an empty string yields nil.
func parseAmount(s string) (*uint256.Int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return fixedpoint.Parse(s)
}

// requireAmount reads a raw amount that must be present.
func requireAmount(s string) (*uint256.Int, error) {
	v, err := parseAmount(s)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("amount required: %w", ammerr.ErrInvalidAmount)
	}
	return v, nil
}

// deadline converts unix seconds; 0 means no deadline.
func deadline(unix int64) time.Time {
	if unix <= 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0).UTC()
}

func toPoolResponse(sum engine.PoolSummary) PoolResponse {
	s := sum.State
	out := PoolResponse{
		ID:              s.ID.String(),
		Pair:            sum.Pair,
		Token0:          s.Token0.String(),
		Token1:          s.Token1.String(),
		FeeBps:          s.FeeTierBps,
		FeeLabel:        fees.Label(s.FeeTierBps),
		Curve:           string(s.Curve),
		Amplification:   s.Amplification,
		Reserve0:        dec(s.Reserve0),
		Reserve1:        dec(s.Reserve1),
		TotalShares:     dec(s.TotalShares),
		CumulativeFees0: dec(s.CumulativeFees0),
		CumulativeFees1: dec(s.CumulativeFees1),
		FeeVault0:       dec(s.FeeVault0),
		FeeVault1:       dec(s.FeeVault1),
		Volume0:         dec(s.Volume0),
		Volume1:         dec(s.Volume1),
		SwapCount:       s.SwapCount,
		CreatedAt:       s.CreatedAt,
		Scale:           fixedpoint.Decimals,
	}
	if sum.SpotPrice != nil {
		out.SpotPrice = fixedpoint.FormatWAD(sum.SpotPrice)
	}
	return out
}

func toStatsResponse(st pool.Stats) StatsResponse {
	return StatsResponse{
		TVLToken1:     dec(st.TVLToken1),
		FeesToken1:    dec(st.FeesToken1),
		FeeAPRBps:     st.FeeAPRBps,
		FeeAPRPercent: fixedpoint.FormatBpsPercent(st.FeeAPRBps),
		SwapCount:     st.SwapCount,
		AgeSeconds:    int64(st.Age / time.Second),
	}
}

func toPositionResponse(v ledger.View) PositionResponse {
	p := v.Position
	return PositionResponse{
		ID:           p.ID,
		Handle:       v.Handle,
		PoolID:       p.PoolID.String(),
		Owner:        p.Owner.String(),
		Shares:       dec(p.Shares),
		Amount0:      dec(v.Amount0),
		Amount1:      dec(v.Amount1),
		Pending0:     dec(v.Pending0),
		Pending1:     dec(v.Pending1),
		EntryPrice:   fixedpoint.FormatWAD(p.EntryPrice),
		CurrentPrice: fixedpoint.FormatWAD(v.CurrentPrice),
		ValueToken1:  dec(v.ValueToken1),
		ILBps:        v.IL.LossBps,
		ILPercent:    v.IL.Percent(),
		Metadata:     v.Metadata,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		Scale:        fixedpoint.Decimals,
	}
}

func toLiquidityResponse(r engine.LiquidityResult) LiquidityResponse {
	return LiquidityResponse{
		PositionID: r.PositionID,
		Handle:     r.Handle,
		Shares:     dec(r.Shares),
		Amount0:    dec(r.Amount0),
		Amount1:    dec(r.Amount1),
		Pool:       toPoolResponse(r.Pool),
		Scale:      fixedpoint.Decimals,
	}
}
