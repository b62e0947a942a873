package pool

import (
	"time"

	"github.com/holiman/uint256"

	"github.com/aman-zulfiqar/amm-ledger/internal/curve"
	"github.com/aman-zulfiqar/amm-ledger/internal/fixedpoint"
)

const secondsPerYear = 365 * 24 * 60 * 60

// Stats are derived figures for dashboards. Values "in token1" price token0 at
// the current spot.
type Stats struct {
	SpotPrice  *uint256.Int // token0 in token1, WAD; zero for an empty pool
	TVLToken1  *uint256.Int
	FeesToken1 *uint256.Int
	FeeAPRBps  uint64
	SwapCount  uint64
	Age        time.Duration
}

// ComputeStats derives dashboard figures from a snapshot. Fee APR annualizes
// the fees earned so far over the pool's age relative to current TVL.
func ComputeStats(c curve.Curve, s State, now time.Time) (Stats, error) {
	st := Stats{
		SpotPrice:  fixedpoint.Zero(),
		TVLToken1:  fixedpoint.Zero(),
		FeesToken1: fixedpoint.Zero(),
		SwapCount:  s.SwapCount,
		Age:        now.Sub(s.CreatedAt),
	}
	if s.Reserve0.IsZero() || s.Reserve1.IsZero() {
		return st, nil
	}
	spot, err := c.SpotPrice(s.Reserves())
	if err != nil {
		return Stats{}, err
	}
	st.SpotPrice = spot

	if st.TVLToken1, err = ValueInToken1(s.Reserve0, s.Reserve1, spot); err != nil {
		return Stats{}, err
	}
	if st.FeesToken1, err = ValueInToken1(s.CumulativeFees0, s.CumulativeFees1, spot); err != nil {
		return Stats{}, err
	}

	secs := uint64(st.Age / time.Second)
	if secs == 0 || st.TVLToken1.IsZero() || st.FeesToken1.IsZero() {
		return st, nil
	}
	// apr = fees / tvl * (year / age) * 10000
	num, err := fixedpoint.Mul(st.FeesToken1, uint256.NewInt(fixedpoint.Bps*secondsPerYear))
	if err != nil {
		return Stats{}, err
	}
	den, err := fixedpoint.Mul(st.TVLToken1, uint256.NewInt(secs))
	if err != nil {
		return Stats{}, err
	}
	apr, err := fixedpoint.Div(num, den)
	if err != nil {
		return Stats{}, err
	}
	if apr.IsUint64() {
		st.FeeAPRBps = apr.Uint64()
	} else {
		st.FeeAPRBps = ^uint64(0)
	}
	return st, nil
}

// ValueInToken1 returns amount0 * spot / 1e18 + amount1.
func ValueInToken1(amount0, amount1, spot *uint256.Int) (*uint256.Int, error) {
	v0, err := fixedpoint.MulDiv(amount0, spot, fixedpoint.WAD)
	if err != nil {
		return nil, err
	}
	return fixedpoint.Add(v0, amount1)
}
