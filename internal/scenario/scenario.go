// Package scenario replays a scripted sequence of ledger operations against a
// fresh engine. Scenarios double as executable checks: a step may name the
// error kind it expects, and any other outcome stops the replay.
package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"github.com/aman-zulfiqar/amm-ledger/internal/ammerr"
	"github.com/aman-zulfiqar/amm-ledger/internal/engine"
	"github.com/aman-zulfiqar/amm-ledger/internal/fixedpoint"
	"github.com/aman-zulfiqar/amm-ledger/internal/models"
	"github.com/aman-zulfiqar/amm-ledger/internal/pool"
	"github.com/aman-zulfiqar/amm-ledger/internal/registry"
)

// Op names a scenario step.
type Op string

const (
	OpAdd      Op = "add"
	OpRemove   Op = "remove"
	OpSwap     Op = "swap"
	OpClaim    Op = "claim"
	OpBurn     Op = "burn"
	OpTransfer Op = "transfer"
	OpAdvance  Op = "advance"
)

// Scenario is the JSON document replayed by Run.
type Scenario struct {
	// Start is the clock of the first step; zero uses 2024-01-01 UTC.
	Start time.Time             `json:"start"`
	Pools []registry.SeedConfig `json:"pools"`
	Steps []Step                `json:"steps"`
}

// Step is one operation. Only the fields its Op reads need to be set.
// Amounts are raw fixed-point integers.
type Step struct {
	Op           Op     `json:"op"`
	Pool         int    `json:"pool"`     // index into Scenario.Pools
	Position     uint64 `json:"position"` // 0 on add mints a new position
	Owner        string `json:"owner"`
	To           string `json:"to"`
	TokenIn      string `json:"token_in"`
	AmountIn     string `json:"amount_in"`
	MinAmountOut string `json:"min_amount_out"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	Shares       string `json:"shares"`
	Seconds      int64  `json:"seconds"` // advance only
	ExpectError  string `json:"expect_error"`
}

// StepResult records the outcome of one step.
type StepResult struct {
	Index  int               `json:"index"`
	Op     Op                `json:"op"`
	Kind   string            `json:"kind,omitempty"`
	Error  string            `json:"error,omitempty"`
	Values map[string]string `json:"values,omitempty"`
}

// Report is the outcome of a full replay.
type Report struct {
	Steps []StepResult         `json:"steps"`
	Pools []engine.PoolSummary `json:"-"`
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	var sc Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	return &sc, nil
}

// Run creates the scenario's pools on eng and replays every step. It stops at
// the first step whose outcome differs from its expectation.
func Run(ctx context.Context, eng *engine.Engine, sc *Scenario) (*Report, error) {
	now := sc.Start
	if now.IsZero() {
		now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	defs, err := registry.ParseSeedConfigs(sc.Pools)
	if err != nil {
		return nil, err
	}
	ids := make([]pool.ID, 0, len(defs))
	for _, def := range defs {
		sum, err := eng.CreatePool(ctx, def, now)
		if err != nil {
			return nil, fmt.Errorf("create pool %s: %w", def.Name, err)
		}
		ids = append(ids, sum.State.ID)
	}

	r := &runner{eng: eng, pools: ids}
	report := &Report{Steps: make([]StepResult, 0, len(sc.Steps))}
	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		now = now.Add(time.Second)
		if step.Op == OpAdvance {
			now = now.Add(time.Duration(step.Seconds) * time.Second)
			report.Steps = append(report.Steps, StepResult{Index: i, Op: step.Op})
			continue
		}

		values, err := r.apply(ctx, step, now)
		res := StepResult{Index: i, Op: step.Op, Values: values}
		if err != nil {
			res.Error = err.Error()
			if kind := ammerr.KindOf(err); kind != ammerr.KindUnknown {
				res.Kind = string(kind)
			}
		}
		report.Steps = append(report.Steps, res)

		if err := checkExpectation(step, res, err); err != nil {
			return report, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}

	for sum := range eng.ListPools(ctx) {
		report.Pools = append(report.Pools, sum)
	}
	return report, nil
}

func checkExpectation(step Step, res StepResult, err error) error {
	want := strings.TrimSpace(step.ExpectError)
	switch {
	case want == "" && err != nil:
		return err
	case want != "" && err == nil:
		return fmt.Errorf("expected %s, step succeeded", want)
	case want != "" && !strings.EqualFold(want, res.Kind):
		return fmt.Errorf("expected %s: %w", want, err)
	}
	return nil
}

type runner struct {
	eng   *engine.Engine
	pools []pool.ID
}

func (r *runner) poolID(i int) (pool.ID, error) {
	if i < 0 || i >= len(r.pools) {
		return pool.ID{}, fmt.Errorf("pool index %d out of range", i)
	}
	return r.pools[i], nil
}

func (r *runner) apply(ctx context.Context, s Step, now time.Time) (map[string]string, error) {
	switch s.Op {
	case OpAdd:
		id, err := r.poolID(s.Pool)
		if err != nil {
			return nil, err
		}
		owner, err := models.ParseOwnerID(s.Owner)
		if err != nil {
			return nil, err
		}
		a0, err := amount(s.Amount0)
		if err != nil {
			return nil, err
		}
		a1, err := amount(s.Amount1)
		if err != nil {
			return nil, err
		}
		res, err := r.eng.AddLiquidity(ctx, engine.AddLiquidityRequest{
			PoolID: id, PositionID: s.Position, Owner: owner, Amount0: a0, Amount1: a1,
		}, now)
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"position": fmt.Sprint(res.PositionID),
			"shares":   res.Shares.Dec(),
			"amount0":  res.Amount0.Dec(),
			"amount1":  res.Amount1.Dec(),
		}, nil

	case OpRemove:
		owner, err := models.ParseOwnerID(s.Owner)
		if err != nil {
			return nil, err
		}
		shares, err := amount(s.Shares)
		if err != nil {
			return nil, err
		}
		res, err := r.eng.RemoveLiquidity(ctx, engine.RemoveLiquidityRequest{
			PositionID: s.Position, Owner: owner, Shares: shares,
		}, now)
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"amount0": res.Amount0.Dec(),
			"amount1": res.Amount1.Dec(),
		}, nil

	case OpSwap:
		id, err := r.poolID(s.Pool)
		if err != nil {
			return nil, err
		}
		tokenIn, err := models.ParseTokenID(s.TokenIn)
		if err != nil {
			return nil, err
		}
		in, err := amount(s.AmountIn)
		if err != nil {
			return nil, err
		}
		var minOut *uint256.Int
		if s.MinAmountOut != "" {
			if minOut, err = amount(s.MinAmountOut); err != nil {
				return nil, err
			}
		}
		res, err := r.eng.Swap(ctx, engine.SwapRequest{
			PoolID: id, TokenIn: tokenIn, AmountIn: in, MinAmountOut: minOut,
		}, now)
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"amount_out":       res.Quote.AmountOut.Dec(),
			"fee":              res.Quote.FeeAmount.Dec(),
			"price_impact_bps": fmt.Sprint(res.Quote.PriceImpactBps),
		}, nil

	case OpClaim:
		owner, err := models.ParseOwnerID(s.Owner)
		if err != nil {
			return nil, err
		}
		res, err := r.eng.ClaimFees(ctx, s.Position, owner, now)
		if err != nil {
			return nil, err
		}
		return map[string]string{"amount0": res.Amount0.Dec(), "amount1": res.Amount1.Dec()}, nil

	case OpBurn:
		owner, err := models.ParseOwnerID(s.Owner)
		if err != nil {
			return nil, err
		}
		res, err := r.eng.BurnPosition(ctx, s.Position, owner, now)
		if err != nil {
			return nil, err
		}
		return map[string]string{"claimed0": res.Claimed0.Dec(), "claimed1": res.Claimed1.Dec()}, nil

	case OpTransfer:
		from, err := models.ParseOwnerID(s.Owner)
		if err != nil {
			return nil, err
		}
		to, err := models.ParseOwnerID(s.To)
		if err != nil {
			return nil, err
		}
		view, err := r.eng.TransferPosition(ctx, s.Position, from, to, now)
		if err != nil {
			return nil, err
		}
		return map[string]string{"owner": view.Position.Owner.String()}, nil
	}
	return nil, errors.New("unknown op " + string(s.Op))
}

func amount(s string) (*uint256.Int, error) {
	if strings.TrimSpace(s) == "" {
		return fixedpoint.Zero(), nil
	}
	return fixedpoint.Parse(s)
}
