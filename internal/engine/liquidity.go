package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-ledger/internal/ammerr"
	"github.com/aman-zulfiqar/amm-ledger/internal/ledger"
	"github.com/aman-zulfiqar/amm-ledger/internal/models"
	"github.com/aman-zulfiqar/amm-ledger/internal/pool"
)

// AddLiquidity deposits into a pool and mints or tops up the depositor's
// position. The position enters at the spot price after the deposit.
func (e *Engine) AddLiquidity(ctx context.Context, req AddLiquidityRequest, now time.Time) (LiquidityResult, error) {
	if err := ctx.Err(); err != nil {
		return LiquidityResult{}, err
	}
	fields := logrus.Fields{"pool": req.PoolID.String(), "position": req.PositionID, "owner": req.Owner.String()}

	p, err := e.registry.Get(req.PoolID)
	if err != nil {
		return LiquidityResult{}, e.reject("add_liquidity", fields, err)
	}

	unlock := e.lock(req.PoolID)
	defer unlock()

	if req.PositionID != 0 {
		if err := e.ledger.Authorize(req.PositionID, req.PoolID, req.Owner); err != nil {
			return LiquidityResult{}, e.reject("add_liquidity", fields, err)
		}
	}
	st, err := e.stageDeposit(p, req, now)
	if err != nil {
		return LiquidityResult{}, e.reject("add_liquidity", fields, err)
	}
	if err := p.Commit(st.transition); err != nil {
		return LiquidityResult{}, e.reject("add_liquidity", fields, err)
	}
	id := e.ledger.Apply(st.change)
	return e.finishDeposit(ctx, p, req, st, id, fields, now), nil
}

// stagedDeposit is a fully computed deposit: the pool transition and the
// position change that go with it. Nothing has been written yet.
type stagedDeposit struct {
	result     pool.LiquidityResult
	transition pool.Transition
	change     ledger.Change
}

// stageDeposit runs every step of a deposit that can fail, so the caller only
// commits once all of them have passed.
func (e *Engine) stageDeposit(p *pool.Pool, req AddLiquidityRequest, now time.Time) (stagedDeposit, error) {
	dep, tr, err := p.PreviewAdd(req.Amount0, req.Amount1, req.MinShares, req.Deadline, now)
	if err != nil {
		return stagedDeposit{}, err
	}
	spot, err := pool.SpotPrice(p.Curve(), tr.Next)
	if err != nil {
		return stagedDeposit{}, err
	}
	change, err := e.ledger.PrepareMint(ledger.MintRequest{
		PositionID: req.PositionID,
		PoolID:     req.PoolID,
		Owner:      req.Owner,
		Shares:     dep.Shares,
		Growth:     tr.Next.FeeGrowth,
		SpotPrice:  spot,
		Now:        now,
	})
	if err != nil {
		return stagedDeposit{}, err
	}
	return stagedDeposit{result: dep, transition: tr, change: change}, nil
}

func (e *Engine) finishDeposit(ctx context.Context, p *pool.Pool, req AddLiquidityRequest, st stagedDeposit, id uint64, fields logrus.Fields, now time.Time) LiquidityResult {
	dep, after := st.result, st.transition.Next
	res := LiquidityResult{
		PositionID: id,
		Handle:     ledger.Handle(id),
		Shares:     dep.Shares,
		Amount0:    dep.Amount0,
		Amount1:    dep.Amount1,
		Pool:       e.summarize(after, p),
	}
	fields["position"] = id
	e.logger.WithFields(fields).WithFields(logrus.Fields{
		"shares":  dep.Shares.Dec(),
		"amount0": dep.Amount0.Dec(),
		"amount1": dep.Amount1.Dec(),
	}).Debug("liquidity added")

	e.emit(ctx, &models.LedgerEvent{
		Type:       models.EventLiquidityAdded,
		Timestamp:  now,
		PoolID:     req.PoolID.String(),
		PositionID: id,
		Owner:      req.Owner.String(),
		Pair:       res.Pool.Pair,
		Amount0:    dep.Amount0.Dec(),
		Amount1:    dep.Amount1.Dec(),
		Shares:     dep.Shares.Dec(),
		Reserve0:   after.Reserve0.Dec(),
		Reserve1:   after.Reserve1.Dec(),
	})
	return res
}

// RemoveLiquidity burns shares of a position for their slice of the reserves.
// Fees earned so far stay claimable on the position.
func (e *Engine) RemoveLiquidity(ctx context.Context, req RemoveLiquidityRequest, now time.Time) (LiquidityResult, error) {
	if err := ctx.Err(); err != nil {
		return LiquidityResult{}, err
	}
	fields := logrus.Fields{"position": req.PositionID, "owner": req.Owner.String()}

	pos, p, unlock, err := e.lockPosition(req.PositionID, req.Owner)
	if err != nil {
		return LiquidityResult{}, e.reject("remove_liquidity", fields, err)
	}
	defer unlock()
	fields["pool"] = pos.PoolID.String()

	if req.Shares == nil || req.Shares.IsZero() {
		return LiquidityResult{}, e.reject("remove_liquidity", fields,
			fmt.Errorf("shares must be positive: %w", ammerr.ErrInvalidAmount))
	}
	if pos.Shares.Lt(req.Shares) {
		return LiquidityResult{}, e.reject("remove_liquidity", fields,
			fmt.Errorf("position %d holds %s shares, asked %s: %w",
				pos.ID, pos.Shares.Dec(), req.Shares.Dec(), ammerr.ErrInsufficientShares))
	}
	out0, out1, tr, err := p.PreviewRemove(req.Shares, req.MinAmount0, req.MinAmount1, req.Deadline, now)
	if err != nil {
		return LiquidityResult{}, e.reject("remove_liquidity", fields, err)
	}
	after := tr.Next
	change, err := e.ledger.PrepareDecrease(pos.ID, pos.PoolID, req.Owner, req.Shares, after.FeeGrowth, now)
	if err != nil {
		return LiquidityResult{}, e.reject("remove_liquidity", fields, err)
	}
	if err := p.Commit(tr); err != nil {
		return LiquidityResult{}, e.reject("remove_liquidity", fields, err)
	}
	e.ledger.Apply(change)

	res := LiquidityResult{
		PositionID: pos.ID,
		Handle:     pos.Handle(),
		Shares:     req.Shares.Clone(),
		Amount0:    out0,
		Amount1:    out1,
		Pool:       e.summarize(after, p),
	}
	e.logger.WithFields(fields).WithFields(logrus.Fields{
		"shares":  req.Shares.Dec(),
		"amount0": out0.Dec(),
		"amount1": out1.Dec(),
	}).Debug("liquidity removed")

	e.emit(ctx, &models.LedgerEvent{
		Type:       models.EventLiquidityRemoved,
		Timestamp:  now,
		PoolID:     pos.PoolID.String(),
		PositionID: pos.ID,
		Owner:      req.Owner.String(),
		Pair:       res.Pool.Pair,
		Amount0:    out0.Dec(),
		Amount1:    out1.Dec(),
		Shares:     req.Shares.Dec(),
		Reserve0:   after.Reserve0.Dec(),
		Reserve1:   after.Reserve1.Dec(),
	})
	return res, nil
}

// lockPosition resolves a position's pool, enters its single-writer section and
// re-reads the position inside it. The caller must release the returned unlock.
func (e *Engine) lockPosition(positionID uint64, owner models.OwnerID) (ledger.Position, *pool.Pool, func(), error) {
	pos, err := e.ledger.Get(positionID)
	if err != nil {
		return ledger.Position{}, nil, nil, err
	}
	p, err := e.registry.Get(pos.PoolID)
	if err != nil {
		return ledger.Position{}, nil, nil, err
	}
	unlock := e.lock(pos.PoolID)
	if err := e.ledger.Authorize(positionID, pos.PoolID, owner); err != nil {
		unlock()
		return ledger.Position{}, nil, nil, err
	}
	if pos, err = e.ledger.Get(positionID); err != nil {
		unlock()
		return ledger.Position{}, nil, nil, err
	}
	return pos, p, unlock, nil
}
