package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-ledger/internal/ammerr"
	"github.com/aman-zulfiqar/amm-ledger/internal/fixedpoint"
	"github.com/aman-zulfiqar/amm-ledger/internal/ledger"
	"github.com/aman-zulfiqar/amm-ledger/internal/models"
	"github.com/aman-zulfiqar/amm-ledger/internal/pool"
)

// ClaimFees pays out every fee the position has earned. Claiming twice with no
// swap in between fails with NothingToClaim.
func (e *Engine) ClaimFees(ctx context.Context, positionID uint64, owner models.OwnerID, now time.Time) (ClaimResult, error) {
	if err := ctx.Err(); err != nil {
		return ClaimResult{}, err
	}
	fields := logrus.Fields{"position": positionID, "owner": owner.String()}

	pos, p, unlock, err := e.lockPosition(positionID, owner)
	if err != nil {
		return ClaimResult{}, e.reject("claim_fees", fields, err)
	}
	defer unlock()

	a0, a1, err := e.claimLocked(pos, p, owner, now)
	if err != nil {
		return ClaimResult{}, e.reject("claim_fees", fields, err)
	}

	e.logger.WithFields(fields).WithFields(logrus.Fields{
		"amount0": a0.Dec(),
		"amount1": a1.Dec(),
	}).Debug("fees claimed")
	e.emitClaim(ctx, pos, p, owner, a0, a1, now)
	return ClaimResult{PositionID: positionID, Amount0: a0, Amount1: a1}, nil
}

// claimLocked must run inside the pool's single-writer section.
func (e *Engine) claimLocked(pos ledger.Position, p *pool.Pool, owner models.OwnerID, now time.Time) (*uint256.Int, *uint256.Int, error) {
	growth := p.Snapshot().FeeGrowth
	a0, a1, err := e.ledger.Pending(pos.ID, growth)
	if err != nil {
		return nil, nil, err
	}
	if a0.IsZero() && a1.IsZero() {
		return nil, nil, fmt.Errorf("position %d: %w", pos.ID, ammerr.ErrNothingToClaim)
	}
	if err := p.PayoutFees(a0, a1, now); err != nil {
		return nil, nil, err
	}
	return e.ledger.ClaimFees(pos.ID, pos.PoolID, owner, growth, now)
}

func (e *Engine) emitClaim(ctx context.Context, pos ledger.Position, p *pool.Pool, owner models.OwnerID, a0, a1 *uint256.Int, now time.Time) {
	s := p.Snapshot()
	e.emit(ctx, &models.LedgerEvent{
		Type:       models.EventFeesClaimed,
		Timestamp:  now,
		PoolID:     pos.PoolID.String(),
		PositionID: pos.ID,
		Owner:      owner.String(),
		Pair:       e.pair(s),
		Amount0:    a0.Dec(),
		Amount1:    a1.Dec(),
	})
}

// BurnPosition destroys a position without shares. Fees still owed to it are
// paid out in the same section first.
func (e *Engine) BurnPosition(ctx context.Context, positionID uint64, owner models.OwnerID, now time.Time) (BurnResult, error) {
	if err := ctx.Err(); err != nil {
		return BurnResult{}, err
	}
	fields := logrus.Fields{"position": positionID, "owner": owner.String()}

	pos, p, unlock, err := e.lockPosition(positionID, owner)
	if err != nil {
		return BurnResult{}, e.reject("burn_position", fields, err)
	}
	defer unlock()

	if !pos.Shares.IsZero() {
		return BurnResult{}, e.reject("burn_position", fields,
			fmt.Errorf("position %d holds %s shares: %w", pos.ID, pos.Shares.Dec(), ammerr.ErrNonZeroShares))
	}
	res := BurnResult{Claimed0: fixedpoint.Zero(), Claimed1: fixedpoint.Zero()}
	a0, a1, err := e.claimLocked(pos, p, owner, now)
	switch {
	case err == nil:
		res.Claimed0, res.Claimed1 = a0, a1
		e.emitClaim(ctx, pos, p, owner, a0, a1, now)
	case errors.Is(err, ammerr.ErrNothingToClaim):
	default:
		return BurnResult{}, e.reject("burn_position", fields, err)
	}

	if res.Position, err = e.ledger.Burn(pos.ID, pos.PoolID, owner, p.Snapshot().FeeGrowth); err != nil {
		return BurnResult{}, e.reject("burn_position", fields, err)
	}

	e.logger.WithFields(fields).Debug("position burned")
	e.emit(ctx, &models.LedgerEvent{
		Type:       models.EventPositionBurned,
		Timestamp:  now,
		PoolID:     pos.PoolID.String(),
		PositionID: pos.ID,
		Owner:      owner.String(),
		Pair:       e.pair(p.Snapshot()),
		Amount0:    res.Claimed0.Dec(),
		Amount1:    res.Claimed1.Dec(),
	})
	return res, nil
}

// TransferPosition hands a position NFT to a new holder. Unclaimed fees move
// with it.
func (e *Engine) TransferPosition(ctx context.Context, positionID uint64, from, to models.OwnerID, now time.Time) (ledger.View, error) {
	if err := ctx.Err(); err != nil {
		return ledger.View{}, err
	}
	fields := logrus.Fields{"position": positionID, "from": from.String(), "to": to.String()}

	pos, p, unlock, err := e.lockPosition(positionID, from)
	if err != nil {
		return ledger.View{}, e.reject("transfer_position", fields, err)
	}
	defer unlock()

	if err := e.ledger.Transfer(pos.ID, pos.PoolID, from, to, now); err != nil {
		return ledger.View{}, e.reject("transfer_position", fields, err)
	}
	moved, err := e.ledger.Get(pos.ID)
	if err != nil {
		return ledger.View{}, e.reject("transfer_position", fields, err)
	}
	view, err := e.view(moved, p)
	if err != nil {
		return ledger.View{}, e.reject("transfer_position", fields, err)
	}

	e.logger.WithFields(fields).Debug("position transferred")
	e.emit(ctx, &models.LedgerEvent{
		Type:       models.EventPositionTransfer,
		Timestamp:  now,
		PoolID:     pos.PoolID.String(),
		PositionID: pos.ID,
		Owner:      to.String(),
		Pair:       e.pair(p.Snapshot()),
		Shares:     moved.Shares.Dec(),
	})
	return view, nil
}

// GetPosition returns a position joined with its pool's current state.
func (e *Engine) GetPosition(ctx context.Context, positionID uint64) (ledger.View, error) {
	if err := ctx.Err(); err != nil {
		return ledger.View{}, err
	}
	pos, err := e.ledger.Get(positionID)
	if err != nil {
		return ledger.View{}, err
	}
	p, err := e.registry.Get(pos.PoolID)
	if err != nil {
		return ledger.View{}, err
	}
	return e.view(pos, p)
}

// PositionsByOwner lists the views of every position an owner holds.
func (e *Engine) PositionsByOwner(ctx context.Context, owner models.OwnerID) ([]ledger.View, error) {
	positions := e.ledger.ByOwner(owner)
	out := make([]ledger.View, 0, len(positions))
	for _, pos := range positions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := e.registry.Get(pos.PoolID)
		if err != nil {
			return nil, err
		}
		v, err := e.view(pos, p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (e *Engine) view(pos ledger.Position, p *pool.Pool) (ledger.View, error) {
	s := p.Snapshot()
	spot, err := pool.SpotPrice(p.Curve(), s)
	if err != nil && !errors.Is(err, ammerr.ErrInsufficientLiquidity) {
		return ledger.View{}, err
	}
	return ledger.NewView(pos, s, spot, e.pair(s))
}
