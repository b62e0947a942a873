// Package ledger tracks NFT liquidity positions: their shares, the fees they
// have earned and the price they entered at.
//
// Fees are settled lazily. A position stores the pool's fee growth at its last
// settlement (its debt); what it earned since is shares * (growth - debt). Every
// change to a position's shares settles first, so no deposit can earn fees that
// accrued before it and no fee is counted twice.
package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"github.com/aman-zulfiqar/amm-ledger/internal/ammerr"
	"github.com/aman-zulfiqar/amm-ledger/internal/fees"
	"github.com/aman-zulfiqar/amm-ledger/internal/fixedpoint"
	"github.com/aman-zulfiqar/amm-ledger/internal/models"
	"github.com/aman-zulfiqar/amm-ledger/internal/pool"
)

// Ledger is an arena of positions keyed by id. Ids start at 1 and are never
// reused.
type Ledger struct {
	mu        sync.RWMutex
	lastID    uint64
	positions map[uint64]*Position
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{positions: make(map[uint64]*Position)}
}

// MintRequest adds shares to a new or existing position.
type MintRequest struct {
	PositionID uint64 // zero mints a new position
	PoolID     pool.ID
	Owner      models.OwnerID
	Shares     *uint256.Int
	Growth     fees.Growth  // pool fee growth at the time of the deposit
	SpotPrice  *uint256.Int // token0 in token1 after the deposit, WAD
	Now        time.Time
}

// Authorize checks that positionID exists on poolID and is held by owner.
func (l *Ledger) Authorize(positionID uint64, poolID pool.ID, owner models.OwnerID) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, err := l.lookup(positionID, poolID, owner)
	return err
}

// Change is a validated position update that has not been applied yet.
type Change struct {
	next  Position
	fresh bool
}

// MintOrUpdate creates a position or grows an existing one and returns its id.
func (l *Ledger) MintOrUpdate(req MintRequest) (uint64, error) {
	c, err := l.PrepareMint(req)
	if err != nil {
		return 0, err
	}
	return l.Apply(c), nil
}

// PrepareMint runs every check and computation of MintOrUpdate without
// touching the ledger.
func (l *Ledger) PrepareMint(req MintRequest) (Change, error) {
	if req.Shares == nil || req.Shares.IsZero() {
		return Change{}, fmt.Errorf("mint zero shares: %w", ammerr.ErrInvalidAmount)
	}
	spot := fixedpoint.Clone(req.SpotPrice)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if req.PositionID == 0 {
		return Change{fresh: true, next: Position{
			PoolID:     req.PoolID,
			Owner:      req.Owner,
			Shares:     fixedpoint.Clone(req.Shares),
			FeeDebt:    req.Growth.Clone(),
			FeesOwed0:  fixedpoint.Zero(),
			FeesOwed1:  fixedpoint.Zero(),
			EntryPrice: spot,
			CreatedAt:  req.Now,
			UpdatedAt:  req.Now,
		}}, nil
	}

	cur, err := l.lookup(req.PositionID, req.PoolID, req.Owner)
	if err != nil {
		return Change{}, err
	}
	next, err := cur.settled(req.Growth)
	if err != nil {
		return Change{}, err
	}
	total, err := fixedpoint.Add(cur.Shares, req.Shares)
	if err != nil {
		return Change{}, err
	}
	// entry = (entry * shares + spot * added) / total
	oldWeight, err := fixedpoint.Mul(cur.EntryPrice, cur.Shares)
	if err != nil {
		return Change{}, err
	}
	newWeight, err := fixedpoint.Mul(spot, req.Shares)
	if err != nil {
		return Change{}, err
	}
	weight, err := fixedpoint.Add(oldWeight, newWeight)
	if err != nil {
		return Change{}, err
	}
	if next.EntryPrice, err = fixedpoint.Div(weight, total); err != nil {
		return Change{}, err
	}
	next.Shares = total
	next.UpdatedAt = req.Now
	return Change{next: next}, nil
}

// Decrease removes shares from a position after settling its fees.
func (l *Ledger) Decrease(positionID uint64, poolID pool.ID, owner models.OwnerID, shares *uint256.Int, growth fees.Growth, now time.Time) error {
	c, err := l.PrepareDecrease(positionID, poolID, owner, shares, growth, now)
	if err != nil {
		return err
	}
	l.Apply(c)
	return nil
}

// PrepareDecrease is Decrease without the write.
func (l *Ledger) PrepareDecrease(positionID uint64, poolID pool.ID, owner models.OwnerID, shares *uint256.Int, growth fees.Growth, now time.Time) (Change, error) {
	if shares == nil || shares.IsZero() {
		return Change{}, fmt.Errorf("decrease by zero shares: %w", ammerr.ErrInvalidAmount)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	cur, err := l.lookup(positionID, poolID, owner)
	if err != nil {
		return Change{}, err
	}
	if cur.Shares.Lt(shares) {
		return Change{}, fmt.Errorf("position %d holds %s shares, asked %s: %w",
			positionID, cur.Shares.Dec(), shares.Dec(), ammerr.ErrInsufficientShares)
	}
	next, err := cur.settled(growth)
	if err != nil {
		return Change{}, err
	}
	next.Shares = new(uint256.Int).Sub(cur.Shares, shares)
	next.UpdatedAt = now
	return Change{next: next}, nil
}

// Apply writes a prepared change and returns the position id. A fresh
// position gets the next id here. Callers serialize prepare and apply per
// pool so the change is still based on the stored position.
func (l *Ledger) Apply(c Change) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := c.next
	if c.fresh {
		l.lastID++
		next.ID = l.lastID
	}
	l.positions[next.ID] = &next
	return next.ID
}

// Pending returns the fees a claim would pay out right now.
func (l *Ledger) Pending(positionID uint64, growth fees.Growth) (*uint256.Int, *uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.positions[positionID]
	if !ok {
		return nil, nil, fmt.Errorf("position %d: %w", positionID, ammerr.ErrPositionNotFound)
	}
	return p.pending(growth)
}

// ClaimFees pays out everything pending and resets the position's fee state.
// A second claim with no new swaps in between fails with NothingToClaim.
func (l *Ledger) ClaimFees(positionID uint64, poolID pool.ID, owner models.OwnerID, growth fees.Growth, now time.Time) (*uint256.Int, *uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, err := l.lookup(positionID, poolID, owner)
	if err != nil {
		return nil, nil, err
	}
	a0, a1, err := cur.pending(growth)
	if err != nil {
		return nil, nil, err
	}
	if a0.IsZero() && a1.IsZero() {
		return nil, nil, fmt.Errorf("position %d: %w", positionID, ammerr.ErrNothingToClaim)
	}
	next := cur.clone()
	next.FeesOwed0, next.FeesOwed1 = fixedpoint.Zero(), fixedpoint.Zero()
	next.FeeDebt = growth.Clone()
	next.UpdatedAt = now
	l.positions[positionID] = &next
	return a0, a1, nil
}

// Burn destroys an empty position. Fees still owed must be claimed first.
func (l *Ledger) Burn(positionID uint64, poolID pool.ID, owner models.OwnerID, growth fees.Growth) (Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, err := l.lookup(positionID, poolID, owner)
	if err != nil {
		return Position{}, err
	}
	if !cur.Shares.IsZero() {
		return Position{}, fmt.Errorf("position %d holds %s shares: %w", positionID, cur.Shares.Dec(), ammerr.ErrNonZeroShares)
	}
	a0, a1, err := cur.pending(growth)
	if err != nil {
		return Position{}, err
	}
	if !a0.IsZero() || !a1.IsZero() {
		return Position{}, fmt.Errorf("position %d has unclaimed fees: %w", positionID, ammerr.ErrInsufficientBalance)
	}
	delete(l.positions, positionID)
	return cur.clone(), nil
}

// Transfer hands the position NFT to a new holder.
func (l *Ledger) Transfer(positionID uint64, poolID pool.ID, from, to models.OwnerID, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, err := l.lookup(positionID, poolID, from)
	if err != nil {
		return err
	}
	if to.IsZero() {
		return fmt.Errorf("transfer to zero address: %w", ammerr.ErrInvalidAmount)
	}
	next := cur.clone()
	next.Owner = to
	next.UpdatedAt = now
	l.positions[positionID] = &next
	return nil
}

// Get returns a copy of a position.
func (l *Ledger) Get(positionID uint64) (Position, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.positions[positionID]
	if !ok {
		return Position{}, fmt.Errorf("position %d: %w", positionID, ammerr.ErrPositionNotFound)
	}
	return p.clone(), nil
}

// ByOwner lists the positions held by owner in id order.
func (l *Ledger) ByOwner(owner models.OwnerID) []Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Position
	for _, p := range l.positions {
		if p.Owner == owner {
			out = append(out, p.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// lookup must be called with l.mu held.
func (l *Ledger) lookup(positionID uint64, poolID pool.ID, owner models.OwnerID) (*Position, error) {
	p, ok := l.positions[positionID]
	if !ok || p.PoolID != poolID {
		return nil, fmt.Errorf("position %d in pool %s: %w", positionID, poolID, ammerr.ErrPositionNotFound)
	}
	if p.Owner != owner {
		return nil, fmt.Errorf("position %d not held by %s: %w", positionID, owner, ammerr.ErrUnauthorized)
	}
	return p, nil
}
