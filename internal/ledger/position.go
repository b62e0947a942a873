package ledger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/mr-tron/base58"

	"github.com/aman-zulfiqar/amm-ledger/internal/ammerr"
	"github.com/aman-zulfiqar/amm-ledger/internal/fees"
	"github.com/aman-zulfiqar/amm-ledger/internal/fixedpoint"
	"github.com/aman-zulfiqar/amm-ledger/internal/models"
	"github.com/aman-zulfiqar/amm-ledger/internal/pool"
)

// Position is an NFT-bound liquidity claim on one pool.
type Position struct {
	ID         uint64
	PoolID     pool.ID
	Owner      models.OwnerID
	Shares     *uint256.Int
	FeeDebt    fees.Growth // fee growth at the last settlement
	FeesOwed0  *uint256.Int
	FeesOwed1  *uint256.Int
	EntryPrice *uint256.Int // token0 in token1, WAD, share-weighted over deposits
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Handle is the public NFT handle of the position.
func (p Position) Handle() string { return Handle(p.ID) }

func (p Position) clone() Position {
	c := p
	c.Shares = fixedpoint.Clone(p.Shares)
	c.FeeDebt = p.FeeDebt.Clone()
	c.FeesOwed0 = fixedpoint.Clone(p.FeesOwed0)
	c.FeesOwed1 = fixedpoint.Clone(p.FeesOwed1)
	c.EntryPrice = fixedpoint.Clone(p.EntryPrice)
	return c
}

// pending returns owed fees plus whatever accrued since the last settlement.
func (p Position) pending(growth fees.Growth) (*uint256.Int, *uint256.Int, error) {
	a0, err := fees.Owed(p.Shares, growth.Token0, p.FeeDebt.Token0)
	if err != nil {
		return nil, nil, err
	}
	a1, err := fees.Owed(p.Shares, growth.Token1, p.FeeDebt.Token1)
	if err != nil {
		return nil, nil, err
	}
	if a0, err = fixedpoint.Add(a0, p.FeesOwed0); err != nil {
		return nil, nil, err
	}
	if a1, err = fixedpoint.Add(a1, p.FeesOwed1); err != nil {
		return nil, nil, err
	}
	return a0, a1, nil
}

// settled returns a copy with pending fees moved into FeesOwed and the debt
// advanced to growth. Share changes always go through here first.
func (p Position) settled(growth fees.Growth) (Position, error) {
	owed0, owed1, err := p.pending(growth)
	if err != nil {
		return Position{}, err
	}
	next := p.clone()
	next.FeesOwed0, next.FeesOwed1 = owed0, owed1
	next.FeeDebt = growth.Clone()
	return next, nil
}

// Handle encodes a position id as a base58 NFT handle.
func Handle(id uint64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return base58.Encode(b[:])
}

// ParseHandle decodes a base58 NFT handle back to the position id.
func ParseHandle(s string) (uint64, error) {
	b, err := base58.Decode(s)
	if err != nil || len(b) != 8 {
		return 0, fmt.Errorf("position handle %q: %w", s, ammerr.ErrPositionNotFound)
	}
	return binary.BigEndian.Uint64(b), nil
}
