package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/amm-ledger/internal/ammerr"
	"github.com/aman-zulfiqar/amm-ledger/internal/fees"
	"github.com/aman-zulfiqar/amm-ledger/internal/fixedpoint"
	"github.com/aman-zulfiqar/amm-ledger/internal/models"
	"github.com/aman-zulfiqar/amm-ledger/internal/pool"
)

var (
	now   = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	pid   = pool.ID{7}
	alice = models.OwnerID{0xa1}
	bob   = models.OwnerID{0xb0}
	wad   = uint256.NewInt(1_000_000_000_000_000_000)
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func growth(g0, g1 uint64) fees.Growth {
	return fees.Growth{Token0: u(g0), Token1: u(g1)}
}

func mint(t *testing.T, l *Ledger, id uint64, shares uint64, g fees.Growth) uint64 {
	t.Helper()
	got, err := l.MintOrUpdate(MintRequest{
		PositionID: id,
		PoolID:     pid,
		Owner:      alice,
		Shares:     u(shares),
		Growth:     g,
		SpotPrice:  wad,
		Now:        now,
	})
	require.NoError(t, err)
	return got
}

func TestMintAllocatesSequentialIDs(t *testing.T) {
	l := New()
	assert.Equal(t, uint64(1), mint(t, l, 0, 100, fees.NewGrowth()))
	assert.Equal(t, uint64(2), mint(t, l, 0, 100, fees.NewGrowth()))
	assert.Equal(t, uint64(1), mint(t, l, 1, 50, fees.NewGrowth()))

	p, err := l.Get(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), p.Shares.Uint64())
	assert.Equal(t, Handle(1), p.Handle())
}

func TestMintRejectsForeignPosition(t *testing.T) {
	l := New()
	id := mint(t, l, 0, 100, fees.NewGrowth())

	_, err := l.MintOrUpdate(MintRequest{PositionID: id, PoolID: pid, Owner: bob, Shares: u(1)})
	assert.True(t, errors.Is(err, ammerr.ErrUnauthorized))

	_, err = l.MintOrUpdate(MintRequest{PositionID: id, PoolID: pool.ID{8}, Owner: alice, Shares: u(1)})
	assert.True(t, errors.Is(err, ammerr.ErrPositionNotFound))

	_, err = l.MintOrUpdate(MintRequest{PositionID: 99, PoolID: pid, Owner: alice, Shares: u(1)})
	assert.True(t, errors.Is(err, ammerr.ErrPositionNotFound))

	_, err = l.MintOrUpdate(MintRequest{PoolID: pid, Owner: alice, Shares: u(0)})
	assert.True(t, errors.Is(err, ammerr.ErrInvalidAmount))
}

func TestPendingFeesAreProRata(t *testing.T) {
	l := New()
	a := mint(t, l, 0, 100, fees.NewGrowth())
	b := mint(t, l, 0, 300, fees.NewGrowth())

	// 40 token0 fee over 400 shares
	g, err := fees.Accrue(fixedpoint.Zero(), u(40), u(400))
	require.NoError(t, err)
	cur := fees.Growth{Token0: g, Token1: fixedpoint.Zero()}

	a0, _, err := l.Pending(a, cur)
	require.NoError(t, err)
	b0, _, err := l.Pending(b, cur)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), a0.Uint64())
	assert.Equal(t, uint64(30), b0.Uint64())
}

func TestLateDepositDoesNotEarnEarlierFees(t *testing.T) {
	l := New()
	a := mint(t, l, 0, 100, fees.NewGrowth())

	g1 := growth(5e17, 0) // 0.5 per share
	b := mint(t, l, 0, 100, g1)

	b0, _, err := l.Pending(b, g1)
	require.NoError(t, err)
	assert.True(t, b0.IsZero())

	// topping up settles what the position earned so far
	mint(t, l, a, 100, g1)
	a0, _, err := l.Pending(a, g1)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), a0.Uint64())

	p, err := l.Get(a)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), p.FeesOwed0.Uint64())
	assert.Equal(t, uint64(200), p.Shares.Uint64())
}

func TestClaimIsIdempotent(t *testing.T) {
	l := New()
	id := mint(t, l, 0, 1000, fees.NewGrowth())
	g := growth(3e15, 1e15)

	a0, a1, err := l.ClaimFees(id, pid, alice, g, now)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), a0.Uint64())
	assert.Equal(t, uint64(1), a1.Uint64())

	_, _, err = l.ClaimFees(id, pid, alice, g, now)
	assert.True(t, errors.Is(err, ammerr.ErrNothingToClaim))

	_, _, err = l.ClaimFees(id, pid, bob, growth(4e15, 1e15), now)
	assert.True(t, errors.Is(err, ammerr.ErrUnauthorized))
}

func TestDecreaseAndBurn(t *testing.T) {
	l := New()
	id := mint(t, l, 0, 100, fees.NewGrowth())

	err := l.Decrease(id, pid, alice, u(101), fees.NewGrowth(), now)
	assert.True(t, errors.Is(err, ammerr.ErrInsufficientShares))

	_, err = l.Burn(id, pid, alice, fees.NewGrowth())
	assert.True(t, errors.Is(err, ammerr.ErrNonZeroShares))

	g := growth(1e16, 0)
	require.NoError(t, l.Decrease(id, pid, alice, u(100), g, now))

	// fees earned before the withdrawal are kept
	a0, _, err := l.Pending(id, g)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), a0.Uint64())

	_, err = l.Burn(id, pid, alice, g)
	assert.Error(t, err)

	_, _, err = l.ClaimFees(id, pid, alice, g, now)
	require.NoError(t, err)

	burned, err := l.Burn(id, pid, alice, g)
	require.NoError(t, err)
	assert.Equal(t, id, burned.ID)

	_, err = l.Get(id)
	assert.True(t, errors.Is(err, ammerr.ErrPositionNotFound))
}

func TestTransfer(t *testing.T) {
	l := New()
	id := mint(t, l, 0, 100, fees.NewGrowth())

	err := l.Transfer(id, pid, bob, alice, now)
	assert.True(t, errors.Is(err, ammerr.ErrUnauthorized))

	require.NoError(t, l.Transfer(id, pid, alice, bob, now))
	assert.Empty(t, l.ByOwner(alice))
	require.Len(t, l.ByOwner(bob), 1)
	assert.NoError(t, l.Authorize(id, pid, bob))
}

func TestEntryPriceIsShareWeighted(t *testing.T) {
	l := New()
	id := mint(t, l, 0, 100, fees.NewGrowth())

	_, err := l.MintOrUpdate(MintRequest{
		PositionID: id, PoolID: pid, Owner: alice, Shares: u(300),
		Growth: fees.NewGrowth(), SpotPrice: new(uint256.Int).Mul(wad, u(2)), Now: now,
	})
	require.NoError(t, err)

	p, err := l.Get(id)
	require.NoError(t, err)
	// (1 * 100 + 2 * 300) / 400 = 1.75
	assert.Equal(t, "1750000000000000000", p.EntryPrice.Dec())
}

func TestImpermanentLoss(t *testing.T) {
	tests := []struct {
		name    string
		current *uint256.Int
		bps     uint64
		percent string
	}{
		{"unchanged", wad, 0, "0.00"},
		{"price x4", new(uint256.Int).Mul(wad, u(4)), 2000, "-20.00"},
		{"price x0.25", new(uint256.Int).Div(wad, u(4)), 2000, "-20.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			il, err := ComputeImpermanentLoss(wad, tt.current)
			require.NoError(t, err)
			assert.Equal(t, tt.bps, il.LossBps)
			assert.Equal(t, tt.percent, il.Percent())
		})
	}

	_, err := ComputeImpermanentLoss(u(0), wad)
	assert.True(t, errors.Is(err, ammerr.ErrDivisionByZero))
}

func TestHandleRoundTrip(t *testing.T) {
	for _, id := range []uint64{1, 42, 1 << 40} {
		got, err := ParseHandle(Handle(id))
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
	_, err := ParseHandle("0OIl")
	assert.True(t, errors.Is(err, ammerr.ErrPositionNotFound))
}

func TestNewView(t *testing.T) {
	l := New()
	id := mint(t, l, 0, 100, fees.NewGrowth())
	pos, err := l.Get(id)
	require.NoError(t, err)

	s := pool.State{
		FeeTierBps:  30,
		Reserve0:    u(1_000_000_000),
		Reserve1:    u(4_000_000_000),
		TotalShares: u(200),
		FeeGrowth:   growth(1e16, 0),
	}
	v, err := NewView(pos, s, new(uint256.Int).Mul(wad, u(4)), "SOL/USDC")
	require.NoError(t, err)

	assert.Equal(t, uint64(500_000_000), v.Amount0.Uint64())
	assert.Equal(t, uint64(2_000_000_000), v.Amount1.Uint64())
	assert.Equal(t, uint64(1), v.Pending0.Uint64())
	// (500_000_001 * 4) + 2_000_000_000
	assert.Equal(t, uint64(4_000_000_004), v.ValueToken1.Uint64())
	assert.Equal(t, uint64(2000), v.IL.LossBps)
	assert.Equal(t, "Pool: SOL/USDC | Fee: 0.30% | Shares: 0.0000001 | Value: 4.000000004", v.Metadata)
}

func TestPrepareMintWritesNothingUntilApplied(t *testing.T) {
	l := New()
	c, err := l.PrepareMint(MintRequest{PoolID: pid, Owner: alice, Shares: u(100), Growth: fees.NewGrowth(), SpotPrice: wad, Now: now})
	require.NoError(t, err)
	assert.Empty(t, l.ByOwner(alice))

	id := l.Apply(c)
	assert.Equal(t, uint64(1), id)
	require.Len(t, l.ByOwner(alice), 1)

	// a top-up whose entry price weight overflows is refused before any write
	huge := new(uint256.Int).Lsh(u(1), 250)
	_, err = l.PrepareMint(MintRequest{PositionID: id, PoolID: pid, Owner: alice, Shares: u(100), Growth: fees.NewGrowth(), SpotPrice: huge, Now: now})
	assert.True(t, errors.Is(err, ammerr.ErrOverflow))

	p, err := l.Get(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), p.Shares.Uint64())
	assert.True(t, p.EntryPrice.Eq(wad))
}

func TestPrepareDecreaseWritesNothingUntilApplied(t *testing.T) {
	l := New()
	id := mint(t, l, 0, 100, fees.NewGrowth())

	c, err := l.PrepareDecrease(id, pid, alice, u(40), growth(1e16, 0), now)
	require.NoError(t, err)
	p, err := l.Get(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), p.Shares.Uint64())
	assert.True(t, p.FeesOwed0.IsZero())

	assert.Equal(t, id, l.Apply(c))
	p, err = l.Get(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), p.Shares.Uint64())
	// 100 shares * 1e16 growth / 1e18
	assert.Equal(t, uint64(1), p.FeesOwed0.Uint64())

	_, err = l.PrepareDecrease(id, pid, alice, u(0), growth(1e16, 0), now)
	assert.True(t, errors.Is(err, ammerr.ErrInvalidAmount))
}
