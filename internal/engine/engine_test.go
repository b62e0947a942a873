package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/amm-ledger/internal/ammerr"
	"github.com/aman-zulfiqar/amm-ledger/internal/curve"
	"github.com/aman-zulfiqar/amm-ledger/internal/models"
	"github.com/aman-zulfiqar/amm-ledger/internal/pool"
	"github.com/aman-zulfiqar/amm-ledger/internal/registry"
	"github.com/aman-zulfiqar/amm-ledger/internal/storage"
)

var (
	t0    = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tokA  = models.TokenID{1}
	tokB  = models.TokenID{2}
	tokC  = models.TokenID{3}
	alice = models.OwnerID{0xa1}
	bob   = models.OwnerID{0xb0}
	carol = models.OwnerID{0xc0}
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

// recordingSink keeps every event it is handed.
type recordingSink struct {
	mu     sync.Mutex
	events []*models.LedgerEvent
}

func (s *recordingSink) Publish(_ context.Context, ev *models.LedgerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) types() []models.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.EventType, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type
	}
	return out
}

type failingSink struct{}

func (failingSink) Publish(context.Context, *models.LedgerEvent) error {
	return errors.New("redis unavailable")
}

func symbols(id models.TokenID) string {
	switch id {
	case tokA:
		return "AAA"
	case tokB:
		return "BBB"
	default:
		return "CCC"
	}
}

func newEngine(t *testing.T, sinks ...storage.EventSink) *Engine {
	t.Helper()
	return New(Config{Symbols: symbols, Sinks: sinks})
}

func createVolatile(t *testing.T, e *Engine, fee uint64) pool.ID {
	t.Helper()
	sum, err := e.CreatePool(context.Background(), registry.Definition{
		Token0: tokB, Token1: tokA, FeeTierBps: fee, Curve: curve.Volatile,
	}, t0)
	require.NoError(t, err)
	return sum.State.ID
}

func deposit(t *testing.T, e *Engine, id pool.ID, owner models.OwnerID, a0, a1 uint64) LiquidityResult {
	t.Helper()
	res, err := e.AddLiquidity(context.Background(), AddLiquidityRequest{
		PoolID: id, Owner: owner, Amount0: u(a0), Amount1: u(a1),
	}, t0)
	require.NoError(t, err)
	return res
}

func swap(t *testing.T, e *Engine, id pool.ID, in models.TokenID, amount uint64) SwapResult {
	t.Helper()
	res, err := e.Swap(context.Background(), SwapRequest{PoolID: id, TokenIn: in, AmountIn: u(amount)}, t0.Add(time.Minute))
	require.NoError(t, err)
	return res
}

func TestCreatePool(t *testing.T) {
	sink := &recordingSink{}
	e := newEngine(t, sink)
	ctx := context.Background()

	id := createVolatile(t, e, 30)
	sum, err := e.GetPool(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, tokA, sum.State.Token0, "tokens are stored in canonical order")
	assert.Equal(t, "AAA/BBB", sum.Pair)
	assert.Nil(t, sum.SpotPrice)

	_, err = e.CreatePool(ctx, registry.Definition{Token0: tokA, Token1: tokB, FeeTierBps: 30, Curve: curve.Volatile}, t0)
	assert.True(t, errors.Is(err, ammerr.ErrDuplicatePool))

	// same pair at another tier is a different pool
	other := createVolatile(t, e, 5)
	assert.NotEqual(t, id, other)

	_, err = e.CreatePool(ctx, registry.Definition{Token0: tokA, Token1: tokA, FeeTierBps: 30, Curve: curve.Volatile}, t0)
	assert.True(t, errors.Is(err, ammerr.ErrIdenticalTokens))

	looked, err := e.LookupPool(ctx, tokB, tokA, 30)
	require.NoError(t, err)
	assert.Equal(t, id, looked.State.ID)

	_, err = e.LookupPool(ctx, tokA, tokC, 30)
	assert.True(t, errors.Is(err, ammerr.ErrPoolNotFound))

	assert.Equal(t, []models.EventType{models.EventPoolCreated, models.EventPoolCreated}, sink.types())
	assert.Equal(t, 2, e.PoolCount())
}

func TestCreatePoolWithLiquidity(t *testing.T) {
	sink := &recordingSink{}
	e := newEngine(t, sink)
	ctx := context.Background()

	// amounts follow the definition order (B, A); the pool stores A first
	res, err := e.CreatePoolWithLiquidity(ctx, registry.Definition{
		Token0: tokB, Token1: tokA, FeeTierBps: 30, Curve: curve.Volatile,
	}, InitialDeposit{Owner: alice, Amount0: u(400), Amount1: u(100)}, t0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.PositionID)
	assert.Equal(t, uint64(200), res.Shares.Uint64())
	assert.Equal(t, uint64(100), res.Amount0.Uint64())
	assert.Equal(t, uint64(400), res.Amount1.Uint64())
	assert.Equal(t, tokA, res.Pool.State.Token0)
	assert.Equal(t, uint64(100), res.Pool.State.Reserve0.Uint64())
	assert.Equal(t, uint64(400), res.Pool.State.Reserve1.Uint64())
	assert.Equal(t, []models.EventType{models.EventPoolCreated, models.EventLiquidityAdded}, sink.types())

	view, err := e.GetPosition(ctx, res.PositionID)
	require.NoError(t, err)
	assert.Equal(t, res.Pool.State.ID, view.Position.PoolID)

	_, err = e.CreatePoolWithLiquidity(ctx, registry.Definition{
		Token0: tokA, Token1: tokB, FeeTierBps: 30, Curve: curve.Volatile,
	}, InitialDeposit{Owner: bob, Amount0: u(1), Amount1: u(1)}, t0)
	assert.True(t, errors.Is(err, ammerr.ErrDuplicatePool))
}

func TestCreatePoolWithRefusedDepositRegistersNothing(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	def := registry.Definition{Token0: tokA, Token1: tokC, FeeTierBps: 30, Curve: curve.Volatile}

	_, err := e.CreatePoolWithLiquidity(ctx, def, InitialDeposit{Owner: alice, Amount0: u(100), Amount1: u(400), MinShares: u(201)}, t0)
	assert.True(t, errors.Is(err, ammerr.ErrSlippageExceeded))

	_, err = e.CreatePoolWithLiquidity(ctx, def, InitialDeposit{Owner: alice, Amount0: u(100), Amount1: u(0)}, t0)
	assert.True(t, errors.Is(err, ammerr.ErrInvalidAmount))

	assert.Equal(t, 0, e.PoolCount())
	_, err = e.LookupPool(ctx, tokA, tokC, 30)
	assert.True(t, errors.Is(err, ammerr.ErrPoolNotFound))
	views, err := e.PositionsByOwner(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, views)

	// the key is still free
	res, err := e.CreatePoolWithLiquidity(ctx, def, InitialDeposit{Owner: alice, Amount0: u(100), Amount1: u(400)}, t0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.PositionID)
}

func TestSeedSkipsExisting(t *testing.T) {
	e := newEngine(t)
	createVolatile(t, e, 30)

	n, err := e.Seed(context.Background(), []registry.Definition{
		{Name: "AAA/BBB", Token0: tokA, Token1: tokB, FeeTierBps: 30, Curve: curve.Volatile},
		{Name: "AAA/CCC", Token0: tokA, Token1: tokC, FeeTierBps: 5, Curve: curve.Stable, Amplification: 100},
	}, t0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = e.Seed(context.Background(), []registry.Definition{
		{Name: "bad", Token0: tokB, Token1: tokC, FeeTierBps: 25, Curve: curve.Volatile},
	}, t0)
	assert.True(t, errors.Is(err, ammerr.ErrInvalidFeeTier))
}

func TestSwapConstantProductExample(t *testing.T) {
	sink := &recordingSink{}
	e := newEngine(t, sink)
	id := createVolatile(t, e, 30)
	deposit(t, e, id, alice, 1_000_000, 1_000_000)

	res, err := e.Swap(context.Background(), SwapRequest{
		PoolID: id, TokenIn: tokA, AmountIn: u(1000), MinAmountOut: u(996), Trader: bob,
	}, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, uint64(996), res.Quote.AmountOut.Uint64())
	assert.Equal(t, uint64(3), res.Quote.FeeAmount.Uint64())
	assert.Equal(t, tokB, res.TokenOut)
	assert.Equal(t, uint64(1_000_997), res.Pool.State.Reserve0.Uint64())
	assert.Equal(t, uint64(999_004), res.Pool.State.Reserve1.Uint64())

	sink.mu.Lock()
	last := sink.events[len(sink.events)-1]
	sink.mu.Unlock()
	assert.Equal(t, models.EventSwap, last.Type)
	assert.Equal(t, "1000", last.Amount0)
	assert.Equal(t, "996", last.Amount1)
	assert.Equal(t, bob.String(), last.Owner)
	assert.EqualValues(t, 3, last.Seq)
}

func TestSwapRejectionsLeavePoolUnchanged(t *testing.T) {
	e := newEngine(t)
	id := createVolatile(t, e, 30)
	deposit(t, e, id, alice, 1_000_000, 1_000_000)
	ctx := context.Background()
	before, err := e.GetPool(ctx, id)
	require.NoError(t, err)

	_, err = e.Swap(ctx, SwapRequest{PoolID: id, TokenIn: tokA, AmountIn: u(1000), Deadline: t0}, t0.Add(time.Second))
	assert.True(t, errors.Is(err, ammerr.ErrDeadlineExpired))

	_, err = e.Swap(ctx, SwapRequest{PoolID: id, TokenIn: tokA, AmountIn: u(1000), MinAmountOut: u(997)}, t0)
	assert.True(t, errors.Is(err, ammerr.ErrSlippageExceeded))

	_, err = e.Swap(ctx, SwapRequest{PoolID: id, TokenIn: tokC, AmountIn: u(1000)}, t0)
	assert.True(t, errors.Is(err, ammerr.ErrInvalidAmount))

	_, err = e.Swap(ctx, SwapRequest{PoolID: pool.ID{0xff}, TokenIn: tokA, AmountIn: u(1000)}, t0)
	assert.True(t, errors.Is(err, ammerr.ErrPoolNotFound))

	after, err := e.GetPool(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before.State.Reserve0, after.State.Reserve0)
	assert.Equal(t, before.State.Reserve1, after.State.Reserve1)
	assert.Zero(t, after.State.SwapCount)
}

func TestSwapPriceImpactCap(t *testing.T) {
	e := New(Config{MaxPriceImpactBps: 50})
	id := createVolatile(t, e, 30)
	deposit(t, e, id, alice, 1_000_000, 1_000_000)

	res := swap(t, e, id, tokA, 1000)
	assert.Equal(t, uint64(40), res.Quote.PriceImpactBps)

	_, err := e.Swap(context.Background(), SwapRequest{PoolID: id, TokenIn: tokA, AmountIn: u(100_000)}, t0)
	assert.True(t, errors.Is(err, ammerr.ErrSlippageExceeded))
}

func TestQuoteIsPure(t *testing.T) {
	e := newEngine(t)
	id := createVolatile(t, e, 30)
	deposit(t, e, id, alice, 1_000_000, 1_000_000)
	ctx := context.Background()

	q1, err := e.Quote(ctx, id, tokA, u(1000), 50)
	require.NoError(t, err)
	q2, err := e.Quote(ctx, id, tokA, u(1000), 50)
	require.NoError(t, err)
	assert.Equal(t, q1, q2)
	assert.Equal(t, uint64(996), q1.Quote.AmountOut.Uint64())
	assert.Equal(t, uint64(991), q1.MinimumReceived.Uint64())

	sum, err := e.GetPool(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), sum.State.Reserve0.Uint64())
	assert.Zero(t, sum.State.SwapCount)
}

func TestStablePoolNearPeg(t *testing.T) {
	e := newEngine(t)
	sum, err := e.CreatePool(context.Background(), registry.Definition{
		Token0: tokA, Token1: tokC, FeeTierBps: 1, Curve: curve.Stable, Amplification: 100,
	}, t0)
	require.NoError(t, err)
	deposit(t, e, sum.State.ID, alice, 1_000_000, 1_000_000)

	res := swap(t, e, sum.State.ID, tokA, 10_000)
	assert.Equal(t, uint64(9998), res.Quote.AmountOut.Uint64())
	assert.GreaterOrEqual(t, res.Quote.AmountOut.Uint64(), uint64(9990))
}

func TestAddRemoveRoundTrip(t *testing.T) {
	e := newEngine(t)
	id := createVolatile(t, e, 30)
	deposit(t, e, id, alice, 1_000_000, 1_000_000)

	added := deposit(t, e, id, bob, 12_345, 12_345)
	removed, err := e.RemoveLiquidity(context.Background(), RemoveLiquidityRequest{
		PositionID: added.PositionID, Owner: bob, Shares: added.Shares,
	}, t0)
	require.NoError(t, err)

	d0 := new(uint256.Int).Sub(added.Amount0, removed.Amount0)
	d1 := new(uint256.Int).Sub(added.Amount1, removed.Amount1)
	assert.LessOrEqual(t, d0.Uint64(), uint64(1))
	assert.LessOrEqual(t, d1.Uint64(), uint64(1))

	view, err := e.GetPosition(context.Background(), added.PositionID)
	require.NoError(t, err)
	assert.True(t, view.Position.Shares.IsZero())
}

func TestBootstrapAndTopUp(t *testing.T) {
	e := newEngine(t)
	id := createVolatile(t, e, 30)
	ctx := context.Background()

	first := deposit(t, e, id, alice, 200, 200)
	assert.Equal(t, uint64(200), first.Shares.Uint64())
	assert.Equal(t, uint64(1), first.PositionID)
	assert.Equal(t, "11111112", first.Handle)

	top, err := e.AddLiquidity(ctx, AddLiquidityRequest{
		PoolID: id, PositionID: first.PositionID, Owner: alice, Amount0: u(100), Amount1: u(100),
	}, t0)
	require.NoError(t, err)
	assert.Equal(t, first.PositionID, top.PositionID)
	assert.Equal(t, uint64(100), top.Shares.Uint64())

	view, err := e.GetPosition(ctx, first.PositionID)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), view.Position.Shares.Uint64())

	// someone else cannot top up alice's position
	_, err = e.AddLiquidity(ctx, AddLiquidityRequest{
		PoolID: id, PositionID: first.PositionID, Owner: bob, Amount0: u(100), Amount1: u(100),
	}, t0)
	assert.True(t, errors.Is(err, ammerr.ErrUnauthorized))
	sum, err := e.GetPool(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), sum.State.TotalShares.Uint64())
}

func TestFailedAddLeavesPoolAndLedgerUntouched(t *testing.T) {
	sink := &recordingSink{}
	e := newEngine(t, sink)
	id := createVolatile(t, e, 30)
	ctx := context.Background()

	// the entry spot price of 1e60 per unit does not fit in WAD
	_, err := e.AddLiquidity(ctx, AddLiquidityRequest{
		PoolID: id, Owner: alice, Amount0: u(1), Amount1: uint256.MustFromDecimal("1" + strings.Repeat("0", 60)),
	}, t0)
	assert.True(t, errors.Is(err, ammerr.ErrOverflow))

	sum, err := e.GetPool(ctx, id)
	require.NoError(t, err)
	assert.True(t, sum.State.TotalShares.IsZero())
	assert.True(t, sum.State.Reserve0.IsZero())
	assert.True(t, sum.State.Reserve1.IsZero())
	views, err := e.PositionsByOwner(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, views)

	// a top-up whose entry price average overflows is refused by the ledger
	big := uint256.MustFromDecimal("1" + strings.Repeat("0", 50))
	first, err := e.AddLiquidity(ctx, AddLiquidityRequest{PoolID: id, Owner: alice, Amount0: u(1), Amount1: big}, t0)
	require.NoError(t, err)
	before, err := e.GetPool(ctx, id)
	require.NoError(t, err)

	_, err = e.AddLiquidity(ctx, AddLiquidityRequest{
		PoolID: id, PositionID: first.PositionID, Owner: alice, Amount0: u(1), Amount1: big,
	}, t0.Add(time.Hour))
	assert.True(t, errors.Is(err, ammerr.ErrOverflow))

	after, err := e.GetPool(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before.State, after.State)
	view, err := e.GetPosition(ctx, first.PositionID)
	require.NoError(t, err)
	assert.True(t, view.Position.Shares.Eq(first.Shares))
	assert.Equal(t, []models.EventType{models.EventPoolCreated, models.EventLiquidityAdded}, sink.types())
}

func TestFeesSplitProRata(t *testing.T) {
	e := newEngine(t)
	id := createVolatile(t, e, 30)
	ctx := context.Background()

	a := deposit(t, e, id, alice, 1_000_000, 1_000_000)
	b := deposit(t, e, id, bob, 1_000_000, 1_000_000)
	res := swap(t, e, id, tokA, 100_000)
	assert.Equal(t, uint64(300), res.Quote.FeeAmount.Uint64())

	// a deposit after the swap earns nothing from it
	c := deposit(t, e, id, carol, 1000, 1000)
	cv, err := e.GetPosition(ctx, c.PositionID)
	require.NoError(t, err)
	assert.True(t, cv.Pending0.IsZero())

	for _, p := range []struct {
		id    uint64
		owner models.OwnerID
	}{{a.PositionID, alice}, {b.PositionID, bob}} {
		claim, err := e.ClaimFees(ctx, p.id, p.owner, t0)
		require.NoError(t, err)
		assert.Equal(t, uint64(150), claim.Amount0.Uint64())
		assert.True(t, claim.Amount1.IsZero())
	}

	sum, err := e.GetPool(ctx, id)
	require.NoError(t, err)
	assert.True(t, sum.State.FeeVault0.IsZero())
	assert.Equal(t, uint64(300), sum.State.CumulativeFees0.Uint64())
}

func TestClaimIsIdempotent(t *testing.T) {
	e := newEngine(t)
	id := createVolatile(t, e, 30)
	ctx := context.Background()
	a := deposit(t, e, id, alice, 1_000_000, 1_000_000)

	_, err := e.ClaimFees(ctx, a.PositionID, alice, t0)
	assert.True(t, errors.Is(err, ammerr.ErrNothingToClaim))

	swap(t, e, id, tokB, 100_000)
	claim, err := e.ClaimFees(ctx, a.PositionID, alice, t0)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), claim.Amount1.Uint64())

	_, err = e.ClaimFees(ctx, a.PositionID, alice, t0)
	assert.True(t, errors.Is(err, ammerr.ErrNothingToClaim))

	_, err = e.ClaimFees(ctx, a.PositionID, bob, t0)
	assert.True(t, errors.Is(err, ammerr.ErrUnauthorized))

	_, err = e.ClaimFees(ctx, 99, alice, t0)
	assert.True(t, errors.Is(err, ammerr.ErrPositionNotFound))
}

func TestRemoveLiquidityChecks(t *testing.T) {
	e := newEngine(t)
	id := createVolatile(t, e, 30)
	ctx := context.Background()
	a := deposit(t, e, id, alice, 1_000_000, 1_000_000)
	deposit(t, e, id, bob, 1_000_000, 1_000_000)

	// alice cannot withdraw bob's share of the pool through her position
	_, err := e.RemoveLiquidity(ctx, RemoveLiquidityRequest{PositionID: a.PositionID, Owner: alice, Shares: u(1_500_000)}, t0)
	assert.True(t, errors.Is(err, ammerr.ErrInsufficientShares))

	_, err = e.RemoveLiquidity(ctx, RemoveLiquidityRequest{PositionID: a.PositionID, Owner: bob, Shares: u(1)}, t0)
	assert.True(t, errors.Is(err, ammerr.ErrUnauthorized))

	_, err = e.RemoveLiquidity(ctx, RemoveLiquidityRequest{
		PositionID: a.PositionID, Owner: alice, Shares: u(1000), Deadline: t0,
	}, t0.Add(time.Second))
	assert.True(t, errors.Is(err, ammerr.ErrDeadlineExpired))

	_, err = e.RemoveLiquidity(ctx, RemoveLiquidityRequest{PositionID: a.PositionID, Owner: alice, Shares: u(0)}, t0)
	assert.True(t, errors.Is(err, ammerr.ErrInvalidAmount))

	view, err := e.GetPosition(ctx, a.PositionID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), view.Position.Shares.Uint64())
}

func TestBurnClaimsRemainingFees(t *testing.T) {
	sink := &recordingSink{}
	e := newEngine(t, sink)
	id := createVolatile(t, e, 30)
	ctx := context.Background()
	a := deposit(t, e, id, alice, 1_000_000, 1_000_000)
	swap(t, e, id, tokA, 100_000)

	_, err := e.BurnPosition(ctx, a.PositionID, alice, t0)
	assert.True(t, errors.Is(err, ammerr.ErrNonZeroShares))

	_, err = e.RemoveLiquidity(ctx, RemoveLiquidityRequest{PositionID: a.PositionID, Owner: alice, Shares: a.Shares}, t0)
	require.NoError(t, err)

	burned, err := e.BurnPosition(ctx, a.PositionID, alice, t0)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), burned.Claimed0.Uint64())
	assert.True(t, burned.Claimed1.IsZero())
	assert.Equal(t, a.PositionID, burned.Position.ID)

	_, err = e.GetPosition(ctx, a.PositionID)
	assert.True(t, errors.Is(err, ammerr.ErrPositionNotFound))

	types := sink.types()
	assert.Equal(t, []models.EventType{models.EventFeesClaimed, models.EventPositionBurned}, types[len(types)-2:])
}

func TestTransferPosition(t *testing.T) {
	e := newEngine(t)
	id := createVolatile(t, e, 30)
	ctx := context.Background()
	a := deposit(t, e, id, alice, 1_000_000, 1_000_000)
	swap(t, e, id, tokA, 100_000)

	view, err := e.TransferPosition(ctx, a.PositionID, alice, bob, t0)
	require.NoError(t, err)
	assert.Equal(t, bob, view.Position.Owner)
	assert.Equal(t, uint64(300), view.Pending0.Uint64(), "unclaimed fees move with the position")

	_, err = e.ClaimFees(ctx, a.PositionID, alice, t0)
	assert.True(t, errors.Is(err, ammerr.ErrUnauthorized))

	claim, err := e.ClaimFees(ctx, a.PositionID, bob, t0)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), claim.Amount0.Uint64())

	_, err = e.TransferPosition(ctx, a.PositionID, bob, models.OwnerID{}, t0)
	assert.True(t, errors.Is(err, ammerr.ErrInvalidAmount))

	owned, err := e.PositionsByOwner(ctx, bob)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, a.PositionID, owned[0].Position.ID)

	owned, err = e.PositionsByOwner(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func TestGetPositionView(t *testing.T) {
	e := newEngine(t)
	id := createVolatile(t, e, 30)
	ctx := context.Background()
	a := deposit(t, e, id, alice, 1_000_000, 1_000_000)

	view, err := e.GetPosition(ctx, a.PositionID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), view.Amount0.Uint64())
	assert.True(t, view.IL.LossBps == 0)
	assert.Contains(t, view.Metadata, "Pool: AAA/BBB | Fee: 0.30%")

	// moving the price opens impermanent loss
	swap(t, e, id, tokA, 500_000)
	view, err = e.GetPosition(ctx, a.PositionID)
	require.NoError(t, err)
	assert.Greater(t, view.IL.LossBps, uint64(0))
}

func TestListPoolsIsRestartableSnapshot(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	id := createVolatile(t, e, 30)
	createVolatile(t, e, 100)
	deposit(t, e, id, alice, 1_000_000, 1_000_000)

	pools := e.ListPools(ctx)

	// later changes are not visible through an existing listing
	createVolatile(t, e, 5)
	swap(t, e, id, tokA, 1000)

	for range 2 {
		var got []PoolSummary
		for s := range pools {
			got = append(got, s)
		}
		require.Len(t, got, 2)
		assert.Equal(t, id, got[0].State.ID)
		assert.Equal(t, uint64(1_000_000), got[0].State.Reserve0.Uint64())
		assert.Nil(t, got[1].SpotPrice)
	}

	n := 0
	for range e.ListPools(ctx) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestPoolStats(t *testing.T) {
	e := newEngine(t)
	id := createVolatile(t, e, 30)
	deposit(t, e, id, alice, 1_000_000, 1_000_000)
	swap(t, e, id, tokB, 1000)

	st, err := e.PoolStats(context.Background(), id, t0.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.SwapCount)
	assert.Equal(t, uint64(3), st.FeesToken1.Uint64())
	assert.Len(t, e.FeeTiers(), 4)
}

func TestConcurrentSwapsSerializePerPool(t *testing.T) {
	e := newEngine(t)
	id := createVolatile(t, e, 30)
	other := createVolatile(t, e, 100)
	deposit(t, e, id, alice, 1_000_000_000, 1_000_000_000)
	deposit(t, e, other, alice, 1_000_000_000, 1_000_000_000)

	before, err := e.GetPool(context.Background(), id)
	require.NoError(t, err)
	kBefore := new(uint256.Int).Mul(before.State.Reserve0, before.State.Reserve1)

	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := tokA
			if i%2 == 1 {
				in = tokB
			}
			target := id
			if i%4 == 3 {
				target = other
			}
			_, err := e.Swap(context.Background(), SwapRequest{PoolID: target, TokenIn: in, AmountIn: u(10_000)}, t0)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	after, err := e.GetPool(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, uint64(48), after.State.SwapCount)
	kAfter := new(uint256.Int).Mul(after.State.Reserve0, after.State.Reserve1)
	assert.False(t, kAfter.Lt(kBefore), "k decreased")

	o, err := e.GetPool(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), o.State.SwapCount)
}

func TestSinkFailureIsLoggedNotReturned(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	e := New(Config{Logger: logger, Sinks: []storage.EventSink{failingSink{}}})

	id := createVolatile(t, e, 30)
	deposit(t, e, id, alice, 1_000_000, 1_000_000)

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Message == "failed to publish ledger event" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestCanceledContext(t *testing.T) {
	e := newEngine(t)
	id := createVolatile(t, e, 30)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Swap(ctx, SwapRequest{PoolID: id, TokenIn: tokA, AmountIn: u(1)}, t0)
	assert.ErrorIs(t, err, context.Canceled)
}
