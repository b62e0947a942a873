// Package pool owns the reserves of one trading pair and applies swaps and
// liquidity changes to them. Every transition computes all of its new values
// before touching state and then commits them in one step, so a failed call
// leaves the pool exactly as it was.
package pool

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"github.com/aman-zulfiqar/amm-ledger/internal/ammerr"
	"github.com/aman-zulfiqar/amm-ledger/internal/curve"
	"github.com/aman-zulfiqar/amm-ledger/internal/fees"
	"github.com/aman-zulfiqar/amm-ledger/internal/fixedpoint"
	"github.com/aman-zulfiqar/amm-ledger/internal/guard"
	"github.com/aman-zulfiqar/amm-ledger/internal/models"
)

// ID is the 32-byte pool identifier.
type ID [32]byte

func (id ID) String() string { return hex.EncodeToString(id[:]) }

// ParseID decodes a hex pool id.
func ParseID(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return id, fmt.Errorf("pool id %q: %w", s, ammerr.ErrPoolNotFound)
	}
	copy(id[:], b)
	return id, nil
}

// Config fixes the identity of a pool. Tokens must already be in canonical order.
type Config struct {
	ID            ID
	Token0        models.TokenID
	Token1        models.TokenID
	FeeTierBps    uint64
	Curve         curve.Kind
	Amplification uint64
}

// State is a point-in-time copy of a pool. Amounts are raw at fixedpoint scale.
type State struct {
	ID              ID
	Token0          models.TokenID
	Token1          models.TokenID
	FeeTierBps      uint64
	Curve           curve.Kind
	Amplification   uint64
	Reserve0        *uint256.Int
	Reserve1        *uint256.Int
	TotalShares     *uint256.Int
	CumulativeFees0 *uint256.Int
	CumulativeFees1 *uint256.Int
	FeeGrowth       fees.Growth
	FeeVault0       *uint256.Int
	FeeVault1       *uint256.Int
	Volume0         *uint256.Int
	Volume1         *uint256.Int
	SwapCount       uint64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Reserves returns the trading balances.
func (s State) Reserves() curve.Reserves {
	return curve.Reserves{Reserve0: s.Reserve0, Reserve1: s.Reserve1}
}

// Token returns token0 or token1 by index.
func (s State) Token(i int) models.TokenID {
	if i == 0 {
		return s.Token0
	}
	return s.Token1
}

// Clone deep-copies the state.
func (s State) Clone() State {
	c := s
	c.Reserve0 = fixedpoint.Clone(s.Reserve0)
	c.Reserve1 = fixedpoint.Clone(s.Reserve1)
	c.TotalShares = fixedpoint.Clone(s.TotalShares)
	c.CumulativeFees0 = fixedpoint.Clone(s.CumulativeFees0)
	c.CumulativeFees1 = fixedpoint.Clone(s.CumulativeFees1)
	c.FeeGrowth = s.FeeGrowth.Clone()
	c.FeeVault0 = fixedpoint.Clone(s.FeeVault0)
	c.FeeVault1 = fixedpoint.Clone(s.FeeVault1)
	c.Volume0 = fixedpoint.Clone(s.Volume0)
	c.Volume1 = fixedpoint.Clone(s.Volume1)
	return c
}

// Pool is safe for concurrent use. Callers that combine a pool transition with
// ledger updates serialize those sequences themselves.
type Pool struct {
	mu    sync.RWMutex
	curve curve.Curve
	state State
	rev   uint64 // bumped on every committed change
}

// ErrStaleTransition is returned by Commit when the pool moved after the
// transition was computed.
var ErrStaleTransition = errors.New("pool changed since the transition was computed")

// Transition is a computed pool change that has not been applied. Next is the
// state the pool will hold once the transition is committed.
type Transition struct {
	Next State
	rev  uint64
}

// Commit applies t. It fails without side effects if another change was
// committed since t was previewed.
func (p *Pool) Commit(t Transition) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t.rev != p.rev {
		return ErrStaleTransition
	}
	p.state = t.Next.Clone()
	p.rev++
	return nil
}

// New creates an empty pool.
func New(cfg Config, now time.Time) (*Pool, error) {
	if !fees.IsSupported(cfg.FeeTierBps) {
		return nil, fmt.Errorf("fee tier %d bps: %w", cfg.FeeTierBps, ammerr.ErrInvalidFeeTier)
	}
	c, err := curve.New(cfg.Curve, cfg.Amplification)
	if err != nil {
		return nil, err
	}
	amp := cfg.Amplification
	if cfg.Curve == curve.Volatile {
		amp = 0
	}
	return &Pool{
		curve: c,
		state: State{
			ID:              cfg.ID,
			Token0:          cfg.Token0,
			Token1:          cfg.Token1,
			FeeTierBps:      cfg.FeeTierBps,
			Curve:           cfg.Curve,
			Amplification:   amp,
			Reserve0:        fixedpoint.Zero(),
			Reserve1:        fixedpoint.Zero(),
			TotalShares:     fixedpoint.Zero(),
			CumulativeFees0: fixedpoint.Zero(),
			CumulativeFees1: fixedpoint.Zero(),
			FeeGrowth:       fees.NewGrowth(),
			FeeVault0:       fixedpoint.Zero(),
			FeeVault1:       fixedpoint.Zero(),
			Volume0:         fixedpoint.Zero(),
			Volume1:         fixedpoint.Zero(),
			CreatedAt:       now,
			UpdatedAt:       now,
		},
	}, nil
}

// ID returns the pool identifier.
func (p *Pool) ID() ID { return p.state.ID }

// Curve returns the pricing curve.
func (p *Pool) Curve() curve.Curve { return p.curve }

// Snapshot returns a consistent copy of the pool state.
func (p *Pool) Snapshot() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.Clone()
}

// Quote prices a swap against the current reserves without changing them.
func (p *Pool) Quote(amountIn *uint256.Int, tokenInIndex int) (curve.SwapQuote, error) {
	d, err := curve.DirectionFromIndex(tokenInIndex)
	if err != nil {
		return curve.SwapQuote{}, err
	}
	s := p.Snapshot()
	return p.curve.Quote(s.Reserves(), amountIn, s.FeeTierBps, d)
}

// SpotPrice is the current price of token0 in token1, WAD.
func (p *Pool) SpotPrice() (*uint256.Int, error) {
	return SpotPrice(p.curve, p.Snapshot())
}

// SpotPrice prices token0 in token1 on a snapshot. An empty pool has no price.
func SpotPrice(c curve.Curve, s State) (*uint256.Int, error) {
	if s.Reserve0.IsZero() || s.Reserve1.IsZero() {
		return nil, fmt.Errorf("spot price of empty pool: %w", ammerr.ErrInsufficientLiquidity)
	}
	return c.SpotPrice(s.Reserves())
}

// Swap sells amountIn of token tokenInIndex. The deadline and minimum output
// are checked before anything changes; the fee is moved to the fee vault and
// accrued to shareholders.
func (p *Pool) Swap(amountIn *uint256.Int, tokenInIndex int, minAmountOut *uint256.Int, deadline, now time.Time) (curve.SwapQuote, error) {
	d, err := curve.DirectionFromIndex(tokenInIndex)
	if err != nil {
		return curve.SwapQuote{}, err
	}
	if err := guard.CheckDeadline(deadline, now); err != nil {
		return curve.SwapQuote{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.state
	if s.TotalShares.IsZero() {
		return curve.SwapQuote{}, fmt.Errorf("swap on pool without liquidity: %w", ammerr.ErrInsufficientLiquidity)
	}
	q, err := p.curve.Quote(s.Reserves(), amountIn, s.FeeTierBps, d)
	if err != nil {
		return curve.SwapQuote{}, err
	}
	if err := guard.Validate(q, minAmountOut, deadline, now); err != nil {
		return curve.SwapQuote{}, err
	}

	next := s.Clone()
	in, out := d.InIndex(), d.OutIndex()
	reserveIn, err := fixedpoint.Add(reserveOf(s, in), q.AmountInNet)
	if err != nil {
		return curve.SwapQuote{}, err
	}
	reserveOut, err := fixedpoint.Sub(reserveOf(s, out), q.AmountOut)
	if err != nil {
		return curve.SwapQuote{}, err
	}
	cumulative, err := fixedpoint.Add(cumulativeOf(s, in), q.FeeAmount)
	if err != nil {
		return curve.SwapQuote{}, err
	}
	vault, err := fixedpoint.Add(vaultOf(s, in), q.FeeAmount)
	if err != nil {
		return curve.SwapQuote{}, err
	}
	growth, err := fees.Accrue(s.FeeGrowth.Get(in), q.FeeAmount, s.TotalShares)
	if err != nil {
		return curve.SwapQuote{}, err
	}
	volume, err := fixedpoint.Add(volumeOf(s, in), amountIn)
	if err != nil {
		return curve.SwapQuote{}, err
	}
	setSide(&next, in, reserveIn, cumulative, vault, growth, volume)
	setReserve(&next, out, reserveOut)
	next.SwapCount++
	next.UpdatedAt = now

	if err := p.checkInvariant(s, next); err != nil {
		return curve.SwapQuote{}, err
	}
	p.state = next
	p.rev++
	return q, nil
}

// checkInvariant rejects a swap that would shrink the curve invariant: k for
// constant product, D for stable pools.
func (p *Pool) checkInvariant(before, after State) error {
	kBefore, err := p.curve.Invariant(before.Reserves())
	if err != nil {
		return err
	}
	kAfter, err := p.curve.Invariant(after.Reserves())
	if err != nil {
		return err
	}
	if kAfter.Lt(kBefore) {
		return fmt.Errorf("%s invariant decreased from %s to %s: %w", p.curve.Kind(), kBefore.Dec(), kAfter.Dec(), ammerr.ErrUnderflow)
	}
	return nil
}

// LiquidityResult is the outcome of an add: shares minted and the amounts
// actually deposited. Any unmatched surplus of the desired amounts stays with
// the caller.
type LiquidityResult struct {
	Shares  *uint256.Int
	Amount0 *uint256.Int
	Amount1 *uint256.Int
}

// AddLiquidity deposits the largest pair within the desired amounts that
// matches the reserve ratio. The first deposit sets the ratio and mints
// sqrt(amount0 * amount1) shares.
func (p *Pool) AddLiquidity(amount0Desired, amount1Desired, minShares *uint256.Int, deadline, now time.Time) (LiquidityResult, error) {
	res, t, err := p.PreviewAdd(amount0Desired, amount1Desired, minShares, deadline, now)
	if err != nil {
		return LiquidityResult{}, err
	}
	if err := p.Commit(t); err != nil {
		return LiquidityResult{}, err
	}
	return res, nil
}

// PreviewAdd runs every check of AddLiquidity and returns the deposit together
// with the transition that would apply it. The pool is not changed.
func (p *Pool) PreviewAdd(amount0Desired, amount1Desired, minShares *uint256.Int, deadline, now time.Time) (LiquidityResult, Transition, error) {
	if err := guard.CheckDeadline(deadline, now); err != nil {
		return LiquidityResult{}, Transition{}, err
	}
	if amount0Desired == nil || amount1Desired == nil || amount0Desired.IsZero() || amount1Desired.IsZero() {
		return LiquidityResult{}, Transition{}, fmt.Errorf("both amounts must be positive: %w", ammerr.ErrInvalidAmount)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	s := p.state
	used0, used1, shares, err := matchDeposit(s, amount0Desired, amount1Desired)
	if err != nil {
		return LiquidityResult{}, Transition{}, err
	}
	if shares.IsZero() {
		return LiquidityResult{}, Transition{}, fmt.Errorf("deposit mints no shares: %w", ammerr.ErrInvalidAmount)
	}
	if err := guard.CheckMinimum("shares", shares, minShares); err != nil {
		return LiquidityResult{}, Transition{}, err
	}

	next := s.Clone()
	if next.Reserve0, err = fixedpoint.Add(s.Reserve0, used0); err != nil {
		return LiquidityResult{}, Transition{}, err
	}
	if next.Reserve1, err = fixedpoint.Add(s.Reserve1, used1); err != nil {
		return LiquidityResult{}, Transition{}, err
	}
	if next.TotalShares, err = fixedpoint.Add(s.TotalShares, shares); err != nil {
		return LiquidityResult{}, Transition{}, err
	}
	next.UpdatedAt = now
	res := LiquidityResult{Shares: shares, Amount0: used0, Amount1: used1}
	return res, Transition{Next: next, rev: p.rev}, nil
}

func matchDeposit(s State, a0, a1 *uint256.Int) (*uint256.Int, *uint256.Int, *uint256.Int, error) {
	if s.TotalShares.IsZero() {
		product, err := fixedpoint.Mul(a0, a1)
		if err != nil {
			return nil, nil, nil, err
		}
		return fixedpoint.Clone(a0), fixedpoint.Clone(a1), fixedpoint.Sqrt(product), nil
	}

	// amount1Optimal = amount0Desired * reserve1 / reserve0
	used0, used1 := fixedpoint.Clone(a0), (*uint256.Int)(nil)
	opt1, err := fixedpoint.MulDiv(a0, s.Reserve1, s.Reserve0)
	if err != nil {
		return nil, nil, nil, err
	}
	if !a1.Lt(opt1) {
		used1 = opt1
	} else {
		opt0, err := fixedpoint.MulDiv(a1, s.Reserve0, s.Reserve1)
		if err != nil {
			return nil, nil, nil, err
		}
		used0, used1 = opt0, fixedpoint.Clone(a1)
	}
	if used0.IsZero() || used1.IsZero() {
		return nil, nil, nil, fmt.Errorf("deposit rounds to zero on one side: %w", ammerr.ErrInvalidAmount)
	}

	// shares = min(T * used0 / reserve0, T * used1 / reserve1)
	s0, err := fixedpoint.MulDiv(s.TotalShares, used0, s.Reserve0)
	if err != nil {
		return nil, nil, nil, err
	}
	s1, err := fixedpoint.MulDiv(s.TotalShares, used1, s.Reserve1)
	if err != nil {
		return nil, nil, nil, err
	}
	return used0, used1, fixedpoint.Min(s0, s1), nil
}

// RemoveLiquidity burns shares for their pro-rata slice of both reserves,
// rounded down.
func (p *Pool) RemoveLiquidity(shares, min0, min1 *uint256.Int, deadline, now time.Time) (*uint256.Int, *uint256.Int, error) {
	out0, out1, t, err := p.PreviewRemove(shares, min0, min1, deadline, now)
	if err != nil {
		return nil, nil, err
	}
	if err := p.Commit(t); err != nil {
		return nil, nil, err
	}
	return out0, out1, nil
}

// PreviewRemove is RemoveLiquidity without the commit.
func (p *Pool) PreviewRemove(shares, min0, min1 *uint256.Int, deadline, now time.Time) (*uint256.Int, *uint256.Int, Transition, error) {
	if err := guard.CheckDeadline(deadline, now); err != nil {
		return nil, nil, Transition{}, err
	}
	if shares == nil || shares.IsZero() {
		return nil, nil, Transition{}, fmt.Errorf("shares must be positive: %w", ammerr.ErrInvalidAmount)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	s := p.state
	if s.TotalShares.Lt(shares) {
		return nil, nil, Transition{}, fmt.Errorf("burn %s of %s shares: %w", shares.Dec(), s.TotalShares.Dec(), ammerr.ErrInsufficientShares)
	}
	out0, err := fixedpoint.MulDiv(shares, s.Reserve0, s.TotalShares)
	if err != nil {
		return nil, nil, Transition{}, err
	}
	out1, err := fixedpoint.MulDiv(shares, s.Reserve1, s.TotalShares)
	if err != nil {
		return nil, nil, Transition{}, err
	}
	if err := guard.CheckMinimum("amount0", out0, min0); err != nil {
		return nil, nil, Transition{}, err
	}
	if err := guard.CheckMinimum("amount1", out1, min1); err != nil {
		return nil, nil, Transition{}, err
	}

	next := s.Clone()
	if next.Reserve0, err = fixedpoint.Sub(s.Reserve0, out0); err != nil {
		return nil, nil, Transition{}, err
	}
	if next.Reserve1, err = fixedpoint.Sub(s.Reserve1, out1); err != nil {
		return nil, nil, Transition{}, err
	}
	if next.TotalShares, err = fixedpoint.Sub(s.TotalShares, shares); err != nil {
		return nil, nil, Transition{}, err
	}
	next.UpdatedAt = now
	return out0, out1, Transition{Next: next, rev: p.rev}, nil
}

// PayoutFees releases claimed fees from the fee vault.
func (p *Pool) PayoutFees(amount0, amount1 *uint256.Int, now time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	v0, err := fixedpoint.Debit(p.state.FeeVault0, amount0)
	if err != nil {
		return fmt.Errorf("fee vault token0: %w", err)
	}
	v1, err := fixedpoint.Debit(p.state.FeeVault1, amount1)
	if err != nil {
		return fmt.Errorf("fee vault token1: %w", err)
	}
	p.state.FeeVault0, p.state.FeeVault1 = v0, v1
	p.state.UpdatedAt = now
	p.rev++
	return nil
}

func reserveOf(s State, i int) *uint256.Int {
	if i == 0 {
		return s.Reserve0
	}
	return s.Reserve1
}

func cumulativeOf(s State, i int) *uint256.Int {
	if i == 0 {
		return s.CumulativeFees0
	}
	return s.CumulativeFees1
}

func vaultOf(s State, i int) *uint256.Int {
	if i == 0 {
		return s.FeeVault0
	}
	return s.FeeVault1
}

func volumeOf(s State, i int) *uint256.Int {
	if i == 0 {
		return s.Volume0
	}
	return s.Volume1
}

func setReserve(s *State, i int, v *uint256.Int) {
	if i == 0 {
		s.Reserve0 = v
	} else {
		s.Reserve1 = v
	}
}

func setSide(s *State, i int, reserve, cumulative, vault, growth, volume *uint256.Int) {
	setReserve(s, i, reserve)
	if i == 0 {
		s.CumulativeFees0, s.FeeVault0, s.FeeGrowth.Token0, s.Volume0 = cumulative, vault, growth, volume
	} else {
		s.CumulativeFees1, s.FeeVault1, s.FeeGrowth.Token1, s.Volume1 = cumulative, vault, growth, volume
	}
}
