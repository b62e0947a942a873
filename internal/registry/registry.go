// Package registry is the catalog of pools, unique per (token0, token1, fee tier).
package registry

import (
	"encoding/binary"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/zeebo/blake3"

	"github.com/aman-zulfiqar/amm-ledger/internal/ammerr"
	"github.com/aman-zulfiqar/amm-ledger/internal/curve"
	"github.com/aman-zulfiqar/amm-ledger/internal/fees"
	"github.com/aman-zulfiqar/amm-ledger/internal/models"
	"github.com/aman-zulfiqar/amm-ledger/internal/pool"
)

// Definition describes a pool to create. Tokens may come in either order.
type Definition struct {
	Name          string
	Token0        models.TokenID
	Token1        models.TokenID
	FeeTierBps    uint64
	Curve         curve.Kind
	Amplification uint64
}

// Registry holds all created pools in creation order.
type Registry struct {
	mu    sync.RWMutex
	byID  map[pool.ID]*pool.Pool
	order []*pool.Pool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{byID: make(map[pool.ID]*pool.Pool)}
}

// PoolID derives the pool id from its canonical key:
// blake3(token0 || token1 || feeTierBps as 8 big-endian bytes).
func PoolID(tokenA, tokenB models.TokenID, feeTierBps uint64) pool.ID {
	t0, t1, _ := models.SortTokens(tokenA, tokenB)
	buf := make([]byte, 0, 2*len(t0)+8)
	buf = append(buf, t0[:]...)
	buf = append(buf, t1[:]...)
	buf = binary.BigEndian.AppendUint64(buf, feeTierBps)
	return pool.ID(blake3.Sum256(buf))
}

// Validate checks a definition without registering it.
func Validate(def Definition) error {
	if def.Token0.Equals(def.Token1) {
		return fmt.Errorf("pair %s/%s: %w", def.Token0, def.Token1, ammerr.ErrIdenticalTokens)
	}
	if !fees.IsSupported(def.FeeTierBps) {
		return fmt.Errorf("fee tier %d bps: %w", def.FeeTierBps, ammerr.ErrInvalidFeeTier)
	}
	switch def.Curve {
	case curve.Volatile:
		if def.Amplification != 0 {
			return fmt.Errorf("volatile pool with amplification %d: %w", def.Amplification, ammerr.ErrInvalidAmplification)
		}
	case curve.Stable:
		if _, err := curve.NewStableSwap(def.Amplification); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown curve %q: %w", def.Curve, ammerr.ErrInvalidAmount)
	}
	return nil
}

// CreatePool orders the tokens canonically, validates and registers a new pool.
func (r *Registry) CreatePool(def Definition, now time.Time) (*pool.Pool, error) {
	p, err := r.Prepare(def, now)
	if err != nil {
		return nil, err
	}
	if err := r.Register(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Prepare builds the pool def describes without registering it, so callers
// can apply a first deposit before the pool becomes visible.
func (r *Registry) Prepare(def Definition, now time.Time) (*pool.Pool, error) {
	if err := Validate(def); err != nil {
		return nil, err
	}
	t0, t1, _ := models.SortTokens(def.Token0, def.Token1)
	id := PoolID(t0, t1, def.FeeTierBps)

	r.mu.RLock()
	_, exists := r.byID[id]
	r.mu.RUnlock()
	if exists {
		return nil, duplicate(t0, t1, def.FeeTierBps)
	}
	return pool.New(pool.Config{
		ID:            id,
		Token0:        t0,
		Token1:        t1,
		FeeTierBps:    def.FeeTierBps,
		Curve:         def.Curve,
		Amplification: def.Amplification,
	}, now)
}

// Register adds a prepared pool.
func (r *Registry) Register(p *pool.Pool) error {
	s := p.Snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[s.ID]; exists {
		return duplicate(s.Token0, s.Token1, s.FeeTierBps)
	}
	r.byID[s.ID] = p
	r.order = append(r.order, p)
	return nil
}

func duplicate(t0, t1 models.TokenID, feeTierBps uint64) error {
	return fmt.Errorf("pool %s/%s at %d bps: %w", t0, t1, feeTierBps, ammerr.ErrDuplicatePool)
}

// Lookup finds a pool by its pair in either order and fee tier.
func (r *Registry) Lookup(tokenA, tokenB models.TokenID, feeTierBps uint64) (*pool.Pool, error) {
	p, err := r.Get(PoolID(tokenA, tokenB, feeTierBps))
	if err != nil {
		return nil, fmt.Errorf("no pool found for mints %s / %s at %d bps: %w", tokenA, tokenB, feeTierBps, ammerr.ErrPoolNotFound)
	}
	return p, nil
}

// Get returns the pool with the given id.
func (r *Registry) Get(id pool.ID) (*pool.Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("pool %s: %w", id, ammerr.ErrPoolNotFound)
	}
	return p, nil
}

// PoolCount returns the number of registered pools.
func (r *Registry) PoolCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Summary is one entry of a pool listing.
type Summary struct {
	State     pool.State
	SpotPrice *uint256.Int // token0 in token1, WAD; nil for an empty pool
}

// ListPools snapshots every pool at call time and returns a sequence that
// builds summaries as it is consumed. Ranging over it again replays the same
// snapshots in creation order; pools created later are not included.
func (r *Registry) ListPools() iter.Seq[Summary] {
	r.mu.RLock()
	pools := slices.Clone(r.order)
	r.mu.RUnlock()

	snaps := make([]pool.State, len(pools))
	curves := make([]curve.Curve, len(pools))
	for i, p := range pools {
		snaps[i] = p.Snapshot()
		curves[i] = p.Curve()
	}

	return func(yield func(Summary) bool) {
		for i := range snaps {
			s := Summary{State: snaps[i].Clone()}
			if spot, err := pool.SpotPrice(curves[i], s.State); err == nil {
				s.SpotPrice = spot
			}
			if !yield(s) {
				return
			}
		}
	}
}
