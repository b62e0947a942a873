// Package engine is the ledger's single entry point. It resolves pools, runs
// every state transition of a pool inside that pool's single-writer section and
// publishes an event for each committed transition.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-ledger/internal/ammerr"
	"github.com/aman-zulfiqar/amm-ledger/internal/constants"
	"github.com/aman-zulfiqar/amm-ledger/internal/fees"
	"github.com/aman-zulfiqar/amm-ledger/internal/ledger"
	"github.com/aman-zulfiqar/amm-ledger/internal/models"
	"github.com/aman-zulfiqar/amm-ledger/internal/pool"
	"github.com/aman-zulfiqar/amm-ledger/internal/registry"
	"github.com/aman-zulfiqar/amm-ledger/internal/storage"
)

// SymbolFunc renders a token for display.
type SymbolFunc func(models.TokenID) string

// Config holds the engine's collaborators. Every field is optional.
type Config struct {
	Logger *logrus.Logger
	Sinks  []storage.EventSink
	// Symbols labels pools; defaults to the built-in token list.
	Symbols SymbolFunc
	// MaxPriceImpactBps rejects swaps moving the price further; 0 disables.
	MaxPriceImpactBps uint64
}

// Engine orchestrates the registry, the pools and the position ledger.
type Engine struct {
	registry     *registry.Registry
	ledger       *ledger.Ledger
	logger       *logrus.Logger
	sinks        []storage.EventSink
	symbols      SymbolFunc
	maxImpactBps uint64

	locksMu sync.Mutex
	locks   map[pool.ID]*sync.Mutex
	seq     atomic.Uint64
}

// New creates an engine with no pools.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	symbols := cfg.Symbols
	if symbols == nil {
		symbols = func(id models.TokenID) string { return constants.Symbol(id.String()) }
	}
	return &Engine{
		registry:     registry.New(),
		ledger:       ledger.New(),
		logger:       logger,
		sinks:        cfg.Sinks,
		symbols:      symbols,
		maxImpactBps: cfg.MaxPriceImpactBps,
		locks:        make(map[pool.ID]*sync.Mutex),
	}
}

// lock enters the single-writer section of a pool.
func (e *Engine) lock(id pool.ID) func() {
	e.locksMu.Lock()
	mu, ok := e.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[id] = mu
	}
	e.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// CreatePool registers a new pool.
func (e *Engine) CreatePool(ctx context.Context, def registry.Definition, now time.Time) (PoolSummary, error) {
	if err := ctx.Err(); err != nil {
		return PoolSummary{}, err
	}
	p, err := e.registry.CreatePool(def, now)
	if err != nil {
		return PoolSummary{}, e.reject("create_pool", logrus.Fields{"name": def.Name}, err)
	}
	sum := e.summarize(p.Snapshot(), p)

	e.logger.WithFields(logrus.Fields{
		"pool":  sum.State.ID.String(),
		"pair":  sum.Pair,
		"fee":   fees.Label(sum.State.FeeTierBps),
		"curve": sum.State.Curve,
	}).Info("pool created")

	e.emit(ctx, &models.LedgerEvent{
		Type:      models.EventPoolCreated,
		Timestamp: now,
		PoolID:    sum.State.ID.String(),
		Pair:      sum.Pair,
	})
	return sum, nil
}

// CreatePoolWithLiquidity creates a pool and mints its first position in one
// call. The deposit is worked out on the new pool before it is registered, so
// a refused deposit leaves no empty pool behind.
func (e *Engine) CreatePoolWithLiquidity(ctx context.Context, def registry.Definition, dep InitialDeposit, now time.Time) (LiquidityResult, error) {
	if err := ctx.Err(); err != nil {
		return LiquidityResult{}, err
	}
	fields := logrus.Fields{"name": def.Name, "owner": dep.Owner.String()}

	p, err := e.registry.Prepare(def, now)
	if err != nil {
		return LiquidityResult{}, e.reject("create_pool", fields, err)
	}
	s := p.Snapshot()
	fields["pool"] = s.ID.String()

	a0, a1 := dep.Amount0, dep.Amount1
	if !s.Token0.Equals(def.Token0) {
		a0, a1 = a1, a0
	}
	req := AddLiquidityRequest{
		PoolID:    s.ID,
		Owner:     dep.Owner,
		Amount0:   a0,
		Amount1:   a1,
		MinShares: dep.MinShares,
		Deadline:  dep.Deadline,
	}

	unlock := e.lock(s.ID)
	defer unlock()

	st, err := e.stageDeposit(p, req, now)
	if err != nil {
		return LiquidityResult{}, e.reject("create_pool", fields, err)
	}
	// the pool is not registered yet, nobody else can see this commit
	if err := p.Commit(st.transition); err != nil {
		return LiquidityResult{}, e.reject("create_pool", fields, err)
	}
	if err := e.registry.Register(p); err != nil {
		return LiquidityResult{}, e.reject("create_pool", fields, err)
	}
	id := e.ledger.Apply(st.change)

	pair := e.pair(s)
	e.logger.WithFields(logrus.Fields{
		"pool":  s.ID.String(),
		"pair":  pair,
		"fee":   fees.Label(s.FeeTierBps),
		"curve": s.Curve,
	}).Info("pool created")
	e.emit(ctx, &models.LedgerEvent{
		Type:      models.EventPoolCreated,
		Timestamp: now,
		PoolID:    s.ID.String(),
		Pair:      pair,
	})
	return e.finishDeposit(ctx, p, req, st, id, fields, now), nil
}

// Seed creates every pool in defs. Pools that already exist are skipped.
func (e *Engine) Seed(ctx context.Context, defs []registry.Definition, now time.Time) (int, error) {
	created := 0
	for _, def := range defs {
		_, err := e.CreatePool(ctx, def, now)
		switch {
		case err == nil:
			created++
		case errors.Is(err, ammerr.ErrDuplicatePool):
			e.logger.WithField("name", def.Name).Debug("pool already exists, skipping")
		default:
			return created, fmt.Errorf("seed pool %q: %w", def.Name, err)
		}
	}
	return created, nil
}

// GetPool returns the current summary of a pool.
func (e *Engine) GetPool(ctx context.Context, id pool.ID) (PoolSummary, error) {
	if err := ctx.Err(); err != nil {
		return PoolSummary{}, err
	}
	p, err := e.registry.Get(id)
	if err != nil {
		return PoolSummary{}, err
	}
	return e.summarize(p.Snapshot(), p), nil
}

// LookupPool finds a pool by its pair, in either order, and fee tier.
func (e *Engine) LookupPool(ctx context.Context, tokenA, tokenB models.TokenID, feeTierBps uint64) (PoolSummary, error) {
	if err := ctx.Err(); err != nil {
		return PoolSummary{}, err
	}
	p, err := e.registry.Lookup(tokenA, tokenB, feeTierBps)
	if err != nil {
		return PoolSummary{}, err
	}
	return e.summarize(p.Snapshot(), p), nil
}

// ListPools snapshots every pool now and yields summaries lazily. The sequence
// can be ranged over again and replays the same snapshots.
func (e *Engine) ListPools(ctx context.Context) iter.Seq[PoolSummary] {
	pools := e.registry.ListPools()
	return func(yield func(PoolSummary) bool) {
		for s := range pools {
			if ctx.Err() != nil {
				return
			}
			if !yield(PoolSummary{State: s.State, Pair: e.pair(s.State), SpotPrice: s.SpotPrice}) {
				return
			}
		}
	}
}

// PoolCount returns the number of registered pools.
func (e *Engine) PoolCount() int { return e.registry.PoolCount() }

// PoolStats derives dashboard figures for a pool.
func (e *Engine) PoolStats(ctx context.Context, id pool.ID, now time.Time) (pool.Stats, error) {
	if err := ctx.Err(); err != nil {
		return pool.Stats{}, err
	}
	p, err := e.registry.Get(id)
	if err != nil {
		return pool.Stats{}, err
	}
	return pool.ComputeStats(p.Curve(), p.Snapshot(), now)
}

// FeeTiers lists the supported fee tiers.
func (e *Engine) FeeTiers() []fees.Tier { return fees.Tiers() }

func (e *Engine) summarize(s pool.State, p *pool.Pool) PoolSummary {
	sum := PoolSummary{State: s, Pair: e.pair(s)}
	if spot, err := pool.SpotPrice(p.Curve(), s); err == nil {
		sum.SpotPrice = spot
	}
	return sum
}

func (e *Engine) pair(s pool.State) string {
	return e.symbols(s.Token0) + "/" + e.symbols(s.Token1)
}

// emit stamps an event and hands it to every sink. The transition has already
// committed, so sink failures are only logged.
func (e *Engine) emit(ctx context.Context, ev *models.LedgerEvent) {
	ev.Seq = e.seq.Add(1)
	for _, sink := range e.sinks {
		if err := sink.Publish(ctx, ev); err != nil {
			e.logger.WithError(err).WithFields(logrus.Fields{
				"seq":  ev.Seq,
				"type": ev.Type,
			}).Warn("failed to publish ledger event")
		}
	}
}

// reject logs a failed operation and returns err unchanged. Broken invariants
// are logged at error level, rejected requests at debug.
func (e *Engine) reject(op string, fields logrus.Fields, err error) error {
	entry := e.logger.WithError(err).WithFields(fields).WithFields(logrus.Fields{
		"op":   op,
		"kind": ammerr.KindOf(err),
	})
	if ammerr.IsFatal(err) {
		entry.Error("ledger invariant violated")
	} else {
		entry.Debug("operation rejected")
	}
	return err
}
