package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/amm-ledger/internal/ammerr"
	"github.com/aman-zulfiqar/amm-ledger/internal/curve"
	"github.com/aman-zulfiqar/amm-ledger/internal/models"
)

var (
	now  = time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	sol  = models.TokenID{0x10}
	usdc = models.TokenID{0x20}
	usdt = models.TokenID{0x30}
)

func volatile(a, b models.TokenID, fee uint64) Definition {
	return Definition{Token0: a, Token1: b, FeeTierBps: fee, Curve: curve.Volatile}
}

func TestCreatePoolOrdersTokens(t *testing.T) {
	r := New()
	p, err := r.CreatePool(volatile(usdc, sol, 30), now)
	require.NoError(t, err)

	s := p.Snapshot()
	assert.Equal(t, sol, s.Token0)
	assert.Equal(t, usdc, s.Token1)
	assert.Equal(t, PoolID(sol, usdc, 30), p.ID())
	assert.Equal(t, PoolID(usdc, sol, 30), p.ID())
}

func TestCreatePoolRejectsDuplicates(t *testing.T) {
	r := New()
	_, err := r.CreatePool(volatile(sol, usdc, 30), now)
	require.NoError(t, err)

	_, err = r.CreatePool(volatile(usdc, sol, 30), now)
	assert.True(t, errors.Is(err, ammerr.ErrDuplicatePool))

	// same pair at another tier is a different pool
	_, err = r.CreatePool(volatile(sol, usdc, 5), now)
	require.NoError(t, err)
	assert.Equal(t, 2, r.PoolCount())
}

func TestCreatePoolValidation(t *testing.T) {
	r := New()
	tests := []struct {
		name string
		def  Definition
		want error
	}{
		{"identical tokens", volatile(sol, sol, 30), ammerr.ErrIdenticalTokens},
		{"unknown tier", volatile(sol, usdc, 25), ammerr.ErrInvalidFeeTier},
		{"stable without amp", Definition{Token0: usdc, Token1: usdt, FeeTierBps: 1, Curve: curve.Stable}, ammerr.ErrInvalidAmplification},
		{"stable amp too high", Definition{Token0: usdc, Token1: usdt, FeeTierBps: 1, Curve: curve.Stable, Amplification: 10_001}, ammerr.ErrInvalidAmplification},
		{"volatile with amp", Definition{Token0: sol, Token1: usdc, FeeTierBps: 30, Curve: curve.Volatile, Amplification: 5}, ammerr.ErrInvalidAmplification},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.CreatePool(tt.def, now)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
	assert.Zero(t, r.PoolCount())
}

func TestLookupAndGet(t *testing.T) {
	r := New()
	p, err := r.CreatePool(Definition{Token0: usdt, Token1: usdc, FeeTierBps: 1, Curve: curve.Stable, Amplification: 100}, now)
	require.NoError(t, err)

	got, err := r.Lookup(usdc, usdt, 1)
	require.NoError(t, err)
	assert.Same(t, p, got)

	got, err = r.Get(p.ID())
	require.NoError(t, err)
	assert.Same(t, p, got)

	_, err = r.Lookup(usdc, usdt, 5)
	assert.True(t, errors.Is(err, ammerr.ErrPoolNotFound))
}

func TestListPoolsIsSnapshotAndRestartable(t *testing.T) {
	r := New()
	a, err := r.CreatePool(volatile(sol, usdc, 30), now)
	require.NoError(t, err)
	_, err = r.CreatePool(volatile(sol, usdt, 100), now)
	require.NoError(t, err)

	_, err = a.AddLiquidity(uint256.NewInt(1_000), uint256.NewInt(4_000), nil, time.Time{}, now)
	require.NoError(t, err)

	seq := r.ListPools()

	// later changes are not visible to an existing listing
	_, err = r.CreatePool(volatile(usdc, usdt, 5), now)
	require.NoError(t, err)
	_, err = a.AddLiquidity(uint256.NewInt(1_000), uint256.NewInt(4_000), nil, time.Time{}, now)
	require.NoError(t, err)

	collect := func() []Summary {
		var out []Summary
		for s := range seq {
			out = append(out, s)
		}
		return out
	}
	first := collect()
	second := collect()

	require.Len(t, first, 2)
	assert.Equal(t, first, second)
	assert.Equal(t, a.ID(), first[0].State.ID)
	assert.Equal(t, uint64(1_000), first[0].State.Reserve0.Uint64())
	assert.Equal(t, "4000000000000000000", first[0].SpotPrice.Dec())
	assert.Nil(t, first[1].SpotPrice)

	// consumers can stop early
	n := 0
	for range seq {
		n++
		break
	}
	assert.Equal(t, 1, n)
	assert.Len(t, collect(), 2)
}

func TestLoadDefinitionsFromJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pools.json")
	body := `[
  {"name": "SOL/USDC", "token0": "So11111111111111111111111111111111111111112", "token1": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", "fee_bps": 30},
  {"name": "USDC/USDT", "token0": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", "token1": "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", "fee_bps": 1, "curve": "stable", "amplification": 200}
]`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	defs, err := LoadDefinitionsFromJSON(path)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, curve.Volatile, defs[0].Curve)
	assert.Equal(t, curve.Stable, defs[1].Curve)
	assert.Equal(t, uint64(200), defs[1].Amplification)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"name":"x","token0":"So11111111111111111111111111111111111111112","token1":"So11111111111111111111111111111111111111112","fee_bps":30}]`), 0o600))
	_, err = LoadDefinitionsFromJSON(bad)
	assert.True(t, errors.Is(err, ammerr.ErrIdenticalTokens))
}

func TestPrepareThenRegister(t *testing.T) {
	r := New()
	p, err := r.Prepare(volatile(usdc, sol, 30), now)
	require.NoError(t, err)
	assert.Equal(t, 0, r.PoolCount())
	_, err = r.Get(p.ID())
	assert.True(t, errors.Is(err, ammerr.ErrPoolNotFound))

	require.NoError(t, r.Register(p))
	assert.Equal(t, 1, r.PoolCount())

	_, err = r.Prepare(volatile(sol, usdc, 30), now)
	assert.True(t, errors.Is(err, ammerr.ErrDuplicatePool))

	// two prepared pools for one key: only the first registers
	a, err := r.Prepare(volatile(sol, usdc, 5), now)
	require.NoError(t, err)
	b, err := r.Prepare(volatile(usdc, sol, 5), now)
	require.NoError(t, err)
	require.NoError(t, r.Register(a))
	assert.True(t, errors.Is(r.Register(b), ammerr.ErrDuplicatePool))
	assert.Equal(t, 2, r.PoolCount())
}
