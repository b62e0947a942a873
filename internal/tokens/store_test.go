package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/amm-ledger/internal/models"
)

const (
	wsol = "So11111111111111111111111111111111111111112"
	usdc = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	fake = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // Use different DB for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	require.NoError(t, client.FlushDB(ctx).Err())
	return client
}

func cleanupTestRedis(_ *testing.T, client *redis.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = client.FlushDB(ctx).Err()
	_ = client.Close()
}

func TestValidate(t *testing.T) {
	assert.NoError(t, ValidateSymbol("mSOL"))
	assert.NoError(t, ValidateSymbol("BTC-w"))
	assert.Error(t, ValidateSymbol(""))
	assert.Error(t, ValidateSymbol("way-too-long-symbol-name"))
	assert.Error(t, ValidateSymbol("A B"))

	assert.NoError(t, ValidateMint(wsol))
	assert.Error(t, ValidateMint("not-a-mint"))
}

func TestNewStoreRejectsNilClient(t *testing.T) {
	_, err := NewStore(nil)
	assert.Error(t, err)
}

func TestStore_UpsertGetDelete(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(t, client)

	store, err := NewStore(client)
	require.NoError(t, err)
	ctx := context.Background()

	tok, err := store.Upsert(ctx, fake, "SRM")
	require.NoError(t, err)
	assert.Equal(t, "SRM", tok.Symbol)
	assert.NotZero(t, tok.UpdatedAt)

	got, err := store.Get(ctx, fake)
	require.NoError(t, err)
	assert.Equal(t, tok.Mint, got.Mint)
	assert.Equal(t, tok.Symbol, got.Symbol)

	id, err := models.ParseTokenID(fake)
	require.NoError(t, err)
	assert.Equal(t, "SRM", store.Symbol(id))

	require.NoError(t, store.Delete(ctx, fake))
	_, err = store.Get(ctx, fake)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "9xQe..VFin", store.Symbol(id))
}

func TestStore_ListAndRefresh(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(t, client)

	ctx := context.Background()
	writer, err := NewStore(client)
	require.NoError(t, err)
	_, err = writer.Upsert(ctx, usdc, "USDC")
	require.NoError(t, err)
	_, err = writer.Upsert(ctx, wsol, "wSOL")
	require.NoError(t, err)

	items, err := writer.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "USDC", items[0].Symbol)

	// a second process sees the override only after a refresh
	reader, err := NewStore(client)
	require.NoError(t, err)
	id, err := models.ParseTokenID(wsol)
	require.NoError(t, err)
	assert.Equal(t, "SOL", reader.Symbol(id))

	require.NoError(t, reader.Refresh(ctx))
	assert.Equal(t, "wSOL", reader.Symbol(id))
}
