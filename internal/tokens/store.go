// Package tokens is a Redis-backed directory of token symbols used to label
// pools. Lookups are served from memory; writes go to Redis first.
package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aman-zulfiqar/amm-ledger/internal/constants"
	"github.com/aman-zulfiqar/amm-ledger/internal/models"
)

var symbolRe = regexp.MustCompile(`^[A-Za-z0-9.\-]{1,16}$`)

type Store struct {
	client redis.Cmdable

	mu      sync.RWMutex
	symbols map[string]string
}

func NewStore(client redis.Cmdable) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &Store{client: client, symbols: make(map[string]string)}, nil
}

func ValidateSymbol(symbol string) error {
	if !symbolRe.MatchString(symbol) {
		return fmt.Errorf("invalid token symbol")
	}
	return nil
}

func ValidateMint(mint string) error {
	if _, err := models.ParseTokenID(mint); err != nil {
		return fmt.Errorf("invalid token mint")
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, mint, symbol string) (*Token, error) {
	if err := ValidateMint(mint); err != nil {
		return nil, err
	}
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	tok := &Token{Mint: mint, Symbol: symbol, UpdatedAt: time.Now().UTC()}
	b, err := json.Marshal(tok)
	if err != nil {
		return nil, fmt.Errorf("marshal token: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, tokenKey(mint), b, 0)
	pipe.SAdd(ctx, constants.RedisKeyTokenIndex, mint)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("upsert token: %w", err)
	}

	s.mu.Lock()
	s.symbols[mint] = symbol
	s.mu.Unlock()
	return tok, nil
}

func (s *Store) Get(ctx context.Context, mint string) (*Token, error) {
	if err := ValidateMint(mint); err != nil {
		return nil, err
	}

	val, err := s.client.Get(ctx, tokenKey(mint)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	var t Token
	if err := json.Unmarshal([]byte(val), &t); err != nil {
		return nil, fmt.Errorf("unmarshal token: %w", err)
	}
	return &t, nil
}

func (s *Store) List(ctx context.Context) ([]*Token, error) {
	mints, err := s.client.SMembers(ctx, constants.RedisKeyTokenIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("list tokens index: %w", err)
	}
	if len(mints) == 0 {
		return []*Token{}, nil
	}

	redisKeys := make([]string, 0, len(mints))
	for _, m := range mints {
		if err := ValidateMint(m); err != nil {
			continue
		}
		redisKeys = append(redisKeys, tokenKey(m))
	}
	if len(redisKeys) == 0 {
		return []*Token{}, nil
	}

	vals, err := s.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget tokens: %w", err)
	}

	out := make([]*Token, 0, len(vals))
	for _, v := range vals {
		if v == nil {
			continue
		}
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var t Token
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			continue
		}
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })

	return out, nil
}

func (s *Store) Delete(ctx context.Context, mint string) error {
	if err := ValidateMint(mint); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, tokenKey(mint))
	pipe.SRem(ctx, constants.RedisKeyTokenIndex, mint)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}

	s.mu.Lock()
	delete(s.symbols, mint)
	s.mu.Unlock()
	return nil
}

// Refresh reloads the in-memory directory from Redis.
func (s *Store) Refresh(ctx context.Context) error {
	items, err := s.List(ctx)
	if err != nil {
		return err
	}
	next := make(map[string]string, len(items))
	for _, t := range items {
		next[t.Mint] = t.Symbol
	}
	s.mu.Lock()
	s.symbols = next
	s.mu.Unlock()
	return nil
}

// Symbol labels a token from the directory, falling back to the built-in list.
func (s *Store) Symbol(id models.TokenID) string {
	mint := id.String()
	s.mu.RLock()
	sym, ok := s.symbols[mint]
	s.mu.RUnlock()
	if ok {
		return sym
	}
	return constants.Symbol(mint)
}

func tokenKey(mint string) string {
	return constants.RedisKeyTokenPrefix + mint
}
