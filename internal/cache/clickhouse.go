package cache

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/aman-zulfiqar/amm-ledger/internal/models"
)

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ClickHouseStore is the append-only journal of committed ledger events.
type ClickHouseStore struct {
	conn driver.Conn
}

const createEventsTable = `
	CREATE TABLE IF NOT EXISTS ledger_events (
		seq         UInt64,
		type        LowCardinality(String),
		timestamp   DateTime64(3, 'UTC'),
		pool_id     String,
		position_id UInt64,
		owner       String,
		pair        String,
		token_in    String,
		token_out   String,
		amount0     String,
		amount1     String,
		shares      String,
		fee         String,
		reserve0    String,
		reserve1    String
	) ENGINE = MergeTree
	ORDER BY (pool_id, timestamp, seq)
`

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test connection
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseStore{conn: conn}, nil
}

// EnsureSchema creates the journal table when missing.
func (c *ClickHouseStore) EnsureSchema(ctx context.Context) error {
	if err := c.conn.Exec(ctx, createEventsTable); err != nil {
		return fmt.Errorf("failed to create ledger_events: %w", err)
	}
	return nil
}

func (c *ClickHouseStore) InsertEvent(ctx context.Context, ev *models.LedgerEvent) error {
	query := `
		INSERT INTO ledger_events (
			seq, type, timestamp, pool_id, position_id, owner, pair,
			token_in, token_out, amount0, amount1, shares, fee, reserve0, reserve1
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := c.conn.Exec(ctx, query,
		ev.Seq,
		string(ev.Type),
		ev.Timestamp,
		ev.PoolID,
		ev.PositionID,
		ev.Owner,
		ev.Pair,
		ev.TokenIn,
		ev.TokenOut,
		ev.Amount0,
		ev.Amount1,
		ev.Shares,
		ev.Fee,
		ev.Reserve0,
		ev.Reserve1,
	)

	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

// Publish lets the journal sit directly behind the engine.
func (c *ClickHouseStore) Publish(ctx context.Context, ev *models.LedgerEvent) error {
	return c.InsertEvent(ctx, ev)
}

func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
