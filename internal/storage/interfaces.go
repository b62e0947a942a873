package storage

import (
	"context"
	"io"

	"github.com/aman-zulfiqar/amm-ledger/internal/models"
)

// EventSink receives ledger events after their transition has committed
type EventSink interface {
	// Publish distributes a committed event
	Publish(ctx context.Context, ev *models.LedgerEvent) error
}

// EventCache defines the interface for the live event cache
type EventCache interface {
	EventSink

	// GetRecentEvents retrieves the most recent events, newest first
	GetRecentEvents(ctx context.Context, limit int64) ([]*models.LedgerEvent, error)

	// Ping checks if the cache is reachable
	Ping(ctx context.Context) error

	// Close closes the cache connection
	io.Closer
}

// EventStore defines the interface for the persistent event journal
type EventStore interface {
	// InsertEvent appends an event to the journal
	InsertEvent(ctx context.Context, ev *models.LedgerEvent) error

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error

	// Close closes the store connection
	io.Closer
}

// EventHandler is a function that processes ledger events
type EventHandler func(*models.LedgerEvent)
