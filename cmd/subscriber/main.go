// Command subscriber follows the ledger's event channels. With CLICKHOUSE_ADDR
// set it journals every event into ledger_events, otherwise it only logs them.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-ledger/internal/cache"
	"github.com/aman-zulfiqar/amm-ledger/internal/config"
	"github.com/aman-zulfiqar/amm-ledger/internal/constants"
	"github.com/aman-zulfiqar/amm-ledger/internal/models"
	"github.com/aman-zulfiqar/amm-ledger/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file in working directory")
	}
	cfg := config.Load()
	logger.SetLevel(cfg.Level())
	if cfg.RedisAddr == "" {
		logger.Fatal("REDIS_ADDR is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var journal storage.EventStore
	if cfg.ClickHouseAddr != "" {
		store, err := cache.NewClickHouseStore(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to ClickHouse")
		}
		defer func() { _ = store.Close() }()
		if err := store.EnsureSchema(ctx); err != nil {
			logger.WithError(err).Fatal("failed to create ledger_events table")
		}
		journal = store
	}

	pubsub := cache.NewPubSubManager(cfg.RedisAddr, logger)
	defer func() { _ = pubsub.Close() }()

	logger.Info("starting ledger subscriber")

	var wg sync.WaitGroup
	run := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				logger.WithError(err).WithField("subscription", name).Error("subscription stopped")
				cancel()
			}
		}()
	}

	// Every event goes to the journal
	run(constants.PubSubChannelEvents, func() error {
		return pubsub.Subscribe(ctx, constants.PubSubChannelEvents, func(ev *models.LedgerEvent) {
			entry := logger.WithFields(logrus.Fields{
				"seq":  ev.Seq,
				"type": ev.Type,
				"pool": ev.PoolID,
				"pair": ev.Pair,
			})
			if journal == nil {
				entry.Info("event")
				return
			}
			insertCtx, done := context.WithTimeout(ctx, 5*time.Second)
			defer done()
			if err := journal.InsertEvent(insertCtx, ev); err != nil {
				entry.WithError(err).Error("failed to journal event")
				return
			}
			entry.Debug("journaled")
		})
	})

	// Position lifecycle events only
	run(constants.PubSubChannelPositions, func() error {
		return pubsub.Subscribe(ctx, constants.PubSubChannelPositions, func(ev *models.LedgerEvent) {
			logger.WithFields(logrus.Fields{
				"type":     ev.Type,
				"position": ev.PositionID,
				"owner":    ev.Owner,
			}).Info("position event")
		})
	})

	logger.Info("subscriber running, press Ctrl+C to stop")

	select {
	case <-sigChan:
	case <-ctx.Done():
	}
	logger.Info("shutting down subscriber")
	cancel()
	wg.Wait()
}
