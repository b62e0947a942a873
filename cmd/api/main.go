package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-ledger/internal/cache"
	"github.com/aman-zulfiqar/amm-ledger/internal/config"
	"github.com/aman-zulfiqar/amm-ledger/internal/engine"
	"github.com/aman-zulfiqar/amm-ledger/internal/registry"
	"github.com/aman-zulfiqar/amm-ledger/internal/server"
	"github.com/aman-zulfiqar/amm-ledger/internal/storage"
	"github.com/aman-zulfiqar/amm-ledger/internal/tokens"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main is the entry point for the ledger API server
// It wires the optional sinks, seeds pools and serves HTTP until signalled
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	logger.SetLevel(cfg.Level())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var (
		sinks    []storage.EventSink
		events   storage.EventCache
		tokenDir *tokens.Store
	)
	engineCfg := engine.Config{Logger: logger, MaxPriceImpactBps: cfg.MaxPriceImpactBps}

	// Redis backs the event fan-out, the recent-events list and the token directory
	if cfg.RedisAddr != "" {
		rclient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   0,
		})
		if err := rclient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Fatal("failed to connect to Redis")
		}
		defer func() { _ = rclient.Close() }()

		eventCache := cache.NewRedisCacheFromClient(rclient, logger)
		sinks = append(sinks, eventCache)
		events = eventCache

		store, err := tokens.NewStore(rclient)
		if err != nil {
			logger.WithError(err).Fatal("failed to create token store")
		}
		if err := store.Refresh(ctx); err != nil {
			logger.WithError(err).Warn("failed to load token symbols")
		}
		tokenDir = store
		engineCfg.Symbols = store.Symbol
	} else {
		logger.Warn("REDIS_ADDR not set, events are not published")
	}

	// ClickHouse journals events directly when configured
	if cfg.ClickHouseAddr != "" {
		journal, err := cache.NewClickHouseStore(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to ClickHouse")
		}
		defer func() { _ = journal.Close() }()
		if err := journal.EnsureSchema(ctx); err != nil {
			logger.WithError(err).Fatal("failed to create ledger_events table")
		}
		sinks = append(sinks, journal)
	}

	engineCfg.Sinks = sinks
	eng := engine.New(engineCfg)

	if cfg.PoolsFile != "" {
		defs, err := registry.LoadDefinitionsFromJSON(cfg.PoolsFile)
		if err != nil {
			logger.WithError(err).Fatal("failed to load pool definitions")
		}
		n, err := eng.Seed(ctx, defs, time.Now().UTC())
		if err != nil {
			logger.WithError(err).Fatal("failed to seed pools")
		}
		logger.WithFields(logrus.Fields{"file": cfg.PoolsFile, "created": n}).Info("pools seeded")
	}

	h := &server.Handlers{
		Engine:  eng,
		Events:  events,
		Tokens:  tokenDir,
		DevMode: cfg.DevMode,
		Logger:  logger,
		Timeout: cfg.HTTPTimeout,
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:          cfg.APIAddr,
			DevMode:       cfg.DevMode,
			APIKey:        cfg.APIKey,
			MutationRate:  cfg.MutationRateLimit,
			MutationBurst: cfg.MutationBurst,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithField("addr", cfg.APIAddr).Info("api server starting")
	if err := srv.Start(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return
		}
		logger.WithError(err).Fatal("api server failed")
	}

	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
}
