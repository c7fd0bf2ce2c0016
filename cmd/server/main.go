package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/ptnguyen/checkout/internal/adapter/event"
	"github.com/ptnguyen/checkout/internal/adapter/handler"
	"github.com/ptnguyen/checkout/internal/adapter/storage"
	"github.com/ptnguyen/checkout/internal/config"
	"github.com/ptnguyen/checkout/internal/core/service"
	"github.com/ptnguyen/checkout/internal/obs"
	"github.com/ptnguyen/checkout/internal/port"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := obs.NewLogger("info", "console")
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := obs.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		carts    port.CartRepository
		orders   port.OrderRepository
		products port.ProductRepository
		users    port.UserRepository
		ledger   port.InventoryLedger
		closers  []func() error
	)

	switch cfg.StorageDriver {
	case config.StorageMemory:
		store := storage.NewMemoryStore()
		carts, orders, products, users = store, store, store.Products(), store.Users()
		ledger = storage.NewMemoryLedger()
		logger.Info().Msg("using in-memory storage")
	case config.StorageMySQL:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("open mysql")
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			logger.Fatal().Err(err).Msg("ping mysql")
		}
		logger.Info().Msg("connected to mysql")
		closers = append(closers, db.Close)

		store := storage.NewMySQLStore(db)
		carts, orders, products, users = store, store, store.Products(), store.Users()
		ledger = storage.NewMySQLLedger(db)
	}

	if cfg.LedgerDriver == config.LedgerRedis {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, PoolSize: 100})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("ping redis")
		}
		logger.Info().Msg("connected to redis")
		closers = append(closers, rdb.Close)
		ledger = storage.NewRedisLedger(rdb)
	}

	var publisher port.EventPublisher = event.NoopPublisher{}
	if cfg.KafkaBrokers != "" {
		kp := event.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		closers = append(closers, kp.Close)
		publisher = kp
		logger.Info().Str("topic", cfg.KafkaTopic).Msg("kafka event publisher enabled")
	}

	cartService := service.NewCartService(carts, products, users, logger)
	checkoutService := service.NewCheckoutService(carts, orders, products, users, ledger, publisher, logger)

	httpHandler := handler.NewHTTPHandler(cartService, checkoutService, ledger, logger)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: httpHandler.Router(),
	}

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown")
	}
	logger.Info().Msg("HTTP server stopped")

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error().Err(err).Msg("close connection")
		}
	}
	logger.Info().Msg("connections closed")
}
