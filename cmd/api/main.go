package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/theplug/backend/internal/auth"
	"github.com/theplug/backend/internal/config"
	"github.com/theplug/backend/internal/db"
	"github.com/theplug/backend/internal/events"
	apphttp "github.com/theplug/backend/internal/http"
	"github.com/theplug/backend/internal/http/handlers"
	"github.com/theplug/backend/internal/presence"
	"github.com/theplug/backend/internal/relay"
	"github.com/theplug/backend/internal/repositories"
	"github.com/theplug/backend/internal/repositories/memory"
	"github.com/theplug/backend/internal/services"
	"github.com/theplug/backend/migrations"
	"go.uber.org/zap"
)

type stores struct {
	accounts repositories.AccountRepository
	gifts    repositories.GiftRepository
	ledger   repositories.LedgerRepository
	close    func()
}

func main() {
	cfg := config.Load()

	log := newLogger(cfg)
	defer log.Sync()

	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open storage", zap.Error(err))
	}
	defer st.close()

	// Redis is optional: it backs rate limiting and the gift feed.
	var (
		rdb       *redis.Client
		publisher events.Publisher = events.NopPublisher{}
	)
	if cfg.RedisURL != "" {
		rdb, err = db.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		publisher = events.NewRedisPublisher(rdb, log)
	}

	// Realtime
	registry := presence.NewRegistry()
	verifier := auth.NewVerifier(cfg.JWTSecret)
	rl := relay.New(registry, verifier, cfg.WSSendBuffer, log)

	// Services
	walletService := services.NewWalletService(st.accounts, st.gifts, st.ledger, log)
	authService := services.NewAuthService(st.accounts, cfg, log)
	notifier := services.NewGiftNotifier(rl, publisher, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, walletService, log)
	giftHandler := handlers.NewGiftHandler(walletService, notifier, log)
	presenceHandler := handlers.NewPresenceHandler(registry)
	wsHandler := handlers.NewWSHandler(rl, verifier, log)

	app := apphttp.NewApp(log)
	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, giftHandler, presenceHandler, wsHandler)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		rl.Close()
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr), zap.String("storage", cfg.StorageType))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		log *zap.Logger
		err error
	)
	if cfg.IsDevelopment() {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	if cfg.StorageType == config.StorageTypeMemory {
		store := memory.New()
		return &stores{accounts: store, gifts: store, ledger: store, close: func() {}}, nil
	}

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &stores{
		accounts: repositories.NewAccountRepo(pool),
		gifts:    repositories.NewGiftRepo(pool),
		ledger:   repositories.NewLedgerRepo(pool),
		close:    pool.Close,
	}, nil
}
