package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/handler"
	"stockledger/internal/infra/db"
	"stockledger/internal/infra/memory"
	infraRepo "stockledger/internal/infra/repository"
	"stockledger/internal/logger"
	"stockledger/internal/messaging"
	repo "stockledger/internal/repository"
	"stockledger/internal/server"
	"stockledger/internal/usecase"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

// 選んだ driver ごとの store 一式
type storeSet struct {
	tx     repo.TransactionManager
	ledger repo.StockTransactionRepository
	alerts repo.StockAlertRepository
	health server.HealthCheck
	close  func() error
}

func main() {
	//.env は無くてもよい
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.GoEnv)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("stockledger stopped")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	//競合したらTxごとやり直す
	txm := infraRepo.NewRetryingTxManager(st.tx, infraRepo.RetryPolicy{
		MaxAttempts:     cfg.TxMaxAttempts,
		InitialInterval: cfg.TxInitialBackoff,
		MaxInterval:     cfg.TxMaxBackoff,
	})

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}

	var publisher usecase.AlertPublisher
	if cfg.KafkaEnabled() {
		ap := messaging.NewAlertPublisher(cfg.KafkaBrokers, cfg.StockAlertsTopic)
		defer func() { _ = ap.Close() }()
		publisher = ap
	}

	//Usecase生成
	invUC := usecase.NewInventoryUsecase(txm, st.ledger, publisher, idGen, clock)
	adminUC := usecase.NewAdminInventoryUsecase(txm, st.ledger, st.alerts, publisher, idGen, clock)

	//Handler / Server
	e := server.New(log, st.health, handler.NewInventoryHandler(invUC), handler.NewAdminInventoryHandler(adminUC))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr()).Str("store", cfg.StoreDriver).Bool("kafka", cfg.KafkaEnabled()).Msg("http server listening")
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if cfg.KafkaEnabled() {
		consumer := messaging.NewOrderConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.OrderEventsTopic, invUC)
		defer func() { _ = consumer.Close() }()
		g.Go(func() error {
			return consumer.Run(gctx)
		})
	}

	return g.Wait()
}

func openStore(cfg config.Config) (storeSet, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		store := memory.NewStore()
		if cfg.SeedFile != "" {
			products, err := memory.LoadSeedFile(cfg.SeedFile)
			if err != nil {
				return storeSet{}, err
			}
			store.Seed(products...)
		}
		return storeSet{
			tx:     store,
			ledger: store.StockTransactionRepository(),
			alerts: store.StockAlertRepository(),
			close:  func() error { return nil },
		}, nil
	}

	//DB接続
	gormDB, err := db.Connect(cfg.DSN())
	if err != nil {
		return storeSet{}, fmt.Errorf("connect db: %w", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		return storeSet{}, fmt.Errorf("migrate: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return storeSet{}, err
	}

	return storeSet{
		tx:     infraRepo.NewTxManagerGorm(gormDB),
		ledger: infraRepo.NewStockTransactionGormRepository(gormDB),
		alerts: infraRepo.NewStockAlertGormRepository(gormDB),
		health: db.Ping(gormDB),
		close:  sqlDB.Close,
	}, nil
}
