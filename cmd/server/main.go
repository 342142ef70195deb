package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/labreserve/lab-reservation/internal/config"
	"github.com/labreserve/lab-reservation/internal/database"
	"github.com/labreserve/lab-reservation/internal/queue"
	"github.com/labreserve/lab-reservation/internal/repository"
	"github.com/labreserve/lab-reservation/internal/router"
	"github.com/labreserve/lab-reservation/internal/service"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB)
	if err != nil {
		logger.Fatal("database open failed", zap.Error(err))
	}
	defer func() { _ = db.Close() }()
	if err := database.Migrate(ctx, db, cfg.DB.Driver); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		logger.Warn("redis unreachable, rate limiting and catalog cache disabled")
	} else {
		defer func() { _ = rdb.Close() }()
	}

	var events service.EventPublisher = queue.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		events = queue.NewPublisher(cfg.RabbitMQURL, logger)
	} else {
		logger.Info("RABBITMQ_URL not set, reservation events are not published")
	}

	e := router.New(router.Deps{
		Cfg:      cfg,
		Log:      logger,
		Redis:    rdb,
		Sessions: service.NewSessionManager(repository.NewSessionRepo(db), cfg.JWTSecret, cfg.SessionTTL, logger),
		Accounts: service.NewAccountService(db, cfg.BcryptCost, cfg.DefaultProfessorPassword, logger),
		Catalog:  service.NewCatalogService(db, logger),
		Engine:   service.NewBookingEngine(db, events, logger),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("db", cfg.DB.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}
