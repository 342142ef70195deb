// Command audit consumes reservation events and appends them to the audit
// log file.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/labreserve/lab-reservation/internal/config"
	"github.com/labreserve/lab-reservation/internal/queue"
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

	if cfg.RabbitMQURL == "" {
		logger.Fatal("RABBITMQ_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("audit consumer starting", zap.String("queue", queue.ReservationsQueue), zap.String("log_path", cfg.AuditLogPath))
	err = queue.NewConsumer(cfg.RabbitMQURL, cfg.AuditLogPath, logger).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("audit consumer stopped", zap.Error(err))
	}
}
