package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"StillStudying/config"
	"StillStudying/internal/queue"
	"StillStudying/pkg/logger"
	"StillStudying/pkg/notifier"
	"StillStudying/storage"
)

func main() {

	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Logger.Info("Received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	// 通知客户端，所有消费者都要用
	if err := notifier.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize notifier", zap.Error(err))
	}

	logger.Logger.Info("Worker service starting",
		zap.String("service", config.Cfg.ServiceName+"-worker"),
		zap.String("environment", config.Cfg.Environment),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- queue.StartAllConsumers()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Logger.Error("Consumer exited unexpectedly", zap.Error(err))
	}

	logger.Logger.Info("Worker service shutting down gracefully")
}
