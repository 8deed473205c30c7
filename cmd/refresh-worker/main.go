package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/CourierSync/config"
	"github.com/BearBump/CourierSync/internal/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	if err := logger.Init(cfg.App.Env, cfg.App.LogLevel); err != nil {
		panic(fmt.Sprintf("init logger: %v", err))
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := workerHTTPOpts{
		httpAddr:    cfg.Worker.HTTPAddr,
		swaggerPath: os.Getenv("workerSwaggerPath"),
	}
	if err := RunRefreshWorker(ctx, cfg, defaultWorkerFactories(), opts); err != nil && !errors.Is(err, context.Canceled) {
		logger.Get().Error("refresh-worker stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}
