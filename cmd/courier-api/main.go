package main

import (
	"context"
	"errors"

	"github.com/BearBump/CourierSync/internal/logger"
	"go.uber.org/zap"
)

func main() {
	app := mustBootstrapCourierAPI()
	defer app.Close()

	if err := app.Run(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Get().Error("courier-api stopped", zap.Error(err))
	}
}
