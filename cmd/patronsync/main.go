package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"patron-sync/internal/logger"
	"patron-sync/pkg/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		log := logger.Get()
		if errors.Is(err, errors.ErrMissingInput) {
			log.Error().Err(err).Msg("Required input file not found")
		} else {
			log.Error().Err(err).Msg("Command failed")
		}
		os.Exit(1)
	}
}
