package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mikey/digest-relay/internal/core"
	"github.com/mikey/digest-relay/internal/di"
	"github.com/mikey/digest-relay/internal/ports"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	watcher *core.Watcher,
	dispatcher *core.Dispatcher,
	frontend ports.Frontend,
	repo ports.CursorRepository,
) error {
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start the command bot
	if err := frontend.Start(); err != nil {
		logger.Error("Failed to start command bot", zap.Error(err))
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	g.Go(func() error {
		return watcher.Run(gctx)
	})

	logger.Info("Digest relay started")

	<-gctx.Done()
	logger.Info("Shutting down...")

	if err := frontend.Stop(); err != nil {
		logger.Error("Failed to stop command bot", zap.Error(err))
	}

	err := g.Wait()
	if err != nil && ctx.Err() == nil {
		logger.Error("Relay stopped unexpectedly", zap.Error(err))
	}

	if err := repo.Close(); err != nil {
		logger.Error("Failed to close state store", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	if ctx.Err() != nil {
		return nil
	}
	return err
}
