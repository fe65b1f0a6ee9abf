package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/mail-risk-analyzer/internal/adapters/cache"
	"github.com/mikey/mail-risk-analyzer/internal/core"
	"github.com/mikey/mail-risk-analyzer/internal/di"
	"github.com/mikey/mail-risk-analyzer/internal/ports"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer(version)
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
	frontends []ports.Frontend,
	assessor core.AIAssessor,
	analysisCache *cache.MemoryCache,
	audit core.AuditLog,
) error {
	defer logger.Sync()

	logger.Info("Starting mail risk analyzer", zap.String("version", version))

	started := make([]ports.Frontend, 0, len(frontends))
	for _, frontend := range frontends {
		if err := frontend.Start(); err != nil {
			logger.Error("Failed to start frontend", zap.Error(err))
			stopAll(logger, started)
			return err
		}
		started = append(started, frontend)
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	stopAll(logger, started)

	// Close any resources that need closing
	if closer, ok := assessor.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close AI client", zap.Error(err))
		}
	}

	analysisCache.Stop()

	if stopper, ok := audit.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	logger.Info("Shutdown complete")
	return nil
}

func stopAll(logger *zap.Logger, frontends []ports.Frontend) {
	for i := len(frontends) - 1; i >= 0; i-- {
		if err := frontends[i].Stop(); err != nil {
			logger.Error("Failed to stop frontend", zap.Error(err))
		}
	}
}
