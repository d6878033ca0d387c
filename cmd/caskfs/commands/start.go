package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/caskfs/caskfs/internal/api"
	"github.com/caskfs/caskfs/internal/logger"
	"github.com/caskfs/caskfs/pkg/config"
	"github.com/caskfs/caskfs/pkg/controlplane/store"
	"github.com/caskfs/caskfs/pkg/metrics"
	caskfsprom "github.com/caskfs/caskfs/pkg/metrics/prometheus"
	"github.com/caskfs/caskfs/pkg/notify"
	"github.com/caskfs/caskfs/pkg/vault"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the CaskFS server",
	Long: `Start the CaskFS server with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/caskfs/config.yaml.

Examples:
  # Start with default config location
  caskfs start

  # Start with custom config file
  caskfs start --config /etc/caskfs/config.yaml

  # Start with environment variable overrides
  CASKFS_LOGGING_LEVEL=DEBUG caskfs start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Println("CaskFS - Versioned file vault for LAN collaboration")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	// Initialize metrics first so collectors created below register
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled", "endpoint", "/metrics")
	} else {
		logger.Info("Metrics collection disabled")
	}

	// Durable stores for version histories and blobs
	metaStore, err := config.CreateMetadataStore(cfg.Metadata)
	if err != nil {
		return fmt.Errorf("failed to initialize metadata store: %w", err)
	}
	defer func() {
		if err := metaStore.Close(); err != nil {
			logger.Error("metadata store close error", logger.KeyError, err)
		}
	}()

	contentStore, err := config.CreateContentStore(ctx, cfg.Content)
	if err != nil {
		return fmt.Errorf("failed to initialize content store: %w", err)
	}

	logger.Info("Stores initialized",
		"metadata_backend", cfg.Metadata.Backend,
		"content_backend", cfg.Content.Backend)

	// Control plane store for user accounts
	cpStore, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize control plane store: %w", err)
	}
	defer func() {
		if err := cpStore.Close(); err != nil {
			logger.Error("control plane store close error", logger.KeyError, err)
		}
	}()

	// Ensure admin user exists (generates random password on first run)
	adminPassword, err := cpStore.EnsureAdminUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure admin user: %w", err)
	}
	if adminPassword != "" {
		logger.Info("Admin user created", "username", "admin")
		fmt.Printf("\n*** IMPORTANT: Admin user created with password: %s ***\n", adminPassword)
		fmt.Println("Please save this password. It will not be shown again.")
		fmt.Println()
	}

	broadcaster := notify.NewBroadcaster()
	defer broadcaster.Close()

	coordinator, err := vault.New(vault.Config{
		Metadata: metaStore,
		Content:  contentStore,
		Notifier: broadcaster,
		Metrics:  caskfsprom.NewVaultMetrics(),
	})
	if err != nil {
		return fmt.Errorf("failed to create vault coordinator: %w", err)
	}

	apiServer, err := api.NewServer(cfg.API, coordinator, broadcaster, cpStore)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}
	apiServer.SetShutdownTimeout(cfg.ShutdownTimeout)
	logger.Info("API server configured", "port", apiServer.Port())

	// Start server in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- apiServer.Start(ctx)
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", logger.KeyError, err)
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", logger.KeyError, err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}
