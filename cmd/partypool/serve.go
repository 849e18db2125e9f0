package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/partypool/partypool/pkg/api"
	"github.com/partypool/partypool/pkg/config"
	"github.com/partypool/partypool/pkg/deploy"
	"github.com/partypool/partypool/pkg/events"
	"github.com/partypool/partypool/pkg/log"
	"github.com/partypool/partypool/pkg/mailer"
	"github.com/partypool/partypool/pkg/metrics"
	"github.com/partypool/partypool/pkg/operator"
	"github.com/partypool/partypool/pkg/orchestrator"
	"github.com/partypool/partypool/pkg/storage"
	"github.com/partypool/partypool/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cluster pool service",
	Long: `Start the partypool service: the pool orchestrator, the application
deployment pipeline, and the HTTP API. State is kept in an embedded
database under the data directory and survives restarts.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "partypool.yaml", "Path to configuration file")
	serveCmd.Flags().String("data-dir", "/var/lib/partypool", "Data directory")
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().Bool("simulate", false, "Use simulated infrastructure operators")
	serveCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().Bool("log-json", false, "Log JSON instead of console output")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	listen, _ := cmd.Flags().GetString("listen")
	simulate, _ := cmd.Flags().GetBool("simulate")
	logLevel, _ := cmd.Flags().GetString("log-level")
	logJSON, _ := cmd.Flags().GetBool("log-json")

	logger := log.New(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
	metrics.SetVersion(Version)

	provider, err := config.NewProvider(configPath, log.WithComponent(logger, "config"))
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cfg := provider.Current()

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	metrics.RegisterComponent("store", true, "open")

	var clusterOp operator.ClusterOperator
	var appOp operator.ApplicationOperator
	if simulate {
		logger.Info().Msg("using simulated infrastructure operators")
		clusterOp = operator.NewSimClusterOperator(cfg.Cluster.MaximumUsersPerCluster)
		appOp = operator.NewSimApplicationOperator()
	} else {
		if cfg.Operators.Provisioner == "" || cfg.Operators.ApplicationManager == "" {
			return fmt.Errorf("operator endpoints must be configured unless --simulate is set")
		}
		clusterOp = operator.NewRemoteClusterOperator(cfg.Operators.Provisioner,
			log.WithComponent(logger, "provisioner"))
		appOp = operator.NewRemoteApplicationOperator(cfg.Operators.ApplicationManager,
			log.WithComponent(logger, "appmanager"))
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	pipeline := deploy.New(deploy.Options{
		Store:        store,
		Applications: appOp,
		Packages:     func() []types.ApplicationPackage { return provider.Current().Packages },
		ScratchDir:   filepath.Join(dataDir, "packages"),
		Broker:       broker,
		Logger:       log.WithComponent(logger, "pipeline"),
	})

	orch := orchestrator.New(orchestrator.Options{
		Store:        store,
		Clusters:     clusterOp,
		Applications: appOp,
		Deployer:     pipeline,
		Mailer:       mailer.NewLogMailer(log.WithComponent(logger, "mailer")),
		Broker:       broker,
		Config:       func() types.ClusterConfig { return provider.Current().Cluster },
		Logger:       log.WithComponent(logger, "orchestrator"),
	})

	server := api.NewServer(listen, orch, pipeline, log.WithComponent(logger, "api"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 3)
	go func() { errCh <- orch.Run(ctx) }()
	go func() { errCh <- pipeline.Run(ctx) }()
	go func() { errCh <- server.Start() }()
	go provider.Watch(ctx, cfg.Cluster.RefreshInterval)
	go logEvents(ctx, broker, log.WithComponent(logger, "events"))

	logger.Info().Str("listen", listen).Str("data_dir", dataDir).Msg("partypool started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		if errors.Is(runErr, context.Canceled) {
			runErr = nil
		}
		if runErr != nil {
			logger.Error().Err(runErr).Msg("component failed")
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}

	return runErr
}

// logEvents mirrors the event stream into the log
func logEvents(ctx context.Context, broker *events.Broker, logger zerolog.Logger) {
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub:
			if !ok {
				return
			}
			entry := logger.Info().Str("type", string(event.Type))
			for key, value := range event.Metadata {
				entry = entry.Str(key, value)
			}
			entry.Msg(event.Message)
		}
	}
}
