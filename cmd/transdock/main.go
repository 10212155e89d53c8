package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/transdock/transdock/internal/config"
	"github.com/transdock/transdock/internal/containerstack"
	"github.com/transdock/transdock/internal/eventbus"
	"github.com/transdock/transdock/internal/executor"
	"github.com/transdock/transdock/internal/migration"
	"github.com/transdock/transdock/internal/observability"
	"github.com/transdock/transdock/internal/server"
	"github.com/transdock/transdock/internal/tokenblacklist"
	"github.com/transdock/transdock/internal/zfs"
)

var (
	cfgFile string
	logger  *observability.Logger
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "transdock",
	Short: "Snapshot-aware migration of containerized application stacks",
	Long: `transdock migrates a docker compose stack and its ZFS-backed data
directories from one host to another, using zfs send/receive (or rsync as a
fallback) and a deterministic validate/snapshot/transfer/recreate/verify
pipeline.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		logger, err = observability.NewLogger("info")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
			os.Exit(1)
		}

		cfg = config.LoadFromEnv()

		if cfg.LogLevel != "" {
			if l, err := observability.NewLogger(cfg.LogLevel); err == nil {
				logger = l
			} else {
				logger.Warn("failed to set log level from config, using default", zap.Error(err))
			}
		}
	},
}

// collaborators bundles every wired dependency a command needs so
// each Run func only has to call wire() once.
type collaborators struct {
	exec         *executor.Executor
	datasets     *zfs.DatasetService
	snapshots    *zfs.SnapshotService
	pools        *zfs.PoolService
	stack        containerstack.Client
	repo         migration.Repository
	orchestrator *migration.Orchestrator
	events       *eventbus.Broadcaster
	blacklist    *tokenblacklist.Blacklist
	health       *observability.HealthChecker
}

func wire(dockerHost string) (*collaborators, error) {
	exec := executor.New(logger, cfg.CommandTimeout, cfg.KnownHostsPath)
	datasets := zfs.NewDatasetService(exec, logger)
	snapshots := zfs.NewSnapshotService(exec, logger)
	pools := zfs.NewPoolService(exec, logger)

	localStack, err := containerstack.NewLocalClient(logger, dockerHost)
	if err != nil {
		return nil, fmt.Errorf("failed to create container stack client: %w", err)
	}

	repo := migration.NewInMemoryRepository(logger)
	events := eventbus.NewBroadcaster(logger, 256)
	blacklist := tokenblacklist.NewBlacklist(24*time.Hour, time.Hour)

	orchestrator := migration.NewOrchestrator(repo, localStack, datasets, snapshots, exec, events, logger, cfg.MaxMigrationTimeout)

	health := observability.NewHealthChecker()
	health.RegisterCheck("zfs", observability.ZFSHealthCheck(func(ctx context.Context) error {
		listResult := pools.List(ctx, "")
		if listResult.IsErr() {
			return fmt.Errorf("%s", listResult.Err().Message)
		}
		return nil
	}))

	return &collaborators{
		exec:         exec,
		datasets:     datasets,
		snapshots:    snapshots,
		pools:        pools,
		stack:        localStack,
		repo:         repo,
		orchestrator: orchestrator,
		events:       events,
		blacklist:    blacklist,
		health:       health,
	}, nil
}

var dockerHostFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP/WebSocket migration server",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServe(cmd, args); err != nil {
			logger.Error("failed to start server", zap.Error(err))
			os.Exit(1)
		}
	},
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := wire(dockerHostFlag)
	if err != nil {
		return err
	}

	go c.health.StartPeriodicChecks(ctx, 10*time.Second)

	srv := server.NewServer(cfg, logger, c.health, c.orchestrator, c.datasets, c.snapshots, c.pools, c.events, c.blacklist)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
		srv.Stop()
		os.Exit(0)
	}()

	logger.Info("starting transdock server", zap.String("addr", cfg.Addr()))
	return srv.Start()
}

var migrateCmd = &cobra.Command{
	Use:   "migration",
	Short: "Manage migrations",
}

var (
	migComposePath string
	migTargetHost  string
	migTargetPort  int
	migTargetUser  string
	migTargetPath  string
	migUseZFS      bool
	migTransfer    string
)

var migrateCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a migration",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := wire(dockerHostFlag)
		if err != nil {
			logger.Error("failed to wire collaborators", zap.Error(err))
			os.Exit(1)
		}

		targetHostResult := migration.NewHostConnection(migTargetHost, migTargetUser, migTargetPort)
		if targetHostResult.IsErr() {
			fmt.Fprintln(os.Stderr, targetHostResult.Err().Message)
			os.Exit(1)
		}

		createResult := c.orchestrator.Create(args[0], migComposePath, targetHostResult.Must(), migTargetPath, migUseZFS, migTransfer, nil)
		if createResult.IsErr() {
			fmt.Fprintln(os.Stderr, createResult.Err().Message)
			os.Exit(1)
		}
		m := createResult.Must()
		fmt.Printf("created migration %s (%s)\n", m.ID, m.Name)
	},
}

var migrateStartCmd = &cobra.Command{
	Use:   "start [id]",
	Short: "Start a migration",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := wire(dockerHostFlag)
		if err != nil {
			logger.Error("failed to wire collaborators", zap.Error(err))
			os.Exit(1)
		}
		c.events.Start()
		startResult := c.orchestrator.Start(context.Background(), args[0])
		if startResult.IsErr() {
			fmt.Fprintln(os.Stderr, startResult.Err().Message)
			os.Exit(1)
		}
		fmt.Printf("migration %s started\n", args[0])
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status [id]",
	Short: "Show migration status",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := wire(dockerHostFlag)
		if err != nil {
			logger.Error("failed to wire collaborators", zap.Error(err))
			os.Exit(1)
		}
		statusResult := c.orchestrator.Status(args[0])
		if statusResult.IsErr() {
			fmt.Fprintln(os.Stderr, statusResult.Err().Message)
			os.Exit(1)
		}
		view := statusResult.Must()
		fmt.Printf("status=%s progress=%.1f%% running=%v\n", view.Migration.Status, view.Migration.ProgressPercentage(), view.TaskRunning)
	},
}

var migrateCancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a running migration",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := wire(dockerHostFlag)
		if err != nil {
			logger.Error("failed to wire collaborators", zap.Error(err))
			os.Exit(1)
		}
		cancelResult := c.orchestrator.Cancel(args[0])
		if cancelResult.IsErr() {
			fmt.Fprintln(os.Stderr, cancelResult.Err().Message)
			os.Exit(1)
		}
		fmt.Printf("migration %s cancelled\n", args[0])
	},
}

var migrateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List migrations",
	Run: func(cmd *cobra.Command, args []string) {
		c, err := wire(dockerHostFlag)
		if err != nil {
			logger.Error("failed to wire collaborators", zap.Error(err))
			os.Exit(1)
		}
		for _, m := range c.orchestrator.List() {
			fmt.Printf("%s\t%s\t%s\t%.1f%%\n", m.ID, m.Name, m.Status, m.ProgressPercentage())
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (accepted but not read; configuration comes from environment variables)")
	rootCmd.PersistentFlags().StringVar(&dockerHostFlag, "docker-host", "", "Docker daemon address (empty = environment default)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)

	migrateCreateCmd.Flags().StringVar(&migComposePath, "compose-path", "", "path to the source docker-compose.yml (required)")
	migrateCreateCmd.Flags().StringVar(&migTargetHost, "target-host", "", "target hostname (required)")
	migrateCreateCmd.Flags().IntVar(&migTargetPort, "target-port", 22, "target SSH port")
	migrateCreateCmd.Flags().StringVar(&migTargetUser, "target-user", "root", "target SSH username")
	migrateCreateCmd.Flags().StringVar(&migTargetPath, "target-path", "", "target base path for the recreated stack (required)")
	migrateCreateCmd.Flags().BoolVar(&migUseZFS, "use-zfs", true, "use ZFS snapshots and zfs send for the data transfer")
	migrateCreateCmd.Flags().StringVar(&migTransfer, "transfer-method", "zfs_send", "transfer method: zfs_send or rsync")
	migrateCreateCmd.MarkFlagRequired("compose-path")
	migrateCreateCmd.MarkFlagRequired("target-host")
	migrateCreateCmd.MarkFlagRequired("target-path")

	migrateCmd.AddCommand(migrateCreateCmd)
	migrateCmd.AddCommand(migrateStartCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migrateCancelCmd)
	migrateCmd.AddCommand(migrateListCmd)
}
