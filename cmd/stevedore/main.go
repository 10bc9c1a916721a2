package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/harborline/stevedore/pkg/broker"
	"github.com/harborline/stevedore/pkg/cleanup"
	"github.com/harborline/stevedore/pkg/config"
	"github.com/harborline/stevedore/pkg/events"
	"github.com/harborline/stevedore/pkg/execution"
	"github.com/harborline/stevedore/pkg/ingest"
	"github.com/harborline/stevedore/pkg/jobtypes"
	"github.com/harborline/stevedore/pkg/log"
	"github.com/harborline/stevedore/pkg/metrics"
	"github.com/harborline/stevedore/pkg/nodes"
	"github.com/harborline/stevedore/pkg/offers"
	"github.com/harborline/stevedore/pkg/persistence"
	"github.com/harborline/stevedore/pkg/scheduler"
	"github.com/harborline/stevedore/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stevedore",
	Short: "Stevedore - cluster job scheduler",
	Long: `Stevedore schedules batch job executions onto cluster nodes using
resource offers, tracks their task lifecycles, and cleans up after
them. It also manages strike and scan ingest processes that bring
files into workspaces.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Stevedore version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML configuration file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(strikeCmd)
	rootCmd.AddCommand(scanCmd)
}

// openStore builds the configured persistence backend.
func openStore(cfg *config.Config) (persistence.Store, error) {
	switch cfg.Store.Backend {
	case "postgres":
		return persistence.NewPostgresStore(cfg.Store.DSN, cfg.Store.DataDir)
	default:
		if err := os.MkdirAll(cfg.Store.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return persistence.NewBoltStore(cfg.Store.DataDir)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSONOutput,
	})
	return cfg, nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		eventBroker := events.NewBroker()
		eventBroker.Start()
		defer eventBroker.Stop()

		registry := nodes.NewRegistry()
		offerMgr := offers.NewManager()
		cleanupMgr := cleanup.NewManager()
		exeMgr := execution.NewManager()
		jobTypeMgr := jobtypes.NewManager()
		// An attached broker SDK registers a broker.Dispatcher built
		// from these managers as its callback handler; the log driver
		// stands in for the outbound half until then.
		driver := broker.NewLogDriver()

		sched := scheduler.New(cfg.Scheduler, store, driver,
			registry, offerMgr, cleanupMgr, exeMgr, jobTypeMgr, eventBroker)
		go sched.Run()

		metricsServer := &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: metrics.Handler(),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()

		log.Logger.Info().
			Str("version", Version).
			Str("store", cfg.Store.Backend).
			Str("metrics_addr", cfg.MetricsAddr).
			Msg("Stevedore started")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		log.Logger.Info().Msg("Shutting down")
		sched.Shutdown()
		metricsServer.Close()
		return nil
	},
}

// Strike commands

var strikeCmd = &cobra.Command{
	Use:   "strike",
	Short: "Manage strike ingest processes",
}

var strikeCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a strike process from a configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		configFile, _ := cmd.Flags().GetString("file")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		data, err := os.ReadFile(configFile)
		if err != nil {
			return fmt.Errorf("failed to read configuration: %w", err)
		}
		var strikeCfg types.StrikeConfiguration
		if err := yaml.Unmarshal(data, &strikeCfg); err != nil {
			return fmt.Errorf("failed to parse configuration: %w", err)
		}

		eventBroker := events.NewBroker()
		eventBroker.Start()
		defer eventBroker.Stop()

		mgr := ingest.NewStrikeManager(store, eventBroker)
		strike, err := mgr.CreateStrike(name, title, description, strikeCfg)
		if err != nil {
			return err
		}
		fmt.Printf("Created strike %s (job %s)\n", strike.ID, strike.JobID)
		return nil
	},
}

var strikeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List strike processes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		strikes, err := store.ListStrikes(nil, nil, nil)
		if err != nil {
			return err
		}
		for _, strike := range strikes {
			fmt.Printf("%s\t%s\t%s\n", strike.ID, strike.Name,
				strike.LastModified.Format(time.RFC3339))
		}
		return nil
	},
}

var strikeMonitorCmd = &cobra.Command{
	Use:   "monitor STRIKE_ID",
	Short: "Consume S3 notifications from a strike's SQS queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		strike, err := store.GetStrike(args[0])
		if err != nil {
			return err
		}

		monitor := ingest.NewSQSMonitor(store, strike)
		if err := monitor.LoadConfiguration(cmd.Context()); err != nil {
			return err
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			monitor.Stop()
		}()

		return monitor.Run(cmd.Context())
	},
}

func init() {
	strikeCmd.AddCommand(strikeCreateCmd)
	strikeCmd.AddCommand(strikeMonitorCmd)
	strikeCmd.AddCommand(strikeListCmd)

	strikeCreateCmd.Flags().String("title", "", "Human readable title")
	strikeCreateCmd.Flags().String("description", "", "Description")
	strikeCreateCmd.Flags().String("file", "", "Path to strike configuration YAML")
	strikeCreateCmd.MarkFlagRequired("file")
}

// Scan commands

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Manage scan ingest processes",
}

var scanCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a scan process from a configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		configFile, _ := cmd.Flags().GetString("file")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		data, err := os.ReadFile(configFile)
		if err != nil {
			return fmt.Errorf("failed to read configuration: %w", err)
		}
		var scanCfg types.ScanConfiguration
		if err := yaml.Unmarshal(data, &scanCfg); err != nil {
			return fmt.Errorf("failed to parse configuration: %w", err)
		}

		eventBroker := events.NewBroker()
		eventBroker.Start()
		defer eventBroker.Stop()

		mgr := ingest.NewScanManager(store, eventBroker)
		scan, err := mgr.CreateScan(name, title, description, scanCfg)
		if err != nil {
			return err
		}
		fmt.Printf("Created scan %s\n", scan.ID)
		return nil
	},
}

var scanLaunchCmd = &cobra.Command{
	Use:   "launch SCAN_ID",
	Short: "Queue the ingest job for a scan process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		eventBroker := events.NewBroker()
		eventBroker.Start()
		defer eventBroker.Stop()

		mgr := ingest.NewScanManager(store, eventBroker)
		scan, err := mgr.QueueScanIngestJob(args[0], dryRun)
		if err != nil {
			return err
		}
		fmt.Printf("Queued scan job %s (dry run: %v)\n", scan.JobID, scan.DryRun)
		return nil
	},
}

var scanListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scan processes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		scans, err := store.ListScans(nil, nil, nil)
		if err != nil {
			return err
		}
		for _, scan := range scans {
			fmt.Printf("%s\t%s\t%s\n", scan.ID, scan.Name,
				scan.LastModified.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	scanCmd.AddCommand(scanCreateCmd)
	scanCmd.AddCommand(scanLaunchCmd)
	scanCmd.AddCommand(scanListCmd)

	scanCreateCmd.Flags().String("title", "", "Human readable title")
	scanCreateCmd.Flags().String("description", "", "Description")
	scanCreateCmd.Flags().String("file", "", "Path to scan configuration YAML")
	scanCreateCmd.MarkFlagRequired("file")
	scanLaunchCmd.Flags().Bool("dry-run", false, "Record discovered files without queueing ingests")
}
