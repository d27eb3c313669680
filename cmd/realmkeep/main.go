package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/realmkeep/realmkeep/pkg/api"
	"github.com/realmkeep/realmkeep/pkg/config"
	"github.com/realmkeep/realmkeep/pkg/log"
	"github.com/realmkeep/realmkeep/pkg/manager"
	"github.com/realmkeep/realmkeep/pkg/metrics"
	"github.com/realmkeep/realmkeep/pkg/snapshot"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	flagConfigDir string
	flagLogLevel  string
	flagLogJSON   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "realmkeep",
	Short: "Realmkeep - Keycloak realm backup and restore",
	Long: `Realmkeep captures Keycloak realm configuration (clients, users,
groups, roles, identity providers) into immutable snapshots on local
disk or S3, and restores them with dependency-aware ordering and
dry-run plans.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Init(log.Config{Level: log.Level(flagLogLevel), JSONOutput: flagLogJSON})
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Realmkeep version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config", "", "Configuration directory (default ./config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "Log as JSON instead of console output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(infoCmd)
}

// newManager loads config and builds the runtime shared by every command.
func newManager(ctx context.Context) (*manager.Manager, error) {
	cfg, err := config.Load(flagConfigDir)
	if err != nil {
		return nil, err
	}
	return manager.New(ctx, cfg)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the realmkeep API server",
	Long: `Start the HTTP API server exposing backup, restore, plan and
snapshot inspection endpoints, plus health checks and Prometheus
metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mgr, err := newManager(ctx)
		if err != nil {
			return err
		}

		metrics.SetVersion(Version)
		mgr.StartCollector()
		defer mgr.StopCollector()

		server := api.NewServer(mgr, mgr.Config().Server.Port)
		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(); err != nil {
				errCh <- err
			}
		}()

		fmt.Printf("Realmkeep API listening on :%d. Press Ctrl+C to stop.\n", mgr.Config().Server.Port)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case err := <-errCh:
			return err
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down cleanly: %w", err)
		}
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create a snapshot of the configured services",
	RunE: func(cmd *cobra.Command, args []string) error {
		service, _ := cmd.Flags().GetString("service")
		description, _ := cmd.Flags().GetString("description")
		compress, _ := cmd.Flags().GetBool("compress")

		mgr, err := newManager(cmd.Context())
		if err != nil {
			return err
		}

		result, err := mgr.Backup(cmd.Context(), snapshot.BackupOptions{
			Service:     service,
			Description: description,
			Compress:    compress,
		})
		if err != nil {
			return err
		}

		if result.Degraded {
			fmt.Printf("⚠ Snapshot %s created with degraded kinds\n", result.SnapshotID)
		} else {
			fmt.Printf("✓ Snapshot %s created\n", result.SnapshotID)
		}
		fmt.Printf("  Manifest: %s\n", result.MetadataKey)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <snapshot-id>",
	Short: "Restore a snapshot into the live realm",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service, _ := cmd.Flags().GetString("service")

		mgr, err := newManager(cmd.Context())
		if err != nil {
			return err
		}

		results, err := mgr.Restore(cmd.Context(), args[0], service)
		if err != nil {
			return err
		}

		for name, result := range results {
			fmt.Printf("Service %s:\n", name)
			for kind, report := range result.Kinds {
				fmt.Printf("  %-20s created=%d existing=%d failed=%d skipped=%d",
					kind, report.Created, report.Existing, report.Failed, report.Skipped)
				if report.Reason != "" {
					fmt.Printf("  (%s)", report.Reason)
				}
				fmt.Println()
			}
			if result.Degraded {
				fmt.Println("  ⚠ restore incomplete")
			}
		}
		return nil
	},
}

var planCmd = &cobra.Command{
	Use:   "plan <snapshot-id>",
	Short: "Show what a restore would change, without applying it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service, _ := cmd.Flags().GetString("service")

		mgr, err := newManager(cmd.Context())
		if err != nil {
			return err
		}

		plans, err := mgr.Plan(cmd.Context(), args[0], service)
		if err != nil {
			return err
		}

		for name, plan := range plans {
			fmt.Printf("Service %s:\n", name)
			if plan.Empty() {
				fmt.Println("  no changes")
				continue
			}
			for _, kp := range plan.Kinds {
				counts := kp.Counts()
				fmt.Printf("  %-20s add=%d update=%d remove=%d skip=%d\n",
					kp.Kind, counts["add"], counts["update"], counts["remove"], counts["skip"])
				for _, action := range kp.Actions {
					if action.Type == "skip" {
						continue
					}
					fmt.Printf("    %-7s %s", action.Type, action.Identity)
					if len(action.Fields) > 0 {
						fmt.Printf("  fields: %v", action.Fields)
					}
					fmt.Println()
				}
			}
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager(cmd.Context())
		if err != nil {
			return err
		}

		summaries, err := mgr.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No snapshots found.")
			return nil
		}

		fmt.Printf("%-34s %-22s %-10s %s\n", "SNAPSHOT", "CREATED", "STATE", "DESCRIPTION")
		for _, s := range summaries {
			state := "ok"
			if s.Degraded {
				state = "degraded"
			}
			fmt.Printf("%-34s %-22s %-10s %s\n",
				s.SnapshotID, s.CreatedAt.Format(time.RFC3339), state, s.Description)
		}
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <snapshot-id>",
	Short: "Show one snapshot's manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager(cmd.Context())
		if err != nil {
			return err
		}

		manifest, err := mgr.Info(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Snapshot:    %s\n", manifest.SnapshotID)
		fmt.Printf("Created:     %s\n", manifest.CreatedAt.Format(time.RFC3339))
		fmt.Printf("Description: %s\n", manifest.Description)
		fmt.Printf("Format:      %s\n", manifest.FormatVersion)
		if manifest.Degraded {
			fmt.Println("State:       degraded")
		}
		for name, meta := range manifest.Services {
			fmt.Printf("Service %s (%s v%s): %v\n", name, meta.Type, meta.Version, meta.Data)
		}
		return nil
	},
}

func init() {
	backupCmd.Flags().String("service", "", "Back up only this service")
	backupCmd.Flags().String("description", "", "Snapshot description")
	backupCmd.Flags().Bool("compress", false, "Store the snapshot as a single tar.gz blob")

	restoreCmd.Flags().String("service", "", "Restore only this service")
	planCmd.Flags().String("service", "", "Plan only this service")
}
