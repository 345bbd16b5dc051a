package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize with Atlas",
	Long: `Synchronize the local registry with the Atlas central service.

Example:
  roster sync           # Full sync (push + pull)
  roster sync --push    # Push local changes only
  roster sync --pull    # Pull remote changes only`,
	RunE: runSync,
}

var (
	syncPush bool
	syncPull bool
)

func init() {
	syncCmd.Flags().BoolVar(&syncPush, "push", false, "Push local changes only")
	syncCmd.Flags().BoolVar(&syncPull, "pull", false, "Pull remote changes only")
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if cfg.AtlasURL == "" {
		return fmt.Errorf("ATLAS_URL not configured")
	}

	client, err := newClient()
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	out := cmd.OutOrStdout()

	if syncPush && !syncPull {
		stats, err := client.SyncPush(ctx)
		if err != nil {
			return fmt.Errorf("push: %w", err)
		}
		if outputJSON {
			return outputAsJSON(cmd, stats)
		}
		printSuccess(out, "pushed %d records (%d applied, %d conflicts) in %s",
			stats.Pushed, stats.Applied, stats.Conflicts, stats.Duration.Round(time.Millisecond))
		return nil
	}

	if syncPull && !syncPush {
		start := time.Now()
		pulled, err := client.SyncPull(ctx)
		if err != nil {
			return fmt.Errorf("pull: %w", err)
		}
		if outputJSON {
			return outputAsJSON(cmd, map[string]any{"pulled": pulled})
		}
		printSuccess(out, "pulled %d records in %s", pulled, time.Since(start).Round(time.Millisecond))
		return nil
	}

	stats, err := client.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if outputJSON {
		return outputAsJSON(cmd, stats)
	}
	printSuccess(out, "pushed %d (%d applied, %d conflicts), pulled %d in %s",
		stats.Pushed, stats.Applied, stats.Conflicts, stats.Pulled,
		stats.Duration.Round(time.Millisecond))
	return nil
}
