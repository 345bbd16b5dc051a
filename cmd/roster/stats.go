package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show local store statistics",
	Long: `Display statistics about the local registry store.

Example:
  roster stats
  roster stats --health`,
	RunE: runStats,
}

var statsHealth bool

func init() {
	statsCmd.Flags().BoolVar(&statsHealth, "health", false, "Include health check")
}

func runStats(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}
	defer client.Close()

	stats, err := client.Stats()
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	if outputJSON && !statsHealth {
		return outputAsJSON(cmd, stats)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Local Store Statistics")
	fmt.Fprintln(out, "----------------------")
	fmt.Fprintf(out, "Record count:   %d\n", stats.RecordCount)
	fmt.Fprintf(out, "Pending sync:   %d\n", stats.PendingSync)
	fmt.Fprintf(out, "Schema version: %s\n", stats.SchemaVersion)

	if !stats.LastSync.IsZero() {
		fmt.Fprintf(out, "Last sync:      %s (%s ago)\n",
			stats.LastSync.Format(time.RFC3339),
			time.Since(stats.LastSync).Round(time.Minute))
	} else {
		fmt.Fprintln(out, "Last sync:      never")
	}

	if statsHealth {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Health Check")
		fmt.Fprintln(out, "------------")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		health := client.HealthCheck(ctx)
		if health.Healthy {
			printSuccess(out, "store healthy")
		} else {
			printWarning(out, "store unhealthy: %s", health.Error)
		}
		if health.AtlasReachable {
			printSuccess(out, "Atlas reachable")
		} else {
			printMuted(out, "Atlas not reachable")
		}
	}
	return nil
}
