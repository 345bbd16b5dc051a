package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperengineering/roster/internal/harness"
	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover [dir]",
	Short: "Discover harness configuration artifacts",
	Long: `Scan a directory for configuration artifacts left by coding
harnesses and developer tools, and record the ones whose content
actually changed since the last scan.

Example:
  roster discover              # scan the current directory
  roster discover ~/src/app    # scan a specific tree`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDiscover,
}

func runDiscover(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}

	client, err := newClient()
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	result, err := client.Discover(ctx, root, harness.DefaultProviders())
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}

	if outputJSON {
		return outputAsJSON(cmd, result)
	}

	out := cmd.OutOrStdout()
	if result.Scanned == 0 {
		printMuted(out, "No harness artifacts found under %s.", root)
		return nil
	}

	printInfo(out, "scanned %d artifacts: %d changed, %d unchanged",
		result.Scanned, result.Changed, result.Unchanged)
	for _, key := range result.Keys {
		fmt.Fprintf(out, "  %s\n", key)
	}
	return nil
}
