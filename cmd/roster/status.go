package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the registry summary",
	Long: `Display the registry summary: how many projects, manifestations,
harness configs, and skills are tracked.

When Atlas is configured the summary comes from the central service;
if it is unreachable the most recent cached summary is shown instead,
marked with its capture time.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	if outputJSON {
		return outputAsJSON(cmd, result)
	}

	out := cmd.OutOrStdout()
	view := result.Data
	fmt.Fprintln(out, "Registry Summary")
	fmt.Fprintln(out, "----------------")
	fmt.Fprintf(out, "Projects:        %d\n", view.Projects)
	fmt.Fprintf(out, "Manifestations:  %d\n", view.Manifestations)
	fmt.Fprintf(out, "Harness configs: %d\n", view.HarnessConfigs)
	fmt.Fprintf(out, "Skills:          %d\n", view.Skills)

	if !result.Fresh {
		fmt.Fprintln(out)
		printWarning(out, "Atlas unreachable; showing cached data as of %s (%s ago)",
			result.AsOf.Format(time.RFC3339),
			time.Since(result.AsOf).Round(time.Minute))
	}
	return nil
}
