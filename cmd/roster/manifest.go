package main

import (
	"context"
	"fmt"

	"github.com/hyperengineering/roster"
	"github.com/spf13/cobra"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Manage project manifestations",
	Long: `Manage manifestations: the concrete places a project exists,
such as a working copy on this machine or a clone on a remote host.`,
}

var manifestAddCmd = &cobra.Command{
	Use:   "add <project-id> <location>",
	Short: "Record where a project manifests",
	Long: `Record a location where a project exists.

Example:
  roster manifest add 01J3ZQ8... /home/dev/src/myservice
  roster manifest add 01J3ZQ8... /srv/myservice --kind remote --host build-01`,
	Args: cobra.ExactArgs(2),
	RunE: runManifestAdd,
}

var manifestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List manifestations",
	RunE:  runManifestList,
}

var manifestRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a manifestation",
	Args:  cobra.ExactArgs(1),
	RunE:  runManifestRemove,
}

var (
	manifestKind string
	manifestHost string
)

func init() {
	manifestAddCmd.Flags().StringVar(&manifestKind, "kind", "", "Manifestation kind: local or remote (default: local)")
	manifestAddCmd.Flags().StringVar(&manifestHost, "host", "", "Host name for remote manifestations")

	manifestCmd.AddCommand(manifestAddCmd)
	manifestCmd.AddCommand(manifestListCmd)
	manifestCmd.AddCommand(manifestRemoveCmd)
}

func runManifestAdd(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}
	defer client.Close()

	rec, err := client.AddManifestation(context.Background(), roster.Manifestation{
		ProjectID: args[0],
		Location:  args[1],
		Kind:      manifestKind,
		Host:      manifestHost,
	})
	if err != nil {
		return err
	}

	if outputJSON {
		return outputAsJSON(cmd, rec)
	}
	printSuccess(cmd.OutOrStdout(), "recorded manifestation %s", rec.ID)
	return nil
}

func runManifestList(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}
	defer client.Close()

	records, err := client.Records(roster.EntityManifestation)
	if err != nil {
		return err
	}

	if outputJSON {
		return outputAsJSON(cmd, records)
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		printMuted(out, "No manifestations recorded.")
		return nil
	}

	for i := range records {
		payload, err := roster.DecodePayload(&records[i])
		if err != nil {
			return err
		}
		m := payload.(*roster.Manifestation)

		fmt.Fprintf(out, "%s  %s  %s", records[i].ID, m.ProjectID, m.Location)
		if m.Kind == "remote" && m.Host != "" {
			fmt.Fprintf(out, " @%s", m.Host)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func runManifestRemove(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}
	defer client.Close()

	if err := client.Remove(roster.EntityManifestation, args[0]); err != nil {
		return err
	}

	printSuccess(cmd.OutOrStdout(), "removed manifestation %s", args[0])
	return nil
}
