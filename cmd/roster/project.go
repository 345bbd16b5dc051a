package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperengineering/roster"
	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage tracked projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a new project",
	Long: `Register a new project in the registry.

Example:
  roster project add myservice
  roster project add myservice --language go --tags infra,backend`,
	Args: cobra.ExactArgs(1),
	RunE: runProjectAdd,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked projects",
	RunE:  runProjectList,
}

var projectRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a project from the registry",
	Long: `Remove a project. The deletion is recorded as a tombstone and
propagates to Atlas on the next sync.`,
	Args: cobra.ExactArgs(1),
	RunE: runProjectRemove,
}

var (
	projectDescription string
	projectLanguage    string
	projectTags        []string
)

func init() {
	projectAddCmd.Flags().StringVar(&projectDescription, "description", "", "Project description")
	projectAddCmd.Flags().StringVar(&projectLanguage, "language", "", "Primary language")
	projectAddCmd.Flags().StringSliceVar(&projectTags, "tags", nil, "Comma-separated tags")

	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectRemoveCmd)
}

func runProjectAdd(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}
	defer client.Close()

	rec, err := client.AddProject(context.Background(), roster.Project{
		Name:        args[0],
		Description: projectDescription,
		Language:    projectLanguage,
		Tags:        projectTags,
	})
	if err != nil {
		return err
	}

	if outputJSON {
		return outputAsJSON(cmd, rec)
	}
	printSuccess(cmd.OutOrStdout(), "registered project %s (%s)", args[0], rec.ID)
	return nil
}

func runProjectList(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}
	defer client.Close()

	records, err := client.Records(roster.EntityProject)
	if err != nil {
		return err
	}

	if outputJSON {
		return outputAsJSON(cmd, records)
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		printMuted(out, "No projects tracked.")
		return nil
	}

	for i := range records {
		payload, err := roster.DecodePayload(&records[i])
		if err != nil {
			return err
		}
		p := payload.(*roster.Project)

		fmt.Fprintf(out, "%s  %s", records[i].ID, p.Name)
		if p.Language != "" {
			fmt.Fprintf(out, " (%s)", p.Language)
		}
		if len(p.Tags) > 0 {
			fmt.Fprintf(out, "  [%s]", strings.Join(p.Tags, ", "))
		}
		fmt.Fprintln(out)
	}
	return nil
}

func runProjectRemove(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}
	defer client.Close()

	if err := client.Remove(roster.EntityProject, args[0]); err != nil {
		return err
	}

	printSuccess(cmd.OutOrStdout(), "removed project %s", args[0])
	return nil
}
