package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hyperengineering/roster/internal/harness"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Watch a directory and re-run discovery on changes",
	Long: `Watch a directory tree for filesystem changes and re-run harness
discovery whenever something changes. Events are debounced so editor
save bursts trigger a single scan.

Example:
  roster watch ~/src/app`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

var watchDebounce time.Duration

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second, "Quiet period before rescanning")
}

func runWatch(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}

	client, err := newClient()
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}
	defer client.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the root and the directories discovery providers look in.
	// fsnotify is not recursive; harness artifacts live at fixed spots
	// relative to the root, so watching those is enough.
	dirs := []string{root, root + "/.claude", root + "/.vscode"}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil && dir == root {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	providers := harness.DefaultProviders()
	out := cmd.OutOrStdout()

	scan := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		result, err := client.Discover(ctx, root, providers)
		if err != nil {
			outputError(cmd.ErrOrStderr(), err)
			return
		}
		if result.Changed > 0 {
			printInfo(out, "%d artifacts changed", result.Changed)
			for _, key := range result.Keys {
				fmt.Fprintf(out, "  %s\n", key)
			}
		}
	}

	// Initial scan so the watch starts from a known state.
	scan()
	printInfo(out, "watching %s", root)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var timer *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case <-pending:
			scan()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			outputError(cmd.ErrOrStderr(), err)
		case <-stop:
			return nil
		}
	}
}
