// Package cmd implements the mcpmanager CLI using cobra.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpmanager/mcpmanager/internal/dependency"
	"github.com/mcpmanager/mcpmanager/internal/manager"
	"github.com/mcpmanager/mcpmanager/internal/store"
)

const version = "0.1.0"

// skipSyncAnnotation marks commands that must not trigger the first-run import.
const skipSyncAnnotation = "mcpmanager/skip-sync"

var (
	storePath string
	verbosity int
	syncFirst bool

	// testStore replaces the file store in tests.
	testStore store.Store

	app *dependency.Container
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "mcpmanager",
	Short: "Manage the MCP servers Claude Desktop loads",
	Long: `mcpmanager keeps a local registry of MCP server definitions and writes the
enabled ones to Claude Desktop's claude_desktop_config.json.

Servers found in the Claude config are imported on first use and by "sync".
Disabled servers stay in the registry even though Claude no longer sees them.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: printEvents,
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Store file (default $MCPMANAGER_STORE or ~/.mcpmanager/mcp-manager.json)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Log progress to stderr (-vv for debug)")
	rootCmd.PersistentFlags().BoolVar(&syncFirst, "sync", false, "Import from the Claude config before running the command")

	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(statusCmd)
}

func setup(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd.ErrOrStderr())

	c, err := dependency.New(dependency.Options{StorePath: storePath, Store: testStore})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	app = c

	if cmd.Annotations[skipSyncAnnotation] == "true" {
		return nil
	}
	// The registry starts from the Claude config the first time it is used.
	initialized, err := service().Initialized()
	if err != nil {
		return err
	}
	if !syncFirst && initialized {
		return nil
	}
	report, err := service().ImportExisting()
	if err != nil {
		return err
	}
	if report.Skipped != "" && syncFirst {
		fmt.Fprintf(cmd.ErrOrStderr(), "Import skipped: %s (%s)\n", report.Skipped, report.Path)
	}
	return nil
}

func setupLogging(w io.Writer) {
	level := slog.LevelWarn
	switch {
	case verbosity >= 2:
		level = slog.LevelDebug
	case verbosity == 1:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func service() *manager.Service {
	return app.Service()
}

// printEvents reports the notifications queued while the command ran.
func printEvents(cmd *cobra.Command, _ []string) {
	if app == nil {
		return
	}
	for _, ev := range app.Events().Drain() {
		fmt.Fprintf(cmd.ErrOrStderr(), "• %s\n", ev.Message())
	}
}
