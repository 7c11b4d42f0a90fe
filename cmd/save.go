package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcpmanager/mcpmanager/internal/manager"
	"github.com/mcpmanager/mcpmanager/internal/shared/cmdutils"
)

var saveRestart bool

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write the enabled servers to the Claude config",
	Long: `Write the enabled servers to Claude Desktop's config file, replacing its
mcpServers. With backups enabled the previous file is copied to
config.backup.YYYY-MM-DD.json next to it first.

Claude only reads its config at startup; pass --restart to restart it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()
		return printResult(cmd, service().SaveConfig(ctx, saveRestart))
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Save the config and restart Claude Desktop",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()
		return printResult(cmd, service().Restart(ctx))
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import servers from the Claude config into the registry",
	Long: `Merge the Claude config into the registry: servers in the file are
refreshed or added as enabled, disabled servers are kept, and enabled servers
the file no longer lists are dropped.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipSyncAnnotation: "true"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		report, err := service().ImportExisting()
		if err != nil {
			return err
		}
		printImportReport(cmd, report)
		return nil
	},
}

func init() {
	saveCmd.Flags().BoolVar(&saveRestart, "restart", false, "Restart Claude Desktop after saving")
}

func printResult(cmd *cobra.Command, res manager.Result) error {
	out := cmd.OutOrStdout()
	if !res.Success {
		return fmt.Errorf("save failed: %s", res.Error)
	}
	cmdutils.PrintOK(out, "Saved %s", res.Path)
	if res.BackupPath != "" {
		fmt.Fprintf(out, "  backup: %s\n", res.BackupPath)
	}
	if res.RestartError != "" {
		cmdutils.PrintFail(out, "Restart failed: %s", res.RestartError)
		return fmt.Errorf("config saved but Claude was not restarted")
	}
	if res.Restarted {
		cmdutils.PrintOK(out, "Claude restarted")
	}
	return nil
}

func printImportReport(cmd *cobra.Command, report manager.ImportReport) {
	out := cmd.OutOrStdout()
	if report.Skipped != "" {
		cmdutils.PrintFail(out, "Nothing imported: %s (%s)", report.Skipped, report.Path)
		return
	}
	cmdutils.PrintOK(out, "Synced from %s", report.Path)
	fmt.Fprintf(out, "  %d from config, %d disabled kept\n", report.Imported, report.Preserved)
	for _, name := range report.Dropped {
		fmt.Fprintf(out, "  dropped %s (no longer in config)\n", name)
	}
	if !report.Changed {
		fmt.Fprintln(out, "  registry unchanged")
	}
}
