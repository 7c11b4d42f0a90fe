package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpmanager/mcpmanager/internal/shared/cmdutils"
	"github.com/mcpmanager/mcpmanager/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mcpmanager status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "mcpmanager status")
	fmt.Fprintln(out)

	if fs, ok := app.Store().(*store.FileStore); ok {
		_, err := os.Stat(fs.Path())
		fmt.Fprintf(out, "Store:         %s %s\n", fs.Path(), cmdutils.Mark(err == nil))
	}

	settings, err := service().Settings()
	if err != nil {
		fmt.Fprintf(out, "  (could not load settings: %v)\n", err)
		return nil
	}
	cfgPath := settings.ConfigPath()
	_, statErr := os.Stat(cfgPath)
	fmt.Fprintf(out, "Claude config: %s %s\n", cfgPath, cmdutils.Mark(statErr == nil))
	fmt.Fprintf(out, "Backups:       %s\n", onOff(settings.BackupsEnabled))

	r, err := service().Servers()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Servers:       %d (%d enabled)\n", len(r), len(r.Enabled()))

	inSync, err := service().InSync()
	switch {
	case err != nil:
		fmt.Fprintf(out, "Saved:         %s (%v)\n", cmdutils.Mark(false), err)
	case inSync:
		fmt.Fprintf(out, "Saved:         %s\n", cmdutils.Mark(true))
	default:
		fmt.Fprintf(out, "Saved:         %s unsaved changes, run \"mcpmanager save\"\n", cmdutils.Mark(false))
	}
	return nil
}
