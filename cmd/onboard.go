package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcpmanager/mcpmanager/internal/config"
	"github.com/mcpmanager/mcpmanager/internal/shared/cmdutils"
)

var (
	onboardConfigPath string
	onboardBackups    bool
)

var onboardCmd = &cobra.Command{
	Use:         "onboard",
	Short:       "Initialize settings and import the servers Claude already has",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipSyncAnnotation: "true"},
	RunE:        runOnboard,
}

func init() {
	onboardCmd.Flags().StringVar(&onboardConfigPath, "config-path", "", "Claude config file (default: the platform's standard location)")
	onboardCmd.Flags().BoolVar(&onboardBackups, "backups", false, "Back up the Claude config before each save")
}

func runOnboard(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	settings, err := service().Settings()
	if err != nil {
		return err
	}
	if onboardConfigPath != "" {
		settings.ConfigFilePath = config.ExpandHome(onboardConfigPath)
	}
	if cmd.Flags().Changed("backups") {
		settings.BackupsEnabled = onboardBackups
	}
	if err := service().SaveSettings(settings); err != nil {
		return err
	}
	cmdutils.PrintOK(out, "Settings saved")

	report, err := service().ImportExisting()
	if err != nil {
		return err
	}
	printImportReport(cmd, report)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "mcpmanager is ready!")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. mcpmanager list")
	fmt.Fprintln(out, "  2. mcpmanager disable <name>   (or add, edit, import)")
	fmt.Fprintln(out, "  3. mcpmanager save --restart")
	return nil
}
