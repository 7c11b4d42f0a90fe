package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcpmanager/mcpmanager/internal/config"
	"github.com/mcpmanager/mcpmanager/internal/shared/cmdutils"
	"github.com/mcpmanager/mcpmanager/internal/shared/stringutils"
)

var settingsJSON bool

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change mcpmanager settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := service().Settings()
		if err != nil {
			return err
		}
		if settingsJSON {
			return printJSON(cmd.OutOrStdout(), s)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Claude config: %s\n", s.ConfigPath())
		fmt.Fprintf(out, "Backups:       %s\n", onOff(s.BackupsEnabled))
		fmt.Fprintf(out, "Process:       %s\n", s.ExternalApp.ProcessName)
		for _, argv := range s.ExternalApp.LaunchCommands {
			fmt.Fprintf(out, "Launch:        %s\n", strings.Join(argv, " "))
		}
		return nil
	},
}

var setPathCmd = &cobra.Command{
	Use:   "set-path <path>",
	Short: "Point mcpmanager at a different Claude config file and import from it",
	Args:  cobra.ExactArgs(1),
	// set-path imports from the new file itself.
	Annotations: map[string]string{skipSyncAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := service().SetConfigPath(args[0])
		if err != nil {
			return err
		}
		cmdutils.PrintOK(cmd.OutOrStdout(), "Config path set to %s", report.Path)
		printImportReport(cmd, report)
		return nil
	},
}

var resetPathCmd = &cobra.Command{
	Use:         "reset-path",
	Short:       "Use the platform's default Claude config path again",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipSyncAnnotation: "true"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		report, err := service().SetConfigPath(config.DefaultClaudeConfigPath())
		if err != nil {
			return err
		}
		cmdutils.PrintOK(cmd.OutOrStdout(), "Config path set to %s", report.Path)
		printImportReport(cmd, report)
		return nil
	},
}

var backupsCmd = &cobra.Command{
	Use:   "backups on|off",
	Short: "Turn daily backups of the Claude config on or off",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, ok := stringutils.ParseBool(args[0])
		if !ok {
			return fmt.Errorf("expected on or off, got %q", args[0])
		}
		s, err := service().Settings()
		if err != nil {
			return err
		}
		s.BackupsEnabled = enabled
		if err := service().SaveSettings(s); err != nil {
			return err
		}
		cmdutils.PrintOK(cmd.OutOrStdout(), "Backups %s", onOff(enabled))
		return nil
	},
}

func init() {
	settingsCmd.Flags().BoolVar(&settingsJSON, "json", false, "Print the settings as JSON")
	settingsCmd.AddCommand(setPathCmd)
	settingsCmd.AddCommand(resetPathCmd)
	settingsCmd.AddCommand(backupsCmd)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
