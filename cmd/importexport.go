package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcpmanager/mcpmanager/internal/manager"
	"github.com/mcpmanager/mcpmanager/internal/registry"
	"github.com/mcpmanager/mcpmanager/internal/shared/cmdutils"
)

var exportFormat string

var importCmd = &cobra.Command{
	Use:   "import [file|-]",
	Short: "Add the servers of a pasted mcpServers document",
	Long: `Add every server of a {"mcpServers": {...}} document, read from a file or
stdin, as an enabled entry. JSON and YAML are accepted. Servers with the same
name are replaced; invalid servers are reported and skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "-"
		if len(args) == 1 {
			path = args[0]
		}
		data, err := readInput(cmd, path)
		if err != nil {
			return err
		}
		report, err := service().BulkImport(data)
		for _, r := range report.Rejected {
			cmdutils.PrintFail(cmd.ErrOrStderr(), "%s: %s", r.Name, r.Reason)
		}
		if err != nil {
			return err
		}
		cmdutils.PrintOK(cmd.OutOrStdout(), "Imported %d server(s)", len(report.Imported))
		for _, name := range report.Imported {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the registry, disabled servers included",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		r, err := service().Servers()
		if err != nil {
			return err
		}
		if r == nil {
			r = registry.Registry{}
		}
		switch exportFormat {
		case "json":
			return printJSON(cmd.OutOrStdout(), r)
		case "yaml", "yml":
			data, err := manager.ExportYAML(r)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		default:
			return fmt.Errorf("unknown format %q (want json or yaml)", exportFormat)
		}
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Print the Claude config that save would write",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		doc, err := service().Preview()
		if err != nil {
			return err
		}
		data, err := doc.Indented()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "o", "json", "Output format: json or yaml")
}
