package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcpmanager/mcpmanager/internal/probe"
	"github.com/mcpmanager/mcpmanager/internal/shared/cmdutils"
	"github.com/mcpmanager/mcpmanager/internal/shared/stringutils"
)

var probeTimeout time.Duration

var probeCmd = &cobra.Command{
	Use:   "probe <name>",
	Short: "Start a server and check that it answers the MCP handshake",
	Long: `Start the server as Claude would, run the MCP initialize handshake and
list its tools. The server is stopped again afterwards. Disabled servers can be
probed too.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := service().Server(args[0])
		if err != nil {
			return err
		}
		ctx, stop := signalContext(cmd)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()

		out := cmd.OutOrStdout()
		report, err := probe.Run(ctx, e.Name, e.Definition)
		if err != nil {
			cmdutils.PrintFail(out, "%s did not answer: %v", e.Name, err)
			return fmt.Errorf("probe %s failed", e.Name)
		}
		cmdutils.PrintOK(out, "%s answered in %s", e.Name, report.Elapsed.Round(time.Millisecond))
		if report.ServerName != "" {
			fmt.Fprintf(out, "  server:   %s %s\n", report.ServerName, report.ServerVersion)
		}
		if report.ProtocolVersion != "" {
			fmt.Fprintf(out, "  protocol: %s\n", report.ProtocolVersion)
		}
		fmt.Fprintf(out, "  tools:    %d\n", len(report.Tools))
		for _, t := range report.Tools {
			fmt.Fprintf(out, "    %s  %s\n", t.Name, stringutils.Truncate(t.Description, 70))
		}
		return nil
	},
}

func init() {
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", probe.DefaultTimeout, "Give up after this long")
}
