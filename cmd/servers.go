package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcpmanager/mcpmanager/internal/registry"
	"github.com/mcpmanager/mcpmanager/internal/shared/cmdutils"
)

var (
	listEnabledOnly bool
	listJSON        bool

	addFlags    definitionFlags
	addDisabled bool
	addForce    bool

	editFlags  definitionFlags
	editRename string
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List registered servers",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		r, err := service().Servers()
		if err != nil {
			return err
		}
		if listEnabledOnly {
			r = r.Enabled()
		}
		if listJSON {
			if r == nil {
				r = registry.Registry{}
			}
			return printJSON(cmd.OutOrStdout(), r)
		}
		cmdutils.PrintServers(cmd.OutOrStdout(), r)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one server entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := service().Server(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), e)
	},
}

var addCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a server",
	Long: `Register a server, enabled unless --disabled is given.

Examples:
  mcpmanager add fs --command npx --arg -y --arg @modelcontextprotocol/server-filesystem --arg ~/
  mcpmanager add gh --definition '{"command":"docker","args":["run","-i","gh-mcp"],"env":{"TOKEN":"x"}}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := addFlags.build(cmd, registry.Definition{})
		if err != nil {
			return err
		}
		e := registry.ServerEntry{Name: args[0], Enabled: !addDisabled, Definition: def}
		if addForce {
			_, err = service().SaveServer(e)
		} else {
			_, err = service().AddServer(e)
		}
		if err != nil {
			return err
		}
		cmdutils.PrintOK(cmd.OutOrStdout(), "Added %s", e.Name)
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <name>",
	Short: "Change a server's definition or name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := service().Server(args[0])
		if err != nil {
			return err
		}
		def, err := editFlags.build(cmd, e.Definition)
		if err != nil {
			return err
		}
		e.Definition = def
		if editRename != "" {
			e.Name = editRename
		}
		if _, err := service().EditServer(args[0], e); err != nil {
			return err
		}
		if e.Name != args[0] {
			cmdutils.PrintOK(cmd.OutOrStdout(), "Updated %s (renamed to %s)", args[0], e.Name)
		} else {
			cmdutils.PrintOK(cmd.OutOrStdout(), "Updated %s", e.Name)
		}
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a server from the registry",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := service().DeleteServer(args[0]); err != nil {
			return err
		}
		cmdutils.PrintOK(cmd.OutOrStdout(), "Removed %s", args[0])
		return nil
	},
}

var enableCmd = &cobra.Command{
	Use:   "enable <name>...",
	Short: "Enable servers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, args, true)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <name>...",
	Short: "Disable servers; they stay registered but are not written to Claude",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, args, false)
	},
}

var toggleCmd = &cobra.Command{
	Use:   "toggle <name>",
	Short: "Flip a server between enabled and disabled",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, err := service().ToggleServer(args[0])
		if err != nil {
			return err
		}
		cmdutils.PrintOK(cmd.OutOrStdout(), "%s is now %s", args[0], stateWord(enabled))
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listEnabledOnly, "enabled", false, "Only show enabled servers")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print the entries as JSON")

	addFlags.register(addCmd)
	addCmd.Flags().BoolVar(&addDisabled, "disabled", false, "Register the server disabled")
	addCmd.Flags().BoolVarP(&addForce, "force", "f", false, "Replace an existing server with the same name")

	editFlags.register(editCmd)
	editCmd.Flags().StringVar(&editRename, "rename", "", "New name for the server")
}

func setEnabled(cmd *cobra.Command, names []string, enabled bool) error {
	if err := service().SetEnabled(enabled, names...); err != nil {
		return err
	}
	for _, name := range names {
		cmdutils.PrintOK(cmd.OutOrStdout(), "%s %s", name, stateWord(enabled))
	}
	if len(names) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), `Run "mcpmanager save" to write the change to Claude.`)
	}
	return nil
}

func stateWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
