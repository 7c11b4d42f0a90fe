// Package cmdutils holds the terminal output helpers shared by CLI commands.
package cmdutils

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mcpmanager/mcpmanager/internal/registry"
	"github.com/mcpmanager/mcpmanager/internal/shared/stringutils"
)

const (
	markOK   = "✓"
	markFail = "✗"
)

// commandWidth caps the COMMAND column of server tables.
const commandWidth = 60

// PrintOK writes a success line.
func PrintOK(w io.Writer, format string, a ...any) {
	fmt.Fprintf(w, "%s %s\n", markOK, fmt.Sprintf(format, a...))
}

// PrintFail writes a failure line.
func PrintFail(w io.Writer, format string, a ...any) {
	fmt.Fprintf(w, "%s %s\n", markFail, fmt.Sprintf(format, a...))
}

// Mark returns the check or cross for ok.
func Mark(ok bool) string {
	if ok {
		return markOK
	}
	return markFail
}

// PrintServers renders r as a table: state, name and launch command.
func PrintServers(w io.Writer, r registry.Registry) {
	if len(r) == 0 {
		fmt.Fprintln(w, "No servers configured.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENABLED\tNAME\tCOMMAND")
	for _, e := range r {
		state := "off"
		if e.Enabled {
			state = "on"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", state, e.Name, stringutils.Truncate(CommandLine(e.Definition), commandWidth))
	}
	tw.Flush()
}

// CommandLine joins the command and its args, or falls back to the url of a
// remote server.
func CommandLine(d registry.Definition) string {
	if d.Command == "" {
		if raw, ok := d.Extra["url"]; ok {
			return strings.Trim(string(raw), `"`)
		}
		return "-"
	}
	parts := append([]string{d.Command}, d.Args...)
	for i, p := range parts {
		if p == "" || strings.ContainsAny(p, " \t\"'") {
			parts[i] = fmt.Sprintf("%q", p)
		}
	}
	return strings.Join(parts, " ")
}
