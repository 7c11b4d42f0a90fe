package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcpmanager/mcpmanager/internal/registry"
)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// readInput reads a file, or stdin when path is "-" or empty.
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// definitionFlags are the flags shared by add and edit.
type definitionFlags struct {
	definition string
	command    string
	args       []string
	env        []string
}

func (f *definitionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.definition, "definition", "", `Full definition as JSON, e.g. '{"command":"npx","args":["-y","pkg"]}'`)
	cmd.Flags().StringVar(&f.command, "command", "", "Executable to launch")
	cmd.Flags().StringArrayVar(&f.args, "arg", nil, "Argument to pass (repeatable)")
	cmd.Flags().StringArrayVar(&f.env, "env", nil, "Environment variable KEY=VALUE (repeatable)")
}

// build returns base with the flags applied. --definition replaces base;
// the other flags override single fields.
func (f *definitionFlags) build(cmd *cobra.Command, base registry.Definition) (registry.Definition, error) {
	def := base.Clone()
	if f.definition != "" {
		parsed, err := registry.ParseDefinition([]byte(f.definition))
		if err != nil {
			return registry.Definition{}, err
		}
		def = parsed
	}
	if cmd.Flags().Changed("command") {
		def.Command = f.command
	}
	if cmd.Flags().Changed("arg") {
		def.Args = append([]string{}, f.args...)
		delete(def.Extra, "args")
	}
	if len(f.env) > 0 {
		env := def.Env()
		if env == nil {
			env = make(map[string]string, len(f.env))
		}
		for _, kv := range f.env {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return registry.Definition{}, fmt.Errorf("invalid --env %q: expected KEY=VALUE", kv)
			}
			env[k] = v
		}
		raw, err := registry.EncodeJSON(env)
		if err != nil {
			return registry.Definition{}, err
		}
		if def.Extra == nil {
			def.Extra = make(map[string]json.RawMessage)
		}
		def.Extra["env"] = raw
	}
	if def.Command != "" {
		delete(def.Extra, "command")
	}
	// A bare command means no arguments.
	if def.Args == nil && def.Extra["args"] == nil {
		def.Args = []string{}
	}
	return def, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
