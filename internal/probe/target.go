package probe

import (
	"encoding/json"

	"github.com/mcpmanager/mcpmanager/internal/registry"
)

// target holds the connection parameters for a single MCP server.
type target struct {
	Command string
	Args    []string
	Env     map[string]string
	URL     string
	Headers map[string]string
}

// targetFor reads the launch parameters out of a definition. Only command,
// args, env, url and headers are used; other keys are ignored.
func targetFor(def registry.Definition) target {
	t := target{
		Command: def.Command,
		Args:    def.Args,
		Env:     def.Env(),
	}
	if raw, ok := def.Extra["url"]; ok {
		_ = json.Unmarshal(raw, &t.URL)
	}
	if raw, ok := def.Extra["headers"]; ok {
		_ = json.Unmarshal(raw, &t.Headers)
	}
	return t
}
