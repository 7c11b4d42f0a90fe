// Package probe starts a server definition and checks that it answers the MCP
// handshake, listing the tools it exposes.
package probe

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mcpmanager/mcpmanager/internal/registry"
)

// DefaultTimeout bounds a probe when the caller's context has no deadline.
const DefaultTimeout = 30 * time.Second

// Tool is one tool advertised by a server.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Report is the outcome of a successful probe.
type Report struct {
	Server          string
	ServerName      string
	ServerVersion   string
	ProtocolVersion string
	Tools           []Tool
	Elapsed         time.Duration
}

// Run starts the server described by def, performs the initialize handshake,
// lists its tools and shuts it down again.
func Run(ctx context.Context, name string, def registry.Definition) (Report, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	start := time.Now()
	c := newClient(name, targetFor(def))
	initRes, err := c.connect(ctx)
	if err != nil {
		return Report{}, err
	}
	defer c.close()

	report := Report{Server: name}
	var info struct {
		ProtocolVersion string `json:"protocolVersion"`
		ServerInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"serverInfo"`
	}
	if err := json.Unmarshal(initRes, &info); err == nil {
		report.ProtocolVersion = info.ProtocolVersion
		report.ServerName = info.ServerInfo.Name
		report.ServerVersion = info.ServerInfo.Version
	}

	tools, err := c.listTools(ctx)
	if err != nil {
		return Report{}, err
	}
	report.Tools = tools
	report.Elapsed = time.Since(start)

	slog.Debug("probe: server answered", "server", name, "tools", len(tools), "elapsed", report.Elapsed)
	return report, nil
}
