package manager

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/mcpmanager/mcpmanager/internal/extconfig"
	"github.com/mcpmanager/mcpmanager/internal/registry"
)

// Rejected names a server left out of a bulk import and why.
type Rejected struct {
	Name   string
	Reason string
}

// BulkReport describes one bulk import.
type BulkReport struct {
	Imported []string
	Rejected []Rejected
}

type candidate struct {
	name  string
	value any
}

// BulkImport adds every valid server of a pasted {"mcpServers": {...}}
// document (JSON or YAML) as an enabled entry, replacing entries with the same
// name. Invalid servers are reported in BulkReport.Rejected and skipped; the
// rest of the batch is still saved.
func (s *Service) BulkImport(data []byte) (BulkReport, error) {
	candidates, err := parseCandidates(data)
	if err != nil {
		return BulkReport{}, err
	}
	if len(candidates) == 0 {
		return BulkReport{}, fmt.Errorf("%w: no MCP servers found in input", registry.ErrInvalidDefinition)
	}

	var report BulkReport
	var accepted []registry.ServerEntry
	for _, c := range candidates {
		if err := registry.ValidateName(c.name); err != nil {
			report.Rejected = append(report.Rejected, Rejected{Name: c.name, Reason: err.Error()})
			continue
		}
		def, err := registry.DecodeDefinition(c.value)
		if err != nil {
			report.Rejected = append(report.Rejected, Rejected{Name: c.name, Reason: err.Error()})
			continue
		}
		accepted = append(accepted, registry.ServerEntry{Name: c.name, Enabled: true, Definition: def})
	}
	if len(accepted) == 0 {
		return report, fmt.Errorf("%w: found %d invalid server definitions", registry.ErrInvalidDefinition, len(report.Rejected))
	}

	r, err := s.Servers()
	if err != nil {
		return report, err
	}
	for _, e := range accepted {
		r = r.Upsert(e)
		report.Imported = append(report.Imported, e.Name)
	}
	if err := s.saveServers(r); err != nil {
		return BulkReport{Rejected: report.Rejected}, err
	}
	slog.Info("manager: bulk import", "imported", len(report.Imported), "rejected", len(report.Rejected))
	return report, nil
}

// parseCandidates returns the mcpServers members of data in document order.
// JSON goes through the same parser as the external file; anything else is
// read as YAML.
func parseCandidates(data []byte) ([]candidate, error) {
	if json.Valid(data) {
		raws, err := extconfig.ParseRaw(data)
		if err != nil {
			if errors.Is(err, extconfig.ErrNoServers) || errors.Is(err, extconfig.ErrMalformed) {
				return nil, fmt.Errorf("%w: input must contain an mcpServers object", registry.ErrInvalidDefinition)
			}
			return nil, err
		}
		out := make([]candidate, 0, len(raws))
		for _, r := range raws {
			var v any
			if err := json.Unmarshal(r.Value, &v); err != nil {
				return nil, fmt.Errorf("%w: server %q: %v", registry.ErrParse, r.Name, err)
			}
			out = append(out, candidate{name: r.Name, value: v})
		}
		return out, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", registry.ErrParse, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: input must contain an mcpServers object", registry.ErrInvalidDefinition)
	}

	var servers *yaml.Node
	top := root.Content[0]
	for i := 0; i+1 < len(top.Content); i += 2 {
		if top.Content[i].Value == "mcpServers" {
			servers = top.Content[i+1]
		}
	}
	if servers == nil || servers.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: input must contain an mcpServers object", registry.ErrInvalidDefinition)
	}

	out := make([]candidate, 0, len(servers.Content)/2)
	for i := 0; i+1 < len(servers.Content); i += 2 {
		var v any
		if err := servers.Content[i+1].Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: server %q: %v", registry.ErrParse, servers.Content[i].Value, err)
		}
		out = append(out, candidate{name: servers.Content[i].Value, value: v})
	}
	return out, nil
}

// ExportYAML renders r as a YAML list of entries in the store's shape
// (name, enabled, definition).
func ExportYAML(r registry.Registry) ([]byte, error) {
	list := &yaml.Node{Kind: yaml.SequenceNode}
	for _, e := range r {
		raw, err := json.Marshal(e.Definition)
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", e.Name, err)
		}
		var def yaml.Node
		// JSON is valid YAML; decoding it keeps the definition's key order.
		if err := yaml.Unmarshal(raw, &def); err != nil {
			return nil, fmt.Errorf("convert %q: %w", e.Name, err)
		}
		body := def.Content[0]
		blockStyle(body)

		enabled := "false"
		if e.Enabled {
			enabled = "true"
		}
		list.Content = append(list.Content, &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "name"},
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Name},
			{Kind: yaml.ScalarNode, Value: "enabled"},
			{Kind: yaml.ScalarNode, Tag: "!!bool", Value: enabled},
			{Kind: yaml.ScalarNode, Value: "definition"},
			body,
		}})
	}
	return yaml.Marshal(list)
}

// blockStyle drops the flow and quoting styles that come from parsing JSON.
// Scalars keep their tags, so the encoder still quotes strings like "true".
func blockStyle(n *yaml.Node) {
	switch n.Kind {
	case yaml.MappingNode, yaml.SequenceNode:
		n.Style &^= yaml.FlowStyle
	case yaml.ScalarNode:
		n.Style &^= yaml.DoubleQuotedStyle
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}
