// Package reconcile merges the external config file into the local registry
// and projects the registry back into the external file's shape.
package reconcile

import (
	"github.com/mcpmanager/mcpmanager/internal/extconfig"
	"github.com/mcpmanager/mcpmanager/internal/registry"
)

// Reconcile merges snap into existing.
//
// Every server named in snap yields one entry, in snap order: a known name
// keeps its local fields and takes the snapshot's definition, an unknown name
// becomes a new enabled entry. Disabled entries that snap does not mention
// follow unchanged. Enabled entries that snap does not mention are dropped.
func Reconcile(existing registry.Registry, snap extconfig.Snapshot) registry.Registry {
	known := make(map[string]registry.ServerEntry, len(existing))
	for _, e := range existing {
		if _, dup := known[e.Name]; !dup {
			known[e.Name] = e
		}
	}

	out := make(registry.Registry, 0, len(snap)+len(existing))
	inSnap := make(map[string]struct{}, len(snap))
	for _, srv := range snap {
		if _, dup := inSnap[srv.Name]; dup {
			continue
		}
		inSnap[srv.Name] = struct{}{}

		if e, ok := known[srv.Name]; ok {
			e = e.Clone()
			e.Definition = srv.Definition.Clone()
			out = append(out, e)
			continue
		}
		out = append(out, registry.ServerEntry{
			Name:       srv.Name,
			Enabled:    true,
			Definition: srv.Definition.Clone(),
		})
	}

	survivors := make(map[string]struct{})
	for _, e := range existing {
		if e.Enabled {
			continue
		}
		if _, ok := inSnap[e.Name]; ok {
			continue
		}
		if _, dup := survivors[e.Name]; dup {
			continue
		}
		survivors[e.Name] = struct{}{}
		out = append(out, e.Clone())
	}
	return out
}

// Project renders the enabled entries of r as the external document.
func Project(r registry.Registry) extconfig.Document {
	servers := extconfig.Snapshot{}
	for _, e := range r {
		if !e.Enabled {
			continue
		}
		servers = append(servers, extconfig.Server{
			Name:       e.Name,
			Definition: e.Definition.Clone(),
		})
	}
	return extconfig.Document{MCPServers: servers}
}

// Changed reports whether a reconcile run altered the registry.
func Changed(before, after registry.Registry) bool {
	return !before.Equal(after)
}
