// Package registry holds the locally owned list of MCP server entries.
//
// Entries are stored under the store's "servers" key:
//
//	[ { "name": "fs", "enabled": true,
//	    "definition": { "command": "npx", "args": ["-y", "server-fs"] } } ]
package registry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("server not found")
	ErrAlreadyExists     = errors.New("server already exists")
	ErrInvalidDefinition = errors.New("invalid server definition")
	ErrParse             = errors.New("invalid JSON")
)

// ServerEntry is one named, toggleable server definition.
type ServerEntry struct {
	Name       string     `json:"name"`
	Enabled    bool       `json:"enabled"`
	Definition Definition `json:"definition"`
}

// Clone returns a deep copy of the entry.
func (e ServerEntry) Clone() ServerEntry {
	e.Definition = e.Definition.Clone()
	return e
}

// Validate checks the entry's name and definition.
func (e ServerEntry) Validate() error {
	if err := ValidateName(e.Name); err != nil {
		return err
	}
	return e.Definition.Validate()
}

// ValidateName rejects empty names and names with surrounding whitespace.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: server name is required", ErrInvalidDefinition)
	}
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("%w: server name %q has leading or trailing whitespace", ErrInvalidDefinition, name)
	}
	return nil
}

// Registry is an ordered list of entries with unique names.
// Methods never modify the receiver; mutations return a new Registry.
type Registry []ServerEntry

// Index returns the position of name, or -1.
func (r Registry) Index(name string) int {
	for i := range r {
		if r[i].Name == name {
			return i
		}
	}
	return -1
}

// Find returns the entry called name.
func (r Registry) Find(name string) (ServerEntry, bool) {
	if i := r.Index(name); i >= 0 {
		return r[i], true
	}
	return ServerEntry{}, false
}

// Names returns entry names in registry order.
func (r Registry) Names() []string {
	names := make([]string, len(r))
	for i, e := range r {
		names[i] = e.Name
	}
	return names
}

// Enabled returns the entries whose Enabled flag is set.
func (r Registry) Enabled() Registry {
	var out Registry
	for _, e := range r {
		if e.Enabled {
			out = append(out, e)
		}
	}
	return out
}

// Clone returns a deep copy.
func (r Registry) Clone() Registry {
	if r == nil {
		return nil
	}
	out := make(Registry, len(r))
	for i, e := range r {
		out[i] = e.Clone()
	}
	return out
}

// Equal reports whether both registries hold the same entries in the same order.
func (r Registry) Equal(o Registry) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if r[i].Name != o[i].Name || r[i].Enabled != o[i].Enabled {
			return false
		}
		if !r[i].Definition.Equal(o[i].Definition) {
			return false
		}
	}
	return true
}

// HasDuplicates reports whether two entries share a name.
func (r Registry) HasDuplicates() bool {
	seen := make(map[string]struct{}, len(r))
	for _, e := range r {
		if _, ok := seen[e.Name]; ok {
			return true
		}
		seen[e.Name] = struct{}{}
	}
	return false
}

// Upsert replaces the entry with the same name in place, or appends it.
func (r Registry) Upsert(e ServerEntry) Registry {
	out := r.Clone()
	if i := out.Index(e.Name); i >= 0 {
		out[i] = e.Clone()
		return out
	}
	return append(out, e.Clone())
}

// Replace swaps the entry called oldName for e, keeping its position.
// It fails if oldName is unknown or e.Name is taken by another entry.
func (r Registry) Replace(oldName string, e ServerEntry) (Registry, error) {
	i := r.Index(oldName)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, oldName)
	}
	if e.Name != oldName && r.Index(e.Name) >= 0 {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, e.Name)
	}
	out := r.Clone()
	out[i] = e.Clone()
	return out, nil
}

// Remove drops the entry called name.
func (r Registry) Remove(name string) (Registry, error) {
	i := r.Index(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	out := make(Registry, 0, len(r)-1)
	out = append(out, r[:i].Clone()...)
	out = append(out, r[i+1:].Clone()...)
	return out, nil
}

// SetEnabled sets the Enabled flag of the entry called name.
func (r Registry) SetEnabled(name string, enabled bool) (Registry, error) {
	i := r.Index(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	out := r.Clone()
	out[i].Enabled = enabled
	return out, nil
}
