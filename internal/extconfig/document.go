// Package extconfig reads and writes the Claude Desktop configuration file.
//
// Only the "mcpServers" object is interpreted:
//
//	{ "mcpServers": { "<name>": { "command": "...", "args": [...], ... } } }
//
// Server order follows the file on read and the document on write.
package extconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mcpmanager/mcpmanager/internal/registry"
)

var (
	// ErrMalformed is returned for files that are not a JSON object, or whose
	// mcpServers value is not an object of objects.
	ErrMalformed = errors.New("malformed config file")
	// ErrNoServers is returned when the file has no mcpServers key (or it is null).
	ErrNoServers = errors.New("no mcpServers in config file")
)

// Server is one named definition as it appears in the external file.
type Server struct {
	Name       string
	Definition registry.Definition
}

// Snapshot is the ordered content of the external file's mcpServers object.
type Snapshot []Server

// Lookup returns the definition stored under name.
func (s Snapshot) Lookup(name string) (registry.Definition, bool) {
	for _, srv := range s {
		if srv.Name == name {
			return srv.Definition, true
		}
	}
	return registry.Definition{}, false
}

// Has reports whether name is a key of the snapshot.
func (s Snapshot) Has(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

// Names returns the server names in file order.
func (s Snapshot) Names() []string {
	names := make([]string, len(s))
	for i, srv := range s {
		names[i] = srv.Name
	}
	return names
}

// Document is the full content written to the external file.
type Document struct {
	MCPServers Snapshot
}

// MarshalJSON writes {"mcpServers": {...}} keeping MCPServers order.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"mcpServers":{`)
	for i, srv := range d.MCPServers {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := registry.EncodeJSON(srv.Name)
		if err != nil {
			return nil, err
		}
		// Called directly: json.Marshal would re-escape the output.
		def, err := srv.Definition.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("marshal server %q: %w", srv.Name, err)
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(def)
	}
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}

// Indented returns the document as 2-space indented JSON with a trailing newline.
func (d Document) Indented() ([]byte, error) {
	compact, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// Load reads and parses the file at path.
// A missing file yields an error wrapping fs.ErrNotExist.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	snap, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return snap, nil
}

// RawServer is one mcpServers member before its definition is decoded.
type RawServer struct {
	Name  string
	Value json.RawMessage
}

// Parse decodes the mcpServers object of a config file.
// An empty object yields an empty, non-nil Snapshot.
func Parse(data []byte) (Snapshot, error) {
	raws, err := ParseRaw(data)
	if err != nil {
		return nil, err
	}
	snap := make(Snapshot, 0, len(raws))
	for _, r := range raws {
		var def registry.Definition
		if err := json.Unmarshal(r.Value, &def); err != nil {
			return nil, fmt.Errorf("%w: server %q: %v", ErrMalformed, r.Name, err)
		}
		snap = append(snap, Server{Name: r.Name, Definition: def})
	}
	return snap, nil
}

// ParseRaw splits the mcpServers object into its members, in file order.
// When a name repeats, the last value wins but keeps the first position.
func ParseRaw(data []byte) ([]RawServer, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if top == nil {
		return nil, fmt.Errorf("%w: top level is not an object", ErrMalformed)
	}
	raw, ok := top["mcpServers"]
	if !ok || string(bytes.TrimSpace(raw)) == "null" {
		return nil, ErrNoServers
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: mcpServers is not an object", ErrMalformed)
	}

	out := []RawServer{}
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		name, _ := tok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("%w: server %q: %v", ErrMalformed, name, err)
		}
		if i, dup := index[name]; dup {
			out[i].Value = value
			continue
		}
		index[name] = len(out)
		out = append(out, RawServer{Name: name, Value: value})
	}
	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return out, nil
}
