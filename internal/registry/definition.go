package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// Definition describes how a server is launched.
//
// Command and Args are the only keys this package understands. Every other
// key (env, cwd, url, ...) is kept verbatim in Extra. A "command" or "args"
// value of an unexpected JSON type is kept in Extra as well, so a definition
// read from an external file survives a round trip byte-for-byte.
type Definition struct {
	Command string
	Args    []string // nil when absent, empty when "args": []
	Extra   map[string]json.RawMessage
}

// UnmarshalJSON accepts any JSON object.
func (d *Definition) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("definition must be an object")
	}

	*d = Definition{}
	for key, raw := range fields {
		switch key {
		case "command":
			var s string
			if json.Unmarshal(raw, &s) == nil && s != "" {
				d.Command = s
				continue
			}
		case "args":
			var args []string
			if json.Unmarshal(raw, &args) == nil && args != nil {
				d.Args = args
				continue
			}
		}
		if err := d.setExtra(key, raw); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON writes command, args, then the extra keys in sorted order.
func (d Definition) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	n := 0
	write := func(key string, v any) error {
		val, err := EncodeJSON(v)
		if err != nil {
			return fmt.Errorf("marshal %q: %w", key, err)
		}
		k, _ := EncodeJSON(key)
		if n > 0 {
			buf.WriteByte(',')
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
		n++
		return nil
	}

	if d.Command != "" {
		if err := write("command", d.Command); err != nil {
			return nil, err
		}
	}
	if d.Args != nil {
		if err := write("args", d.Args); err != nil {
			return nil, err
		}
	}
	for _, key := range d.extraKeys() {
		if key == "command" && d.Command != "" || key == "args" && d.Args != nil {
			continue
		}
		if err := write(key, d.Extra[key]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// EncodeJSON is json.Marshal without HTML escaping, so values such as
// "a && b" or "?x=1&y=2" are written as they were read.
func EncodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func (d *Definition) setExtra(key string, raw json.RawMessage) error {
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	if d.Extra == nil {
		d.Extra = make(map[string]json.RawMessage)
	}
	d.Extra[key] = json.RawMessage(compact.Bytes())
	return nil
}

func (d Definition) extraKeys() []string {
	keys := make([]string, 0, len(d.Extra))
	for k := range d.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Env returns the string-valued "env" map carried in Extra, if any.
func (d Definition) Env() map[string]string {
	raw, ok := d.Extra["env"]
	if !ok {
		return nil
	}
	var env map[string]string
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil
	}
	return env
}

// Clone returns a deep copy.
func (d Definition) Clone() Definition {
	out := Definition{Command: d.Command}
	if d.Args != nil {
		out.Args = append([]string{}, d.Args...)
	}
	if d.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(d.Extra))
		for k, v := range d.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// Equal reports whether both definitions serialize identically.
func (d Definition) Equal(o Definition) bool {
	a, errA := json.Marshal(d)
	b, errB := json.Marshal(o)
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

// Validate checks the shape required by the validated entry points:
// a non-empty command string and an args array of strings.
func (d Definition) Validate() error {
	if d.Command == "" {
		return fmt.Errorf("%w: definition must include a command string", ErrInvalidDefinition)
	}
	if d.Args != nil {
		return nil
	}
	raw, ok := d.Extra["args"]
	if !ok {
		return fmt.Errorf("%w: definition must include args array", ErrInvalidDefinition)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return fmt.Errorf("%w: definition must include args array", ErrInvalidDefinition)
	}
	return fmt.Errorf("%w: all args must be strings", ErrInvalidDefinition)
}

// ParseDefinition parses and validates a definition given as JSON text.
func ParseDefinition(data []byte) (Definition, error) {
	var d Definition
	if err := json.Unmarshal(data, &d); err != nil {
		return Definition{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if err := d.Validate(); err != nil {
		return Definition{}, err
	}
	return d, nil
}

// DecodeDefinition converts a generic value (as produced by a YAML or JSON
// decoder) into a validated Definition.
func DecodeDefinition(v any) (Definition, error) {
	var fields struct {
		Command string         `mapstructure:"command"`
		Args    []string       `mapstructure:"args"`
		Rest    map[string]any `mapstructure:",remain"`
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &fields,
		TagName: "mapstructure",
	})
	if err != nil {
		return Definition{}, fmt.Errorf("create definition decoder: %w", err)
	}
	if _, ok := v.(map[string]any); !ok {
		return Definition{}, fmt.Errorf("%w: definition must be an object", ErrInvalidDefinition)
	}
	if err := decoder.Decode(v); err != nil {
		return Definition{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	d := Definition{Command: fields.Command, Args: fields.Args}
	for key, val := range fields.Rest {
		raw, err := EncodeJSON(val)
		if err != nil {
			return Definition{}, fmt.Errorf("%w: field %q: %v", ErrInvalidDefinition, key, err)
		}
		if err := d.setExtra(key, raw); err != nil {
			return Definition{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
		}
	}
	if err := d.Validate(); err != nil {
		return Definition{}, err
	}
	return d, nil
}
