package registry

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(name string, enabled bool, command string, args ...string) ServerEntry {
	return ServerEntry{
		Name:       name,
		Enabled:    enabled,
		Definition: Definition{Command: command, Args: append([]string{}, args...)},
	}
}

// ─── Definition ────────────────────────────────────────────────────────────

func TestDefinition_PassthroughKeysSurviveRoundTrip(t *testing.T) {
	in := `{"command":"docker","args":["run","-i"],"env":{"TOKEN":"x"},"cwd":"/srv","timeout":30}`

	var d Definition
	require.NoError(t, json.Unmarshal([]byte(in), &d))
	assert.Equal(t, "docker", d.Command)
	assert.Equal(t, []string{"run", "-i"}, d.Args)
	assert.Equal(t, map[string]string{"TOKEN": "x"}, d.Env())

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestDefinition_MarshalOrder(t *testing.T) {
	d := Definition{
		Command: "npx",
		Args:    []string{"-y", "pkg"},
		Extra: map[string]json.RawMessage{
			"env": json.RawMessage(`{"A":"1"}`),
			"cwd": json.RawMessage(`"/tmp"`),
		},
	}
	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `{"command":"npx","args":["-y","pkg"],"cwd":"/tmp","env":{"A":"1"}}`, string(out))
}

func TestDefinition_MarshalDoesNotEscapeHTML(t *testing.T) {
	var d Definition
	require.NoError(t, json.Unmarshal([]byte(`{"command":"sh","args":["a && b"],"env":{"Q":"<x>"}}`), &d))
	out, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"command":"sh","args":["a && b"],"env":{"Q":"<x>"}}`, string(out))

	dec, err := DecodeDefinition(map[string]any{"command": "x", "args": []any{}, "url": "http://h/?a=1&b=2"})
	require.NoError(t, err)
	assert.Equal(t, `"http://h/?a=1&b=2"`, string(dec.Extra["url"]))
}

func TestDefinition_WrongTypesKeptVerbatim(t *testing.T) {
	in := `{"command":42,"args":"not-a-list"}`

	var d Definition
	require.NoError(t, json.Unmarshal([]byte(in), &d))
	assert.Empty(t, d.Command)
	assert.Nil(t, d.Args)

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestDefinition_EmptyArgsDistinctFromAbsent(t *testing.T) {
	var withEmpty, without Definition
	require.NoError(t, json.Unmarshal([]byte(`{"command":"x","args":[]}`), &withEmpty))
	require.NoError(t, json.Unmarshal([]byte(`{"command":"x"}`), &without))

	assert.NotNil(t, withEmpty.Args)
	assert.Nil(t, without.Args)
	assert.False(t, withEmpty.Equal(without))
}

func TestDefinition_UnmarshalRejectsNonObject(t *testing.T) {
	for _, in := range []string{`[]`, `"x"`, `null`, `3`} {
		var d Definition
		assert.Error(t, json.Unmarshal([]byte(in), &d), in)
	}
}

func TestDefinition_CloneIsDeep(t *testing.T) {
	d := Definition{
		Command: "x",
		Args:    []string{"a"},
		Extra:   map[string]json.RawMessage{"env": json.RawMessage(`{"A":"1"}`)},
	}
	c := d.Clone()
	c.Args[0] = "changed"
	c.Extra["env"][2] = 'B'
	c.Extra["new"] = json.RawMessage(`1`)

	assert.Equal(t, "a", d.Args[0])
	assert.Equal(t, `{"A":"1"}`, string(d.Extra["env"]))
	assert.NotContains(t, d.Extra, "new")
}

func TestDefinition_Validate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		msg  string
	}{
		{"valid", `{"command":"npx","args":["-y"]}`, ""},
		{"valid empty args", `{"command":"npx","args":[]}`, ""},
		{"no command", `{"args":[]}`, "definition must include a command string"},
		{"empty command", `{"command":"","args":[]}`, "definition must include a command string"},
		{"command not string", `{"command":1,"args":[]}`, "definition must include a command string"},
		{"no args", `{"command":"npx"}`, "definition must include args array"},
		{"args not array", `{"command":"npx","args":"-y"}`, "definition must include args array"},
		{"args not strings", `{"command":"npx","args":["-y",2]}`, "all args must be strings"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Definition
			require.NoError(t, json.Unmarshal([]byte(tt.in), &d))
			err := d.Validate()
			if tt.msg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidDefinition)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParseDefinition(t *testing.T) {
	d, err := ParseDefinition([]byte(`{"command":"uvx","args":["mcp-server-git"],"env":{"K":"V"}}`))
	require.NoError(t, err)
	assert.Equal(t, "uvx", d.Command)
	assert.Equal(t, map[string]string{"K": "V"}, d.Env())

	_, err = ParseDefinition([]byte(`{"command":`))
	assert.ErrorIs(t, err, ErrParse)

	_, err = ParseDefinition([]byte(`{"command":"uvx"}`))
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestDecodeDefinition(t *testing.T) {
	d, err := DecodeDefinition(map[string]any{
		"command": "npx",
		"args":    []any{"-y", "pkg"},
		"env":     map[string]any{"A": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "npx", d.Command)
	assert.Equal(t, []string{"-y", "pkg"}, d.Args)
	assert.Equal(t, map[string]string{"A": "1"}, d.Env())

	_, err = DecodeDefinition("npx")
	assert.ErrorIs(t, err, ErrInvalidDefinition)

	_, err = DecodeDefinition(map[string]any{"command": "npx"})
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

// ─── ServerEntry ───────────────────────────────────────────────────────────

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("filesystem"))
	assert.ErrorIs(t, ValidateName(""), ErrInvalidDefinition)
	assert.ErrorIs(t, ValidateName(" fs"), ErrInvalidDefinition)
	assert.ErrorIs(t, ValidateName("fs\n"), ErrInvalidDefinition)
}

func TestServerEntry_JSONShape(t *testing.T) {
	e := entry("fs", true, "npx", "-y")
	out, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"fs","enabled":true,"definition":{"command":"npx","args":["-y"]}}`, string(out))

	var back ServerEntry
	require.NoError(t, json.Unmarshal(out, &back))
	assert.True(t, Registry{e}.Equal(Registry{back}))
}

// ─── Registry ──────────────────────────────────────────────────────────────

func TestRegistry_Upsert(t *testing.T) {
	r := Registry{entry("a", true, "a"), entry("b", false, "b")}

	r2 := r.Upsert(entry("b", true, "b2"))
	assert.Equal(t, []string{"a", "b"}, r2.Names())
	got, _ := r2.Find("b")
	assert.Equal(t, "b2", got.Definition.Command)
	assert.True(t, got.Enabled)

	r3 := r2.Upsert(entry("c", true, "c"))
	assert.Equal(t, []string{"a", "b", "c"}, r3.Names())

	// Receiver untouched.
	orig, _ := r.Find("b")
	assert.Equal(t, "b", orig.Definition.Command)
}

func TestRegistry_Replace(t *testing.T) {
	r := Registry{entry("a", true, "a"), entry("b", false, "b"), entry("c", true, "c")}

	out, err := r.Replace("b", entry("renamed", false, "b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "renamed", "c"}, out.Names())

	_, err = r.Replace("missing", entry("x", true, "x"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Replace("b", entry("c", true, "x"))
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestRegistry_Remove(t *testing.T) {
	r := Registry{entry("a", true, "a"), entry("b", false, "b")}

	out, err := r.Remove("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, out.Names())
	assert.Len(t, r, 2)

	_, err = r.Remove("a-typo")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRegistry_SetEnabled(t *testing.T) {
	r := Registry{entry("a", true, "a")}

	out, err := r.SetEnabled("a", false)
	require.NoError(t, err)
	assert.False(t, out[0].Enabled)
	assert.True(t, r[0].Enabled)

	_, err = r.SetEnabled("nope", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_EnabledAndDuplicates(t *testing.T) {
	r := Registry{entry("a", true, "a"), entry("b", false, "b"), entry("c", true, "c")}
	assert.Equal(t, []string{"a", "c"}, r.Enabled().Names())
	assert.False(t, r.HasDuplicates())
	assert.True(t, append(r, entry("a", false, "a")).HasDuplicates())
}

func TestRegistry_Equal(t *testing.T) {
	a := Registry{entry("a", true, "a", "x")}
	assert.True(t, a.Equal(a.Clone()))
	assert.False(t, a.Equal(Registry{entry("a", false, "a", "x")}))
	assert.False(t, a.Equal(Registry{entry("a", true, "a", "y")}))
	assert.False(t, a.Equal(nil))
	assert.True(t, Registry(nil).Equal(Registry{}))
}
