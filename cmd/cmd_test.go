package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mcpmanager/mcpmanager/internal/config"
	"github.com/mcpmanager/mcpmanager/internal/registry"
	"github.com/mcpmanager/mcpmanager/internal/store"
)

// newTestEnv points the CLI at an in-memory store and a temp Claude config.
func newTestEnv(t *testing.T, claudeConfig string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "claude_desktop_config.json")
	if claudeConfig != "" {
		if err := os.WriteFile(cfgPath, []byte(claudeConfig), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	st := store.NewMemoryStore()
	s := config.DefaultSettings()
	s.ConfigFilePath = cfgPath
	s.BackupsEnabled = false
	if err := config.SaveSettings(st, s); err != nil {
		t.Fatal(err)
	}
	testStore = st
	t.Cleanup(func() { testStore = nil })
	return cfgPath
}

// run executes the CLI with args and returns stdout and stderr.
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, err := run(t, "", args...)
	if err != nil {
		t.Fatalf("%v: unexpected error: %v\nstderr: %s", args, err, errOut)
	}
	return out
}

func storedServers(t *testing.T) registry.Registry {
	t.Helper()
	var r registry.Registry
	if _, err := testStore.Get(store.KeyServers, &r); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestCLI_FirstRunImportsThenDisableAndSave(t *testing.T) {
	cfgPath := newTestEnv(t, `{"mcpServers":{"fs":{"command":"npx","args":["-y","server-fs"]},"git":{"command":"uvx","args":["mcp-server-git"]}}}`)

	out := mustRun(t, "list")
	if !strings.Contains(out, "fs") || !strings.Contains(out, "git") {
		t.Fatalf("expected imported servers in list, got:\n%s", out)
	}

	mustRun(t, "disable", "git")
	mustRun(t, "save")

	data, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "git") {
		t.Errorf("disabled server written to config:\n%s", data)
	}

	// The disabled server survives a later sync.
	mustRun(t, "sync")
	r := storedServers(t)
	if got := strings.Join(r.Names(), ","); got != "fs,git" {
		t.Errorf("expected fs,git after sync, got %s", got)
	}
	if e, _ := r.Find("git"); e.Enabled {
		t.Error("expected git to stay disabled")
	}
}

func TestCLI_AddEditRemove(t *testing.T) {
	newTestEnv(t, "")

	mustRun(t, "add", "fs", "--command", "npx", "--arg", "-y", "--arg", "server-fs", "--env", "ROOT=/data")
	if _, _, err := run(t, "", "add", "fs", "--command", "x"); err == nil {
		t.Fatal("expected duplicate add to fail")
	}
	mustRun(t, "add", "fs", "--command", "npx", "--arg", "-y", "--arg", "server-fs2", "--force")

	mustRun(t, "edit", "fs", "--rename", "files", "--arg", "other")
	e, ok := storedServers(t).Find("files")
	if !ok {
		t.Fatal("expected renamed entry")
	}
	if e.Definition.Command != "npx" || strings.Join(e.Definition.Args, " ") != "other" {
		t.Errorf("unexpected definition %+v", e.Definition)
	}

	out := mustRun(t, "show", "files")
	var shown registry.ServerEntry
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("show output is not JSON: %v\n%s", err, out)
	}
	if shown.Name != "files" || !shown.Enabled {
		t.Errorf("unexpected entry %+v", shown)
	}

	mustRun(t, "remove", "files")
	if _, _, err := run(t, "", "remove", "files"); err == nil {
		t.Fatal("expected removing an unknown server to fail")
	}
}

func TestCLI_AddDefinitionJSON(t *testing.T) {
	newTestEnv(t, "")

	mustRun(t, "add", "gh", "--disabled", "--definition", `{"command":"docker","args":["run"],"env":{"T":"x"}}`)
	e, ok := storedServers(t).Find("gh")
	if !ok || e.Enabled {
		t.Fatalf("expected disabled entry, got %+v", e)
	}
	if e.Definition.Env()["T"] != "x" {
		t.Errorf("expected env to be kept, got %+v", e.Definition)
	}

	if _, _, err := run(t, "", "add", "bad", "--definition", `{"command":"x"}`); err == nil {
		t.Fatal("expected a definition without args to be rejected")
	}
}

func TestCLI_ToggleReportsEvent(t *testing.T) {
	newTestEnv(t, "")
	mustRun(t, "add", "a", "--command", "x")

	out, errOut, err := run(t, "", "toggle", "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "a is now disabled") {
		t.Errorf("unexpected output %q", out)
	}
	if !strings.Contains(errOut, "Server state changed") {
		t.Errorf("expected notification on stderr, got %q", errOut)
	}
}

func TestCLI_ImportFromStdinAndExport(t *testing.T) {
	newTestEnv(t, "")

	_, errOut, err := run(t, `{"mcpServers":{"ok":{"command":"x","args":[]},"bad":{"command":"y"}}}`, "import")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(errOut, "bad") {
		t.Errorf("expected rejected server on stderr, got %q", errOut)
	}

	out := mustRun(t, "export", "--format", "yaml")
	if !strings.Contains(out, "name: ok") {
		t.Errorf("unexpected yaml export:\n%s", out)
	}

	out = mustRun(t, "preview")
	if !strings.Contains(out, `"ok"`) {
		t.Errorf("unexpected preview:\n%s", out)
	}

	if _, _, err := run(t, "", "export", "--format", "toml"); err == nil {
		t.Error("expected unknown format to fail")
	}
}

func TestCLI_SettingsBackups(t *testing.T) {
	newTestEnv(t, "")

	mustRun(t, "settings", "backups", "on")
	out := mustRun(t, "settings", "--json")
	var s config.Settings
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("settings output is not JSON: %v", err)
	}
	if !s.BackupsEnabled {
		t.Error("expected backups on")
	}
	if _, _, err := run(t, "", "settings", "backups", "maybe"); err == nil {
		t.Error("expected invalid value to fail")
	}
}

func TestCLI_Status(t *testing.T) {
	newTestEnv(t, `{"mcpServers":{"a":{"command":"x","args":[]}}}`)
	out := mustRun(t, "status")
	if !strings.Contains(out, "Servers:       1 (1 enabled)") {
		t.Errorf("unexpected status:\n%s", out)
	}
}

func TestCLI_EnableWithUnknownNameChangesNothing(t *testing.T) {
	newTestEnv(t, "")
	mustRun(t, "add", "a", "--command", "x", "--disabled")
	mustRun(t, "add", "c", "--command", "x", "--disabled")

	if _, _, err := run(t, "", "enable", "a", "bad", "c"); err == nil {
		t.Fatal("expected an unknown name to fail")
	}
	for _, e := range storedServers(t) {
		if e.Enabled {
			t.Errorf("%s was enabled despite the failure", e.Name)
		}
	}

	mustRun(t, "enable", "a", "c")
	if got := strings.Join(storedServers(t).Enabled().Names(), ","); got != "a,c" {
		t.Errorf("expected a,c enabled, got %s", got)
	}
}
