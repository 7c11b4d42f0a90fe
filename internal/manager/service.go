// Package manager exposes the registry operations used by the CLI.
//
// Each operation reads what it needs from the store, runs a pure
// transformation (registry, reconcile) and writes the result back with a
// single Set, so a failed operation never leaves a partial change behind.
package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/mcpmanager/mcpmanager/internal/bus"
	"github.com/mcpmanager/mcpmanager/internal/config"
	"github.com/mcpmanager/mcpmanager/internal/extconfig"
	"github.com/mcpmanager/mcpmanager/internal/reconcile"
	"github.com/mcpmanager/mcpmanager/internal/registry"
	"github.com/mcpmanager/mcpmanager/internal/store"
)

// Restarter restarts the desktop application.
type Restarter interface {
	Restart(ctx context.Context) error
}

// Service owns the registry and its synchronization with the external file.
type Service struct {
	store     store.Store
	notifier  bus.Notifier
	writer    *extconfig.Writer
	restarter Restarter
}

// NewService creates a Service. notifier and restarter may be nil.
func NewService(st store.Store, notifier bus.Notifier, writer *extconfig.Writer, restarter Restarter) *Service {
	if notifier == nil {
		notifier = bus.Discard{}
	}
	if writer == nil {
		writer = extconfig.NewWriter()
	}
	return &Service{
		store:     st,
		notifier:  notifier,
		writer:    writer,
		restarter: restarter,
	}
}

// ---- Registry --------------------------------------------------------------

// Servers returns the persisted registry.
func (s *Service) Servers() (registry.Registry, error) {
	var r registry.Registry
	if _, err := s.store.Get(store.KeyServers, &r); err != nil {
		return nil, fmt.Errorf("load servers: %w", err)
	}
	return r, nil
}

// Server returns the entry called name.
func (s *Service) Server(name string) (registry.ServerEntry, error) {
	r, err := s.Servers()
	if err != nil {
		return registry.ServerEntry{}, err
	}
	e, ok := r.Find(name)
	if !ok {
		return registry.ServerEntry{}, fmt.Errorf("%w: %s", registry.ErrNotFound, name)
	}
	return e, nil
}

func (s *Service) saveServers(r registry.Registry) error {
	if r == nil {
		r = registry.Registry{}
	}
	if err := s.store.Set(store.KeyServers, r); err != nil {
		return fmt.Errorf("save servers: %w", err)
	}
	return nil
}

// SaveServer validates e and stores it, replacing any entry with the same name.
func (s *Service) SaveServer(e registry.ServerEntry) (registry.ServerEntry, error) {
	if err := e.Validate(); err != nil {
		return registry.ServerEntry{}, err
	}
	r, err := s.Servers()
	if err != nil {
		return registry.ServerEntry{}, err
	}
	if err := s.saveServers(r.Upsert(e)); err != nil {
		return registry.ServerEntry{}, err
	}
	slog.Info("manager: server saved", "server", e.Name, "enabled", e.Enabled)
	return e, nil
}

// AddServer validates e and stores it; the name must not be taken.
func (s *Service) AddServer(e registry.ServerEntry) (registry.ServerEntry, error) {
	if err := e.Validate(); err != nil {
		return registry.ServerEntry{}, err
	}
	r, err := s.Servers()
	if err != nil {
		return registry.ServerEntry{}, err
	}
	if _, ok := r.Find(e.Name); ok {
		return registry.ServerEntry{}, fmt.Errorf("%w: %s", registry.ErrAlreadyExists, e.Name)
	}
	return s.SaveServer(e)
}

// EditServer replaces the entry called oldName with e, which may rename it.
func (s *Service) EditServer(oldName string, e registry.ServerEntry) (registry.ServerEntry, error) {
	if err := e.Validate(); err != nil {
		return registry.ServerEntry{}, err
	}
	r, err := s.Servers()
	if err != nil {
		return registry.ServerEntry{}, err
	}
	updated, err := r.Replace(oldName, e)
	if err != nil {
		return registry.ServerEntry{}, err
	}
	if err := s.saveServers(updated); err != nil {
		return registry.ServerEntry{}, err
	}
	slog.Info("manager: server updated", "server", oldName, "name", e.Name)
	return e, nil
}

// DeleteServer removes the entry called name.
func (s *Service) DeleteServer(name string) error {
	r, err := s.Servers()
	if err != nil {
		return err
	}
	updated, err := r.Remove(name)
	if err != nil {
		return err
	}
	if err := s.saveServers(updated); err != nil {
		return err
	}
	slog.Info("manager: server deleted", "server", name)
	return nil
}

// SetEnabled sets the enabled flag of every named server from the main view.
// Unknown names fail the whole call and nothing is saved.
func (s *Service) SetEnabled(enabled bool, names ...string) error {
	r, err := s.Servers()
	if err != nil {
		return err
	}
	var missing []string
	for _, name := range names {
		if r.Index(name) < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", registry.ErrNotFound, strings.Join(missing, ", "))
	}
	for _, name := range names {
		if r, err = r.SetEnabled(name, enabled); err != nil {
			return err
		}
	}
	return s.saveServers(r)
}

// ToggleServer flips the enabled flag of name and notifies listeners that the
// state changed outside the main view. It returns the new state.
func (s *Service) ToggleServer(name string) (bool, error) {
	r, err := s.Servers()
	if err != nil {
		return false, err
	}
	e, ok := r.Find(name)
	if !ok {
		return false, fmt.Errorf("%w: %s", registry.ErrNotFound, name)
	}
	updated, err := r.SetEnabled(name, !e.Enabled)
	if err != nil {
		return false, err
	}
	if err := s.saveServers(updated); err != nil {
		return false, err
	}
	slog.Info("manager: server toggled", "server", name, "enabled", !e.Enabled)
	s.notifier.Notify(bus.Event{Kind: bus.EventServerStateChanged, Servers: updated})
	return !e.Enabled, nil
}

// ---- Settings --------------------------------------------------------------

// Settings returns the persisted settings merged over the defaults.
func (s *Service) Settings() (config.Settings, error) {
	return config.LoadSettings(s.store)
}

// SaveSettings persists settings.
func (s *Service) SaveSettings(settings config.Settings) error {
	if settings.ConfigFilePath == "" {
		return fmt.Errorf("config file path is required")
	}
	return config.SaveSettings(s.store, settings)
}

// SetConfigPath points the manager at a different external file and
// re-imports from it.
func (s *Service) SetConfigPath(path string) (ImportReport, error) {
	if path == "" {
		return ImportReport{}, fmt.Errorf("config file path is required")
	}
	settings, err := s.Settings()
	if err != nil {
		return ImportReport{}, err
	}
	settings.ConfigFilePath = config.ExpandHome(path)
	if err := s.SaveSettings(settings); err != nil {
		return ImportReport{}, err
	}
	slog.Info("manager: config path changed", "path", settings.ConfigFilePath)
	return s.ImportExisting()
}

// ---- Reconciliation --------------------------------------------------------

// ImportReport describes one reconcile run.
type ImportReport struct {
	Path      string
	Changed   bool
	Imported  int      // entries taken from the external file
	Preserved int      // disabled entries the file does not mention
	Dropped   []string // enabled entries the file no longer mentions
	Skipped   string   // why the run was a no-op, if it was
	Servers   registry.Registry
}

// ImportExisting merges the external config file into the registry.
//
// A missing, unreadable or malformed file leaves the registry untouched and
// is reported through ImportReport.Skipped, never as an error. Errors are
// only returned when the local store itself fails.
func (s *Service) ImportExisting() (ImportReport, error) {
	settings, err := s.Settings()
	if err != nil {
		return ImportReport{}, err
	}
	existing, err := s.Servers()
	if err != nil {
		return ImportReport{}, err
	}

	report := ImportReport{Path: settings.ConfigPath(), Servers: existing}
	snap, err := extconfig.Load(report.Path)
	if err != nil {
		report.Skipped = skipReason(err)
		slog.Info("manager: import skipped", "path", report.Path, "reason", report.Skipped, "err", err)
		return report, nil
	}

	merged := reconcile.Reconcile(existing, snap)
	report.Imported = len(snap)
	report.Preserved = len(merged) - len(snap)
	for _, e := range existing {
		if e.Enabled && !snap.Has(e.Name) {
			report.Dropped = append(report.Dropped, e.Name)
		}
	}

	if err := s.saveServers(merged); err != nil {
		return report, err
	}
	if err := s.store.Set(store.KeyInitialized, true); err != nil {
		slog.Warn("manager: could not mark store initialized", "err", err)
	}

	report.Servers = merged
	report.Changed = reconcile.Changed(existing, merged)
	slog.Info("manager: imported servers", "path", report.Path,
		"imported", report.Imported, "preserved", report.Preserved, "dropped", len(report.Dropped))
	if report.Changed {
		s.notifier.Notify(bus.Event{Kind: bus.EventServersImported, Servers: merged})
	}
	return report, nil
}

// Initialized reports whether a reconcile run has ever succeeded.
func (s *Service) Initialized() (bool, error) {
	var ok bool
	if _, err := s.store.Get(store.KeyInitialized, &ok); err != nil {
		return false, fmt.Errorf("load initialized flag: %w", err)
	}
	return ok, nil
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "config file not found"
	case errors.Is(err, extconfig.ErrNoServers):
		return "no mcpServers found in config file"
	case errors.Is(err, extconfig.ErrMalformed):
		return "config file could not be parsed"
	default:
		return "config file could not be read"
	}
}

// ---- Projection & save -----------------------------------------------------

// Preview returns the document SaveConfig would write.
func (s *Service) Preview() (extconfig.Document, error) {
	r, err := s.Servers()
	if err != nil {
		return extconfig.Document{}, err
	}
	return reconcile.Project(r), nil
}

// InSync reports whether the external file already holds exactly what
// SaveConfig would write. A missing file is in sync only with an empty
// projection.
func (s *Service) InSync() (bool, error) {
	settings, err := s.Settings()
	if err != nil {
		return false, err
	}
	want, err := s.Preview()
	if err != nil {
		return false, err
	}
	snap, err := extconfig.Load(settings.ConfigPath())
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, extconfig.ErrNoServers):
		return len(want.MCPServers) == 0, nil
	case err != nil:
		return false, err
	}
	a, err := json.Marshal(want)
	if err != nil {
		return false, err
	}
	b, err := json.Marshal(extconfig.Document{MCPServers: snap})
	if err != nil {
		return false, err
	}
	return bytes.Equal(a, b), nil
}

// Result is the outcome of a save, rendered to the user as-is.
type Result struct {
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	Path         string `json:"path,omitempty"`
	BackupPath   string `json:"backupPath,omitempty"`
	Restarted    bool   `json:"restarted,omitempty"`
	RestartError string `json:"restartError,omitempty"`
}

func failure(err error) Result {
	return Result{Success: false, Error: err.Error()}
}

// SaveConfig writes the enabled servers to the external file, backing up the
// previous file when backups are enabled, and restarts the desktop app when
// restart is set. A restart failure does not undo the save; it is reported in
// Result.RestartError.
func (s *Service) SaveConfig(ctx context.Context, restart bool) Result {
	settings, err := s.Settings()
	if err != nil {
		return failure(err)
	}
	doc, err := s.Preview()
	if err != nil {
		return failure(err)
	}

	wr, err := s.writer.Write(settings.ConfigPath(), doc, settings.BackupsEnabled)
	if err != nil {
		slog.Error("manager: save config failed", "path", settings.ConfigPath(), "err", err)
		return failure(err)
	}
	res := Result{Success: true, Path: wr.Path, BackupPath: wr.BackupPath}

	if restart {
		if err := s.restartApp(ctx); err != nil {
			res.RestartError = err.Error()
		} else {
			res.Restarted = true
		}
	}
	return res
}

// Restart saves the current configuration and restarts the desktop app.
func (s *Service) Restart(ctx context.Context) Result {
	return s.SaveConfig(ctx, true)
}

func (s *Service) restartApp(ctx context.Context) error {
	if s.restarter == nil {
		return fmt.Errorf("restart is not available")
	}
	if err := s.restarter.Restart(ctx); err != nil {
		slog.Error("manager: restart failed", "err", err)
		return err
	}
	s.notifier.Notify(bus.Event{Kind: bus.EventExternalAppRestarted})
	return nil
}
