// Package bus carries fire-and-forget notifications from the manager core to
// whatever presents state to the user.
package bus

import (
	"time"

	"github.com/mcpmanager/mcpmanager/internal/registry"
)

type EventKind string

const (
	// EventServersImported follows a reconcile run that changed the registry.
	EventServersImported EventKind = "servers-imported"
	// EventServerStateChanged follows a quick toggle made outside the main view.
	EventServerStateChanged EventKind = "server-state-changed"
	// EventExternalAppRestarted follows a successful restart of the desktop app.
	EventExternalAppRestarted EventKind = "claude-restarted"
)

// Event is one notification. Servers is set for registry events.
type Event struct {
	Kind    EventKind
	Servers registry.Registry
	At      time.Time
}

// Message returns a short human-readable description of the event.
func (e Event) Message() string {
	switch e.Kind {
	case EventServersImported:
		return "Servers imported from existing Claude config"
	case EventServerStateChanged:
		return "Server state changed"
	case EventExternalAppRestarted:
		return "Claude restarted"
	}
	return string(e.Kind)
}
