// Package dependency wires the mcpmanager services using go.uber.org/dig.
package dependency

import (
	"go.uber.org/dig"

	"github.com/mcpmanager/mcpmanager/internal/bus"
	"github.com/mcpmanager/mcpmanager/internal/config"
	"github.com/mcpmanager/mcpmanager/internal/extconfig"
	"github.com/mcpmanager/mcpmanager/internal/manager"
	"github.com/mcpmanager/mcpmanager/internal/restart"
	"github.com/mcpmanager/mcpmanager/internal/store"
)

// Container holds the resolved service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	store   store.Store
	events  *bus.EventBus
	service *manager.Service
}

func (c *Container) Store() store.Store        { return c.store }
func (c *Container) Events() *bus.EventBus     { return c.events }
func (c *Container) Service() *manager.Service { return c.service }

// StorePath is a named string type so dig can tell the store location apart
// from other strings.
type StorePath string

// Options select the backing store. A nil Store means a FileStore at StorePath.
type Options struct {
	StorePath string
	Store     store.Store
}

// New builds and wires all services.
func New(opts Options) (*Container, error) {
	d := dig.New()

	if err := d.Provide(func() StorePath { return StorePath(opts.StorePath) }); err != nil {
		return nil, err
	}
	if opts.Store != nil {
		if err := d.Provide(func() store.Store { return opts.Store }); err != nil {
			return nil, err
		}
	} else if err := d.Provide(newFileStore); err != nil {
		return nil, err
	}
	if err := d.Provide(newEventBus); err != nil {
		return nil, err
	}
	if err := d.Provide(extconfig.NewWriter); err != nil {
		return nil, err
	}
	if err := d.Provide(newRestarter); err != nil {
		return nil, err
	}
	if err := d.Provide(newService); err != nil {
		return nil, err
	}

	var result *Container
	err := d.Invoke(func(st store.Store, events *bus.EventBus, svc *manager.Service) {
		result = &Container{
			store:   st,
			events:  events,
			service: svc,
		}
	})
	return result, err
}

func newFileStore(p StorePath) store.Store {
	path := string(p)
	if path == "" {
		path = config.StorePath()
	}
	return store.NewFileStore(config.ExpandHome(path))
}

func newEventBus() *bus.EventBus {
	return bus.NewEventBus(32)
}

// newRestarter reads the external app settings once; a settings change takes
// effect on the next process start.
func newRestarter(st store.Store) (manager.Restarter, error) {
	settings, err := config.LoadSettings(st)
	if err != nil {
		return nil, err
	}
	app := settings.ExternalApp
	procs := restart.NewExecController(app.LaunchCommands)
	managerName := app.ManagerProcessName
	if managerName == "" {
		managerName = restart.ExecutableName()
	}
	return restart.NewRestarter(procs, app.ProcessName, managerName), nil
}

func newService(st store.Store, events *bus.EventBus, w *extconfig.Writer, r manager.Restarter) *manager.Service {
	return manager.NewService(st, events, w, r)
}
