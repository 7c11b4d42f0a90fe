// Package restart stops and relaunches the desktop application so it picks
// up a rewritten config file.
package restart

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
)

// Restarter runs the restart flow:
//
//  1. terminate other manager instances (never this process or its parent);
//  2. if the application is not running, launch it and stop;
//  3. terminate the running application;
//  4. wait for it to exit;
//  5. launch it again.
type Restarter struct {
	procs       ProcessController
	appName     string
	managerName string
	selfPID     int
	parentPID   int
	newBackOff  func() backoff.BackOff
}

// NewRestarter returns a Restarter for the application whose process name is
// appName. Other manager instances are the processes named managerName; an
// empty managerName skips that step.
func NewRestarter(procs ProcessController, appName, managerName string) *Restarter {
	return &Restarter{
		procs:       procs,
		appName:     appName,
		managerName: managerName,
		selfPID:     os.Getpid(),
		parentPID:   os.Getppid(),
		newBackOff:  defaultBackOff,
	}
}

// SetBackOff replaces the policy used while waiting for the application to exit.
func (r *Restarter) SetBackOff(fn func() backoff.BackOff) { r.newBackOff = fn }

func defaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 10 * time.Second
	return bo
}

// Restart runs the restart flow. Failing to close other manager instances is
// logged and ignored; any other failure is returned.
func (r *Restarter) Restart(ctx context.Context) error {
	r.closeOtherInstances(ctx)

	pids, err := r.procs.ListProcesses(ctx, r.appName)
	if err != nil {
		return fmt.Errorf("find %s: %w", r.appName, err)
	}
	if len(pids) == 0 {
		slog.Info("restart: app is not running, starting it", "app", r.appName)
		return r.procs.Launch(ctx)
	}

	slog.Info("restart: stopping app", "app", r.appName, "pids", pids)
	for _, pid := range pids {
		if err := r.procs.Terminate(ctx, pid); err != nil {
			return fmt.Errorf("stop %s: %w", r.appName, err)
		}
	}
	if err := r.waitForExit(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("restart: app did not exit in time, launching anyway", "app", r.appName, "err", err)
	}
	return r.procs.Launch(ctx)
}

func (r *Restarter) closeOtherInstances(ctx context.Context) {
	if r.managerName == "" {
		return
	}
	pids, err := r.procs.ListProcesses(ctx, r.managerName)
	if err != nil {
		slog.Warn("restart: could not list manager instances", "err", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	closed := 0
	for _, pid := range pids {
		if pid == r.selfPID || pid == r.parentPID {
			continue
		}
		closed++
		pid := pid
		g.Go(func() error {
			return r.procs.Terminate(gctx, pid)
		})
	}
	if closed == 0 {
		return
	}
	if err := g.Wait(); err != nil {
		slog.Warn("restart: error closing other instances", "err", err)
		return
	}
	slog.Info("restart: closed other instances", "count", closed)
}

func (r *Restarter) waitForExit(ctx context.Context) error {
	return backoff.Retry(func() error {
		pids, err := r.procs.ListProcesses(ctx, r.appName)
		if err != nil {
			return backoff.Permanent(err)
		}
		if len(pids) > 0 {
			return fmt.Errorf("%s still running (pids %v)", r.appName, pids)
		}
		return nil
	}, backoff.WithContext(r.newBackOff(), ctx))
}
