package restart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ProcessController finds, stops and starts processes on behalf of Restarter.
type ProcessController interface {
	// ListProcesses returns the PIDs whose process name equals name exactly.
	ListProcesses(ctx context.Context, name string) ([]int, error)
	Terminate(ctx context.Context, pid int) error
	// Launch starts the external application.
	Launch(ctx context.Context) error
}

// ExecController implements ProcessController with pgrep, signals and the
// configured launch commands.
type ExecController struct {
	launchCommands [][]string
	settle         time.Duration
}

// NewExecController returns a controller that launches the application with
// the first of launchCommands that succeeds.
func NewExecController(launchCommands [][]string) *ExecController {
	return &ExecController{launchCommands: launchCommands, settle: 2 * time.Second}
}

// Linux keeps only the first 15 bytes of a process name.
const linuxCommLen = 15

// ListProcesses implements ProcessController.
func (c *ExecController) ListProcesses(ctx context.Context, name string) ([]int, error) {
	if runtime.GOOS == "linux" && len(name) > linuxCommLen {
		name = name[:linuxCommLen]
	}
	out, err := exec.CommandContext(ctx, "pgrep", "-x", name).Output()
	if err != nil {
		var exitErr *exec.ExitError
		// pgrep exits 1 when nothing matched.
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return nil, nil
		}
		return nil, fmt.Errorf("pgrep -x %q: %w", name, err)
	}
	return parsePIDs(string(out)), nil
}

// Terminate implements ProcessController.
func (c *ExecController) Terminate(_ context.Context, pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("terminate process %d: %w", pid, err)
	}
	return nil
}

// Launch implements ProcessController.
func (c *ExecController) Launch(ctx context.Context) error {
	if len(c.launchCommands) == 0 {
		return fmt.Errorf("no launch command configured")
	}
	var errs []error
	for _, argv := range c.launchCommands {
		if len(argv) == 0 {
			continue
		}
		// Not tied to ctx: the application must outlive this process.
		cmd := exec.Command(argv[0], argv[1:]...)
		if err := cmd.Start(); err != nil {
			slog.Warn("restart: launch failed", "cmd", strings.Join(argv, " "), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", argv[0], err))
			continue
		}
		// Launchers such as "open" exit quickly and report failure through
		// their exit status; an app binary keeps running past the settle time.
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		select {
		case err := <-done:
			if err != nil {
				slog.Warn("restart: launcher failed", "cmd", strings.Join(argv, " "), "err", err)
				errs = append(errs, fmt.Errorf("%s: %w", argv[0], err))
				continue
			}
		case <-time.After(c.settle):
		case <-ctx.Done():
			return ctx.Err()
		}
		slog.Info("restart: launched", "cmd", strings.Join(argv, " "))
		return nil
	}
	return fmt.Errorf("launch external app: %w", errors.Join(errs...))
}

func parsePIDs(out string) []int {
	var pids []int
	for _, field := range strings.Fields(out) {
		if pid, err := strconv.Atoi(field); err == nil {
			pids = append(pids, pid)
		}
	}
	return pids
}

// ExecutableName returns the process name of the running binary, or "" when
// it cannot be determined.
func ExecutableName() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Base(exe)
}
