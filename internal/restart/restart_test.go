package restart

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// fakeProcs simulates a process table. Terminating an app PID removes it
// after exitAfter further ListProcesses calls.
type fakeProcs struct {
	mu        sync.Mutex
	app       []int
	managers  []int
	exitAfter int
	listErr   error
	termErr   error
	launchErr error

	calls      []string
	terminated []int
	pending    int
}

func (f *fakeProcs) ListProcesses(_ context.Context, name string) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name == "mcpmanager" {
		f.calls = append(f.calls, "list-managers")
		return append([]int(nil), f.managers...), nil
	}
	f.calls = append(f.calls, "list-app")
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.pending > 0 {
		f.pending--
		if f.pending == 0 {
			f.app = nil
		}
	}
	return append([]int(nil), f.app...), nil
}

func (f *fakeProcs) Terminate(_ context.Context, pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, pid)
	if f.termErr != nil {
		return f.termErr
	}
	for _, p := range f.app {
		if p == pid {
			f.calls = append(f.calls, "terminate-app")
			f.pending = f.exitAfter + 1
			return nil
		}
	}
	f.calls = append(f.calls, "terminate-manager")
	return nil
}

func (f *fakeProcs) Launch(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "launch")
	return f.launchErr
}

func newTestRestarter(f *fakeProcs) *Restarter {
	r := NewRestarter(f, "Claude", "mcpmanager")
	r.selfPID = 100
	r.parentPID = 99
	r.SetBackOff(func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 5)
	})
	return r
}

func TestRestart_StopsThenLaunches(t *testing.T) {
	f := &fakeProcs{app: []int{42}, exitAfter: 1}
	if err := newTestRestarter(f).Restart(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"list-managers", "list-app", "terminate-app", "list-app", "list-app", "launch"}
	if !reflect.DeepEqual(f.calls, want) {
		t.Errorf("unexpected call sequence:\n got %v\nwant %v", f.calls, want)
	}
}

func TestRestart_NotRunningJustLaunches(t *testing.T) {
	f := &fakeProcs{}
	if err := newTestRestarter(f).Restart(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"list-managers", "list-app", "launch"}
	if !reflect.DeepEqual(f.calls, want) {
		t.Errorf("unexpected call sequence: %v", f.calls)
	}
}

func TestRestart_SkipsOwnProcessAndParent(t *testing.T) {
	f := &fakeProcs{managers: []int{99, 100, 7, 8}}
	if err := newTestRestarter(f).Restart(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, pid := range f.terminated {
		if pid == 100 || pid == 99 {
			t.Fatalf("restart terminated its own process or parent (pid %d)", pid)
		}
	}
	if len(f.terminated) != 2 {
		t.Errorf("expected the two other instances to be closed, got %v", f.terminated)
	}
}

func TestRestart_NoManagerName(t *testing.T) {
	f := &fakeProcs{managers: []int{7}}
	r := newTestRestarter(f)
	r.managerName = ""
	if err := r.Restart(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.terminated) != 0 {
		t.Errorf("expected no instance to be closed, got %v", f.terminated)
	}
}

func TestRestart_LaunchesAfterExitTimeout(t *testing.T) {
	// The app never exits within the retry budget.
	f := &fakeProcs{app: []int{42}, exitAfter: 100}
	if err := newTestRestarter(f).Restart(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.calls[len(f.calls)-1] != "launch" {
		t.Errorf("expected a launch after the wait gave up, got %v", f.calls)
	}
}

func TestRestart_Errors(t *testing.T) {
	boom := errors.New("boom")

	t.Run("list", func(t *testing.T) {
		f := &fakeProcs{listErr: boom}
		if err := newTestRestarter(f).Restart(context.Background()); !errors.Is(err, boom) {
			t.Errorf("expected list error, got %v", err)
		}
	})
	t.Run("terminate", func(t *testing.T) {
		f := &fakeProcs{app: []int{42}, termErr: boom}
		if err := newTestRestarter(f).Restart(context.Background()); !errors.Is(err, boom) {
			t.Errorf("expected terminate error, got %v", err)
		}
	})
	t.Run("launch", func(t *testing.T) {
		f := &fakeProcs{launchErr: boom}
		if err := newTestRestarter(f).Restart(context.Background()); !errors.Is(err, boom) {
			t.Errorf("expected launch error, got %v", err)
		}
	})
	t.Run("cancelled", func(t *testing.T) {
		f := &fakeProcs{app: []int{42}, exitAfter: 100}
		r := newTestRestarter(f)
		r.SetBackOff(func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) })
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := r.Restart(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context error, got %v", err)
		}
	})
}

// ─── ExecController ────────────────────────────────────────────────────────

func TestParsePIDs(t *testing.T) {
	got := parsePIDs("123\n456\n\nnot-a-pid\n789\n")
	want := []int{123, 456, 789}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if parsePIDs("") != nil {
		t.Error("expected nil for empty output")
	}
}

func TestExecController_LaunchFallsBack(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	c := NewExecController([][]string{
		{"/nonexistent/launcher"},
		{"sh", "-c", "exit 3"},
		{"sh", "-c", "exit 0"},
	})
	c.settle = time.Second
	if err := c.Launch(context.Background()); err != nil {
		t.Fatalf("expected the last launcher to succeed, got %v", err)
	}
}

func TestExecController_LaunchAllFail(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	c := NewExecController([][]string{{"sh", "-c", "exit 1"}, {}})
	c.settle = time.Second
	if err := c.Launch(context.Background()); err == nil {
		t.Fatal("expected an error when every launcher fails")
	}
	if err := NewExecController(nil).Launch(context.Background()); err == nil {
		t.Fatal("expected an error without launch commands")
	}
}

// startProcess runs argv until the test ends. The returned channel is closed
// when the process exits.
func startProcess(t *testing.T, argv ...string) (*exec.Cmd, <-chan struct{}) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses pgrep")
	}
	if _, err := exec.LookPath("pgrep"); err != nil {
		t.Skip("pgrep not available")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		t.Fatalf("start %v: %v", argv, err)
	}
	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		<-exited
	})
	return cmd, exited
}

func TestExecController_ListMatchesProcessName(t *testing.T) {
	cmd, _ := startProcess(t, "sleep", "30")
	pids, err := NewExecController(nil).ListProcesses(context.Background(), "sleep")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, pid := range pids {
		if pid == cmd.Process.Pid {
			return
		}
	}
	t.Errorf("expected pid %d among %v", cmd.Process.Pid, pids)
}

func TestExecController_CommandLineMentionIsNotAnInstance(t *testing.T) {
	bystander, exited := startProcess(t, "sh", "-c", "sleep 30", "viewer-of-/home/u/.mcpmanager/mcp-manager.json")

	c := NewExecController(nil)
	pids, err := c.ListProcesses(context.Background(), "mcpmanager")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, pid := range pids {
		if pid == bystander.Process.Pid {
			t.Fatalf("pid %d matched only by its command line", pid)
		}
	}

	NewRestarter(c, "NoSuchAppXYZ", "mcpmanager").closeOtherInstances(context.Background())
	select {
	case <-exited:
		t.Fatal("bystander process was terminated")
	case <-time.After(300 * time.Millisecond):
	}
}
