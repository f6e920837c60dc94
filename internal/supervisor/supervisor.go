package supervisor

import (
	"errors"
	"fmt"
	"syscall"
	"time"

	"llmstack/internal/env"
	"llmstack/internal/logger"
	"llmstack/internal/service"
)

// SignalKind selects graceful or forceful termination.
type SignalKind int

const (
	SignalTerminate SignalKind = iota
	SignalKill
)

// Supervisor spawns service processes with their combined output redirected
// to the descriptor's log file and tracks them via Handles. It never blocks
// on a child's completion; a monitor goroutine reaps each child.
type Supervisor struct {
	env  *env.Env
	sink logger.SinkConfig
}

func New(e *env.Env, sink logger.SinkConfig) *Supervisor {
	if e == nil {
		e = env.New()
	}
	return &Supervisor{env: e, sink: sink}
}

// Spawn starts the descriptor's command in its own process group with
// stdout and stderr redirected to the log sink. The returned handle is in
// state Starting. Spawn does not wait for the child beyond cmd.Start.
func (s *Supervisor) Spawn(d service.Descriptor) (*Handle, error) {
	cmd := d.BuildCommand()
	if d.WorkDir != "" {
		cmd.Dir = d.WorkDir
	}
	cmd.Env = s.env.Merge(d.Env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	w, err := s.sink.Writer(d.LogPath)
	if err != nil {
		return nil, fmt.Errorf("open log sink for %s: %w", d.Name, err)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	if err := cmd.Start(); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("spawn %s: %w", d.Name, err)
	}

	h := &Handle{
		desc:      d,
		cmd:       cmd,
		state:     StateStarting,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		done:      make(chan struct{}),
		logw:      w,
	}
	go s.monitor(h)
	return h, nil
}

// monitor is the single waiter on the child. It reaps the process, records
// the final state and releases the log writer before signaling done.
func (s *Supervisor) monitor(h *Handle) {
	err := h.cmd.Wait()
	h.markExited(err)
	if h.logw != nil {
		_ = h.logw.Close()
	}
	close(h.done)
}

// IsAlive reports whether the child is still running. Non-blocking.
func (s *Supervisor) IsAlive(h *Handle) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	pid := h.PID()
	if pid <= 0 {
		return false
	}
	// A quickly-exiting child can linger as a zombie until the monitor
	// reaps it; treat that as not alive.
	if isZombie(pid) {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

// Signal sends a termination request to the child's process group.
// Signaling an already-exited handle is a no-op, not an error.
func (s *Supervisor) Signal(h *Handle, kind SignalKind) error {
	h.setStopRequested()
	if !s.IsAlive(h) {
		return nil
	}
	sig := syscall.SIGTERM
	if kind == SignalKill {
		sig = syscall.SIGKILL
	}
	if err := syscall.Kill(-h.PID(), sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("signal %s: %w", h.desc.Name, err)
	}
	return nil
}

// Reap waits up to bound for the monitor to confirm the child's exit.
// Returns true once the process is gone.
func (s *Supervisor) Reap(h *Handle, bound time.Duration) bool {
	select {
	case <-h.done:
		return true
	case <-time.After(bound):
		return false
	}
}
