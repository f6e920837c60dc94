package supervisor

import (
	"io"
	"os/exec"
	"sync"
	"time"

	"llmstack/internal/service"
)

// State is the lifecycle state of a spawned service.
//
// Starting -> (Ready | Failed) -> ... -> Stopped | Exited
//
// Stopped means the launcher shut the service down; Exited means the
// process terminated on its own.
type State int32

const (
	StateStarting State = iota
	StateReady
	StateFailed
	StateExited
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateExited:
		return "exited"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Handle tracks one spawned service process. It is created by Spawn and
// owned by the Supervisor/Orchestrator; the monitor goroutine closes done
// after reaping the child via cmd.Wait.
type Handle struct {
	desc service.Descriptor
	cmd  *exec.Cmd

	mu            sync.Mutex
	state         State
	pid           int
	startedAt     time.Time
	exitedAt      time.Time
	exitErr       error
	stopRequested bool

	done chan struct{}
	logw io.WriteCloser
}

func (h *Handle) Descriptor() service.Descriptor { return h.desc }

// Done is closed once the child has been reaped by the monitor goroutine.
func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) PID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pid
}

func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handle) StartedAt() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.startedAt
}

func (h *Handle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitErr
}

// MarkReady transitions Starting -> Ready. No-op in any other state.
func (h *Handle) MarkReady() {
	h.mu.Lock()
	if h.state == StateStarting {
		h.state = StateReady
	}
	h.mu.Unlock()
}

// MarkFailed transitions Starting -> Failed. No-op in any other state.
func (h *Handle) MarkFailed() {
	h.mu.Lock()
	if h.state == StateStarting {
		h.state = StateFailed
	}
	h.mu.Unlock()
}

func (h *Handle) setStopRequested() {
	h.mu.Lock()
	h.stopRequested = true
	h.mu.Unlock()
}

// markExited records the child's exit. A handle that was asked to stop
// ends in Stopped; one that died on its own ends in Exited.
func (h *Handle) markExited(err error) {
	h.mu.Lock()
	h.exitErr = err
	h.exitedAt = time.Now()
	if h.stopRequested {
		h.state = StateStopped
	} else {
		h.state = StateExited
	}
	h.mu.Unlock()
}
