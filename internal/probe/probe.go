package probe

import (
	"context"
	"time"

	"llmstack/internal/service"
)

// Result is the single unambiguous outcome of a readiness wait.
type Result int

const (
	// Ready means the service's readiness check succeeded.
	Ready Result = iota
	// ProcessExited means the service died before becoming ready.
	ProcessExited
	// Timeout means the startup budget elapsed without readiness.
	Timeout
	// Canceled means the surrounding run was interrupted mid-probe.
	Canceled
)

func (r Result) String() string {
	switch r {
	case Ready:
		return "ready"
	case ProcessExited:
		return "process exited"
	case Timeout:
		return "timeout"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// DefaultInterval is the poll tick shared by both strategies.
const DefaultInterval = time.Second

// Checker is one readiness strategy. Check reports whether the service is
// usable; transient errors count as not-ready and are bounded by the
// caller's deadline.
type Checker interface {
	Check() (bool, error)
	Describe() string
}

// ForDescriptor builds the checker declared by the descriptor. The
// descriptor is assumed validated (exactly one strategy set).
func ForDescriptor(d service.Descriptor) Checker {
	if d.Readiness.Type == service.ReadinessHTTP {
		return &HTTPChecker{URL: d.Readiness.URL}
	}
	return &LogPatternChecker{Path: d.LogPath, Pattern: d.Readiness.Pattern}
}

// Prober polls a single service until ready, dead, timed out or canceled.
type Prober struct {
	Interval time.Duration // poll tick; DefaultInterval when zero
}

// Wait runs the poll loop: on every tick it first verifies the process is
// still alive, then runs the readiness check. It returns as soon as one of
// the four results is known; it never returns a partial answer.
func (p *Prober) Wait(ctx context.Context, check Checker, alive func() bool, timeout time.Duration) Result {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	deadline := time.Now().Add(timeout)
	for {
		if ctx.Err() != nil {
			return Canceled
		}
		if !alive() {
			return ProcessExited
		}
		if ok, err := check.Check(); err == nil && ok {
			return Ready
		}
		if time.Now().After(deadline) {
			return Timeout
		}
		select {
		case <-ctx.Done():
			return Canceled
		case <-time.After(interval):
		}
	}
}
