package orchestrator

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"llmstack/internal/env"
	"llmstack/internal/logger"
	"llmstack/internal/probe"
	"llmstack/internal/service"
	"llmstack/internal/supervisor"
)

func newTestOrchestrator(t *testing.T, descs []service.Descriptor) *Orchestrator {
	t.Helper()
	return New(Config{
		Supervisor: supervisor.New(env.New(), logger.SinkConfig{}),
		Services:   descs,
		Prober:     &probe.Prober{Interval: 20 * time.Millisecond},
		Grace:      time.Second,
		Logger:     slog.New(slog.DiscardHandler),
	})
}

func httpDesc(t *testing.T, name, url string, timeout time.Duration) service.Descriptor {
	t.Helper()
	return service.Descriptor{
		Name:      name,
		Command:   "sleep 30",
		LogPath:   filepath.Join(t.TempDir(), name+".log"),
		Readiness: service.Readiness{Type: service.ReadinessHTTP, URL: url},
		Timeout:   timeout,
	}
}

func logDesc(t *testing.T, name, command, pattern string, timeout time.Duration) service.Descriptor {
	t.Helper()
	return service.Descriptor{
		Name:      name,
		Command:   command,
		LogPath:   filepath.Join(t.TempDir(), name+".log"),
		Readiness: service.Readiness{Type: service.ReadinessLog, Pattern: pattern},
		Timeout:   timeout,
	}
}

func healthyServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(srv.Close)
	return srv
}

// deadURL returns a URL nothing listens on.
func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func assertAllHandlesDown(t *testing.T, o *Orchestrator) {
	t.Helper()
	for _, h := range o.Handles() {
		st := h.State()
		if st != supervisor.StateStopped && st != supervisor.StateExited {
			t.Fatalf("handle %s left in state %v", h.Descriptor().Name, st)
		}
	}
}

func TestStartupFailureShutsDownStartedServices(t *testing.T) {
	// A (http, healthy), B (log marker emitted shortly after start),
	// C (http, never responds) -> StartupFailed{C, timeout}, A and B stopped.
	a := httpDesc(t, "a", healthyServer(t).URL+"/health", 2*time.Second)
	b := logDesc(t, "b", "sh -c 'sleep 0.1; echo READY; sleep 30'", "READY", 2*time.Second)
	c := httpDesc(t, "c", deadURL(t)+"/health", 400*time.Millisecond)

	o := newTestOrchestrator(t, []service.Descriptor{a, b, c})
	out := o.Run(context.Background())

	if out.Kind != OutcomeStartupFailed {
		t.Fatalf("expected StartupFailed, got %v (%v)", out.Kind, out.Err)
	}
	if out.Service != "c" || out.Reason != "timeout" {
		t.Fatalf("expected c/timeout, got %s/%s", out.Service, out.Reason)
	}
	if out.Err == nil || out.Err.Error() == "" {
		t.Fatalf("failure must carry a descriptive error")
	}
	if o.Phase() != PhaseDone {
		t.Fatalf("expected Done, got %v", o.Phase())
	}
	hs := o.Handles()
	if len(hs) != 3 {
		t.Fatalf("expected 3 spawned handles, got %d", len(hs))
	}
	if hs[0].State() != supervisor.StateStopped || hs[1].State() != supervisor.StateStopped {
		t.Fatalf("a and b must be Stopped, got %v/%v", hs[0].State(), hs[1].State())
	}
	assertAllHandlesDown(t, o)
}

func TestSequencingAbortsBeforeNextSpawn(t *testing.T) {
	// B fails; C must never be spawned (ordering invariant).
	a := httpDesc(t, "a", healthyServer(t).URL, 2*time.Second)
	b := httpDesc(t, "b", deadURL(t), 300*time.Millisecond)
	c := httpDesc(t, "c", healthyServer(t).URL, 2*time.Second)

	o := newTestOrchestrator(t, []service.Descriptor{a, b, c})
	out := o.Run(context.Background())

	if out.Kind != OutcomeStartupFailed || out.Service != "b" {
		t.Fatalf("expected StartupFailed{b}, got %v/%s", out.Kind, out.Service)
	}
	if len(o.Handles()) != 2 {
		t.Fatalf("c must not be spawned after b failed; handles=%d", len(o.Handles()))
	}
	assertAllHandlesDown(t, o)
}

func TestProbeFailsFastWhenProcessExits(t *testing.T) {
	// The child dies immediately; the probe must report process exit long
	// before the 5s budget.
	d := httpDesc(t, "crash", deadURL(t), 5*time.Second)
	d.Command = "sleep 0.1"

	o := newTestOrchestrator(t, []service.Descriptor{d})
	start := time.Now()
	out := o.Run(context.Background())
	if out.Kind != OutcomeStartupFailed || out.Reason != "process exited" {
		t.Fatalf("expected StartupFailed/process exited, got %v/%s", out.Kind, out.Reason)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("crash must fail fast, took %v", time.Since(start))
	}
	assertAllHandlesDown(t, o)
}

func TestSpawnErrorFailsRun(t *testing.T) {
	d := httpDesc(t, "ghost", deadURL(t), time.Second)
	d.Command = "no-such-binary-anywhere"

	o := newTestOrchestrator(t, []service.Descriptor{d})
	out := o.Run(context.Background())
	if out.Kind != OutcomeStartupFailed || out.Reason != "spawn failed" {
		t.Fatalf("expected spawn failure, got %v/%s", out.Kind, out.Reason)
	}
	if len(o.Handles()) != 0 {
		t.Fatalf("failed spawn must not leave a handle")
	}
}

func TestUnexpectedExitDuringSteady(t *testing.T) {
	// All three become ready, then b exits on its own -> UnexpectedExit{b},
	// a and c terminated.
	a := httpDesc(t, "a", healthyServer(t).URL, 2*time.Second)
	b := logDesc(t, "b", "sh -c 'echo READY; sleep 0.4'", "READY", 2*time.Second)
	c := httpDesc(t, "c", healthyServer(t).URL, 2*time.Second)

	o := newTestOrchestrator(t, []service.Descriptor{a, b, c})
	out := o.Run(context.Background())

	if out.Kind != OutcomeUnexpectedExit || out.Service != "b" {
		t.Fatalf("expected UnexpectedExit{b}, got %v/%s (%v)", out.Kind, out.Service, out.Err)
	}
	hs := o.Handles()
	if hs[1].State() != supervisor.StateExited {
		t.Fatalf("b must be Exited, got %v", hs[1].State())
	}
	if hs[0].State() != supervisor.StateStopped || hs[2].State() != supervisor.StateStopped {
		t.Fatalf("a and c must be Stopped, got %v/%v", hs[0].State(), hs[2].State())
	}
}

func TestInterruptInSteadyShutsDownCleanly(t *testing.T) {
	a := httpDesc(t, "a", healthyServer(t).URL, 2*time.Second)
	b := httpDesc(t, "b", healthyServer(t).URL, 2*time.Second)

	o := newTestOrchestrator(t, []service.Descriptor{a, b})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan Outcome, 1)
	go func() { done <- o.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for o.Phase() != PhaseSteady {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("steady state not reached")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	out := <-done
	if out.Kind != OutcomeAllReady {
		t.Fatalf("interrupt in steady must report AllReady, got %v", out.Kind)
	}
	assertAllHandlesDown(t, o)
}

func TestInterruptDuringSequencing(t *testing.T) {
	// First service never becomes ready; cancel mid-probe. Cleanup must
	// still run and the started service must not be left behind.
	a := httpDesc(t, "a", deadURL(t), 30*time.Second)

	o := newTestOrchestrator(t, []service.Descriptor{a})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()
	out := o.Run(ctx)
	if out.Kind != OutcomeInterrupted {
		t.Fatalf("expected Interrupted, got %v", out.Kind)
	}
	assertAllHandlesDown(t, o)
}

func TestSnapshotListsAllConfiguredServices(t *testing.T) {
	a := httpDesc(t, "a", healthyServer(t).URL, 2*time.Second)
	b := httpDesc(t, "b", deadURL(t), 300*time.Millisecond)
	c := httpDesc(t, "c", healthyServer(t).URL, 2*time.Second)

	o := newTestOrchestrator(t, []service.Descriptor{a, b, c})
	_ = o.Run(context.Background())

	snap := o.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot must cover all configured services, got %d", len(snap))
	}
	if snap[2].State != "" || snap[2].PID != 0 {
		t.Fatalf("never-spawned service must have empty state, got %+v", snap[2])
	}
	if snap[0].Name != "a" || snap[0].PID == 0 {
		t.Fatalf("spawned service missing pid: %+v", snap[0])
	}
}
