package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"llmstack/internal/history"
	"llmstack/internal/metrics"
	"llmstack/internal/probe"
	"llmstack/internal/service"
	"llmstack/internal/supervisor"
)

// DefaultGraceWindow is how long a terminated service gets to exit
// voluntarily before escalation to SIGKILL.
const DefaultGraceWindow = 2 * time.Second

const killReapBound = 500 * time.Millisecond

// Config assembles an Orchestrator. Supervisor and Services are required.
type Config struct {
	Supervisor *supervisor.Supervisor
	Services   []service.Descriptor
	Prober     *probe.Prober // nil: 1s tick
	Grace      time.Duration // zero: DefaultGraceWindow
	Logger     *slog.Logger  // nil: slog.Default()
	History    history.Sink  // nil: discard
}

// Orchestrator drives the ordered spawn/wait-for-ready sequence across the
// fixed service list and guarantees coordinated shutdown on every exit
// path. Services claim a shared device-memory budget, so launches are
// strictly sequential: service N+1 is never spawned before N is ready.
type Orchestrator struct {
	sup    *supervisor.Supervisor
	prober *probe.Prober
	descs  []service.Descriptor
	grace  time.Duration
	log    *slog.Logger
	sink   history.Sink
	runID  string

	mu      sync.Mutex
	phase   Phase
	handles []*supervisor.Handle // every handle that reached Starting, in start order

	shutdownOnce sync.Once
}

func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		sup:    cfg.Supervisor,
		prober: cfg.Prober,
		descs:  cfg.Services,
		grace:  cfg.Grace,
		log:    cfg.Logger,
		sink:   cfg.History,
	}
	if o.prober == nil {
		o.prober = &probe.Prober{}
	}
	if o.grace <= 0 {
		o.grace = DefaultGraceWindow
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	if o.sink == nil {
		o.sink = history.Nop{}
	}
	return o
}

func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
}

func (o *Orchestrator) addHandle(h *supervisor.Handle) {
	o.mu.Lock()
	o.handles = append(o.handles, h)
	o.mu.Unlock()
}

// Handles returns the handles spawned so far, in start order.
func (o *Orchestrator) Handles() []*supervisor.Handle {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*supervisor.Handle, len(o.handles))
	copy(out, o.handles)
	return out
}

// ServiceStatus is a point-in-time view of one service, for the status API.
type ServiceStatus struct {
	Name      string    `json:"name"`
	State     string    `json:"state"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	LogPath   string    `json:"log_path"`
}

// Snapshot reports every configured service; services not yet spawned are
// listed with an empty state.
func (o *Orchestrator) Snapshot() []ServiceStatus {
	hs := o.Handles()
	byName := make(map[string]*supervisor.Handle, len(hs))
	for _, h := range hs {
		byName[h.Descriptor().Name] = h
	}
	out := make([]ServiceStatus, 0, len(o.descs))
	for _, d := range o.descs {
		st := ServiceStatus{Name: d.Name, LogPath: d.LogPath}
		if h, ok := byName[d.Name]; ok {
			st.State = h.State().String()
			st.PID = h.PID()
			st.StartedAt = h.StartedAt()
		}
		out = append(out, st)
	}
	return out
}

// Run executes one launch sequence. Shutdown of everything started is
// guaranteed on every return path and performed exactly once.
func (o *Orchestrator) Run(ctx context.Context) Outcome {
	o.runID = time.Now().UTC().Format("20060102T150405Z") + "-" + strconv.Itoa(os.Getpid())
	outcome := o.sequence(ctx)
	o.shutdown()
	o.setPhase(PhaseDone)
	o.record(history.EventOutcome, "", 0, outcome.String())
	return outcome
}

func (o *Orchestrator) sequence(ctx context.Context) Outcome {
	o.setPhase(PhaseSequencing)
	for _, d := range o.descs {
		if ctx.Err() != nil {
			return Outcome{Kind: OutcomeInterrupted}
		}
		o.log.Info("starting service", "service", d.Name, "log", d.LogPath)
		h, err := o.sup.Spawn(d)
		if err != nil {
			metrics.IncStartupFailure(d.Name, "spawn")
			o.record(history.EventStartupFailed, d.Name, 0, err.Error())
			return Outcome{
				Kind:    OutcomeStartupFailed,
				Service: d.Name,
				Reason:  "spawn failed",
				Err:     err,
			}
		}
		o.addHandle(h)
		metrics.IncSpawn(d.Name)
		o.record(history.EventSpawn, d.Name, h.PID(), "")

		started := time.Now()
		res := o.prober.Wait(ctx, probe.ForDescriptor(d), func() bool { return o.sup.IsAlive(h) }, d.Timeout)
		switch res {
		case probe.Ready:
			h.MarkReady()
			elapsed := time.Since(started)
			metrics.IncReady(d.Name)
			metrics.ObserveReadinessDuration(d.Name, elapsed.Seconds())
			metrics.SetUp(d.Name, true)
			o.record(history.EventReady, d.Name, h.PID(), "")
			o.log.Info("service ready", "service", d.Name, "elapsed", elapsed.Round(time.Millisecond))
		case probe.Canceled:
			return Outcome{Kind: OutcomeInterrupted}
		default: // ProcessExited or Timeout
			h.MarkFailed()
			metrics.IncStartupFailure(d.Name, failureLabel(res))
			detail := fmt.Sprintf("%s after %v (%s)", res, d.Timeout, d.Readiness.Describe())
			o.record(history.EventStartupFailed, d.Name, h.PID(), detail)
			o.log.Error("service failed to start",
				"service", d.Name, "reason", res.String(),
				"probe", d.Readiness.Describe(), "timeout", d.Timeout, "log", d.LogPath)
			return Outcome{
				Kind:    OutcomeStartupFailed,
				Service: d.Name,
				Reason:  res.String(),
				Err: fmt.Errorf("service %s did not become ready: %s (probe %s, budget %v); see %s",
					d.Name, res, d.Readiness.Describe(), d.Timeout, d.LogPath),
			}
		}
	}

	o.setPhase(PhaseSteady)
	o.log.Info("all services ready", "count", len(o.descs))
	return o.steady(ctx)
}

// steady blocks until any ready service exits or the run is interrupted.
// This is the only point observing several independent event sources at
// once; it multiplexes each handle's exit channel and the run context.
func (o *Orchestrator) steady(ctx context.Context) Outcome {
	hs := o.Handles()
	exited := make(chan *supervisor.Handle, len(hs))
	for _, h := range hs {
		go func(h *supervisor.Handle) {
			<-h.Done()
			exited <- h
		}(h)
	}
	select {
	case h := <-exited:
		name := h.Descriptor().Name
		metrics.SetUp(name, false)
		o.record(history.EventExited, name, h.PID(), errString(h.ExitErr()))
		o.log.Error("service exited unexpectedly",
			"service", name, "err", h.ExitErr(), "log", h.Descriptor().LogPath)
		return Outcome{
			Kind:    OutcomeUnexpectedExit,
			Service: name,
			Err:     fmt.Errorf("service %s exited unexpectedly; see %s", name, h.Descriptor().LogPath),
		}
	case <-ctx.Done():
		o.log.Info("interrupt received; shutting down")
		return Outcome{Kind: OutcomeAllReady}
	}
}

// shutdown terminates every started service, last-started first. Services
// get the grace window to exit voluntarily; the rest are killed. Signaling
// is best-effort throughout so a secondary failure never masks the
// original cause.
func (o *Orchestrator) shutdown() {
	o.shutdownOnce.Do(func() {
		hs := o.Handles()
		o.setPhase(PhaseShuttingDown)
		if len(hs) == 0 {
			return
		}
		o.log.Info("stopping services", "count", len(hs))
		for i := len(hs) - 1; i >= 0; i-- {
			if err := o.sup.Signal(hs[i], supervisor.SignalTerminate); err != nil {
				o.log.Warn("terminate failed", "service", hs[i].Descriptor().Name, "err", err)
			}
		}
		deadline := time.Now().Add(o.grace)
		for i := len(hs) - 1; i >= 0; i-- {
			h := hs[i]
			name := h.Descriptor().Name
			bound := time.Until(deadline)
			if bound < 0 {
				bound = 0
			}
			if !o.sup.Reap(h, bound) {
				o.log.Warn("grace window elapsed; killing", "service", name)
				if err := o.sup.Signal(h, supervisor.SignalKill); err != nil {
					o.log.Warn("kill failed", "service", name, "err", err)
				}
				if !o.sup.Reap(h, killReapBound) {
					o.log.Error("service did not exit after SIGKILL", "service", name, "pid", h.PID())
				}
			}
			metrics.SetUp(name, false)
			o.record(history.EventStopped, name, h.PID(), h.State().String())
			o.log.Info("service stopped", "service", name, "state", h.State().String())
		}
	})
}

func (o *Orchestrator) record(t history.EventType, svc string, pid int, detail string) {
	e := history.Event{
		RunID:      o.runID,
		Type:       t,
		OccurredAt: time.Now(),
		Service:    svc,
		PID:        pid,
		Detail:     detail,
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := o.sink.Send(ctx, e); err != nil {
		o.log.Warn("history sink failed", "event", string(t), "err", err)
	}
}

func failureLabel(r probe.Result) string {
	if r == probe.ProcessExited {
		return "process_exited"
	}
	return "timeout"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
