package orchestrator

// Phase is the orchestrator's run phase.
type Phase int32

const (
	PhaseSequencing Phase = iota
	PhaseSteady
	PhaseShuttingDown
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseSequencing:
		return "sequencing"
	case PhaseSteady:
		return "steady"
	case PhaseShuttingDown:
		return "shutting-down"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// OutcomeKind classifies the single terminal result of a run.
type OutcomeKind int

const (
	// OutcomeAllReady: steady state was reached and the run ended on an
	// external interrupt with a clean shutdown.
	OutcomeAllReady OutcomeKind = iota
	// OutcomeInterrupted: an external interrupt arrived before all
	// services were ready; everything started was shut down.
	OutcomeInterrupted
	// OutcomeStartupFailed: a service failed to spawn or become ready.
	OutcomeStartupFailed
	// OutcomeUnexpectedExit: a ready service exited during steady state.
	OutcomeUnexpectedExit
)

// Outcome is the one terminal result the orchestrator reports per run.
type Outcome struct {
	Kind    OutcomeKind
	Service string // the service at fault, when any
	Reason  string // probe result or spawn failure, for StartupFailed
	Err     error
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeAllReady:
		return "all services ready; shut down on request"
	case OutcomeInterrupted:
		return "interrupted during startup"
	case OutcomeStartupFailed:
		return "startup failed: " + o.Service + " (" + o.Reason + ")"
	case OutcomeUnexpectedExit:
		return "unexpected exit: " + o.Service
	default:
		return "unknown outcome"
	}
}
