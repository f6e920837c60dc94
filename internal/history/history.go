package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event recorded for a run.
type EventType string

const (
	EventSpawn         EventType = "spawn"
	EventReady         EventType = "ready"
	EventStartupFailed EventType = "startup_failed"
	EventExited        EventType = "exited"
	EventStopped       EventType = "stopped"
	EventOutcome       EventType = "outcome"
)

// Event is one lifecycle event of one run. Service is empty for run-level
// events (outcome).
type Event struct {
	RunID      string    `json:"run_id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Service    string    `json:"service,omitempty"`
	PID        int       `json:"pid,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for run history events. Recording is best-effort;
// a failing sink never affects orchestration.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// Nop discards all events. Used when history is disabled.
type Nop struct{}

func (Nop) Send(context.Context, Event) error { return nil }
func (Nop) Close() error                      { return nil }
