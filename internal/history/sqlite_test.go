package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	sink, err := NewSQLiteSink(path)
	if err != nil {
		t.Fatalf("open sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	runID := "run-20260831-120000"
	events := []Event{
		{RunID: runID, Type: EventSpawn, OccurredAt: time.Now(), Service: "embeddings", PID: 101},
		{RunID: runID, Type: EventReady, OccurredAt: time.Now(), Service: "embeddings", PID: 101},
		{RunID: runID, Type: EventStartupFailed, OccurredAt: time.Now(), Service: "llm", PID: 103, Detail: "timeout after 120s (log:Application startup complete.)"},
		{RunID: runID, Type: EventOutcome, OccurredAt: time.Now(), Detail: "startup failed: llm"},
	}
	for _, e := range events {
		if err := sink.Send(ctx, e); err != nil {
			t.Fatalf("send %s: %v", e.Type, err)
		}
	}

	var n int
	if err := sink.db.QueryRow(`SELECT COUNT(*) FROM run_history WHERE run_id = ?`, runID).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != len(events) {
		t.Fatalf("expected %d rows, got %d", len(events), n)
	}

	var detail sql.NullString
	if err := sink.db.QueryRow(`SELECT detail FROM run_history WHERE event = 'startup_failed'`).Scan(&detail); err != nil {
		t.Fatalf("query detail: %v", err)
	}
	if !detail.Valid || detail.String == "" {
		t.Fatalf("failure detail not persisted")
	}
}

func TestSQLiteSinkDSNPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.db")
	sink, err := NewSQLiteSink("sqlite://" + path)
	if err != nil {
		t.Fatalf("open with prefix: %v", err)
	}
	_ = sink.Close()
}

func TestSQLiteSinkEmptyDSN(t *testing.T) {
	if _, err := NewSQLiteSink("  "); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}

func TestNopSink(t *testing.T) {
	var s Sink = Nop{}
	if err := s.Send(context.Background(), Event{Type: EventSpawn}); err != nil {
		t.Fatalf("nop send: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("nop close: %v", err)
	}
}
