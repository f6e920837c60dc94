package main

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"llmstack/internal/orchestrator"
)

func TestHelpListsCommands(t *testing.T) {
	root := buildRoot()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--help"})
	if err := root.Execute(); err != nil {
		t.Fatalf("help should succeed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"up", "config", "llmstack"} {
		if !strings.Contains(out, want) {
			t.Fatalf("help output missing %q: %s", want, out)
		}
	}
}

func TestConfigCommandPrintsPlan(t *testing.T) {
	// Plan output must not require model files on disk.
	root := buildRoot()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"config"})
	if err := root.Execute(); err != nil {
		t.Fatalf("config failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"[embeddings]", "[reranker]", "[llm]", "llama-server", "vllm serve"} {
		if !strings.Contains(out, want) {
			t.Fatalf("plan output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigCommandEnvOverride(t *testing.T) {
	t.Setenv("LLMSTACK_CTX_SIZE", "4096")
	root := buildRoot()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"config"})
	if err := root.Execute(); err != nil {
		t.Fatalf("config failed: %v", err)
	}
	if !strings.Contains(buf.String(), "ctx_size    = 4096") {
		t.Fatalf("env override not reflected:\n%s", buf.String())
	}
}

func TestUpMissingConfigFileExitsConfig(t *testing.T) {
	root := buildRoot()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"up", "--config", "/nonexistent/llmstack.toml"})
	err := root.Execute()
	var ee *exitError
	if !errors.As(err, &ee) || ee.code != exitConfig {
		t.Fatalf("expected exitConfig, got %v", err)
	}
}

func TestOutcomeErrorMapping(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	cases := []struct {
		outcome orchestrator.Outcome
		code    int // 0 means nil error expected
	}{
		{orchestrator.Outcome{Kind: orchestrator.OutcomeAllReady}, 0},
		{orchestrator.Outcome{Kind: orchestrator.OutcomeInterrupted}, 0},
		{orchestrator.Outcome{Kind: orchestrator.OutcomeStartupFailed, Service: "llm", Err: errors.New("boom")}, exitStartupFailed},
		{orchestrator.Outcome{Kind: orchestrator.OutcomeUnexpectedExit, Service: "reranker", Err: errors.New("gone")}, exitUnexpectedExit},
	}
	for _, tc := range cases {
		err := outcomeError(log, tc.outcome)
		if tc.code == 0 {
			if err != nil {
				t.Fatalf("%s: expected nil, got %v", tc.outcome, err)
			}
			continue
		}
		var ee *exitError
		if !errors.As(err, &ee) || ee.code != tc.code {
			t.Fatalf("%s: expected code %d, got %v", tc.outcome, tc.code, err)
		}
	}
}
