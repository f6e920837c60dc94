package env

import (
	"strings"
	"testing"
)

func toMap(kvs []string) map[string]string {
	m := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	return m
}

func TestMergePrecedence(t *testing.T) {
	e := New()
	e.env = Var{"HOME": "/root", "PORT": "1000"}
	e.Set("PORT", "2000")
	got := toMap(e.Merge([]string{"PORT=3000", "EXTRA=x"}))
	if got["PORT"] != "3000" {
		t.Fatalf("per-service must win, got PORT=%q", got["PORT"])
	}
	if got["HOME"] != "/root" || got["EXTRA"] != "x" {
		t.Fatalf("unexpected merge result: %v", got)
	}
}

func TestMergeExpansion(t *testing.T) {
	e := New()
	e.env = Var{"MODEL_DIR": "/models"}
	got := toMap(e.Merge([]string{"EMBED=${MODEL_DIR}/embed.gguf"}))
	if got["EMBED"] != "/models/embed.gguf" {
		t.Fatalf("expansion failed: %q", got["EMBED"])
	}
}

func TestMergeSkipsMalformed(t *testing.T) {
	e := New()
	e.env = Var{}
	got := e.Merge([]string{"=bad", "no-equals-at-all-is-dropped"})
	for _, kv := range got {
		if strings.HasPrefix(kv, "=") {
			t.Fatalf("malformed entry kept: %q", kv)
		}
	}
}
