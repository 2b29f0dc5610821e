package shared

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateID(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := GenerateID()
		if len(id) != 36 {
			t.Errorf("expected 36 character UUID, got %d characters: %s", len(id), id)
		}
		if seen[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestGenerateState(t *testing.T) {
	first, err := GenerateState()
	if err != nil {
		t.Fatalf("failed to generate state: %v", err)
	}
	second, err := GenerateState()
	if err != nil {
		t.Fatalf("failed to generate state: %v", err)
	}

	if first == second {
		t.Error("expected distinct state tokens")
	}
	if strings.ContainsAny(first, "+/") {
		t.Errorf("expected URL-safe encoding, got %s", first)
	}
}

func TestMarshalJSON(t *testing.T) {
	data := map[string]int{"plays": 5}

	t.Run("Compact", func(t *testing.T) {
		out, err := MarshalJSON(data, false)
		if err != nil {
			t.Fatalf("failed to marshal: %v", err)
		}
		if string(out) != `{"plays":5}` {
			t.Errorf("unexpected output: %s", out)
		}
	})

	t.Run("Pretty", func(t *testing.T) {
		out, err := MarshalJSON(data, true)
		if err != nil {
			t.Fatalf("failed to marshal: %v", err)
		}
		if !strings.Contains(string(out), "\n") {
			t.Errorf("expected indented output, got %s", out)
		}
	})
}

func TestNewFileLogger(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "logs", "spins.log")

	logger, err := NewFileLogger(logPath)
	if err != nil {
		t.Fatalf("failed to create file logger: %v", err)
	}

	logger.Info("test entry")

	if _, err := os.Stat(logPath); err != nil {
		t.Errorf("expected log file to exist: %v", err)
	}
}
