package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "prod", "info")

	logger.Info().Str("cpf", "12345678900").Msg("lookup")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "lookup" {
		t.Errorf("message = %v, want lookup", entry["message"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected timestamp field")
	}
}

func TestNew_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "prod", "warn")

	logger.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info line should be filtered at warn level, got %q", buf.String())
	}
	logger.Warn().Msg("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn line missing: %q", buf.String())
	}
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "prod", "loud")

	logger.Debug().Msg("debug")
	logger.Info().Msg("info")
	if strings.Contains(buf.String(), "debug") || !strings.Contains(buf.String(), "info") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestNew_DevUsesConsoleWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "dev", "info")

	logger.Info().Msg("console")
	if json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Fatalf("dev output should be human readable, got JSON %q", buf.String())
	}
}
