package logger

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelDebug,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelDebug,
	}
	for input, want := range tests {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestSetupWritesStructuredFile(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	path := filepath.Join(t.TempDir(), "paidqa.log")
	_, closer := Setup(Options{Service: "paidqa", Env: "test", Level: "debug", File: path})

	Debug(42, "question_created", "question_id=7")
	Info(0, "worker_started", "")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), data)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["action"] != "question_created" {
		t.Errorf("expected action question_created, got %v", entry["action"])
	}
	if entry["severity"] != "DEBUG" {
		t.Errorf("expected severity DEBUG, got %v", entry["severity"])
	}
	if entry["user_id"] != float64(42) {
		t.Errorf("expected user_id 42, got %v", entry["user_id"])
	}
	if entry["details"] != "question_id=7" {
		t.Errorf("expected details, got %v", entry["details"])
	}
	if entry["service"] != "paidqa" || entry["env"] != "test" {
		t.Errorf("expected service/env attributes, got %v", entry)
	}
}
